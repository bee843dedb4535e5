package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/core/ingest"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

type DocumentHandler struct {
	store    core.DocumentStore
	blobs    core.BlobStore
	index    core.VectorIndex
	ingestor *ingest.Ingestor

	maxFileSize int64
	logger      *slog.Logger
}

func NewDocumentHandler(store core.DocumentStore, blobs core.BlobStore, index core.VectorIndex, ing *ingest.Ingestor, maxFileSize int64, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{
		store:       store,
		blobs:       blobs,
		index:       index,
		ingestor:    ing,
		maxFileSize: maxFileSize,
		logger:      logger.With("component", "documents"),
	}
}

// UploadDocument validates the multipart upload, persists blob and record,
// and enqueues the document for background ingestion. Validation rejects
// before anything is written: a rejected upload leaves no record behind.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxFileSize + 1<<20); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "missing file field")
		return
	}
	defer file.Close()

	mediaType := declaredMediaType(header.Header.Get("Content-Type"), header.Filename)
	if !models.SupportedMediaType(mediaType) {
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE",
			"supported types are PDF, DOCX and plain text")
		return
	}
	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_FILE", "uploaded file is empty")
		return
	}
	if header.Size > h.maxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			"file exceeds maximum allowed size of "+strconv.FormatInt(h.maxFileSize, 10)+" bytes")
		return
	}
	if n := utf8.RuneCountInString(header.Filename); n < 1 || n > 255 {
		writeError(w, http.StatusBadRequest, "INVALID_FILENAME", "filename must be between 1 and 255 characters")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to read upload")
		return
	}
	if int64(len(data)) > h.maxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size")
		return
	}

	docID := uuid.NewString()
	key, err := h.blobs.Save(r.Context(), docID, header.Filename, data)
	if err != nil {
		h.logger.Error("save blob", "document_id", docID, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to store file")
		return
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:         docID,
		FileName:   header.Filename,
		MediaType:  mediaType,
		FileSize:   int64(len(data)),
		StorageKey: key,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.store.CreateDocument(r.Context(), doc); err != nil {
		h.logger.Error("create document record", "document_id", docID, "err", err)
		// Don't leave an orphaned blob behind a failed insert.
		if delErr := h.blobs.Delete(r.Context(), key); delErr != nil {
			h.logger.Error("cleanup blob after failed insert", "document_id", docID, "err", delErr)
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to store document metadata")
		return
	}

	h.ingestor.Enqueue(docID)
	h.logger.Info("document accepted", "document_id", docID, "file", header.Filename, "size", len(data))

	writeJSON(w, http.StatusAccepted, doc)
}

// ListDocuments returns a page of documents, newest first, optionally
// filtered by status.
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := core.ListQuery{Limit: 20}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.DocumentStatus(raw)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "unknown status "+raw)
			return
		}
		q.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 100")
			return
		}
		q.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "offset must be non-negative")
			return
		}
		q.Offset = n
	}

	docs, total, err := h.store.ListDocuments(r.Context(), q)
	if err != nil {
		h.logger.Error("list documents", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     total,
		"limit":     q.Limit,
		"offset":    q.Offset,
	})
}

// GetDocument returns the full status payload for one document.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.store.GetDocumentByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "document not found")
			return
		}
		h.logger.Error("get document", "document_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ReprocessDocument resets a failed document to pending and enqueues a fresh
// pipeline run.
func (h *DocumentHandler) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.ResetDocument(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "document not found")
		case errors.Is(err, core.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "INVALID_STATE", "only failed documents can be reprocessed")
		default:
			h.logger.Error("reset document", "document_id", id, "err", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to reset document")
		}
		return
	}

	h.ingestor.Enqueue(id)
	h.logger.Info("document requeued", "document_id", id)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(models.StatusPending)})
}

// DeleteDocument removes record, blob, and (best effort) indexed vectors.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.store.GetDocumentByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "document not found")
			return
		}
		h.logger.Error("get document", "document_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to load document")
		return
	}

	if err := h.blobs.Delete(r.Context(), doc.StorageKey); err != nil {
		h.logger.Error("delete blob", "document_id", id, "err", err)
	}
	if err := h.index.DeleteByDocument(r.Context(), id); err != nil {
		h.logger.Error("delete vectors", "document_id", id, "err", err)
	}

	if err := h.store.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "document not found")
			return
		}
		h.logger.Error("delete document", "document_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// declaredMediaType strips parameters from the Content-Type part header,
// falling back to the filename extension when the client sent none.
func declaredMediaType(contentType, filename string) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			return mt
		}
	}
	switch filepath.Ext(filename) {
	case ".pdf":
		return models.MediaTypePDF
	case ".docx":
		return models.MediaTypeDOCX
	case ".txt", ".md":
		return models.MediaTypeText
	}
	return contentType
}

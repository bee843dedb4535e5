package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/core/blob"
	"github.com/kinetiq-labs/docpipe/internal/core/database"
	"github.com/kinetiq-labs/docpipe/internal/core/extract"
	"github.com/kinetiq-labs/docpipe/internal/core/ingest"
	"github.com/kinetiq-labs/docpipe/internal/core/llm"
	"github.com/kinetiq-labs/docpipe/internal/core/vectorindex"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

const testEmbedDim = 8

type apiFixture struct {
	router *chi.Mux
	store  *database.MemStore
	index  *vectorindex.MemoryIndex
	ing    *ingest.Ingestor
}

func newAPIFixture(t *testing.T, maxFileSize int64) *apiFixture {
	t.Helper()

	store := database.NewMemStore()
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	index := vectorindex.NewMemoryIndex()
	require.NoError(t, index.EnsureCollection(context.Background(), testEmbedDim))

	ing, err := ingest.New(store, blobs, extract.NewDocconvExtractor(), llm.NewRandomEmbedder(testEmbedDim), index, ingest.Config{
		ChunkSize:        10,
		ChunkOverlap:     2,
		EmbedMaxAttempts: 1,
		RetryBaseDelay:   time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(ing.Release)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	docHandler := NewDocumentHandler(store, blobs, index, ing, maxFileSize, logger)
	searchHandler := NewSearchHandler(index, testEmbedDim, logger)

	r := chi.NewRouter()
	r.Post("/api/documents/upload", docHandler.UploadDocument)
	r.Get("/api/documents", docHandler.ListDocuments)
	r.Get("/api/documents/{id}", docHandler.GetDocument)
	r.Post("/api/documents/{id}/reprocess", docHandler.ReprocessDocument)
	r.Delete("/api/documents/{id}", docHandler.DeleteDocument)
	r.Post("/api/search", searchHandler.Search)

	return &apiFixture{router: r, store: store, index: index, ing: ing}
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeErrorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var out map[string]errorBody
	require.NoError(t, json.Unmarshal(body.Bytes(), &out))
	return out["error"].Code
}

func TestUpload_Accepted(t *testing.T) {
	f := newAPIFixture(t, 1<<20)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, multipartUpload(t, "notes.txt", "text/plain", []byte("hello ingestion world")))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "notes.txt", doc.FileName)
	assert.Equal(t, models.MediaTypeText, doc.MediaType)
	assert.Equal(t, models.StatusPending, doc.Status)

	stored, err := f.store.GetDocumentByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestUpload_ValidationRejections(t *testing.T) {
	cases := []struct {
		name       string
		filename   string
		mediaType  string
		data       []byte
		wantStatus int
		wantCode   string
	}{
		{"unsupported type", "img.jpeg", "image/jpeg", []byte("xx"), http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE"},
		{"empty file", "empty.txt", "text/plain", nil, http.StatusBadRequest, "EMPTY_FILE"},
		{"too large", "big.txt", "text/plain", bytes.Repeat([]byte("a"), 64), http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"filename too long", strings.Repeat("n", 256) + ".txt", "text/plain", []byte("xx"), http.StatusBadRequest, "INVALID_FILENAME"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAPIFixture(t, 32)

			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, multipartUpload(t, tc.filename, tc.mediaType, tc.data))

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCode, decodeErrorCode(t, rec.Body))

			// A rejected upload must not create a record.
			_, total, err := f.store.ListDocuments(context.Background(), core.ListQuery{})
			require.NoError(t, err)
			assert.Equal(t, 0, total)
		})
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	f := newAPIFixture(t, 1<<20)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/no-such-id", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, rec.Body))
}

func TestListDocuments_PagingAndFilter(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		status := models.StatusPending
		if i%2 == 1 {
			status = models.StatusFailed
		}
		require.NoError(t, f.store.CreateDocument(ctx, &models.Document{
			ID:        fmt.Sprintf("doc-%d", i),
			FileName:  fmt.Sprintf("f%d.txt", i),
			MediaType: models.MediaTypeText,
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base,
		}))
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents?limit=2&offset=0", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Documents []models.Document `json:"documents"`
		Total     int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Documents, 2)
	assert.Equal(t, "doc-4", page.Documents[0].ID)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents?status=failed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents?limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReprocess_OnlyFailedDocuments(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, f.store.CreateDocument(ctx, &models.Document{
		ID: "doc-failed", FileName: "a.txt", MediaType: models.MediaTypeText,
		Status: models.StatusFailed, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, f.store.CreateDocument(ctx, &models.Document{
		ID: "doc-done", FileName: "b.txt", MediaType: models.MediaTypeText,
		Status: models.StatusCompleted, CreatedAt: now, UpdatedAt: now,
	}))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents/doc-failed/reprocess", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	doc, err := f.store.GetDocumentByID(ctx, "doc-failed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, doc.Status)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents/doc-done/reprocess", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", decodeErrorCode(t, rec.Body))

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents/nope/reprocess", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDocument_RemovesRecordAndVectors(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	ctx := context.Background()

	// Ingest synchronously so vectors exist before the delete.
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, multipartUpload(t, "notes.txt", "text/plain", []byte(strings.Repeat("word ", 30))))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.NoError(t, f.ing.ProcessOne(ctx, doc.ID))
	require.Greater(t, f.index.Count(), 0)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, 0, f.index.Count())

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch_DimensionChecked(t *testing.T) {
	f := newAPIFixture(t, 1<<20)

	body, err := json.Marshal(map[string]any{"vector": []float32{1, 2, 3}, "top_k": 5})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "DIMENSION_MISMATCH", decodeErrorCode(t, rec.Body))

	vec := make([]float32, testEmbedDim)
	vec[0] = 1
	body, err = json.Marshal(map[string]any{"vector": vec, "top_k": 5})
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Matches []models.SearchMatch `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out.Matches)
}

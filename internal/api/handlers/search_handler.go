package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

type SearchHandler struct {
	index    core.VectorIndex
	embedDim int
	logger   *slog.Logger
}

func NewSearchHandler(index core.VectorIndex, embedDim int, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandler{index: index, embedDim: embedDim, logger: logger.With("component", "search")}
}

type searchRequest struct {
	Vector []float32      `json:"vector"`
	TopK   int            `json:"top_k"`
	Filter map[string]any `json:"filter,omitempty"`
}

// Search runs a raw-vector similarity query against the index. The query
// vector must match the configured embedding dimension.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if len(req.Vector) != h.embedDim {
		writeError(w, http.StatusBadRequest, "DIMENSION_MISMATCH",
			"query vector has "+strconv.Itoa(len(req.Vector))+" components, want "+strconv.Itoa(h.embedDim))
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}
	if req.TopK > 100 {
		req.TopK = 100
	}

	matches, err := h.index.Search(r.Context(), req.Vector, req.TopK, req.Filter)
	if err != nil {
		h.logger.Error("vector search", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "search failed")
		return
	}
	if matches == nil {
		matches = []models.SearchMatch{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

var _ core.VectorIndex = (*MemoryIndex)(nil)

// MemoryIndex is an in-process vector index with the same contract as the
// Qdrant backend: idempotent upsert by id, cosine ranking, exact-match
// payload filters. Used in tests and for development without a Qdrant
// instance.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	records map[string]models.VectorRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]models.VectorRecord)}
}

func (m *MemoryIndex) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dim)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim != 0 && m.dim != dim {
		return fmt.Errorf("%w: collection has dimension %d, configured %d", core.ErrDimensionMismatch, m.dim, dim)
	}
	m.dim = dim
	return nil
}

func (m *MemoryIndex) UpsertBatch(ctx context.Context, records []models.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if m.dim != 0 && len(r.Vector) != m.dim {
			return fmt.Errorf("%w: record %s has %d components, want %d", core.ErrDimensionMismatch, r.ID, len(r.Vector), m.dim)
		}
		m.records[r.ID] = r
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]models.SearchMatch, error) {
	if topK <= 0 {
		topK = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []models.SearchMatch
	for _, r := range m.records {
		if !payloadMatches(r.Payload, filter) {
			continue
		}
		matches = append(matches, models.SearchMatch{
			ID:      r.ID,
			Score:   cosineSimilarity(vector, r.Vector),
			Payload: r.Payload,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemoryIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.Payload["document_id"] == documentID {
			delete(m.records, id)
		}
	}
	return nil
}

// Count returns the number of stored records. Test helper, not part of the
// VectorIndex contract.
func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Get returns the stored record for id. Test helper.
func (m *MemoryIndex) Get(id string) (models.VectorRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r, ok
}

func payloadMatches(payload, filter map[string]any) bool {
	for k, want := range filter {
		if payload[k] != want {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

var _ core.DocumentStore = (*MemStore)(nil)

// MemStore is an in-memory DocumentStore with the same transition semantics
// as the Postgres store. Used in tests and for development without a
// database.
type MemStore struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]*models.Document)}
}

func (s *MemStore) Close() error { return nil }

func (s *MemStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	cp := *doc
	if cp.Metadata == nil {
		cp.Metadata = map[string]string{}
	}
	s.docs[doc.ID] = &cp
	return nil
}

func (s *MemStore) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemStore) ListDocuments(ctx context.Context, q core.ListQuery) ([]models.Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []models.Document
	for _, doc := range s.docs {
		if q.Status != nil && doc.Status != *q.Status {
			continue
		}
		matching = append(matching, *doc)
	}
	sort.Slice(matching, func(i, j int) bool {
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	total := len(matching)
	if q.Offset >= total {
		return nil, total, nil
	}
	matching = matching[q.Offset:]
	if q.Limit > 0 && len(matching) > q.Limit {
		matching = matching[:q.Limit]
	}
	return matching, total, nil
}

func (s *MemStore) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, fields core.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	if !models.CanTransition(doc.Status, status) {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, doc.Status, status)
	}
	doc.Status = status
	if fields.ChunkCount != nil && doc.ChunkCount == 0 {
		doc.ChunkCount = *fields.ChunkCount
	}
	doc.ErrorMessage = fields.ErrorMessage
	if fields.ProcessedAt != nil {
		t := *fields.ProcessedAt
		doc.ProcessedAt = &t
	}
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) ResetDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	if doc.Status != models.StatusFailed {
		return fmt.Errorf("%w: reprocess requires failed status", core.ErrInvalidTransition)
	}
	doc.Status = models.StatusPending
	doc.ChunkCount = 0
	doc.ErrorMessage = ""
	doc.ProcessedAt = nil
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

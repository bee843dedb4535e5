package core

import (
	"context"
	"time"

	"github.com/kinetiq-labs/docpipe/internal/models"
)

// ListQuery bounds and filters a document listing.
type ListQuery struct {
	Status *models.DocumentStatus
	Limit  int
	Offset int
}

// StatusUpdate carries the optional fields written alongside a status
// transition. ChunkCount is set exactly once, when chunking completes;
// stores ignore attempts to overwrite a non-zero count.
type StatusUpdate struct {
	ChunkCount   *int
	ErrorMessage string
	ProcessedAt  *time.Time
}

// DocumentStore owns document lifecycle records. Implementations must be
// safe for concurrent use; the orchestrator only ever holds document ids.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error

	// GetDocumentByID returns ErrNotFound for an unknown id.
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)

	// ListDocuments returns a page ordered by creation time descending and
	// the total count of matching records.
	ListDocuments(ctx context.Context, q ListQuery) ([]models.Document, int, error)

	// UpdateDocumentStatus applies a guarded lifecycle transition. It returns
	// ErrInvalidTransition when the move is not legal from the record's
	// current status, and ErrNotFound for an unknown id.
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, fields StatusUpdate) error

	// ResetDocument returns a failed document to pending for a fresh
	// ingestion run, clearing chunk count, error message and processed_at.
	// Only valid from the failed state.
	ResetDocument(ctx context.Context, id string) error

	DeleteDocument(ctx context.Context, id string) error

	Close() error
}

// BlobStore persists raw uploaded bytes under a per-document key.
type BlobStore interface {
	// Save stores data and returns the key used to retrieve it later.
	Save(ctx context.Context, docID, filename string, data []byte) (key string, err error)

	Open(ctx context.Context, key string) ([]byte, error)

	Delete(ctx context.Context, key string) error
}

// Extractor produces plain text from raw document bytes.
type Extractor interface {
	// Extract fails with ErrUnsupportedMediaType for unknown media types and
	// ErrDecode for plain text that is not valid UTF-8.
	Extract(ctx context.Context, data []byte, mediaType string) (string, error)
}

// Embedder maps text segments to fixed-dimension vectors. Implementations
// must be safe for concurrent use.
type Embedder interface {
	// EmbedTexts returns one vector per input text, in input order, each of
	// exactly Dimension() components.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	Dimension() int
}

// VectorIndex stores (id, vector, payload) records in a similarity-searchable
// collection.
type VectorIndex interface {
	// EnsureCollection creates the collection if missing and verifies its
	// dimension otherwise. A dimension mismatch is fatal at startup.
	EnsureCollection(ctx context.Context, dim int) error

	// UpsertBatch writes all records in one call; re-upserting an id replaces
	// its vector and payload.
	UpsertBatch(ctx context.Context, records []models.VectorRecord) error

	// Search returns up to topK matches ranked by similarity descending.
	// filter, when non-nil, restricts results to payloads matching every
	// key/value pair exactly.
	Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]models.SearchMatch, error)

	// DeleteByDocument removes every record whose payload carries the given
	// document id. Used for best-effort cleanup when a document is deleted.
	DeleteByDocument(ctx context.Context, documentID string) error
}

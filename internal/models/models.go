package models

import (
	"time"
)

// DocumentStatus tracks where a document is in its ingestion lifecycle.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from -> to is a legal lifecycle step.
// The only path is pending -> processing -> {completed, failed}. A transition
// to the current state is allowed so field-only updates (chunk count) can
// reuse the same guarded code path.
func CanTransition(from, to DocumentStatus) bool {
	if from == to {
		return !from.Terminal()
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Supported media types for upload and extraction.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeText = "text/plain"
)

// SupportedMediaType reports whether mt is one of the ingestable formats.
func SupportedMediaType(mt string) bool {
	switch mt {
	case MediaTypePDF, MediaTypeDOCX, MediaTypeText:
		return true
	}
	return false
}

// Document represents an uploaded file tracked through the ingestion pipeline.
type Document struct {
	ID           string            `db:"id" json:"id"`
	FileName     string            `db:"file_name" json:"file_name"`
	MediaType    string            `db:"media_type" json:"media_type"`
	FileSize     int64             `db:"file_size" json:"file_size"`
	StorageKey   string            `db:"storage_key" json:"-"`
	Status       DocumentStatus    `db:"status" json:"status"`
	ChunkCount   int               `db:"chunk_count" json:"chunk_count"`
	Metadata     map[string]string `db:"metadata" json:"metadata"`
	ErrorMessage string            `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
}

// Chunk is one word-bounded segment of a document's extracted text.
// Chunks are ephemeral: they exist only for the duration of one ingestion
// run and get fresh ids on every run.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	WordCount  int
	StartWord  int
	EndWord    int
	Vector     []float32
}

// VectorRecord is the persisted projection of a chunk into the vector index.
type VectorRecord struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// SearchMatch is one ranked result from a similarity query.
type SearchMatch struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

package core

import (
	"errors"
	"fmt"
)

// Upload validation errors. These are rejected before any document record
// or pipeline work exists.
var (
	// ErrUnsupportedMediaType indicates the declared media type is not ingestable.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrEmptyFile indicates a zero-byte upload.
	ErrEmptyFile = errors.New("uploaded file is empty")

	// ErrFileTooLarge indicates the upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

	// ErrInvalidFilename indicates a filename outside the 1..255 character range.
	ErrInvalidFilename = errors.New("filename must be between 1 and 255 characters")
)

// Pipeline and store errors.
var (
	// ErrNotFound indicates the requested document record does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrDecode indicates a plain-text payload that is not valid UTF-8.
	ErrDecode = errors.New("invalid UTF-8 byte sequence")

	// ErrInvalidChunkConfig indicates chunk_size <= overlap or overlap < 0.
	ErrInvalidChunkConfig = errors.New("chunk size must be greater than overlap, overlap must be non-negative")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// configured embedding dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidTransition indicates a document status update that violates
	// the pending -> processing -> {completed, failed} lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidMaxAttempts indicates a retry policy configured with fewer
	// than one attempt.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")
)

// StageError wraps a failure with the pipeline stage it occurred in. The
// stage name is prefixed onto the cause so the persisted error_message tells
// an operator where ingestion stopped.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// TransientError marks a failure worth retrying, such as an embedding
// provider timeout or rate limit. Anything not marked transient fails the
// stage immediately.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// MarkTransient wraps err as retryable. Returns nil for a nil err.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked retryable anywhere in its chain.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

var _ core.DocumentStore = (*PgStore)(nil)

// PgStore persists document lifecycle records in Postgres through the pgx
// stdlib driver.
type PgStore struct {
	db *sql.DB
}

func NewPgStore(ctx context.Context, databaseURL string) (*PgStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &PgStore{db: db}, nil
}

func (s *PgStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const documentColumns = `id, file_name, media_type, file_size, storage_key, status,
	chunk_count, metadata, error_message, created_at, updated_at, processed_at`

func (s *PgStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	const q = `
		INSERT INTO documents
			(id, file_name, media_type, file_size, storage_key, status, chunk_count, metadata, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`
	_, err = s.db.ExecContext(ctx, q,
		doc.ID, doc.FileName, doc.MediaType, doc.FileSize, doc.StorageKey,
		doc.Status, doc.ChunkCount, meta, doc.CreatedAt)
	return err
}

func (s *PgStore) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *PgStore) ListDocuments(ctx context.Context, lq core.ListQuery) ([]models.Document, int, error) {
	where := ""
	args := []any{}
	if lq.Status != nil {
		where = " WHERE status = $1"
		args = append(args, string(*lq.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM documents%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		documentColumns, where, len(args)+1, len(args)+2)
	args = append(args, lq.Limit, lq.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *doc)
	}
	return out, total, rows.Err()
}

// UpdateDocumentStatus applies a guarded transition inside a transaction.
// The current row is locked so concurrent updates cannot skip states, and
// chunk_count is written only while still zero.
func (s *PgStore) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, fields core.StatusUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current models.DocumentStatus
	var chunkCount int
	err = tx.QueryRowContext(ctx, `SELECT status, chunk_count FROM documents WHERE id = $1 FOR UPDATE`, id).
		Scan(&current, &chunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}

	if !models.CanTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, current, status)
	}

	newCount := chunkCount
	if fields.ChunkCount != nil && chunkCount == 0 {
		newCount = *fields.ChunkCount
	}

	const q = `
		UPDATE documents
		SET status = $2,
		    chunk_count = $3,
		    error_message = NULLIF($4, ''),
		    processed_at = COALESCE($5, processed_at),
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, q, id, string(status), newCount, fields.ErrorMessage, fields.ProcessedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetDocument returns a failed document to pending so a fresh ingestion
// run can start. The status predicate makes the reset a no-op race-safe
// compare-and-set.
func (s *PgStore) ResetDocument(ctx context.Context, id string) error {
	const q = `
		UPDATE documents
		SET status = 'pending',
		    chunk_count = 0,
		    error_message = NULL,
		    processed_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND status = 'failed'
	`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetDocumentByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: reprocess requires failed status", core.ErrInvalidTransition)
	}
	return nil
}

func (s *PgStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		d        models.Document
		meta     []byte
		errMsg   sql.NullString
		procTime sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.FileName, &d.MediaType, &d.FileSize, &d.StorageKey, &d.Status,
		&d.ChunkCount, &meta, &errMsg, &d.CreatedAt, &d.UpdatedAt, &procTime,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if d.Metadata == nil {
		d.Metadata = map[string]string{}
	}
	if errMsg.Valid {
		d.ErrorMessage = errMsg.String
	}
	if procTime.Valid {
		t := procTime.Time
		d.ProcessedAt = &t
	}
	return &d, nil
}

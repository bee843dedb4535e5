package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

// ProcessOne runs the full pipeline for a single document: move it to
// processing, then extract, chunk, embed and upsert in strict order. Every
// exit path writes a final status so a crash mid-pipeline is observable as a
// stuck processing record, never a silently lost one.
func (ing *Ingestor) ProcessOne(ctx context.Context, docID string) error {
	ctx, cancel := context.WithTimeout(ctx, ing.cfg.DocumentTimeout)
	defer cancel()

	doc, err := ing.store.GetDocumentByID(ctx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if err := ing.store.UpdateDocumentStatus(ctx, docID, models.StatusProcessing, core.StatusUpdate{}); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	ing.logger.Info("processing document", "document_id", docID, "file", doc.FileName)

	if err := ing.run(ctx, doc); err != nil {
		ing.finalize(docID, models.StatusFailed, core.StatusUpdate{ErrorMessage: err.Error()})
		return err
	}

	now := time.Now().UTC()
	ing.finalize(docID, models.StatusCompleted, core.StatusUpdate{ProcessedAt: &now})
	return nil
}

// run executes the ordered stages. Each stage's output is the next stage's
// only input; a stage error aborts the rest.
func (ing *Ingestor) run(ctx context.Context, doc *models.Document) error {
	data, err := ing.blobs.Open(ctx, doc.StorageKey)
	if err != nil {
		return &core.StageError{Stage: "fetch", Err: err}
	}

	text, err := ing.extractor.Extract(ctx, data, doc.MediaType)
	if err != nil {
		return &core.StageError{Stage: "extract", Err: err}
	}

	chunks := ing.chunker.Chunk(doc.ID, text)
	count := len(chunks)
	if err := ing.store.UpdateDocumentStatus(ctx, doc.ID, models.StatusProcessing, core.StatusUpdate{ChunkCount: &count}); err != nil {
		return &core.StageError{Stage: "chunk", Err: err}
	}
	ing.logger.Info("chunked document", "document_id", doc.ID, "chunks", count)

	if count == 0 {
		// Nothing to embed; an empty document completes with zero chunks.
		return nil
	}

	vectors, err := ing.embedChunks(ctx, chunks)
	if err != nil {
		return &core.StageError{Stage: "embed", Err: err}
	}

	now := time.Now().UTC()
	records := make([]models.VectorRecord, len(chunks))
	for i, ch := range chunks {
		records[i] = models.VectorRecord{
			ID:     ch.ID,
			Vector: vectors[ch.Index],
			Payload: map[string]any{
				"document_id": doc.ID,
				"text":        ch.Text,
				"chunk_index": ch.Index,
				"timestamp":   now.Unix(),
			},
		}
	}
	if err := ing.index.UpsertBatch(ctx, records); err != nil {
		return &core.StageError{Stage: "index", Err: err}
	}
	ing.logger.Info("indexed document", "document_id", doc.ID, "records", len(records))
	return nil
}

// embedChunks embeds every chunk with bounded concurrency, reassembling
// results by chunk index. One chunk failing fails the whole stage; nothing
// half-embedded is ever upserted.
func (ing *Ingestor) embedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.cfg.EmbedConcurrency)

	for i := range chunks {
		ch := chunks[i]
		g.Go(func() error {
			var vec []float32
			err := RetryTransient(gctx, func() error {
				out, err := ing.embedder.EmbedTexts(gctx, []string{ch.Text})
				if err != nil {
					return err
				}
				if len(out) != 1 {
					return fmt.Errorf("embedder returned %d vectors for one text", len(out))
				}
				vec = out[0]
				return nil
			}, ing.cfg.EmbedMaxAttempts, ing.cfg.RetryBaseDelay)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", ch.Index, err)
			}
			if len(vec) != ing.embedder.Dimension() {
				return fmt.Errorf("chunk %d: %w: got %d components, want %d",
					ch.Index, core.ErrDimensionMismatch, len(vec), ing.embedder.Dimension())
			}
			vectors[ch.Index] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// finalize writes a terminal status with a fresh context so the update still
// lands when the pipeline context is already cancelled or timed out.
func (ing *Ingestor) finalize(docID string, status models.DocumentStatus, fields core.StatusUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := ing.store.UpdateDocumentStatus(ctx, docID, status, fields); err != nil {
		ing.logger.Error("write final status", "document_id", docID, "status", status, "err", err)
	}
}

package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/core/chunker"
)

// Config tunes the ingestion pipeline.
type Config struct {
	// ChunkSize and ChunkOverlap are the word-window parameters (defaults
	// 500/50).
	ChunkSize    int
	ChunkOverlap int

	// EmbedConcurrency bounds parallel chunk embeddings within one document.
	EmbedConcurrency int

	// EmbedMaxAttempts and RetryBaseDelay form the bounded backoff policy
	// for transient embedding failures.
	EmbedMaxAttempts int
	RetryBaseDelay   time.Duration

	// Workers is the number of documents processed in parallel; QueueSize
	// bounds the pending job channel.
	Workers   int
	QueueSize int

	// DocumentTimeout caps one document's whole pipeline run.
	DocumentTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = 500
	}
	if c.ChunkOverlap == 0 && c.ChunkSize > 50 {
		c.ChunkOverlap = 50
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 4
	}
	if c.EmbedMaxAttempts <= 0 {
		c.EmbedMaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = 5 * time.Minute
	}
	return c
}

// Ingestor coordinates one pipeline run per document: fetch blob, extract,
// chunk, embed, upsert, and record the lifecycle transition at each step.
// Documents are independent units of work processed by a bounded pool.
type Ingestor struct {
	store     core.DocumentStore
	blobs     core.BlobStore
	extractor core.Extractor
	chunker   *chunker.WordChunker
	embedder  core.Embedder
	index     core.VectorIndex

	cfg    Config
	pool   *ants.Pool
	jobs   chan string
	logger *slog.Logger
}

func New(
	store core.DocumentStore,
	blobs core.BlobStore,
	extractor core.Extractor,
	embedder core.Embedder,
	index core.VectorIndex,
	cfg Config,
	logger *slog.Logger,
) (*Ingestor, error) {
	if store == nil || blobs == nil || extractor == nil || embedder == nil || index == nil {
		return nil, errors.New("all ingestor collaborators are required")
	}
	cfg = cfg.withDefaults()

	ck, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Ingestor{
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		chunker:   ck,
		embedder:  embedder,
		index:     index,
		cfg:       cfg,
		pool:      pool,
		jobs:      make(chan string, cfg.QueueSize),
		logger:    logger.With("component", "ingestor"),
	}, nil
}

// Start consumes the job queue until ctx is cancelled, dispatching each
// document to the worker pool.
func (ing *Ingestor) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				ing.logger.Info("ingestor shutting down")
				return
			case docID := <-ing.jobs:
				id := docID
				if err := ing.pool.Submit(func() {
					if err := ing.ProcessOne(ctx, id); err != nil {
						ing.logger.Error("ingestion failed", "document_id", id, "err", err)
					}
				}); err != nil {
					ing.logger.Error("submit to pool", "document_id", id, "err", err)
				}
			}
		}
	}()
}

// Enqueue schedules a document for ingestion. Blocks when the queue is full.
func (ing *Ingestor) Enqueue(docID string) {
	ing.jobs <- docID
}

// Release tears down the worker pool. The ingestor must not be used after.
func (ing *Ingestor) Release() {
	if ing.pool != nil {
		ing.pool.Release()
	}
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kinetiq-labs/docpipe/internal/config"
	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/core/blob"
	"github.com/kinetiq-labs/docpipe/internal/core/database"
	"github.com/kinetiq-labs/docpipe/internal/core/extract"
	"github.com/kinetiq-labs/docpipe/internal/core/ingest"
	"github.com/kinetiq-labs/docpipe/internal/core/llm"
	"github.com/kinetiq-labs/docpipe/internal/core/vectorindex"
)

// App owns every long-lived component: the document store, blob store,
// vector index, ingestor pool, and the HTTP server.
type App struct {
	Store    core.DocumentStore
	Blobs    core.BlobStore
	Index    core.VectorIndex
	Ingestor *ingest.Ingestor
	Server   *Server

	logger *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	store, err := database.NewPgStore(initCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("init document store: %w", err)
	}
	logger.Info("database initialized and bootstrapped")

	blobs, err := newBlobStore(initCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}

	embedder, err := newEmbedder(initCtx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	index := newVectorIndex(cfg)
	if err := index.EnsureCollection(initCtx, embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("ensure vector collection: %w", err)
	}
	logger.Info("vector collection ready", "collection", cfg.VectorDBCollection, "dim", embedder.Dimension())

	ingestor, err := ingest.New(store, blobs, extract.NewDocconvExtractor(), embedder, index, ingest.Config{
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		EmbedConcurrency: cfg.EmbedConcurrency,
		EmbedMaxAttempts: cfg.EmbedMaxAttempts,
		Workers:          cfg.Workers,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init ingestor: %w", err)
	}

	server := NewServer(cfg, store, blobs, index, ingestor, logger)

	return &App{
		Store:    store,
		Blobs:    blobs,
		Index:    index,
		Ingestor: ingestor,
		Server:   server,
		logger:   logger,
	}, nil
}

func (a *App) Close() {
	if a.Ingestor != nil {
		a.Ingestor.Release()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (core.BlobStore, error) {
	switch cfg.BlobBackend {
	case "s3":
		return blob.NewS3Store(ctx, blob.S3Config{
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
			Region:    cfg.AwsRegion,
			Bucket:    cfg.BucketName,
		})
	case "local":
		return blob.NewLocalStore(cfg.StorageRoot)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func newEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.Embedder, error) {
	switch cfg.EmbedBackend {
	case "gemini":
		return llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	case "random":
		logger.Warn("using deterministic stub embedder; vectors carry no semantic meaning")
		return llm.NewRandomEmbedder(cfg.EmbedDim), nil
	default:
		return nil, fmt.Errorf("unknown embed backend %q", cfg.EmbedBackend)
	}
}

func newVectorIndex(cfg *config.Config) core.VectorIndex {
	if cfg.VectorBackend == "memory" {
		return vectorindex.NewMemoryIndex()
	}
	return vectorindex.NewQdrantIndex(vectorindex.QdrantConfig{
		URL:        cfg.VectorDBURL,
		APIKey:     cfg.VectorDBAPIKey,
		Collection: cfg.VectorDBCollection,
	})
}

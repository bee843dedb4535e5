package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kinetiq-labs/docpipe/internal/api/handlers"
	"github.com/kinetiq-labs/docpipe/internal/config"
	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/core/ingest"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, store core.DocumentStore, blobs core.BlobStore, index core.VectorIndex, ing *ingest.Ingestor, logger *slog.Logger) *Server {
	docHandler := handlers.NewDocumentHandler(store, blobs, index, ing, cfg.MaxFileSize, logger)
	searchHandler := handlers.NewSearchHandler(index, cfg.EmbedDim, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/documents/upload", docHandler.UploadDocument)
		api.Get("/documents", docHandler.ListDocuments)
		api.Get("/documents/{id}", docHandler.GetDocument)
		api.Post("/documents/{id}/reprocess", docHandler.ReprocessDocument)
		api.Delete("/documents/{id}", docHandler.DeleteDocument)
		api.Post("/search", searchHandler.Search)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logger.With("component", "http")}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

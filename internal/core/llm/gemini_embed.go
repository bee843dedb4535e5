package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kinetiq-labs/docpipe/internal/core"
)

var _ core.Embedder = (*GeminiEmbedder)(nil)

// GeminiEmbedder produces embeddings through the Gemini batch embedding API.
// Safe for concurrent use; the underlying client manages its own transport.
type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	dim       int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, dim int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key not set")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	return &GeminiEmbedder{client: cl, modelName: modelName, dim: dim}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Dimension returns the process-wide embedding dimension every produced
// vector must match.
func (g *GeminiEmbedder) Dimension() int { return g.dim }

// EmbedTexts embeds all texts in one batch request. Rate limits, timeouts
// and server-side errors are marked transient so the caller's retry policy
// applies; a dimension mismatch is a configuration error and never retried.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.modelName)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		if retryable(err) {
			return nil, core.MarkTransient(fmt.Errorf("gemini batch embed: %w", err))
		}
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Values) != g.dim {
			return nil, fmt.Errorf("%w: text %d produced %d components, want %d",
				core.ErrDimensionMismatch, i, len(e.Values), g.dim)
		}
		out = append(out, e.Values)
	}
	return out, nil
}

// retryable classifies provider failures worth another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	return false
}

package llm

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/kinetiq-labs/docpipe/internal/core"
)

var _ core.Embedder = (*RandomEmbedder)(nil)

// RandomEmbedder generates deterministic pseudo-random unit vectors seeded
// from the text content. It is a stand-in for a real model: the same text
// always maps to the same vector, so tests and local development get stable
// similarity results without an API key.
type RandomEmbedder struct {
	dim int
}

func NewRandomEmbedder(dim int) *RandomEmbedder {
	return &RandomEmbedder{dim: dim}
}

func (r *RandomEmbedder) Dimension() int { return r.dim }

func (r *RandomEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = deterministicVector(t, r.dim)
	}
	return out, nil
}

// deterministicVector derives a unit vector from an FNV hash of the text,
// stepped through a linear congruential generator.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dim)
	var sumSquares float64
	for i := range vec {
		seed = seed*1664525 + 1013904223
		v := float32(seed%2000)/1000.0 - 1.0
		vec[i] = v
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares > 0 {
		norm := float32(1.0 / math.Sqrt(sumSquares))
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec
}

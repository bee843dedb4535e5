package llm

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomEmbedder_Dimension(t *testing.T) {
	e := NewRandomEmbedder(384)
	assert.Equal(t, 384, e.Dimension())

	vecs, err := e.EmbedTexts(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 384)
	}
}

func TestRandomEmbedder_Deterministic(t *testing.T) {
	e := NewRandomEmbedder(64)

	a, err := e.EmbedTexts(context.Background(), []string{"same text"})
	require.NoError(t, err)
	b, err := e.EmbedTexts(context.Background(), []string{"same text"})
	require.NoError(t, err)
	assert.Equal(t, a[0], b[0])

	c, err := e.EmbedTexts(context.Background(), []string{"different text"})
	require.NoError(t, err)
	assert.NotEqual(t, a[0], c[0])
}

func TestRandomEmbedder_UnitNorm(t *testing.T) {
	e := NewRandomEmbedder(128)
	vecs, err := e.EmbedTexts(context.Background(), []string{"normalize me"})
	require.NoError(t, err)

	var sum float64
	for _, v := range vecs[0] {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-3)
}

func TestRandomEmbedder_EmptyInput(t *testing.T) {
	e := NewRandomEmbedder(16)
	vecs, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

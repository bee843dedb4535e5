package chunker

import (
	"strings"

	"github.com/google/uuid"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

// WordChunker splits extracted text into overlapping word windows. Chunk
// boundaries are fully determined by (text, size, overlap); only the chunk
// ids differ between runs.
type WordChunker struct {
	size    int
	overlap int
}

// New validates the window configuration. size must exceed overlap and
// overlap must be non-negative, otherwise consecutive windows would never
// advance.
func New(size, overlap int) (*WordChunker, error) {
	if overlap < 0 || size <= overlap {
		return nil, core.ErrInvalidChunkConfig
	}
	return &WordChunker{size: size, overlap: overlap}, nil
}

// Chunk produces windows starting at word offsets 0, size-overlap,
// 2*(size-overlap), ... each holding up to size words. Empty or
// whitespace-only text yields no chunks and no error.
func (c *WordChunker) Chunk(documentID, text string) []models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []models.Chunk
	for start := 0; start < len(words); start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		window := words[start:end]
		chunks = append(chunks, models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Index:      len(chunks),
			Text:       strings.Join(window, " "),
			WordCount:  len(window),
			StartWord:  start,
			EndWord:    end,
		})
	}
	return chunks
}

// Size returns the configured window size in words.
func (c *WordChunker) Size() int { return c.size }

// Overlap returns the configured overlap in words.
func (c *WordChunker) Overlap() int { return c.overlap }

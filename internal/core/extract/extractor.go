package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

var _ core.Extractor = (*DocconvExtractor)(nil)

// DocconvExtractor turns PDF and DOCX payloads into plain text via docconv
// and decodes text/plain payloads directly. An image-only PDF converts to an
// empty body, which is a valid (zero-chunk) result rather than a failure.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor() *DocconvExtractor {
	return &DocconvExtractor{useReadability: false}
}

// Extract dispatches on the declared media type. Parse failures from the
// underlying converter are returned wrapped; the orchestrator turns them
// into a terminal extraction stage failure, never a retry.
func (e *DocconvExtractor) Extract(ctx context.Context, data []byte, mediaType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch mediaType {
	case models.MediaTypeText:
		if !utf8.Valid(data) {
			return "", core.ErrDecode
		}
		return string(data), nil

	case models.MediaTypePDF, models.MediaTypeDOCX:
		res, err := docconv.Convert(bytes.NewReader(data), mediaType, e.useReadability)
		if err != nil {
			return "", fmt.Errorf("convert %s: %w", mediaType, err)
		}
		return normalize(res.Body), nil

	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedMediaType, mediaType)
	}
}

// normalize collapses converter output into non-empty lines joined by blank
// lines, dropping whitespace-only fragments the way empty paragraphs and
// image-only pages are dropped.
func normalize(body string) string {
	var parts []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "\n\n")
}

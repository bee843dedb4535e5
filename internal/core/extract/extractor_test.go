package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetiq-labs/docpipe/internal/core"
	"github.com/kinetiq-labs/docpipe/internal/models"
)

func TestExtract_PlainText(t *testing.T) {
	e := NewDocconvExtractor()

	text, err := e.Extract(context.Background(), []byte("hello world\nsecond line"), models.MediaTypeText)
	require.NoError(t, err)
	assert.Equal(t, "hello world\nsecond line", text)
}

func TestExtract_PlainTextInvalidUTF8(t *testing.T) {
	e := NewDocconvExtractor()

	_, err := e.Extract(context.Background(), []byte{0xff, 0xfe, 0x41}, models.MediaTypeText)
	assert.ErrorIs(t, err, core.ErrDecode)
}

func TestExtract_UnsupportedMediaType(t *testing.T) {
	e := NewDocconvExtractor()

	_, err := e.Extract(context.Background(), []byte("data"), "image/jpeg")
	assert.ErrorIs(t, err, core.ErrUnsupportedMediaType)
}

func TestExtract_CancelledContext(t *testing.T) {
	e := NewDocconvExtractor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, []byte("hello"), models.MediaTypeText)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"drops whitespace-only lines", "first\n   \n\t\nsecond", "first\n\nsecond"},
		{"empty body stays empty", "", ""},
		{"only whitespace stays empty", " \n \n ", ""},
		{"trims fragments", "  a  \n b ", "a\n\nb"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalize(tc.in))
		})
	}
}

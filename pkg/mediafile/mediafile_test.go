package mediafile

import (
	"context"
	"image"
	"io"
	"testing"

	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConverter struct {
	name string
}

func (s *stubConverter) ExtractText(_ context.Context, _ string, w io.Writer) error {
	_, err := io.WriteString(w, s.name)
	return err
}

func (s *stubConverter) ExtractMetadata(_ context.Context, _ string, _ formats.Format) (*ExtractedMetadata, error) {
	return &ExtractedMetadata{Title: s.name}, nil
}

func TestRegistry_ForFormat(t *testing.T) {
	t.Parallel()
	text := &stubConverter{"text"}
	pdf := &stubConverter{"pdf"}

	r := NewRegistry(text)
	r.Register(pdf, formats.PDF)
	r.Register(text, formats.TXT, formats.Markdown)

	assert.Same(t, pdf, r.ForFormat(formats.PDF))
	assert.Same(t, text, r.ForFormat(formats.TXT))
	assert.Same(t, text, r.ForFormat(formats.Unknown), "unregistered formats fall back")
	assert.Same(t, text, r.ForFormat(formats.MOBI))
}

func TestExtractTextString(t *testing.T) {
	t.Parallel()
	s, err := ExtractTextString(context.Background(), &stubConverter{"hello"}, "/x")
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestExtractionError(t *testing.T) {
	t.Parallel()
	cause := errors.New("zip: not a valid zip file")
	err := NewExtractionError(formats.EPUB, "the archive is corrupt", cause)

	assert.Equal(t, "Could not read EPUB document: the archive is corrupt.", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestEstimatePageCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size     int64
		perPage  int64
		expected int
	}{
		{0, 50 * 1024, 1},
		{10, 50 * 1024, 1},
		{50 * 1024, 50 * 1024, 1},
		{500 * 1024, 50 * 1024, 10},
		{1024 * 1024, 100 * 1024, 10},
		{100, 0, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, EstimatePageCount(tt.size, tt.perPage))
	}
}

func TestExtractedMetadata_Release(t *testing.T) {
	t.Parallel()
	m := &ExtractedMetadata{Title: "A", Cover: image.NewRGBA(image.Rect(0, 0, 1, 1))}
	assert.Contains(t, m.String(), "Has Cover:       true")

	m.Release()
	assert.Nil(t, m.Cover)
	assert.Equal(t, "A", m.Title)

	var nilMeta *ExtractedMetadata
	nilMeta.Release()
}

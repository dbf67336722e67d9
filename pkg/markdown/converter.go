package markdown

import (
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/plaintext"
	"github.com/pkg/errors"
)

type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

// ReadFile decodes and parses a Markdown file.
func ReadFile(path string) (*Document, error) {
	source, err := plaintext.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse([]byte(source))
}

func (c *Converter) ExtractText(ctx context.Context, path string, w io.Writer) error {
	doc, err := c.read(ctx, path, formats.Markdown)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, doc.Text)
	return errors.WithStack(err)
}

func (c *Converter) ExtractMetadata(ctx context.Context, path string, format formats.Format) (*mediafile.ExtractedMetadata, error) {
	doc, err := c.read(ctx, path, format)
	if err != nil {
		return nil, err
	}
	return &mediafile.ExtractedMetadata{
		Title:              doc.Title(),
		Author:             strings.TrimSpace(doc.FrontMatter.Author),
		PageCount:          mediafile.EstimatePageCount(int64(utf8.RuneCountInString(doc.Text)), plaintext.CharsPerPage),
		PageCountEstimated: true,
	}, nil
}

func (c *Converter) read(ctx context.Context, path string, format formats.Format) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	doc, err := ReadFile(path)
	switch {
	case errors.Is(err, plaintext.ErrUnsupportedEncoding):
		return nil, mediafile.NewExtractionError(format, "the text encoding is not supported", err)
	case err != nil:
		return nil, mediafile.NewExtractionError(format, "the file could not be parsed", err)
	}
	return doc, nil
}

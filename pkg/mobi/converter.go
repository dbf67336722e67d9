package mobi

import (
	"context"
	"io"

	"github.com/hunt2035/SoundSync-sub002/pkg/covers"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/htmlutil"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/plaintext"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

// ReadText returns the book's text with markup removed.
func ReadText(path string) (string, error) {
	b, err := openBook(path, formats.MOBI)
	if err != nil {
		return "", err
	}
	return b.text()
}

func openBook(path string, format formats.Format) (*Book, error) {
	b, err := Open(path)
	switch {
	case errors.Is(err, ErrEncrypted):
		return nil, mediafile.NewExtractionError(format, "the book is DRM protected", err)
	case err != nil:
		return nil, mediafile.NewExtractionError(format, "the file is not a MOBI book", err)
	}
	return b, nil
}

func (b *Book) text() (string, error) {
	raw, err := b.RawText()
	switch {
	case errors.Is(err, ErrHuffCompression):
		return "", mediafile.NewExtractionError(formats.MOBI, "HUFF/CDIC compressed books are not supported", err)
	case err != nil:
		return "", mediafile.NewExtractionError(formats.MOBI, "the text records are corrupt", err)
	}
	return htmlutil.StripTags(raw), nil
}

func (c *Converter) ExtractText(ctx context.Context, path string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	text, err := ReadText(path)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return errors.WithStack(err)
}

func (c *Converter) ExtractMetadata(ctx context.Context, path string, format formats.Format) (*mediafile.ExtractedMetadata, error) {
	b, err := openBook(path, format)
	if err != nil {
		return nil, err
	}

	text, err := b.text()
	if err != nil {
		return nil, err
	}

	meta := &mediafile.ExtractedMetadata{
		Title:              b.Title,
		Author:             b.Author,
		PageCount:          mediafile.EstimatePageCount(int64(len([]rune(text))), plaintext.CharsPerPage),
		PageCountEstimated: true,
	}

	if data := b.Cover(); data != nil {
		img, mtype, err := covers.Decode(data)
		if err != nil {
			logger.FromContext(ctx).Warn("mobi cover could not be decoded", logger.Data{"path": path, "error": err.Error()})
		} else {
			meta.Cover = img
			meta.CoverMimeType = mtype
		}
	}

	return meta, nil
}

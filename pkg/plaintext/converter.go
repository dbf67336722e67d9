package plaintext

import (
	"bufio"
	"context"
	"io"
	"os"
	"unicode/utf8"

	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/pkg/errors"
)

// CharsPerPage is the page size used to estimate page counts of text that
// has no page model of its own.
const CharsPerPage = 2000

const chunkSize = 64 * 1024

// Converter reads plain text files. It is also the fallback for formats
// without a dedicated converter.
type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

func (c *Converter) ExtractText(ctx context.Context, path string, w io.Writer) error {
	return c.stream(ctx, path, w, nil)
}

// ExtractMetadata counts characters to estimate the page count. Text files
// carry no title or author, so callers fall back to the file name.
func (c *Converter) ExtractMetadata(ctx context.Context, path string, format formats.Format) (*mediafile.ExtractedMetadata, error) {
	chars := 0
	if err := c.stream(ctx, path, io.Discard, &chars); err != nil {
		var extractionErr *mediafile.ExtractionError
		if errors.As(err, &extractionErr) {
			extractionErr.Format = format
		}
		return nil, err
	}

	return &mediafile.ExtractedMetadata{
		PageCount:          mediafile.EstimatePageCount(int64(chars), CharsPerPage),
		PageCountEstimated: true,
	}, nil
}

func (c *Converter) stream(ctx context.Context, path string, w io.Writer, chars *int) error {
	f, err := os.Open(path)
	if err != nil {
		return mediafile.NewExtractionError(formats.TXT, "the file could not be opened", err)
	}
	defer f.Close()

	r, _, err := NewReader(f)
	if errors.Is(err, ErrUnsupportedEncoding) {
		return mediafile.NewExtractionError(formats.TXT, "the text encoding is not supported", err)
	}
	if err != nil {
		return mediafile.NewExtractionError(formats.TXT, "the file could not be read", err)
	}

	br := bufio.NewReaderSize(r, chunkSize)
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		n, readErr := br.Read(buf)
		if n > 0 {
			if chars != nil {
				*chars += utf8.RuneCount(buf[:n])
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return errors.WithStack(err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return mediafile.NewExtractionError(formats.TXT, "the file could not be read", readErr)
		}
	}
}

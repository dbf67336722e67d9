package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"

	"github.com/hunt2035/SoundSync-sub002/pkg/covers"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// charsPerPage approximates pages when the document does not record them.
const charsPerPage = 2000

// Converter reads Word documents: Office Open XML (.docx) and, on a best
// effort basis, Word 97-2003 binaries (.doc).
type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

func (c *Converter) ExtractText(ctx context.Context, path string, w io.Writer) error {
	format := formats.DOCX
	if isOLE(path) {
		format = formats.DOC
	}
	_, err := c.extractText(ctx, path, format, w)
	return err
}

// isOLE reports whether the file starts with the compound document
// signature, regardless of its extension.
func isOLE(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(oleSignature))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header, oleSignature)
}

func (c *Converter) extractText(ctx context.Context, path string, format formats.Format, w io.Writer) (int, error) {
	if format == formats.DOC {
		f, err := os.Open(path)
		if err != nil {
			return 0, mediafile.NewExtractionError(format, "the file could not be opened", err)
		}
		defer f.Close()

		chars, err := recoverLegacyText(ctx, f, w)
		if errors.Is(err, errNotOLE) {
			return 0, mediafile.NewExtractionError(format, "the file is not a Word 97-2003 document", err)
		}
		return chars, err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, mediafile.NewExtractionError(format, "the file is not a Word document archive", err)
	}
	defer zr.Close()

	chars, err := writeParagraphs(ctx, &zr.Reader, w)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return chars, mediafile.NewExtractionError(format, "the document body could not be read", err)
	}
	return chars, err
}

func (c *Converter) ExtractMetadata(ctx context.Context, path string, format formats.Format) (*mediafile.ExtractedMetadata, error) {
	if isOLE(path) {
		format = formats.DOC
	} else {
		format = formats.DOCX
	}

	chars, err := c.extractText(ctx, path, format, io.Discard)
	if err != nil {
		return nil, err
	}

	meta := &mediafile.ExtractedMetadata{
		PageCount:          mediafile.EstimatePageCount(int64(chars), charsPerPage),
		PageCountEstimated: true,
	}
	if format == formats.DOC {
		return meta, nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, mediafile.NewExtractionError(format, "the file is not a Word document archive", err)
	}
	defer zr.Close()

	props := readProperties(&zr.Reader)
	meta.Title = props.title
	meta.Author = props.creator
	if props.pages > 0 {
		meta.PageCount = props.pages
		meta.PageCountEstimated = false
	}

	data, err := readThumbnail(&zr.Reader)
	if err != nil {
		logger.FromContext(ctx).Warn("docx thumbnail could not be read", logger.Data{"path": path, "error": err.Error()})
	} else if data != nil {
		img, mtype, err := covers.Decode(data)
		if err != nil {
			logger.FromContext(ctx).Warn("docx thumbnail could not be decoded", logger.Data{"path": path, "error": err.Error()})
		} else {
			meta.Cover = img
			meta.CoverMimeType = mtype
		}
	}

	return meta, nil
}

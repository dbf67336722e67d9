package epub

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/hunt2035/SoundSync-sub002/pkg/covers"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// bytesPerPage is the placeholder used to approximate an EPUB's page count
// from its file size.
const bytesPerPage = 100 * 1024

type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

// ExtractText writes the plain text of every spine document in reading
// order, separated by a blank line.
func (c *Converter) ExtractText(ctx context.Context, path string, w io.Writer) error {
	b, err := Open(path)
	if err != nil {
		return mediafile.NewExtractionError(formats.EPUB, "the archive could not be opened", err)
	}
	defer b.Close()

	written := false
	for _, item := range b.OPF.Spine {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		data, err := b.ReadFile(item.Filepath)
		if err != nil {
			return mediafile.NewExtractionError(formats.EPUB, "a content document is missing", err)
		}
		doc, err := ParseContentDocument(data)
		if err != nil {
			return mediafile.NewExtractionError(formats.EPUB, "a content document is malformed", err)
		}
		if doc.Text == "" {
			continue
		}

		if written {
			if _, err := io.WriteString(w, "\n\n"); err != nil {
				return errors.WithStack(err)
			}
		}
		if _, err := io.WriteString(w, doc.Text); err != nil {
			return errors.WithStack(err)
		}
		written = true
	}

	return nil
}

func (c *Converter) ExtractMetadata(ctx context.Context, path string, format formats.Format) (*mediafile.ExtractedMetadata, error) {
	log := logger.FromContext(ctx)

	info, err := os.Stat(path)
	if err != nil {
		return nil, mediafile.NewExtractionError(format, "the file could not be read", err)
	}

	b, err := Open(path)
	if err != nil {
		return nil, mediafile.NewExtractionError(format, "the archive could not be opened", err)
	}
	defer b.Close()

	if len(b.OPF.Spine) == 0 {
		return nil, mediafile.NewExtractionError(format, "the book has no content documents", nil)
	}

	meta := &mediafile.ExtractedMetadata{
		Title:              b.OPF.Title,
		Author:             strings.Join(b.OPF.Authors, ", "),
		PageCount:          mediafile.EstimatePageCount(info.Size(), bytesPerPage),
		PageCountEstimated: true,
		Chapters:           b.Chapters,
	}

	data, _, err := b.Cover()
	if err != nil {
		log.Warn("epub cover could not be read", logger.Data{"path": path, "error": err.Error()})
	} else if data != nil {
		img, mtype, err := covers.Decode(data)
		if err != nil {
			log.Warn("epub cover could not be decoded", logger.Data{"path": path, "error": err.Error()})
		} else {
			meta.Cover = img
			meta.CoverMimeType = mtype
		}
	}

	return meta, nil
}

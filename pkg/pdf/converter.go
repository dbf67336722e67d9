package pdf

import (
	"context"
	"image"
	"io"
	"os"

	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// bytesPerPage approximates a page count from the file size when the page
// tree cannot be read.
const bytesPerPage = 50 * 1024

// FirstPageRenderer produces a cover image from a PDF's first page.
type FirstPageRenderer interface {
	RenderFirstPage(ctx context.Context, path string) (image.Image, error)
}

type Converter struct {
	covers FirstPageRenderer
}

// NewConverter returns a PDF converter. A nil renderer disables covers.
func NewConverter(covers FirstPageRenderer) *Converter {
	return &Converter{covers: covers}
}

// ExtractText streams the text layer one page at a time, separating pages
// with a blank line. Pages without text are skipped.
func (c *Converter) ExtractText(ctx context.Context, path string, w io.Writer) error {
	doc, err := Open(path)
	if err != nil {
		return mediafile.NewExtractionError(formats.PDF, "the file is not a readable PDF", err)
	}
	defer doc.Close()

	written := false
	for i := 0; i < doc.NumPages(); i++ {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		text, err := doc.PageText(i)
		if err != nil {
			logger.FromContext(ctx).Warn("pdf page text could not be extracted", logger.Data{
				"path":  path,
				"page":  i,
				"error": err.Error(),
			})
			continue
		}
		if text == "" {
			continue
		}

		if written {
			if _, err := io.WriteString(w, "\n\n"); err != nil {
				return errors.WithStack(err)
			}
		}
		if _, err := io.WriteString(w, text); err != nil {
			return errors.WithStack(err)
		}
		written = true
	}

	return nil
}

func (c *Converter) ExtractMetadata(ctx context.Context, path string, format formats.Format) (*mediafile.ExtractedMetadata, error) {
	log := logger.FromContext(ctx)

	stat, err := os.Stat(path)
	if err != nil {
		return nil, mediafile.NewExtractionError(format, "the file could not be read", err)
	}

	meta := &mediafile.ExtractedMetadata{}

	info, err := ReadInfo(path)
	if err != nil {
		log.Warn("pdf structure could not be validated", logger.Data{"path": path, "error": err.Error()})

		// The text parser is more lenient than validation, so it can still
		// tell whether this is a PDF at all.
		doc, openErr := Open(path)
		if openErr != nil {
			return nil, mediafile.NewExtractionError(format, "the file is not a readable PDF", openErr)
		}
		info = &Info{PageCount: doc.NumPages()}
		doc.Close()
	}

	meta.Title = info.Title
	meta.Author = info.Author
	meta.PageCount = info.PageCount
	if meta.PageCount <= 0 {
		meta.PageCount = mediafile.EstimatePageCount(stat.Size(), bytesPerPage)
		meta.PageCountEstimated = true
	}

	chapters, err := ReadBookmarks(path)
	if err != nil {
		log.Debug("pdf has no readable outline", logger.Data{"path": path, "error": err.Error()})
	}
	meta.Chapters = chapters

	if c.covers != nil {
		img, err := c.covers.RenderFirstPage(ctx, path)
		if err != nil {
			log.Warn("pdf cover could not be rendered", logger.Data{"path": path, "error": err.Error()})
		} else {
			meta.Cover = img
			meta.CoverMimeType = "image/png"
		}
	}

	return meta, nil
}

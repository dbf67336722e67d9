package reader

import (
	"context"
	"image"
	"os"

	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/hunt2035/SoundSync-sub002/pkg/pdf"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// pdfVariant keeps the PDF open and decodes page text on first use. Pages
// are the document's own; configuration never changes them.
type pdfVariant struct {
	deps Deps
	log  logger.Logger

	path  string
	doc   *pdf.Document
	texts map[int]string
	tree  []*Chapter
}

func newPDFVariant(_ formats.Format, deps Deps) variant {
	return &pdfVariant{deps: deps}
}

func (v *pdfVariant) load(ctx context.Context, book *models.Book, _ Config) error {
	v.log = logger.FromContext(ctx)
	v.path = book.Filepath
	if _, err := os.Stat(v.path); err != nil {
		return errors.WithStack(err)
	}

	doc, err := pdf.Open(v.path)
	if err != nil {
		return mediafile.NewExtractionError(formats.PDF, "the file is not a readable PDF", err)
	}
	if doc.NumPages() == 0 {
		_ = doc.Close()
		return errcodes.NotReady("The PDF has no pages.")
	}
	v.doc = doc
	v.texts = make(map[int]string)

	bookmarks, err := pdf.ReadBookmarks(v.path)
	if err != nil {
		v.log.Err(err).Debug("pdf has no readable outline", logger.Data{"path": v.path})
	}
	v.tree = convertPDFChapters(bookmarks, 0)
	return nil
}

// convertPDFChapters turns outline entries into chapters. Entries without a
// destination open on their parent's page.
func convertPDFChapters(parsed []mediafile.ParsedChapter, parentPage int) []*Chapter {
	chapters := make([]*Chapter, 0, len(parsed))
	for _, p := range parsed {
		page := parentPage
		if p.StartPage != nil {
			page = *p.StartPage
		}
		chapters = append(chapters, &Chapter{
			Title:         p.Title,
			StartPosition: page,
			PageIndex:     page,
			SubChapters:   convertPDFChapters(p.Children, page),
		})
	}
	return chapters
}

func (v *pdfVariant) pageCount() int {
	if v.doc == nil {
		return 0
	}
	return v.doc.NumPages()
}

// page returns the page's text layer. A page whose text cannot be decoded
// reads as empty rather than failing the whole engine.
func (v *pdfVariant) page(i int) (string, *string, error) {
	if text, ok := v.texts[i]; ok {
		return text, nil, nil
	}
	if v.doc == nil {
		return "", nil, errors.New("document is closed")
	}
	text, err := v.doc.PageText(i)
	if err != nil {
		v.log.Err(err).Warn("pdf page text could not be extracted", logger.Data{"path": v.path, "page": i})
		text = ""
	}
	v.texts[i] = text
	return text, nil, nil
}

func (v *pdfVariant) chapters() []*Chapter {
	return v.tree
}

func (v *pdfVariant) pageAt(position int) int {
	return position
}

func (v *pdfVariant) positionOf(page int) int {
	return page
}

func (v *pdfVariant) paginate(Config) bool {
	return false
}

func (v *pdfVariant) cover(ctx context.Context) image.Image {
	if v.deps.PDFCovers == nil {
		return nil
	}
	img, err := v.deps.PDFCovers.RenderFirstPage(ctx, v.path)
	if err != nil {
		logger.FromContext(ctx).Err(err).Debug("pdf cover could not be rendered", logger.Data{"path": v.path})
		return nil
	}
	return img
}

func (v *pdfVariant) close() error {
	v.texts = nil
	if v.doc == nil {
		return nil
	}
	err := v.doc.Close()
	v.doc = nil
	return errors.WithStack(err)
}

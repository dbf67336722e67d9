package reader

import (
	"context"
	"image"
	"os"
	"sort"
	"strings"

	"github.com/hunt2035/SoundSync-sub002/pkg/covers"
	"github.com/hunt2035/SoundSync-sub002/pkg/epub"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// epubVariant shows one spine document per page. Layout within a document is
// left to the presentation layer, so configuration does not repaginate.
type epubVariant struct {
	deps Deps
	log  logger.Logger

	book  *epub.Book
	docs  map[int]*epub.ContentDocument
	spine map[string]int
	tree  []*Chapter
}

func newEPUBVariant(_ formats.Format, deps Deps) variant {
	return &epubVariant{deps: deps}
}

func (v *epubVariant) load(ctx context.Context, book *models.Book, _ Config) error {
	v.log = logger.FromContext(ctx)
	if _, err := os.Stat(book.Filepath); err != nil {
		return errors.WithStack(err)
	}

	b, err := epub.Open(book.Filepath)
	if err != nil {
		return mediafile.NewExtractionError(formats.EPUB, "the archive could not be opened", err)
	}
	if len(b.OPF.Spine) == 0 {
		_ = b.Close()
		return mediafile.NewExtractionError(formats.EPUB, "the book has no content documents", nil)
	}

	v.book = b
	v.docs = make(map[int]*epub.ContentDocument)
	v.spine = make(map[string]int, len(b.OPF.Spine))
	for i, item := range b.OPF.Spine {
		v.spine[item.Filepath] = i
	}

	v.tree = v.convertChapters(b.Chapters, 0)
	if len(v.tree) == 0 {
		v.tree, err = v.spineChapters(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// convertChapters maps table of contents entries onto spine pages. Entries
// pointing outside the spine open on their parent's page. Siblings are put in
// spine order, since a table of contents may list them in any order.
func (v *epubVariant) convertChapters(parsed []mediafile.ParsedChapter, parentPage int) []*Chapter {
	chapters := make([]*Chapter, 0, len(parsed))
	for _, p := range parsed {
		page := parentPage
		if p.Href != nil {
			href, _, _ := strings.Cut(*p.Href, "#")
			if i, ok := v.spine[href]; ok {
				page = i
			}
		}
		chapters = append(chapters, &Chapter{
			Title:         p.Title,
			StartPosition: page,
			PageIndex:     page,
			SubChapters:   v.convertChapters(p.Children, page),
		})
	}
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].PageIndex < chapters[j].PageIndex
	})
	return chapters
}

// spineChapters builds a flat chapter list from the titles of the spine
// documents, for books without a usable table of contents.
func (v *epubVariant) spineChapters(ctx context.Context) ([]*Chapter, error) {
	var chapters []*Chapter
	for i := range v.book.OPF.Spine {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		doc, err := v.document(i)
		if err != nil || doc.Title == "" {
			continue
		}
		chapters = append(chapters, &Chapter{
			Title:         doc.Title,
			StartPosition: i,
			PageIndex:     i,
			SubChapters:   []*Chapter{},
		})
	}
	return chapters, nil
}

func (v *epubVariant) document(i int) (*epub.ContentDocument, error) {
	if doc, ok := v.docs[i]; ok {
		return doc, nil
	}
	if v.book == nil {
		return nil, errors.New("book is closed")
	}
	if i < 0 || i >= len(v.book.OPF.Spine) {
		return nil, errors.Errorf("page %d is out of range", i)
	}

	data, err := v.book.ReadFile(v.book.OPF.Spine[i].Filepath)
	if err != nil {
		return nil, err
	}
	doc, err := epub.ParseContentDocument(data)
	if err != nil {
		return nil, err
	}
	v.docs[i] = doc
	return doc, nil
}

func (v *epubVariant) pageCount() int {
	if v.book == nil {
		return 0
	}
	return len(v.book.OPF.Spine)
}

// page reads a spine document. A missing or broken document reads as an
// empty page so the rest of the book stays readable.
func (v *epubVariant) page(i int) (string, *string, error) {
	doc, err := v.document(i)
	if err != nil {
		v.log.Err(err).Warn("epub content document could not be read", logger.Data{"page": i})
		empty := &epub.ContentDocument{}
		if v.docs != nil {
			v.docs[i] = empty
		}
		return "", nil, nil
	}
	markup := doc.Markup
	return doc.Text, &markup, nil
}

func (v *epubVariant) chapters() []*Chapter {
	return v.tree
}

func (v *epubVariant) pageAt(position int) int {
	return position
}

func (v *epubVariant) positionOf(page int) int {
	return page
}

func (v *epubVariant) paginate(Config) bool {
	return false
}

func (v *epubVariant) cover(ctx context.Context) image.Image {
	if v.book == nil {
		return nil
	}
	data, _, err := v.book.Cover()
	if err != nil || data == nil {
		return nil
	}
	img, _, err := covers.Decode(data)
	if err != nil {
		logger.FromContext(ctx).Err(err).Debug("epub cover could not be decoded")
		return nil
	}
	return img
}

func (v *epubVariant) close() error {
	v.docs = nil
	if v.book == nil {
		return nil
	}
	err := v.book.Close()
	v.book = nil
	return err
}

package reader

import (
	"context"
	"image"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/markdown"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// headingRE matches lines that commonly start a chapter in plain text.
var headingRE = regexp.MustCompile(`(?i)^(chapter|part|book|prologue|epilogue|preface|introduction|afterword)\b|^第[0-9零一二三四五六七八九十百千]+[章节回卷部]`)

const maxHeadingLength = 80

type heading struct {
	title  string
	level  int
	offset int
}

type textPage struct {
	start, end int
}

// textVariant reads everything that is not EPUB or PDF. The document is
// held as one normalized string and paginated by character count; chapters
// always begin on a fresh page.
type textVariant struct {
	format formats.Format
	deps   Deps

	path     string
	original *models.Book
	content  string
	headings []heading

	pageSize int
	pages    []textPage
}

func newTextVariant(format formats.Format, deps Deps) variant {
	return &textVariant{format: format, deps: deps}
}

func (v *textVariant) load(ctx context.Context, book *models.Book, cfg Config) error {
	v.path = book.Filepath
	v.original = book
	if _, err := os.Stat(v.path); err != nil {
		return errors.WithStack(err)
	}

	if v.format == formats.Markdown {
		doc, err := markdown.ReadFile(v.path)
		if err != nil {
			return err
		}
		v.content = doc.Text
		for _, h := range doc.Headings {
			v.headings = append(v.headings, heading{title: h.Title, level: h.Level, offset: h.Offset})
		}
	} else {
		text, err := mediafile.ExtractTextString(ctx, v.deps.Converters.ForFormat(v.format), v.path)
		if err != nil {
			return err
		}
		v.content = text
		v.headings = detectHeadings(text)
	}

	v.paginate(cfg)
	return nil
}

// detectHeadings finds short lines that look like chapter titles.
func detectHeadings(text string) []heading {
	var headings []heading
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && utf8.RuneCountInString(trimmed) <= maxHeadingLength && headingRE.MatchString(trimmed) {
			lead := len(line) - len(strings.TrimLeft(line, " \t"))
			headings = append(headings, heading{title: trimmed, level: 1, offset: offset + lead})
		}
		offset += len(line)
	}
	return headings
}

func (v *textVariant) paginate(cfg Config) bool {
	size := cfg.PageSize()
	if size == v.pageSize && v.pages != nil {
		return false
	}
	v.pageSize = size

	bounds := make([]int, 0, len(v.headings)+2)
	bounds = append(bounds, 0)
	for _, h := range v.headings {
		bounds = append(bounds, h.offset)
	}
	bounds = append(bounds, len(v.content))

	v.pages = v.pages[:0]
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i], bounds[i+1]
		if start >= end || strings.TrimSpace(v.content[start:end]) == "" {
			continue
		}
		v.pages = append(v.pages, splitPages(v.content, start, end, size)...)
	}
	if len(v.pages) == 0 {
		v.pages = append(v.pages, textPage{0, len(v.content)})
	}
	return true
}

// splitPages cuts content[start:end] into pages of at most size runes,
// preferring to break after a newline or space in the second half of a page.
func splitPages(content string, start, end, size int) []textPage {
	var pages []textPage
	for start < end {
		cut := forwardRunes(content[:end], start, size)
		if cut < end {
			window := content[start:cut]
			half := len(window) / 2
			if i := strings.LastIndexByte(window, '\n'); i >= half {
				cut = start + i + 1
			} else if i := strings.LastIndexByte(window, ' '); i >= half {
				cut = start + i + 1
			}
		}
		pages = append(pages, textPage{start, cut})
		start = cut
	}
	return pages
}

func (v *textVariant) pageCount() int {
	return len(v.pages)
}

func (v *textVariant) page(i int) (string, *string, error) {
	if i < 0 || i >= len(v.pages) {
		return "", nil, errors.Errorf("page %d is out of range", i)
	}
	p := v.pages[i]
	return strings.TrimSpace(v.content[p.start:p.end]), nil, nil
}

// chapters nests headings by level: a heading becomes a child of the
// nearest preceding heading with a smaller level.
func (v *textVariant) chapters() []*Chapter {
	var roots []*Chapter
	type frame struct {
		level   int
		chapter *Chapter
	}
	var stack []frame

	for _, h := range v.headings {
		ch := &Chapter{
			Title:         h.title,
			StartPosition: h.offset,
			PageIndex:     v.pageAt(h.offset),
			SubChapters:   []*Chapter{},
		}
		for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, ch)
		} else {
			parent := stack[len(stack)-1].chapter
			parent.SubChapters = append(parent.SubChapters, ch)
		}
		stack = append(stack, frame{h.level, ch})
	}
	return roots
}

func (v *textVariant) pageAt(position int) int {
	i := sort.Search(len(v.pages), func(i int) bool {
		return v.pages[i].start > position
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

func (v *textVariant) positionOf(page int) int {
	if page < 0 || page >= len(v.pages) {
		return 0
	}
	return v.pages[page].start
}

// cover looks in the original document when the text was converted from
// another format, and in the file itself for formats that embed one.
func (v *textVariant) cover(ctx context.Context) image.Image {
	path, format := v.path, v.format
	if v.original.OriginalFilepath != nil {
		path = *v.original.OriginalFilepath
		format = formats.Detect(path)
	}
	if format != formats.MOBI && format != formats.DOCX && format != formats.PDF && format != formats.EPUB {
		return nil
	}

	meta, err := v.deps.Converters.ForFormat(format).ExtractMetadata(ctx, path, format)
	if err != nil {
		logger.FromContext(ctx).Err(err).Debug("no cover available", logger.Data{"path": path})
		return nil
	}
	return meta.Cover
}

func (v *textVariant) close() error {
	v.content = ""
	v.pages = nil
	return nil
}

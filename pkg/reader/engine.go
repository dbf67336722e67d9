package reader

import (
	"context"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/hunt2035/SoundSync-sub002/pkg/covers"
	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// variant is the format-specific half of an engine. Pages are addressed by
// 0-based index; positions are whatever the variant uses to locate a page
// independently of pagination.
type variant interface {
	// load opens and parses the book's file. It runs once, without the
	// engine lock held.
	load(ctx context.Context, book *models.Book, cfg Config) error
	pageCount() int
	// page returns the plain text of page i and, when the format has one, a
	// sanitized markup variant.
	page(i int) (string, *string, error)
	// chapters returns the chapter tree with PageIndex set. Indices are
	// assigned by the engine.
	chapters() []*Chapter
	pageAt(position int) int
	positionOf(page int) int
	// paginate applies cfg and reports whether page boundaries moved.
	paginate(cfg Config) bool
	cover(ctx context.Context) image.Image
	close() error
}

type engine struct {
	mu sync.Mutex

	format formats.Format
	v      variant
	deps   Deps
	cfg    Config

	lifecycle   Lifecycle
	loadStarted bool
	loadErr     string

	book            *models.Book
	initialPosition int
	current         int

	chapters []*Chapter
	// flat lists every chapter in document order, so flat[i].Index == i.
	flat []*Chapter
	// chapterText caches CurrentChapterText by chapter index. The tree itself
	// is never written after setChapters.
	chapterText map[int]string

	coverLoaded bool
	coverImage  image.Image
}

func newEngine(format formats.Format, v variant, deps Deps) *engine {
	return &engine{format: format, v: v, deps: deps, cfg: deps.Config}
}

func (e *engine) Initialize(book *models.Book, initialPosition int) error {
	if book == nil {
		return errcodes.ValidationError("A book is required.")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lifecycle != Uninitialized {
		return errcodes.Conflict("The reader is already bound to a book.")
	}
	if initialPosition < 0 {
		initialPosition = 0
	}
	e.book = book
	e.initialPosition = initialPosition
	e.lifecycle = Loading
	return nil
}

func (e *engine) LoadContent(ctx context.Context) error {
	log := logger.FromContext(ctx)

	e.mu.Lock()
	switch {
	case e.lifecycle == Uninitialized:
		e.mu.Unlock()
		return errcodes.NotReady("The reader is not bound to a book.")
	case e.lifecycle != Loading || e.loadStarted:
		e.mu.Unlock()
		return errcodes.Conflict("The book has already been loaded.")
	}
	e.loadStarted = true
	book, cfg := e.book, e.cfg
	e.mu.Unlock()

	err := e.v.load(ctx, book, cfg)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lifecycle == Closed {
		// Closed while loading; the variant's resources are ours to drop.
		_ = e.v.close()
		return errcodes.NotReady("The reader has been closed.")
	}
	if err != nil {
		_ = e.v.close()
		e.lifecycle = Errored
		e.loadErr = loadErrorMessage(book, err)
		log.Err(err).Warn("failed to load book", logger.Data{
			"book_id": book.ID,
			"format":  e.format.String(),
		})
		return errors.WithStack(errcodes.NotReady(e.loadErr))
	}

	e.setChapters(e.v.chapters())
	e.current = e.clampPage(e.v.pageAt(e.initialPosition))
	e.lifecycle = Ready

	log.Debug("book loaded", logger.Data{
		"book_id":  book.ID,
		"format":   e.format.String(),
		"pages":    e.v.pageCount(),
		"chapters": len(e.flat),
	})
	return nil
}

func loadErrorMessage(book *models.Book, err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return "The book file is missing."
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errcodes.Cancelled().Error()
	}

	var codeErr *errcodes.Error
	var extractionErr *mediafile.ExtractionError
	switch {
	case errors.As(err, &extractionErr):
		return extractionErr.Error()
	case errors.As(err, &codeErr):
		return codeErr.Message
	}
	return "The book \"" + book.Title + "\" could not be opened."
}

func (e *engine) setChapters(tree []*Chapter) {
	e.chapters = tree
	e.flat = e.flat[:0]
	e.chapterText = make(map[int]string)
	var walk func([]*Chapter)
	walk = func(chs []*Chapter) {
		for _, ch := range chs {
			ch.Index = len(e.flat)
			ch.PageIndex = e.clampPage(ch.PageIndex)
			e.flat = append(e.flat, ch)
			walk(ch.SubChapters)
		}
	}
	walk(tree)
}

func (e *engine) clampPage(i int) int {
	if i < 0 {
		return 0
	}
	if n := e.v.pageCount(); i >= n {
		if n == 0 {
			return 0
		}
		return n - 1
	}
	return i
}

// ready must be called with the lock held.
func (e *engine) ready() error {
	switch e.lifecycle {
	case Ready:
		return nil
	case Closed:
		return errcodes.NotReady("The reader has been closed.")
	case Errored:
		return errcodes.NotReady(e.loadErr)
	case Uninitialized:
		return errcodes.NotReady("The reader is not bound to a book.")
	}
	return errcodes.NotReady("The book is still loading.")
}

func (e *engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := State{
		Lifecycle:      e.lifecycle,
		IsLoading:      e.lifecycle == Uninitialized || e.lifecycle == Loading,
		CurrentChapter: -1,
	}
	if e.lifecycle == Errored {
		msg := e.loadErr
		s.Error = &msg
	}
	if e.lifecycle == Ready {
		s.CurrentPage = e.current
		s.TotalPages = e.v.pageCount()
		s.CurrentChapter = e.chapterAt(e.current)
		s.TotalChapters = len(e.flat)
		s.ReadingProgress = progress(e.current, s.TotalPages)
	}
	return s
}

func progress(page, total int) float64 {
	if total < 1 {
		total = 1
	}
	p := float64(page) / float64(total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func (e *engine) NavigatePage(dir Direction) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return 0, err
	}
	switch dir {
	case Previous:
		if e.current > 0 {
			e.current--
		}
	case Next:
		if e.current < e.v.pageCount()-1 {
			e.current++
		}
	}
	return e.current, nil
}

func (e *engine) GoToPage(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return err
	}
	if n := e.v.pageCount(); index < 0 || index >= n {
		return errcodes.OutOfRange("Page", index, n)
	}
	e.current = index
	return nil
}

func (e *engine) GoToChapter(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return err
	}
	if index < 0 || index >= len(e.flat) {
		return errcodes.OutOfRange("Chapter", index, len(e.flat))
	}
	e.current = e.flat[index].PageIndex
	return nil
}

func (e *engine) Chapters() []*Chapter {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lifecycle != Ready {
		return nil
	}
	return e.copyChapters(e.chapters)
}

// copyChapters returns a deep copy of chs so callers can hold the tree without
// the lock. Must be called with the lock held.
func (e *engine) copyChapters(chs []*Chapter) []*Chapter {
	out := make([]*Chapter, len(chs))
	for i, ch := range chs {
		c := *ch
		c.Content = e.chapterText[ch.Index]
		c.SubChapters = e.copyChapters(ch.SubChapters)
		out[i] = &c
	}
	return out
}

func (e *engine) ReadingProgress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lifecycle != Ready {
		return 0
	}
	return progress(e.current, e.v.pageCount())
}

// chapterAt returns the index of the innermost chapter containing page, or
// -1 when page comes before every chapter.
func (e *engine) chapterAt(page int) int {
	best := -1
	for _, ch := range e.flat {
		if ch.PageIndex > page {
			continue
		}
		if best == -1 || ch.PageIndex >= e.flat[best].PageIndex {
			best = ch.Index
		}
	}
	return best
}

// chapterRange returns the first and last page of chapter i. A chapter ends
// where the next chapter starting on a later page begins.
func (e *engine) chapterRange(i int) (int, int) {
	start := e.flat[i].PageIndex
	end := e.v.pageCount() - 1
	for _, ch := range e.flat {
		if ch.PageIndex > start && ch.PageIndex-1 < end {
			end = ch.PageIndex - 1
		}
	}
	return start, end
}

func (e *engine) CurrentPage() (*Content, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return nil, err
	}
	text, markup, err := e.v.page(e.current)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	last := e.v.pageCount() - 1
	return &Content{
		Text:         text,
		Markup:       markup,
		PageIndex:    e.current,
		ChapterIndex: e.chapterAt(e.current),
		IsFirstPage:  e.current == 0,
		IsLastPage:   e.current == last,
	}, nil
}

func (e *engine) CurrentPageText() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return "", err
	}
	text, _, err := e.v.page(e.current)
	return text, errors.WithStack(err)
}

// CurrentChapterText returns the text of the chapter holding the current
// page. Without a chapter it falls back to the current page.
func (e *engine) CurrentChapterText() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return "", err
	}
	ci := e.chapterAt(e.current)
	if ci < 0 {
		text, _, err := e.v.page(e.current)
		return text, errors.WithStack(err)
	}

	if text, ok := e.chapterText[ci]; ok {
		return text, nil
	}

	start, end := e.chapterRange(ci)
	parts := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		text, _, err := e.v.page(i)
		if err != nil {
			return "", errors.WithStack(err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	text := strings.Join(parts, "\n\n")
	e.chapterText[ci] = text
	return text, nil
}

func (e *engine) SearchText(ctx context.Context, query string) ([]SearchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return nil, err
	}
	if query == "" {
		return []SearchResult{}, nil
	}

	s := &searcher{
		query:  query,
		radius: e.deps.SnippetRadius,
		max:    e.deps.MaxSearchResults,
	}
	for i := 0; i < e.v.pageCount(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		text, _, err := e.v.page(i)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if s.scan(text, i, e.chapterAt(i)) {
			break
		}
	}
	return s.results, nil
}

// BookCover prefers the cover saved at import time and otherwise asks the
// variant. It never fails; no cover is nil.
func (e *engine) BookCover(ctx context.Context) image.Image {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lifecycle != Ready {
		return nil
	}
	if e.coverLoaded {
		return e.coverImage
	}
	e.coverLoaded = true

	if e.book.HasCover() {
		if data, err := os.ReadFile(*e.book.CoverPath); err == nil {
			if img, _, err := covers.Decode(data); err == nil {
				e.coverImage = img
				return img
			}
		}
	}
	e.coverImage = e.v.cover(ctx)
	return e.coverImage
}

func (e *engine) UpdateConfig(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lifecycle == Closed {
		return e.ready()
	}
	e.cfg = cfg
	if e.lifecycle != Ready {
		return nil
	}

	pos := e.v.positionOf(e.current)
	if e.v.paginate(cfg) {
		e.setChapters(e.v.chapters())
		e.current = e.clampPage(e.v.pageAt(pos))
	}
	return nil
}

func (e *engine) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lifecycle != Ready {
		return e.initialPosition
	}
	return e.v.positionOf(e.current)
}

// SaveReadingProgress stores the current page and position. A store failure
// is logged and returned; the engine's own state is unaffected either way.
func (e *engine) SaveReadingProgress(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return err
	}
	if e.deps.Progress == nil {
		return nil
	}

	page, position := e.current, e.v.positionOf(e.current)
	err := e.deps.Progress.UpdateReadingProgress(ctx, e.book.ID, page, position)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to save reading progress", logger.Data{
			"book_id": e.book.ID,
			"page":    page,
		})
		return errors.Wrap(err, "failed to save reading progress")
	}
	e.book.LastReadPage = page
	e.book.LastReadPosition = position
	return nil
}

func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lifecycle == Closed {
		return nil
	}
	loading := e.lifecycle == Loading && e.loadStarted
	e.lifecycle = Closed
	e.coverImage = nil
	e.coverLoaded = false
	e.chapterText = nil
	if loading {
		// LoadContent closes the variant when it returns.
		return nil
	}
	return errors.WithStack(e.v.close())
}

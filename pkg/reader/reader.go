// Package reader presents every document format through one paging,
// chapter, search and text-to-speech contract. An Engine binds to a single
// catalog record for its whole life: Initialize, then LoadContent, then
// navigate until Close.
package reader

import (
	"context"
	"image"

	"github.com/creasty/defaults"
	"github.com/hunt2035/SoundSync-sub002/pkg/converters"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/hunt2035/SoundSync-sub002/pkg/pdf"
	"github.com/hunt2035/SoundSync-sub002/pkg/plaintext"
)

type Direction int

const (
	Previous Direction = iota
	Next
)

func (d Direction) String() string {
	if d == Previous {
		return "previous"
	}
	return "next"
}

// Lifecycle is the engine's position in its state machine.
type Lifecycle int

const (
	Uninitialized Lifecycle = iota
	Loading
	Ready
	Errored
	Closed
)

func (l Lifecycle) String() string {
	switch l {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// State is a snapshot of an engine. Page and chapter indices are 0-based;
// CurrentChapter is -1 when the current page is before every chapter or the
// document has none.
type State struct {
	Lifecycle       Lifecycle `json:"lifecycle"`
	IsLoading       bool      `json:"is_loading"`
	Error           *string   `json:"error"`
	CurrentPage     int       `json:"current_page"`
	TotalPages      int       `json:"total_pages"`
	CurrentChapter  int       `json:"current_chapter"`
	TotalChapters   int       `json:"total_chapters"`
	ReadingProgress float64   `json:"reading_progress"`
}

// Chapter is one node of a document's chapter tree. Index is unique across
// the whole tree and increases in document order.
type Chapter struct {
	Title string `json:"title"`
	Index int    `json:"index"`
	// StartPosition is the offset of the chapter in the engine's position
	// space: a byte offset into the normalized text for text documents, a
	// page index otherwise.
	StartPosition int `json:"start_position"`
	PageIndex     int `json:"page_index"`
	// Content is filled once the chapter's text has been read. It stays out
	// of listings.
	Content     string     `json:"-"`
	SubChapters []*Chapter `json:"sub_chapters"`
}

// Content is one page ready for presentation.
type Content struct {
	Text string `json:"text"`
	// Markup is sanitized HTML for formats that have it.
	Markup       *string `json:"markup"`
	PageIndex    int     `json:"page_index"`
	ChapterIndex int     `json:"chapter_index"`
	IsFirstPage  bool    `json:"is_first_page"`
	IsLastPage   bool    `json:"is_last_page"`
}

// SearchResult is one match. HighlightStart and HighlightEnd are byte
// offsets into Snippet.
type SearchResult struct {
	PageIndex      int    `json:"page_index"`
	ChapterIndex   int    `json:"chapter_index"`
	Snippet        string `json:"snippet"`
	HighlightStart int    `json:"highlight_start"`
	HighlightEnd   int    `json:"highlight_end"`
}

// Config holds presentation settings. Only text documents are paginated by
// the engine, so for other formats these are recorded and otherwise ignored.
type Config struct {
	FontSize    int     `json:"font_size" default:"16" validate:"min=8,max=72"`
	Margin      int     `json:"margin" default:"16" validate:"min=0,max=200"`
	LineSpacing float64 `json:"line_spacing" default:"1.5" validate:"min=1,max=3"`
	DarkMode    bool    `json:"dark_mode"`
	// CharsPerPage overrides the page size derived from the settings above.
	CharsPerPage int `json:"chars_per_page" validate:"min=0,max=100000"`
}

func DefaultConfig() Config {
	cfg := Config{}
	_ = defaults.Set(&cfg)
	return cfg
}

const minCharsPerPage = 200

// PageSize returns how many characters of text fit on a page.
func (c Config) PageSize() int {
	if c.CharsPerPage > 0 {
		return c.CharsPerPage
	}
	d := DefaultConfig()
	fontSize := c.FontSize
	if fontSize <= 0 {
		fontSize = d.FontSize
	}
	spacing := c.LineSpacing
	if spacing <= 0 {
		spacing = d.LineSpacing
	}

	// Area scales with the square of the font size; margins eat into line
	// width on both sides.
	scale := float64(d.FontSize*d.FontSize) / float64(fontSize*fontSize)
	scale *= d.LineSpacing / spacing
	width := 1 - float64(c.Margin-d.Margin)/200
	if width < 0.5 {
		width = 0.5
	}
	if width > 1.1 {
		width = 1.1
	}

	n := int(float64(plaintext.CharsPerPage) * scale * width)
	if n < minCharsPerPage {
		n = minCharsPerPage
	}
	return n
}

// ProgressStore persists reading positions.
type ProgressStore interface {
	UpdateReadingProgress(ctx context.Context, bookID, page, position int) error
}

// Engine is the per-book reading contract. Implementations are safe for
// use from several goroutines, but navigation is expected to be serialized
// by the caller.
type Engine interface {
	// Initialize binds the engine to book. initialPosition is in the engine's
	// position space (see Chapter.StartPosition). It may be called once.
	Initialize(book *models.Book, initialPosition int) error
	// LoadContent parses the bound file and moves the engine to Ready or
	// Errored. It may be slow and honors ctx.
	LoadContent(ctx context.Context) error
	State() State

	NavigatePage(dir Direction) (int, error)
	GoToPage(index int) error
	GoToChapter(index int) error
	Chapters() []*Chapter
	ReadingProgress() float64

	CurrentPage() (*Content, error)
	CurrentPageText() (string, error)
	CurrentChapterText() (string, error)
	SearchText(ctx context.Context, query string) ([]SearchResult, error)
	BookCover(ctx context.Context) image.Image

	UpdateConfig(cfg Config) error
	// Position returns the current location in the engine's position space,
	// suitable as initialPosition for a later engine over the same book.
	Position() int
	SaveReadingProgress(ctx context.Context) error
	Close() error
}

// Deps are the collaborators an engine may need.
type Deps struct {
	Progress ProgressStore
	// Converters supply text for formats the text engine has no reader for.
	Converters *mediafile.Registry
	// PDFCovers renders the first page of PDFs for BookCover. Optional.
	PDFCovers pdf.FirstPageRenderer
	Config    Config
	// SnippetRadius is how many characters of context surround a search
	// match on each side.
	SnippetRadius int
	// MaxSearchResults caps SearchText. Zero means no cap.
	MaxSearchResults int
}

// variants selects the engine implementation for a format. Formats not
// listed read as text.
var variants = map[formats.Format]func(formats.Format, Deps) variant{
	formats.EPUB: newEPUBVariant,
	formats.PDF:  newPDFVariant,
}

// New returns an uninitialized engine for format.
func New(format formats.Format, deps Deps) Engine {
	if deps.SnippetRadius <= 0 {
		deps.SnippetRadius = 40
	}
	if deps.Config == (Config{}) {
		deps.Config = DefaultConfig()
	}
	if deps.Converters == nil {
		deps.Converters = converters.New(deps.PDFCovers)
	}

	mk, ok := variants[format]
	if !ok {
		mk = newTextVariant
	}
	return newEngine(format, mk(format, deps), deps)
}

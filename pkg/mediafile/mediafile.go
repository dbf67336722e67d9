package mediafile

import (
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
)

// ParsedChapter is a chapter entry read from a document's own table of
// contents. Position fields are mutually exclusive based on format.
type ParsedChapter struct {
	Title     string
	Href      *string // EPUB: content document href, possibly with a fragment
	StartPage *int    // PDF: 0-indexed page number
	Children  []ParsedChapter
}

// ExtractedMetadata is produced once per import attempt and not modified
// afterward, except that Release drops the decoded cover.
type ExtractedMetadata struct {
	Title  string
	Author string
	// PageCount is the native page count where the format has one, and an
	// approximation otherwise (see PageCountEstimated).
	PageCount          int
	PageCountEstimated bool
	Cover              image.Image
	CoverMimeType      string
	Chapters           []ParsedChapter
}

func (m *ExtractedMetadata) String() string {
	pages := fmt.Sprintf("%d", m.PageCount)
	if m.PageCountEstimated {
		pages = "~" + pages
	}
	return fmt.Sprintf("Title:           %s\nAuthor:          %s\nPages:           %s\nHas Cover:       %v\nCover Mime Type: %s\nChapters:        %d",
		m.Title, m.Author, pages, m.Cover != nil, m.CoverMimeType, len(m.Chapters))
}

// Release drops the reference to the decoded cover image so it can be
// collected.
func (m *ExtractedMetadata) Release() {
	if m == nil {
		return
	}
	m.Cover = nil
}

// Converter extracts plain text and metadata from one document format.
// Implementations never modify the file at path.
type Converter interface {
	// ExtractText streams the document's plain text into w. A document with
	// no extractable text writes nothing and returns nil.
	ExtractText(ctx context.Context, path string, w io.Writer) error
	// ExtractMetadata reads title, author, page count and cover. Failure is
	// returned as an *ExtractionError.
	ExtractMetadata(ctx context.Context, path string, format formats.Format) (*ExtractedMetadata, error)
}

// ExtractionError is a converter failure with a human-readable reason.
type ExtractionError struct {
	Format formats.Format
	Reason string
	Err    error
}

func NewExtractionError(format formats.Format, reason string, err error) *ExtractionError {
	return &ExtractionError{Format: format, Reason: reason, Err: err}
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("Could not read %s document: %s.", strings.ToUpper(string(e.Format)), e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Registry maps formats to their converters. Formats without a registered
// converter get the fallback, so lookup never fails.
type Registry struct {
	converters map[formats.Format]Converter
	fallback   Converter
}

func NewRegistry(fallback Converter) *Registry {
	return &Registry{converters: map[formats.Format]Converter{}, fallback: fallback}
}

func (r *Registry) Register(converter Converter, fs ...formats.Format) {
	for _, f := range fs {
		r.converters[f] = converter
	}
}

func (r *Registry) ForFormat(f formats.Format) Converter {
	if c, ok := r.converters[f]; ok {
		return c
	}
	return r.fallback
}

// ExtractTextString collects a converter's text output in memory. Callers
// that can stream should use ExtractText directly.
func ExtractTextString(ctx context.Context, c Converter, path string) (string, error) {
	var sb strings.Builder
	if err := c.ExtractText(ctx, path, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// EstimatePageCount approximates a page count from a byte size.
func EstimatePageCount(size, bytesPerPage int64) int {
	if bytesPerPage <= 0 {
		return 1
	}
	n := size / bytesPerPage
	if n < 1 {
		return 1
	}
	return int(n)
}

package pdf

import (
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// Document gives page-by-page access to a PDF's text layer. Page text is
// decoded on demand, so opening a large PDF is cheap.
type Document struct {
	f     *os.File
	r     *pdf.Reader
	pages int
}

func Open(path string) (doc *Document, err error) {
	defer recoverParse(&err)

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Document{f: f, r: r, pages: r.NumPage()}, nil
}

// NumPages is the page count declared by the page tree.
func (d *Document) NumPages() int {
	return d.pages
}

// PageText returns the plain text of the 0-indexed page i. Pages without a
// text layer return an empty string.
func (d *Document) PageText(i int) (text string, err error) {
	if d.r == nil {
		return "", errors.New("document is closed")
	}
	if i < 0 || i >= d.pages {
		return "", errors.Errorf("page %d is out of range", i)
	}
	defer recoverParse(&err)

	page := d.r.Page(i + 1)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the file handle. It is safe to call more than once.
func (d *Document) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	d.r = nil
	return errors.WithStack(err)
}

// recoverParse turns a panic inside the PDF parser into an error. The parser
// panics on some malformed cross-reference tables instead of returning.
func recoverParse(err *error) {
	if r := recover(); r != nil {
		*err = errors.Errorf("malformed pdf: %v", r)
	}
}

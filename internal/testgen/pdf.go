package testgen

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// PDFOptions configures the generated PDF file.
type PDFOptions struct {
	Title  string
	Author string
	// Pages holds the text of each page. A page with empty text has no text
	// layer, like a scanned page.
	Pages []string
	// Bookmarks maps an outline title to the 0-based page it points at.
	Bookmarks []PDFBookmark
}

// PDFBookmark is one top level outline entry.
type PDFBookmark struct {
	Title string
	Page  int
}

// GeneratePDF writes a minimal but well formed PDF 1.4 file using the
// standard Helvetica font, an info dictionary and an optional outline.
func GeneratePDF(t *testing.T, dir, filename string, opts PDFOptions) string {
	t.Helper()

	pages := opts.Pages
	if len(pages) == 0 {
		pages = []string{"Hello PDF"}
	}

	// Object numbering: 1 catalog, 2 pages, 3 font, 4 info, 5 outlines,
	// then a page object and a content stream per page, then outline items.
	const (
		catalogObj  = 1
		pagesObj    = 2
		fontObj     = 3
		infoObj     = 4
		outlinesObj = 5
		firstPage   = 6
	)
	pageObj := func(i int) int { return firstPage + i*2 }
	contentObj := func(i int) int { return firstPage + i*2 + 1 }
	firstItem := firstPage + len(pages)*2
	total := firstItem + len(opts.Bookmarks)

	objects := make([]string, total)

	catalog := fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R", pagesObj)
	if len(opts.Bookmarks) > 0 {
		catalog += fmt.Sprintf(" /Outlines %d 0 R", outlinesObj)
	}
	objects[catalogObj] = catalog + " >>"

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", pageObj(i))
	}
	objects[pagesObj] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))
	objects[fontObj] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	info := "<<"
	if opts.Title != "" {
		info += fmt.Sprintf(" /Title (%s)", escapePDFString(opts.Title))
	}
	if opts.Author != "" {
		info += fmt.Sprintf(" /Author (%s)", escapePDFString(opts.Author))
	}
	objects[infoObj] = info + " /Producer (testgen) >>"

	if len(opts.Bookmarks) > 0 {
		objects[outlinesObj] = fmt.Sprintf("<< /Type /Outlines /First %d 0 R /Last %d 0 R /Count %d >>",
			firstItem, total-1, len(opts.Bookmarks))
	} else {
		objects[outlinesObj] = "<< /Type /Outlines /Count 0 >>"
	}

	for i, text := range pages {
		objects[pageObj(i)] = fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			pagesObj, fontObj, contentObj(i))

		var stream string
		if text != "" {
			var sb strings.Builder
			sb.WriteString("BT\n/F1 12 Tf\n72 720 Td\n14 TL\n")
			for j, line := range strings.Split(text, "\n") {
				if j > 0 {
					sb.WriteString("T*\n")
				}
				sb.WriteString(fmt.Sprintf("(%s) Tj\n", escapePDFString(line)))
			}
			sb.WriteString("ET")
			stream = sb.String()
		}
		objects[contentObj(i)] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream)
	}

	for i, bm := range opts.Bookmarks {
		obj := firstItem + i
		item := fmt.Sprintf("<< /Title (%s) /Parent %d 0 R /Dest [%d 0 R /Fit]",
			escapePDFString(bm.Title), outlinesObj, pageObj(bm.Page))
		if i > 0 {
			item += fmt.Sprintf(" /Prev %d 0 R", obj-1)
		}
		if i < len(opts.Bookmarks)-1 {
			item += fmt.Sprintf(" /Next %d 0 R", obj+1)
		}
		objects[obj] = item + " >>"
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, total)
	for n := 1; n < total; n++ {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, objects[n])
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", total)
	buf.WriteString("0000000000 65535 f\r\n")
	for n := 1; n < total; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", offsets[n])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R /Info %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		total, catalogObj, infoObj, xref)

	return WriteFile(t, dir, filepath.Base(filename), buf.Bytes())
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

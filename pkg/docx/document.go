package docx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const documentPath = "word/document.xml"

// maxDepth bounds element nesting in document.xml.
const maxDepth = 256

// writeParagraphs streams word/document.xml and writes the text of each
// non-empty paragraph as one line. It returns the number of characters
// written.
func writeParagraphs(ctx context.Context, zr *zip.Reader, w io.Writer) (int, error) {
	f := findFile(zr, documentPath)
	if f == nil {
		return 0, errors.Errorf("%s not found in archive", documentPath)
	}
	rc, err := f.Open()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var paragraph strings.Builder
	inText := false
	depth := 0
	written := 0
	chars := 0

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return chars, nil
		}
		if err != nil {
			return chars, errors.WithStack(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxDepth {
				return chars, errors.New("document is nested too deeply")
			}
			switch t.Name.Local {
			case "p":
				paragraph.Reset()
			case "t":
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br", "cr":
				paragraph.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(paragraph.String())
				paragraph.Reset()
				if text == "" {
					continue
				}
				if err := ctx.Err(); err != nil {
					return chars, errors.WithStack(err)
				}
				if written > 0 {
					if _, err := io.WriteString(w, "\n"); err != nil {
						return chars, errors.WithStack(err)
					}
				}
				if _, err := io.WriteString(w, text); err != nil {
					return chars, errors.WithStack(err)
				}
				written++
				chars += len([]rune(text))
			}
		}
	}
}

func findFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

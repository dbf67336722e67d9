package formats

import (
	"path/filepath"
	"strings"
)

type Format string

const (
	EPUB     Format = "epub"
	PDF      Format = "pdf"
	TXT      Format = "txt"
	MOBI     Format = "mobi"
	Markdown Format = "markdown"
	DOC      Format = "doc"
	DOCX     Format = "docx"
	Unknown  Format = "unknown"
)

var bySuffix = map[string]Format{
	".epub":     EPUB,
	".pdf":      PDF,
	".txt":      TXT,
	".text":     TXT,
	".mobi":     MOBI,
	".azw":      MOBI,
	".azw3":     MOBI,
	".md":       Markdown,
	".markdown": Markdown,
	".doc":      DOC,
	".docx":     DOCX,
}

// Detect maps a file name to its format using only the suffix. Matching is
// case-insensitive and anything unrecognized is Unknown.
func Detect(fileName string) Format {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if f, ok := bySuffix[ext]; ok {
		return f
	}
	return Unknown
}

// Parse converts a stored tag back into a Format.
func Parse(s string) Format {
	f := Format(strings.ToLower(s))
	switch f {
	case EPUB, PDF, TXT, MOBI, Markdown, DOC, DOCX:
		return f
	}
	return Unknown
}

// All returns every known format except Unknown, in a stable order.
func All() []Format {
	return []Format{EPUB, PDF, TXT, MOBI, Markdown, DOC, DOCX}
}

func (f Format) String() string {
	return string(f)
}

// ConvertibleToText reports whether imports of this format are rewritten into
// a normalized .txt sibling when text extraction succeeds.
func (f Format) ConvertibleToText() bool {
	return f == PDF || f == DOC || f == DOCX
}

// TextCounterpart returns the sibling path with the extension swapped for .txt.
func TextCounterpart(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".txt"
}

// Package testgen generates document fixtures (EPUB, DOCX, MOBI, plain text)
// with configurable metadata for importer and reader tests.
package testgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Chapter is one content document of a generated EPUB.
type Chapter struct {
	Title      string
	Paragraphs []string
}

// EPUBOptions configures the generated EPUB file.
type EPUBOptions struct {
	Title         string
	Authors       []string
	HasCover      bool
	CoverMimeType string // "image/jpeg" or "image/png", defaults to "image/png"
	// CoverProperty marks the cover with the EPUB 3 manifest property instead
	// of the legacy <meta name="cover"> element.
	CoverProperty bool
	// Chapters defaults to a single "Chapter 1" document.
	Chapters []Chapter
	// NCX generates an EPUB 2 style NCX table of contents instead of an
	// EPUB 3 navigation document.
	NCX bool
}

// DOCXOptions configures the generated DOCX file.
type DOCXOptions struct {
	Title        string
	Creator      string
	Paragraphs   []string
	Pages        int
	HasThumbnail bool
}

// MOBIOptions configures the generated MOBI file.
type MOBIOptions struct {
	Title  string
	Author string
	Text   string
	// Compression is 1 (none) or 2 (PalmDOC). Defaults to 2.
	Compression uint16
	HasCover    bool
}

// WriteFile creates a file with the given content in the specified directory.
// Returns the full path to the created file.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// GenerateText writes a plain text document of the given number of
// paragraphs, each roughly size bytes long.
func GenerateText(t *testing.T, dir, name string, paragraphs, size int) string {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < paragraphs; i++ {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		line := strings.Repeat("lorem ipsum ", size/12+1)
		sb.WriteString(strings.TrimSpace(line[:size]))
	}
	return WriteFile(t, dir, name, []byte(sb.String()))
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads and returns the contents of a file.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return data
}

// Package converters assembles the format to converter table shared by the
// importer, the reader and the command line tools.
package converters

import (
	"github.com/hunt2035/SoundSync-sub002/pkg/docx"
	"github.com/hunt2035/SoundSync-sub002/pkg/epub"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/markdown"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/mobi"
	"github.com/hunt2035/SoundSync-sub002/pkg/pdf"
	"github.com/hunt2035/SoundSync-sub002/pkg/plaintext"
)

// New returns a registry with every supported format. pdfCovers may be nil
// to skip rendering PDF covers. Unknown formats fall back to plain text.
func New(pdfCovers pdf.FirstPageRenderer) *mediafile.Registry {
	text := plaintext.NewConverter()
	word := docx.NewConverter()

	registry := mediafile.NewRegistry(text)
	registry.Register(text, formats.TXT)
	registry.Register(epub.NewConverter(), formats.EPUB)
	registry.Register(pdf.NewConverter(pdfCovers), formats.PDF)
	registry.Register(word, formats.DOC, formats.DOCX)
	registry.Register(markdown.NewConverter(), formats.Markdown)
	registry.Register(mobi.NewConverter(), formats.MOBI)
	return registry
}

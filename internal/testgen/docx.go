package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"
)

// GenerateDOCX creates a minimal Office Open XML word processing document.
// Each paragraph becomes a <w:p> with a single run; a paragraph containing
// "\t" gets a <w:tab/> in its place.
func GenerateDOCX(t *testing.T, dir, filename string, opts DOCXOptions) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create DOCX file: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	contentTypes := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Default Extension="png" ContentType="image/png"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`
	if err := writeZipFile(zw, "[Content_Types].xml", []byte(contentTypes)); err != nil {
		t.Fatalf("failed to write content types: %v", err)
	}

	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
`)
	for _, p := range opts.Paragraphs {
		body.WriteString("    <w:p><w:pPr><w:pStyle w:val=\"Normal\"/></w:pPr>")
		for i, part := range bytes.Split([]byte(p), []byte("\t")) {
			if i > 0 {
				body.WriteString("<w:r><w:tab/></w:r>")
			}
			body.WriteString(fmt.Sprintf("<w:r><w:t xml:space=\"preserve\">%s</w:t></w:r>", escapeXML(string(part))))
		}
		body.WriteString("</w:p>\n")
	}
	body.WriteString("    <w:p/>\n    <w:sectPr/>\n  </w:body>\n</w:document>")
	if err := writeZipFile(zw, "word/document.xml", body.Bytes()); err != nil {
		t.Fatalf("failed to write document.xml: %v", err)
	}

	var core bytes.Buffer
	core.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	if opts.Title != "" {
		core.WriteString(fmt.Sprintf("  <dc:title>%s</dc:title>\n", escapeXML(opts.Title)))
	}
	if opts.Creator != "" {
		core.WriteString(fmt.Sprintf("  <dc:creator>%s</dc:creator>\n", escapeXML(opts.Creator)))
	}
	core.WriteString("</cp:coreProperties>")
	if err := writeZipFile(zw, "docProps/core.xml", core.Bytes()); err != nil {
		t.Fatalf("failed to write core.xml: %v", err)
	}

	if opts.Pages > 0 {
		app := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">
  <Pages>%d</Pages>
</Properties>`, opts.Pages)
		if err := writeZipFile(zw, "docProps/app.xml", []byte(app)); err != nil {
			t.Fatalf("failed to write app.xml: %v", err)
		}
	}

	if opts.HasThumbnail {
		if err := writeZipFile(zw, "docProps/thumbnail.png", generateImage(t, "image/png")); err != nil {
			t.Fatalf("failed to write thumbnail: %v", err)
		}
	}

	return path
}

// GenerateDOC writes a file with the OLE2 compound document signature
// followed by filler and the paragraphs encoded as UTF-16LE, or as 8-bit
// text when wide is false. It is only realistic enough for text recovery.
func GenerateDOC(t *testing.T, dir, filename string, paragraphs []string, wide bool) string {
	t.Helper()

	var buf bytes.Buffer
	buf.Write([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	buf.Write(bytes.Repeat([]byte{0x00, 0x01, 0xFF, 0x02}, 32))

	for _, p := range paragraphs {
		if wide {
			for _, u := range utf16.Encode([]rune(p)) {
				buf.WriteByte(byte(u))
				buf.WriteByte(byte(u >> 8))
			}
			buf.Write([]byte{0x0D, 0x00})
		} else {
			buf.WriteString(p)
			buf.WriteByte(0x0D)
		}
	}
	buf.Write(bytes.Repeat([]byte{0x00, 0x03}, 64))

	return WriteFile(t, dir, filename, buf.Bytes())
}

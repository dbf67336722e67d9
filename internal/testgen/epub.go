package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// GenerateEPUB creates a valid EPUB file at the specified path with the given options.
// The generated EPUB contains mimetype, container.xml, content.opf with metadata,
// one XHTML document per chapter, a table of contents and optionally a cover image.
func GenerateEPUB(t *testing.T, dir, filename string, opts EPUBOptions) string {
	t.Helper()

	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create EPUB file: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	// mimetype must be first and uncompressed
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("failed to create mimetype entry: %v", err)
	}
	if _, err := w.Write([]byte("application/epub+zip")); err != nil {
		t.Fatalf("failed to write mimetype: %v", err)
	}

	containerXML := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	if err := writeZipFile(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		t.Fatalf("failed to write container.xml: %v", err)
	}

	coverMimeType := opts.CoverMimeType
	if coverMimeType == "" {
		coverMimeType = "image/png"
	}
	var coverFilename string
	if opts.HasCover {
		coverData := generateImage(t, coverMimeType)
		if coverMimeType == "image/jpeg" {
			coverFilename = "images/cover.jpg"
		} else {
			coverFilename = "images/cover.png"
		}
		if err := writeZipFile(zw, "OEBPS/"+coverFilename, coverData); err != nil {
			t.Fatalf("failed to write cover image: %v", err)
		}
	}

	chapters := opts.Chapters
	if len(chapters) == 0 {
		chapters = []Chapter{{Title: "Chapter 1", Paragraphs: []string{"This is a test chapter."}}}
	}

	opfContent := generateOPF(opts, chapters, coverFilename, coverMimeType)
	if err := writeZipFile(zw, "OEBPS/content.opf", []byte(opfContent)); err != nil {
		t.Fatalf("failed to write content.opf: %v", err)
	}

	for i, ch := range chapters {
		if err := writeZipFile(zw, "OEBPS/"+chapterFilename(i), []byte(generateChapter(ch))); err != nil {
			t.Fatalf("failed to write chapter %d: %v", i+1, err)
		}
	}

	if opts.NCX {
		if err := writeZipFile(zw, "OEBPS/toc.ncx", []byte(generateNCX(chapters))); err != nil {
			t.Fatalf("failed to write toc.ncx: %v", err)
		}
	} else {
		if err := writeZipFile(zw, "OEBPS/nav.xhtml", []byte(generateNav(chapters))); err != nil {
			t.Fatalf("failed to write nav.xhtml: %v", err)
		}
	}

	return path
}

func chapterFilename(i int) string {
	return fmt.Sprintf("text/chapter%d.xhtml", i+1)
}

func generateChapter(ch Chapter) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
`)
	buf.WriteString(fmt.Sprintf("  <title>%s</title>\n", escapeXML(ch.Title)))
	buf.WriteString("  <style>p { margin: 0; }</style>\n</head>\n<body>\n")
	buf.WriteString(fmt.Sprintf("  <h1>%s</h1>\n", escapeXML(ch.Title)))
	for _, p := range ch.Paragraphs {
		buf.WriteString(fmt.Sprintf("  <p>%s</p>\n", escapeXML(p)))
	}
	buf.WriteString("</body>\n</html>")
	return buf.String()
}

func generateNav(chapters []Chapter) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<body>
<nav epub:type="toc">
  <ol>
`)
	for i, ch := range chapters {
		buf.WriteString(fmt.Sprintf("    <li><a href=\"%s\">%s</a></li>\n", chapterFilename(i), escapeXML(ch.Title)))
	}
	buf.WriteString("  </ol>\n</nav>\n</body>\n</html>")
	return buf.String()
}

func generateNCX(chapters []Chapter) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
`)
	for i, ch := range chapters {
		buf.WriteString(fmt.Sprintf("    <navPoint id=\"np%d\"><navLabel><text>%s</text></navLabel><content src=\"%s\"/></navPoint>\n",
			i+1, escapeXML(ch.Title), chapterFilename(i)))
	}
	buf.WriteString("  </navMap>\n</ncx>")
	return buf.String()
}

func generateOPF(opts EPUBOptions, chapters []Chapter, coverFilename, coverMimeType string) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
`)

	// Title is only included if provided so the file name fallback can be tested.
	if opts.Title != "" {
		buf.WriteString(fmt.Sprintf("    <dc:title id=\"title\">%s</dc:title>\n", escapeXML(opts.Title)))
	}

	for i, author := range opts.Authors {
		buf.WriteString(fmt.Sprintf("    <dc:creator id=\"creator%d\" opf:role=\"aut\">%s</dc:creator>\n", i, escapeXML(author)))
	}

	buf.WriteString("    <dc:identifier id=\"bookid\">urn:uuid:test-book-id</dc:identifier>\n")
	buf.WriteString("    <dc:language>en</dc:language>\n")

	if coverFilename != "" && !opts.CoverProperty {
		buf.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	}

	buf.WriteString("  </metadata>\n")

	buf.WriteString("  <manifest>\n")
	for i := range chapters {
		buf.WriteString(fmt.Sprintf("    <item id=\"chapter%d\" href=\"%s\" media-type=\"application/xhtml+xml\"/>\n", i+1, chapterFilename(i)))
	}
	if opts.NCX {
		buf.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	} else {
		buf.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	}
	if coverFilename != "" {
		props := ""
		if opts.CoverProperty {
			props = ` properties="cover-image"`
		}
		buf.WriteString(fmt.Sprintf("    <item id=\"cover-image\" href=\"%s\" media-type=\"%s\"%s/>\n", coverFilename, coverMimeType, props))
	}
	buf.WriteString("  </manifest>\n")

	if opts.NCX {
		buf.WriteString("  <spine toc=\"ncx\">\n")
	} else {
		buf.WriteString("  <spine>\n")
	}
	for i := range chapters {
		buf.WriteString(fmt.Sprintf("    <itemref idref=\"chapter%d\"/>\n", i+1))
	}
	buf.WriteString("  </spine>\n")

	buf.WriteString("</package>")

	return buf.String()
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func generateImage(t *testing.T, mimeType string) []byte {
	t.Helper()

	// Create a simple 100x100 solid color image
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	blue := color.RGBA{0, 100, 200, 255}
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, blue)
		}
	}

	var buf bytes.Buffer
	switch mimeType {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("failed to encode JPEG: %v", err)
		}
	default: // image/png
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("failed to encode PNG: %v", err)
		}
	}

	return buf.Bytes()
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

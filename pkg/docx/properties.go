package docx

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// maxPartSize bounds how much of a metadata part is read.
const maxPartSize = 1 << 20

// maxThumbnailSize bounds the embedded thumbnail read into memory.
const maxThumbnailSize = 16 << 20

type coreProperties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
}

type appProperties struct {
	Pages string `xml:"Pages"`
}

type properties struct {
	title   string
	creator string
	pages   int
}

// readProperties reads docProps/core.xml and docProps/app.xml. Missing or
// malformed parts leave the corresponding fields empty.
func readProperties(zr *zip.Reader) properties {
	props := properties{}

	core := coreProperties{}
	if readXMLPart(zr, "docProps/core.xml", &core) == nil {
		props.title = strings.TrimSpace(core.Title)
		props.creator = strings.TrimSpace(core.Creator)
	}

	app := appProperties{}
	if readXMLPart(zr, "docProps/app.xml", &app) == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(app.Pages)); err == nil && n > 0 {
			props.pages = n
		}
	}

	return props
}

func readXMLPart(zr *zip.Reader, name string, v interface{}) error {
	f := findFile(zr, name)
	if f == nil {
		return errors.Errorf("%s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer rc.Close()
	return errors.WithStack(xml.NewDecoder(io.LimitReader(rc, maxPartSize)).Decode(v))
}

// readThumbnail returns the bytes of docProps/thumbnail.*, or nil when the
// document has none.
func readThumbnail(zr *zip.Reader) ([]byte, error) {
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "docProps/thumbnail.") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxThumbnailSize))
		rc.Close()
		return data, errors.WithStack(err)
	}
	return nil, nil
}

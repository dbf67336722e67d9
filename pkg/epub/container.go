package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"path"

	"github.com/pkg/errors"
)

const containerPath = "META-INF/container.xml"

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// findRootfile returns the archive path of the OPF package document. It
// follows META-INF/container.xml and falls back to the first .opf entry for
// archives that lack one.
func findRootfile(files map[string]*zip.File, order []*zip.File) (string, error) {
	if f, ok := files[containerPath]; ok {
		r, err := f.Open()
		if err != nil {
			return "", errors.WithStack(err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return "", errors.WithStack(err)
		}

		c := container{}
		if err := xml.Unmarshal(data, &c); err == nil {
			for _, rf := range c.Rootfiles {
				if _, ok := files[rf.FullPath]; ok {
					return rf.FullPath, nil
				}
			}
		}
	}

	for _, f := range order {
		if path.Ext(f.Name) == ".opf" {
			return f.Name, nil
		}
	}

	return "", errors.New("no opf file found")
}

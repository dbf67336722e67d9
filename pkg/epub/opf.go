package epub

import (
	"encoding/xml"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// OPF is the subset of an OPF package document needed to read a book. All
// paths are full paths inside the archive.
type OPF struct {
	Title         string
	Authors       []string
	CoverFilepath string
	CoverMimeType string
	Spine         []SpineItem
	NavFilepath   string
	NCXFilepath   string
}

// SpineItem is one content document in reading order.
type SpineItem struct {
	ID        string
	Filepath  string
	MediaType string
}

type Package struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
		Meta []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc     string `xml:"toc,attr"`
		Itemref []struct {
			Idref  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

func ParseOPF(filename string, r io.Reader) (*OPF, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &Package{}
	err = xml.Unmarshal(b, pkg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Every href in the package is relative to the OPF file itself.
	baseDir := path.Dir(filename)

	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.TrimPrefix(m.Refines, "#")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = strings.TrimSpace(m.Text)
		} else if m.Content != "" {
			metaContent[m.Name] = m.Content
		}
	}

	title := ""
	for _, t := range pkg.Metadata.Title {
		if t.ID != "" && metaProperties[t.ID]["title-type"] == "main" {
			title = t.Text
			break
		}
	}
	if title == "" && len(pkg.Metadata.Title) > 0 {
		title = pkg.Metadata.Title[0].Text
	}

	authors := []string{}
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" {
			role = metaProperties[creator.ID]["role"]
		}
		name := strings.TrimSpace(creator.Text)
		if name == "" {
			continue
		}
		if role == "aut" || role == "" || len(pkg.Metadata.Creator) == 1 {
			authors = append(authors, name)
		}
	}

	opf := &OPF{
		Title:   strings.TrimSpace(title),
		Authors: authors,
	}

	type manifestItem struct {
		href      string
		mediaType string
	}
	items := map[string]manifestItem{}
	for _, item := range pkg.Manifest.Item {
		full := resolveHref(baseDir, item.Href)
		items[item.ID] = manifestItem{full, item.MediaType}

		props := strings.Fields(item.Properties)
		for _, p := range props {
			switch p {
			case "nav":
				opf.NavFilepath = full
			case "cover-image":
				opf.CoverFilepath = full
				opf.CoverMimeType = item.MediaType
			}
		}
	}

	// The EPUB 2 cover meta wins over the manifest property when both exist.
	if id := metaContent["cover"]; id != "" {
		if item, ok := items[id]; ok {
			opf.CoverFilepath = item.href
			opf.CoverMimeType = item.mediaType
		}
	}

	if pkg.Spine.Toc != "" {
		opf.NCXFilepath = items[pkg.Spine.Toc].href
	}

	for _, ref := range pkg.Spine.Itemref {
		item, ok := items[ref.Idref]
		if !ok || ref.Linear == "no" {
			continue
		}
		opf.Spine = append(opf.Spine, SpineItem{
			ID:        ref.Idref,
			Filepath:  item.href,
			MediaType: item.mediaType,
		})
	}

	return opf, nil
}

// resolveHref turns an href relative to baseDir into a full archive path.
// A fragment, if any, is kept.
func resolveHref(baseDir, href string) string {
	fragment := ""
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href, fragment = href[:i], href[i:]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if href == "" {
		return fragment
	}
	return strings.TrimPrefix(path.Join(baseDir, href), "/") + fragment
}

package epub

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/hunt2035/SoundSync-sub002/pkg/htmlutil"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/pkg/errors"
)

// NavHTML represents the EPUB 3 navigation document structure.
type NavHTML struct {
	XMLName xml.Name `xml:"html"`
	Body    struct {
		Nav []NavElement `xml:"nav"`
	} `xml:"body"`
}

// NavElement represents a nav element in the navigation document.
type NavElement struct {
	Type string `xml:"type,attr"`
	OL   *NavOL `xml:"ol"`
}

// NavOL represents an ordered list in the navigation.
type NavOL struct {
	Items []NavLI `xml:"li"`
}

// NavLI represents a list item in the navigation.
type NavLI struct {
	A        *NavLink `xml:"a"`
	Span     *NavSpan `xml:"span"`
	Children *NavOL   `xml:"ol"`
}

// NavLink represents an anchor element. Labels may carry inline markup, so
// the inner XML is kept and stripped when read.
type NavLink struct {
	Href  string `xml:"href,attr"`
	Inner string `xml:",innerxml"`
}

// NavSpan represents a span element (heading without link).
type NavSpan struct {
	Inner string `xml:",innerxml"`
}

func navLabel(inner string) string {
	return strings.Join(strings.Fields(htmlutil.StripTags(inner)), " ")
}

// parseNavDocument parses an EPUB 3 navigation document and returns chapters.
func parseNavDocument(r io.Reader) ([]mediafile.ParsedChapter, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var nav NavHTML
	if err := xml.Unmarshal(data, &nav); err != nil {
		return nil, errors.WithStack(err)
	}

	// Find the toc nav element
	for _, n := range nav.Body.Nav {
		if n.Type == "toc" && n.OL != nil {
			return parseNavOL(n.OL), nil
		}
	}

	return nil, nil
}

// parseNavOL recursively parses an ordered list into chapters.
func parseNavOL(ol *NavOL) []mediafile.ParsedChapter {
	if ol == nil {
		return nil
	}

	chapters := make([]mediafile.ParsedChapter, 0, len(ol.Items))
	for _, li := range ol.Items {
		ch := mediafile.ParsedChapter{}

		// Get title and href from anchor or span
		if li.A != nil {
			ch.Title = navLabel(li.A.Inner)
			if li.A.Href != "" {
				href := li.A.Href
				ch.Href = &href
			}
		} else if li.Span != nil {
			ch.Title = navLabel(li.Span.Inner)
		}

		// Skip items without a title
		if ch.Title == "" {
			continue
		}

		// Parse nested children
		if li.Children != nil {
			ch.Children = parseNavOL(li.Children)
		}

		chapters = append(chapters, ch)
	}

	return chapters
}

// NCX represents the EPUB 2 NCX structure.
type NCX struct {
	XMLName xml.Name `xml:"ncx"`
	NavMap  struct {
		NavPoints []NCXNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

// NCXNavPoint represents a navigation point in NCX.
type NCXNavPoint struct {
	ID       string `xml:"id,attr"`
	NavLabel struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []NCXNavPoint `xml:"navPoint"`
}

// parseNCX parses an EPUB 2 NCX file and returns chapters.
func parseNCX(r io.Reader) ([]mediafile.ParsedChapter, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var ncx NCX
	if err := xml.Unmarshal(data, &ncx); err != nil {
		return nil, errors.WithStack(err)
	}

	return parseNCXNavPoints(ncx.NavMap.NavPoints), nil
}

// parseNCXNavPoints recursively parses NCX navigation points.
func parseNCXNavPoints(navPoints []NCXNavPoint) []mediafile.ParsedChapter {
	chapters := make([]mediafile.ParsedChapter, 0, len(navPoints))
	for _, np := range navPoints {
		title := strings.TrimSpace(np.NavLabel.Text)
		if title == "" {
			continue
		}

		ch := mediafile.ParsedChapter{
			Title: title,
		}

		if np.Content.Src != "" {
			src := np.Content.Src
			ch.Href = &src
		}

		if len(np.Children) > 0 {
			ch.Children = parseNCXNavPoints(np.Children)
		}

		chapters = append(chapters, ch)
	}
	return chapters
}

// resolveChapterHrefs rewrites chapter hrefs, which are relative to the
// table of contents document in baseDir, into full archive paths.
func resolveChapterHrefs(chapters []mediafile.ParsedChapter, baseDir string) {
	for i := range chapters {
		if chapters[i].Href != nil {
			full := resolveHref(baseDir, *chapters[i].Href)
			chapters[i].Href = &full
		}
		resolveChapterHrefs(chapters[i].Children, baseDir)
	}
}

package epub

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hunt2035/SoundSync-sub002/pkg/htmlutil"
	"github.com/pkg/errors"
)

// ContentDocument is one spine document reduced to what a reader needs.
type ContentDocument struct {
	// Title is the first heading in the body, or the head <title>.
	Title string
	// Markup is the sanitized body HTML.
	Markup string
	// Text is the body as plain text, one block per line.
	Text string
}

func ParseContentDocument(data []byte) (*ContentDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	body := doc.Find("body").First()
	body.Find("script, style, noscript").Remove()

	markup, err := body.Html()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	title := strings.TrimSpace(body.Find("h1, h2, h3").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("head > title").First().Text())
	}

	return &ContentDocument{
		Title:  strings.Join(strings.Fields(title), " "),
		Markup: strings.TrimSpace(htmlutil.Sanitize(markup)),
		Text:   htmlutil.StripTags(markup),
	}, nil
}

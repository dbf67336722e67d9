package htmlutil

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// multipleSpacesPattern matches runs of whitespace inside a single line.
var multipleSpacesPattern = regexp.MustCompile(`\s{2,}`)

// blockElements end a visual line when they open or close.
var blockElements = map[string]struct{}{
	"address": {}, "article": {}, "aside": {}, "blockquote": {}, "br": {},
	"dd": {}, "div": {}, "dl": {}, "dt": {}, "figcaption": {}, "figure": {},
	"footer": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"header": {}, "hr": {}, "li": {}, "ol": {}, "p": {}, "pre": {},
	"section": {}, "table": {}, "td": {}, "th": {}, "tr": {}, "ul": {},
}

// skippedElements have contents that are never visible text.
var skippedElements = map[string]struct{}{
	"script": {}, "style": {}, "head": {}, "title": {}, "noscript": {},
}

// StripTags converts an HTML or XHTML fragment into plain text. Block-level
// elements become line breaks, entities are decoded, whitespace inside a
// line is collapsed and empty lines are dropped.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return normalizeLines(extract(strings.NewReader(s)))
}

// StripTagsReader is StripTags over a stream, used for large content documents.
func StripTagsReader(r io.Reader) string {
	return normalizeLines(extract(r))
}

func extract(r io.Reader) string {
	var b strings.Builder
	z := html.NewTokenizer(r)
	skipDepth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			if _, ok := skippedElements[tag]; ok && tt == html.StartTagToken {
				skipDepth++
				continue
			}
			if _, ok := blockElements[tag]; ok {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			if _, ok := skippedElements[tag]; ok {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if _, ok := blockElements[tag]; ok {
				b.WriteByte('\n')
			}
		}
	}
}

func normalizeLines(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(multipleSpacesPattern.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

package reader

import (
	"unicode"
	"unicode/utf8"
)

// searcher collects case-insensitive matches page by page. Matching is done
// rune by rune on the original text, so offsets always refer to bytes of the
// text the snippet was cut from.
type searcher struct {
	query   string
	radius  int
	max     int
	results []SearchResult
}

// scan adds the matches on one page and reports whether the cap was hit.
func (s *searcher) scan(text string, page, chapter int) bool {
	if s.results == nil {
		s.results = []SearchResult{}
	}
	for i := 0; i < len(text); {
		end := matchAt(text, i, s.query)
		if end < 0 {
			_, w := utf8.DecodeRuneInString(text[i:])
			i += w
			continue
		}

		start := backRunes(text, i, s.radius)
		stop := forwardRunes(text, end, s.radius)
		s.results = append(s.results, SearchResult{
			PageIndex:      page,
			ChapterIndex:   chapter,
			Snippet:        flattenWhitespace(text[start:stop]),
			HighlightStart: i - start,
			HighlightEnd:   end - start,
		})
		if s.max > 0 && len(s.results) >= s.max {
			return true
		}
		i = end
	}
	return false
}

// matchAt returns the end of a case-insensitive match of query starting at
// byte i of text, or -1.
func matchAt(text string, i int, query string) int {
	for _, q := range query {
		if i >= len(text) {
			return -1
		}
		r, w := utf8.DecodeRuneInString(text[i:])
		if !equalFold(r, q) {
			return -1
		}
		i += w
	}
	return i
}

func equalFold(a, b rune) bool {
	if a == b {
		return true
	}
	for f := unicode.SimpleFold(a); f != a; f = unicode.SimpleFold(f) {
		if f == b {
			return true
		}
	}
	return false
}

func backRunes(text string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, w := utf8.DecodeLastRuneInString(text[:i])
		i -= w
	}
	return i
}

func forwardRunes(text string, i, n int) int {
	for ; n > 0 && i < len(text); n-- {
		_, w := utf8.DecodeRuneInString(text[i:])
		i += w
	}
	return i
}

// flattenWhitespace turns line breaks and tabs into spaces without changing
// the byte length.
func flattenWhitespace(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == '\n' || c == '\r' || c == '\t' {
			b[i] = ' '
		}
	}
	return string(b)
}

package search

import (
	"strings"
	"unicode"
)

const maxQueryRunes = 100

// BuildPrefixQuery turns free text into an FTS5 query in which every word
// must match the start of a word in the title or author. Each word is quoted
// so FTS5 operators in user input (AND, NEAR, column filters) stay literal.
// It returns "" when the input holds no words.
func BuildPrefixQuery(input string) string {
	runes := []rune(strings.TrimSpace(input))
	if len(runes) > maxQueryRunes {
		runes = runes[:maxQueryRunes]
	}

	words := strings.FieldsFunc(string(runes), func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'')
	})
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, `""`)
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " ")
}

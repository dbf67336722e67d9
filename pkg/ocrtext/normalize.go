// Package ocrtext repairs the hard line wraps that OCR engines leave inside
// paragraphs.
package ocrtext

import (
	"strings"
)

// Normalize joins wrapped lines back into paragraphs in a single left-to-right
// pass. Two adjacent lines are joined with one space unless either of them
// breaks continuation: a blank line, a line indented by two or more spaces, or
// a line starting with a tab. Blank-line runs, including a trailing run, are
// kept exactly as they were.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(lines[0])
	for i := 1; i < len(lines); i++ {
		if !breaksContinuation(lines[i-1]) && !breaksContinuation(lines[i]) {
			b.WriteByte(' ')
		} else {
			b.WriteByte('\n')
		}
		b.WriteString(lines[i])
	}
	return b.String()
}

// breaksContinuation reports whether a line must keep the newline before and
// after it. Only a truly empty line is blank; a line of spaces is judged by
// its indent like any other.
func breaksContinuation(line string) bool {
	if line == "" {
		return true
	}
	if strings.HasPrefix(line, "\t") {
		return true
	}
	return strings.HasPrefix(line, "  ")
}

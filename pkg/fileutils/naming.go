package fileutils

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxNameBytes caps a sanitized stem well under the usual 255 byte limit on
// file names.
const maxNameBytes = 200

var (
	smartDoubleQuotesRE = regexp.MustCompile(`[“”]`)
	smartSingleQuotesRE = regexp.MustCompile(`[‘’]`)
	invalidCharsRE      = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespaceRE        = regexp.MustCompile(`\s+`)
	separatorsRE        = regexp.MustCompile(`[_]+`)
)

// SanitizeFileName makes a display file name safe to use as the base name of
// a file in managed storage. The extension is kept.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := filepath.Ext(name)
	stem := sanitize(strings.TrimSuffix(name, ext))
	if stem == "" {
		stem = "untitled"
	}
	ext = whitespaceRE.ReplaceAllString(invalidCharsRE.ReplaceAllString(strings.ToLower(ext), ""), "")
	return stem + ext
}

// TitleFromFileName derives a fallback title from a file name.
func TitleFromFileName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = separatorsRE.ReplaceAllString(base, " ")
	base = whitespaceRE.ReplaceAllString(base, " ")
	return strings.TrimSpace(base)
}

func sanitize(name string) string {
	name = smartDoubleQuotesRE.ReplaceAllString(name, `'`)
	name = smartSingleQuotesRE.ReplaceAllString(name, `'`)
	name = invalidCharsRE.ReplaceAllString(name, "")
	name = whitespaceRE.ReplaceAllString(name, " ")

	// Windows doesn't like trailing dots.
	name = strings.Trim(name, " .")
	if len(name) > maxNameBytes {
		cut := maxNameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.Trim(name[:cut], " .")
	}

	return name
}

package docx

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// oleSignature starts every OLE2 compound file, which is the container of
// Word 97-2003 documents.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// minRunLength is the shortest run of printable characters kept as text.
// Shorter runs are almost always binary structure.
const minRunLength = 8

// oleStreamNames are compound file directory entries that show up as
// UTF-16 runs but are not document text.
var oleStreamNames = map[string]struct{}{
	"Root Entry":                 {},
	"WordDocument":               {},
	"SummaryInformation":         {},
	"DocumentSummaryInformation": {},
	"CompObj":                    {},
	"0Table":                     {},
	"1Table":                     {},
	"Data":                       {},
	"ObjectPool":                 {},
}

var errNotOLE = errors.New("not an OLE compound document")

// recoverLegacyText scans a Word 97-2003 binary for runs of text. Word stores
// body text as either UTF-16LE or 8-bit characters, so both are collected
// and the encoding that produced more text wins. Each run is written as one
// line.
func recoverLegacyText(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	header := make([]byte, len(oleSignature))
	if _, err := io.ReadFull(br, header); err != nil || !bytes.Equal(header, oleSignature) {
		return 0, errNotOLE
	}

	wide := &runCollector{}
	narrow := &runCollector{}
	var prev byte
	havePrev := false
	offset := int64(len(header))

	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return 0, errors.WithStack(err)
		}
		n, err := br.Read(buf)
		for _, b := range buf[:n] {
			narrow.add(rune(b), printable8(b))

			// UTF-16LE code units start at even offsets.
			if offset%2 == 1 && havePrev {
				unit := rune(prev) | rune(b)<<8
				wide.add(unit, printable16(unit))
			}
			prev = b
			havePrev = true
			offset++
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, errors.WithStack(err)
		}
	}
	wide.flush()
	narrow.flush()

	runs := narrow.runs
	if wide.chars > 0 && wide.chars >= narrow.chars {
		runs = wide.runs
	}

	chars := 0
	for i, run := range runs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return chars, errors.WithStack(err)
			}
		}
		if _, err := io.WriteString(w, run); err != nil {
			return chars, errors.WithStack(err)
		}
		chars += len([]rune(run))
	}
	return chars, nil
}

type runCollector struct {
	current strings.Builder
	length  int
	runs    []string
	chars   int
}

func (c *runCollector) add(r rune, ok bool) {
	if ok {
		c.current.WriteRune(r)
		c.length++
		return
	}
	c.flush()
}

func (c *runCollector) flush() {
	if c.length >= minRunLength {
		run := strings.TrimSpace(c.current.String())
		if _, skip := oleStreamNames[run]; !skip && hasLetters(run) {
			c.runs = append(c.runs, run)
			c.chars += len([]rune(run))
		}
	}
	c.current.Reset()
	c.length = 0
}

func printable8(b byte) bool {
	return b == '\t' || (b >= 0x20 && b < 0x7F)
}

// printable16 only accepts Latin, Greek, Cyrillic and general punctuation.
// Pairs of 8-bit characters read as one UTF-16 unit land in the CJK blocks.
func printable16(r rune) bool {
	switch {
	case r == '\t':
		return true
	case r < 0x20 || r == 0x7F:
		return false
	case r < 0x0250, r >= 0x0370 && r < 0x0530, r >= 0x2000 && r < 0x2070:
		return unicode.IsPrint(r)
	}
	return false
}

// hasLetters filters out runs of punctuation or digits, which are common in
// binary tables.
func hasLetters(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters*2 >= len([]rune(s))
}

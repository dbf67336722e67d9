package plaintext

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffSize is how much of the input is inspected to pick an encoding.
const sniffSize = 64 * 1024

// ErrUnsupportedEncoding is returned for input that looks binary or uses a
// multi-byte encoding without a byte order mark.
var ErrUnsupportedEncoding = errors.New("unsupported text encoding")

// Encoding names the charset chosen by NewReader.
type Encoding string

const (
	UTF8        Encoding = "utf-8"
	UTF16LE     Encoding = "utf-16le"
	UTF16BE     Encoding = "utf-16be"
	Windows1252 Encoding = "windows-1252"
)

// NewReader returns a UTF-8 reader over r. A byte order mark selects UTF-8 or
// UTF-16. Otherwise valid UTF-8 passes through unchanged and anything else is
// read as Windows-1252. NUL bytes without a byte order mark are rejected.
func NewReader(r io.Reader) (io.Reader, Encoding, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", errors.WithStack(err)
	}

	var dec *encoding.Decoder
	enc := UTF8
	switch {
	case bytes.HasPrefix(head, []byte{0xEF, 0xBB, 0xBF}):
		if _, err := br.Discard(3); err != nil {
			return nil, "", errors.WithStack(err)
		}
		return newlineReader(br), UTF8, nil
	case bytes.HasPrefix(head, []byte{0xFF, 0xFE}):
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		enc = UTF16LE
	case bytes.HasPrefix(head, []byte{0xFE, 0xFF}):
		dec = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		enc = UTF16BE
	case bytes.IndexByte(head, 0) >= 0:
		return nil, "", ErrUnsupportedEncoding
	case validUTF8Prefix(head, len(head) < sniffSize):
		return newlineReader(br), UTF8, nil
	default:
		dec = charmap.Windows1252.NewDecoder()
		enc = Windows1252
	}

	return newlineReader(transform.NewReader(br, dec)), enc, nil
}

// validUTF8Prefix reports whether b is valid UTF-8. When b is only a prefix
// of the input, a rune cut off at the end is allowed.
func validUTF8Prefix(b []byte, complete bool) bool {
	if !complete {
		for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
			if r, _ := utf8.DecodeLastRune(b); r != utf8.RuneError {
				break
			}
			b = b[:len(b)-1]
		}
	}
	return utf8.Valid(b)
}

// newlineReader rewrites CRLF and lone CR line endings to LF.
func newlineReader(r io.Reader) io.Reader {
	return transform.NewReader(r, crlfTransformer{})
}

type crlfTransformer struct{ transform.NopResetter }

func (crlfTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c == '\r' {
			if nSrc+1 >= len(src) && !atEOF {
				// Need the next byte to know whether this is CRLF.
				return nDst, nSrc, transform.ErrShortSrc
			}
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = '\n'
			nDst++
			nSrc++
			if nSrc < len(src) && src[nSrc] == '\n' {
				nSrc++
			}
			continue
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = c
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}

// ReadFile decodes a whole text file into a string.
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	r, _, err := NewReader(f)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, r); err != nil {
		return "", errors.WithStack(err)
	}
	return sb.String(), nil
}

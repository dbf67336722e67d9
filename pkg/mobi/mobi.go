package mobi

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

const (
	pdbHeaderSize   = 78
	recordEntrySize = 8

	compressionNone    = 1
	compressionPalmDOC = 2
	compressionHuff    = 17480

	encodingCP1252 = 1252
	encodingUTF8   = 65001

	exthAuthor      = 100
	exthCoverOffset = 201
	exthTitle       = 503

	// maxFileSize bounds how much is read into memory. MOBI files index
	// records by absolute offset, so the whole file is loaded.
	maxFileSize = 512 << 20
)

var (
	// ErrHuffCompression is returned for books compressed with HUFF/CDIC,
	// which is not supported.
	ErrHuffCompression = errors.New("HUFF/CDIC compression is not supported")
	// ErrEncrypted is returned for DRM protected books.
	ErrEncrypted = errors.New("book is encrypted")
)

// Book is a parsed MOBI (or PalmDOC) file.
type Book struct {
	Title  string
	Author string

	data            []byte
	records         []uint32
	compression     uint16
	textRecordCount int
	textLength      int
	textEncoding    uint32
	extraDataFlags  uint16
	firstImage      uint32
	coverOffset     *uint32
}

func Open(path string) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFileSize+1))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(data) > maxFileSize {
		return nil, errors.New("file is too large")
	}
	return Parse(data)
}

// Parse reads the PDB record table, the PalmDOC and MOBI headers and the
// EXTH block from data.
func Parse(data []byte) (*Book, error) {
	if len(data) < pdbHeaderSize {
		return nil, errors.New("file is too short to be a PalmDB")
	}
	kind := string(data[60:68])
	if kind != "BOOKMOBI" && kind != "TEXtREAd" {
		return nil, errors.Errorf("unrecognized PalmDB type %q", kind)
	}

	count := int(binary.BigEndian.Uint16(data[76:78]))
	if count == 0 || pdbHeaderSize+count*recordEntrySize > len(data) {
		return nil, errors.New("record table is truncated")
	}

	b := &Book{data: data, records: make([]uint32, count)}
	for i := 0; i < count; i++ {
		off := binary.BigEndian.Uint32(data[pdbHeaderSize+i*recordEntrySize:])
		if int(off) > len(data) || (i > 0 && off < b.records[i-1]) {
			return nil, errors.Errorf("record %d has an invalid offset", i)
		}
		b.records[i] = off
	}

	rec0, err := b.record(0)
	if err != nil {
		return nil, err
	}
	if len(rec0) < 16 {
		return nil, errors.New("record 0 is truncated")
	}
	b.compression = binary.BigEndian.Uint16(rec0[0:2])
	b.textLength = int(binary.BigEndian.Uint32(rec0[4:8]))
	b.textRecordCount = int(binary.BigEndian.Uint16(rec0[8:10]))
	encryption := binary.BigEndian.Uint16(rec0[12:14])
	b.textEncoding = encodingCP1252
	b.Title = strings.TrimRight(string(data[0:32]), "\x00")

	if encryption != 0 {
		return nil, ErrEncrypted
	}

	if len(rec0) >= 24 && string(rec0[16:20]) == "MOBI" {
		b.parseMOBIHeader(rec0)
	}

	if b.textRecordCount >= len(b.records) {
		b.textRecordCount = len(b.records) - 1
	}

	return b, nil
}

func (b *Book) parseMOBIHeader(rec0 []byte) {
	headerLength := int(binary.BigEndian.Uint32(rec0[20:24]))
	u32 := func(off int) (uint32, bool) {
		if off+4 > len(rec0) || off+4 > 16+headerLength {
			return 0, false
		}
		return binary.BigEndian.Uint32(rec0[off:]), true
	}

	if enc, ok := u32(28); ok {
		b.textEncoding = enc
	}
	if off, ok := u32(84); ok {
		if length, ok := u32(88); ok && int(off)+int(length) <= len(rec0) && length > 0 {
			b.Title = b.decode(rec0[off : off+length])
		}
	}
	if first, ok := u32(108); ok {
		b.firstImage = first
	}
	if headerLength >= 0xE4 && 16+0xE4 <= len(rec0) {
		b.extraDataFlags = binary.BigEndian.Uint16(rec0[0xF2:])
	}

	flags, ok := u32(128)
	if !ok || flags&0x40 == 0 {
		return
	}
	exth := 16 + headerLength
	if exth+12 > len(rec0) || string(rec0[exth:exth+4]) != "EXTH" {
		return
	}
	n := int(binary.BigEndian.Uint32(rec0[exth+8:]))
	pos := exth + 12
	for i := 0; i < n && pos+8 <= len(rec0); i++ {
		typ := binary.BigEndian.Uint32(rec0[pos:])
		size := int(binary.BigEndian.Uint32(rec0[pos+4:]))
		if size < 8 || pos+size > len(rec0) {
			return
		}
		value := rec0[pos+8 : pos+size]
		switch typ {
		case exthAuthor:
			if b.Author == "" {
				b.Author = strings.TrimSpace(b.decode(value))
			} else {
				b.Author += ", " + strings.TrimSpace(b.decode(value))
			}
		case exthTitle:
			if t := strings.TrimSpace(b.decode(value)); t != "" {
				b.Title = t
			}
		case exthCoverOffset:
			if len(value) == 4 {
				off := binary.BigEndian.Uint32(value)
				b.coverOffset = &off
			}
		}
		pos += size
	}
}

func (b *Book) record(i int) ([]byte, error) {
	if i < 0 || i >= len(b.records) {
		return nil, errors.Errorf("record %d does not exist", i)
	}
	end := uint32(len(b.data))
	if i+1 < len(b.records) {
		end = b.records[i+1]
	}
	return b.data[b.records[i]:end], nil
}

func (b *Book) decode(raw []byte) string {
	if b.textEncoding == encodingUTF8 {
		return string(bytes.ToValidUTF8(raw, []byte("�")))
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(s)
}

// RawText returns the decompressed and decoded book markup.
func (b *Book) RawText() (string, error) {
	if b.compression == compressionHuff {
		return "", ErrHuffCompression
	}
	if b.compression != compressionNone && b.compression != compressionPalmDOC {
		return "", errors.Errorf("unknown compression type %d", b.compression)
	}

	var buf bytes.Buffer
	for i := 1; i <= b.textRecordCount; i++ {
		rec, err := b.record(i)
		if err != nil {
			return "", err
		}
		rec = b.trimTrailingEntries(rec)
		if b.compression == compressionPalmDOC {
			rec, err = decompressPalmDOC(rec)
			if err != nil {
				return "", errors.Wrapf(err, "record %d", i)
			}
		}
		buf.Write(rec)
	}

	raw := buf.Bytes()
	if b.textLength > 0 && len(raw) > b.textLength {
		raw = raw[:b.textLength]
	}
	return b.decode(raw), nil
}

// trimTrailingEntries drops the extra data that MOBI appends to text records.
func (b *Book) trimTrailingEntries(rec []byte) []byte {
	flags := b.extraDataFlags
	for bit := 1; bit < 16; bit++ {
		if flags&(1<<bit) == 0 {
			continue
		}
		size := trailingEntrySize(rec)
		if size <= 0 || size > len(rec) {
			return rec
		}
		rec = rec[:len(rec)-size]
	}
	if flags&1 != 0 && len(rec) > 0 {
		n := int(rec[len(rec)-1]&0x3) + 1
		if n <= len(rec) {
			rec = rec[:len(rec)-n]
		}
	}
	return rec
}

// trailingEntrySize reads the backward-encoded variable width size at the
// end of rec.
func trailingEntrySize(rec []byte) int {
	size := 0
	shift := 0
	for i := len(rec) - 1; i >= 0 && i >= len(rec)-4; i-- {
		v := rec[i]
		size |= int(v&0x7F) << shift
		shift += 7
		if v&0x80 != 0 {
			break
		}
	}
	return size
}

// Cover returns the raw bytes of the cover image record, or nil.
func (b *Book) Cover() []byte {
	if b.coverOffset == nil || b.firstImage == 0 || b.firstImage == 0xFFFFFFFF {
		return nil
	}
	rec, err := b.record(int(b.firstImage) + int(*b.coverOffset))
	if err != nil || len(rec) == 0 {
		return nil
	}
	return rec
}

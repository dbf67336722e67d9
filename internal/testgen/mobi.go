package testgen

import (
	"bytes"
	"encoding/binary"
	"testing"
)

const mobiRecordSize = 4096

// GenerateMOBI writes a MOBI 6 book with a PalmDOC header, a MOBI header,
// EXTH author/title/cover records and Text split into 4096-byte records.
// Text is used verbatim as the book markup.
func GenerateMOBI(t *testing.T, dir, filename string, opts MOBIOptions) string {
	t.Helper()

	compression := opts.Compression
	if compression == 0 {
		compression = 2
	}

	raw := []byte(opts.Text)
	var textRecords [][]byte
	for start := 0; start < len(raw); start += mobiRecordSize {
		end := start + mobiRecordSize
		if end > len(raw) {
			end = len(raw)
		}
		chunk := raw[start:end]
		if compression == 2 {
			chunk = CompressPalmDOC(chunk)
		}
		textRecords = append(textRecords, chunk)
	}

	firstImage := uint32(0xFFFFFFFF)
	var imageRecords [][]byte
	if opts.HasCover {
		firstImage = uint32(1 + len(textRecords))
		imageRecords = append(imageRecords, generateImage(t, "image/jpeg"))
	}

	// EXTH block.
	var exth bytes.Buffer
	var exthRecords [][]byte
	addEXTH := func(typ uint32, value []byte) {
		rec := make([]byte, 8+len(value))
		binary.BigEndian.PutUint32(rec[0:], typ)
		binary.BigEndian.PutUint32(rec[4:], uint32(len(rec)))
		copy(rec[8:], value)
		exthRecords = append(exthRecords, rec)
	}
	if opts.Author != "" {
		addEXTH(100, []byte(opts.Author))
	}
	if opts.Title != "" {
		addEXTH(503, []byte(opts.Title))
	}
	if opts.HasCover {
		addEXTH(201, []byte{0, 0, 0, 0})
	}
	exthBody := bytes.Join(exthRecords, nil)
	exth.WriteString("EXTH")
	_ = binary.Write(&exth, binary.BigEndian, uint32(12+len(exthBody)))
	_ = binary.Write(&exth, binary.BigEndian, uint32(len(exthRecords)))
	exth.Write(exthBody)
	for exth.Len()%4 != 0 {
		exth.WriteByte(0)
	}

	const mobiHeaderLength = 232
	fullName := []byte("Full Name Fallback")
	rec0 := make([]byte, 16+mobiHeaderLength)
	binary.BigEndian.PutUint16(rec0[0:], compression)
	binary.BigEndian.PutUint32(rec0[4:], uint32(len(raw)))
	binary.BigEndian.PutUint16(rec0[8:], uint16(len(textRecords)))
	binary.BigEndian.PutUint16(rec0[10:], mobiRecordSize)
	copy(rec0[16:], "MOBI")
	binary.BigEndian.PutUint32(rec0[20:], mobiHeaderLength)
	binary.BigEndian.PutUint32(rec0[24:], 2)     // mobi book
	binary.BigEndian.PutUint32(rec0[28:], 65001) // utf-8
	binary.BigEndian.PutUint32(rec0[36:], 6)     // file version
	binary.BigEndian.PutUint32(rec0[84:], uint32(len(rec0)+exth.Len()))
	binary.BigEndian.PutUint32(rec0[88:], uint32(len(fullName)))
	binary.BigEndian.PutUint32(rec0[108:], firstImage)
	binary.BigEndian.PutUint32(rec0[128:], 0x40)
	rec0 = append(rec0, exth.Bytes()...)
	rec0 = append(rec0, fullName...)
	rec0 = append(rec0, 0, 0)

	records := append([][]byte{rec0}, textRecords...)
	records = append(records, imageRecords...)

	return WriteFile(t, dir, filename, BuildPDB("Book_Name", "BOOKMOBI", records))
}

// BuildPDB lays out a PalmDB file with the given type/creator and records.
func BuildPDB(name, typeCreator string, records [][]byte) []byte {
	var buf bytes.Buffer
	header := make([]byte, 78)
	copy(header[0:31], name)
	copy(header[60:68], typeCreator)
	binary.BigEndian.PutUint16(header[76:], uint16(len(records)))
	buf.Write(header)

	offset := 78 + 8*len(records) + 2
	for i, rec := range records {
		entry := make([]byte, 8)
		binary.BigEndian.PutUint32(entry[0:], uint32(offset))
		binary.BigEndian.PutUint32(entry[4:], uint32(2*i))
		buf.Write(entry)
		offset += len(rec)
	}
	buf.Write([]byte{0, 0})
	for _, rec := range records {
		buf.Write(rec)
	}
	return buf.Bytes()
}

// CompressPalmDOC is a simple PalmDOC encoder: back-references of up to ten
// bytes within the last 2047 bytes, space-plus-character pairs and escaped
// literals.
func CompressPalmDOC(in []byte) []byte {
	var out []byte
	for i := 0; i < len(in); {
		bestLen, bestDist := 0, 0
		for dist := 1; dist <= 2047 && dist <= i; dist++ {
			l := 0
			for l < 10 && i+l < len(in) && in[i+l-dist] == in[i+l] {
				l++
			}
			if l > bestLen {
				bestLen, bestDist = l, dist
			}
		}
		if bestLen >= 3 {
			pair := 0x8000 | bestDist<<3 | (bestLen - 3)
			out = append(out, byte(pair>>8), byte(pair))
			i += bestLen
			continue
		}

		c := in[i]
		switch {
		case c == ' ' && i+1 < len(in) && in[i+1] >= 0x40 && in[i+1] <= 0x7F:
			out = append(out, in[i+1]^0x80)
			i += 2
		case c == 0 || (c >= 0x09 && c <= 0x7F):
			out = append(out, c)
			i++
		default:
			out = append(out, 1, c)
			i++
		}
	}
	return out
}

package mobi

import (
	"github.com/pkg/errors"
)

// decompressPalmDOC expands one PalmDOC (LZ77 variant) compressed record.
func decompressPalmDOC(in []byte) ([]byte, error) {
	out := make([]byte, 0, len(in)*2)

	for i := 0; i < len(in); {
		c := in[i]
		i++

		switch {
		case c == 0x00 || (c >= 0x09 && c <= 0x7F):
			out = append(out, c)
		case c >= 0x01 && c <= 0x08:
			n := int(c)
			if i+n > len(in) {
				return nil, errors.New("palmdoc literal run past end of record")
			}
			out = append(out, in[i:i+n]...)
			i += n
		case c >= 0x80 && c <= 0xBF:
			if i >= len(in) {
				return nil, errors.New("palmdoc back-reference past end of record")
			}
			pair := int(c)<<8 | int(in[i])
			i++
			distance := (pair & 0x3FFF) >> 3
			length := pair&0x07 + 3
			if distance == 0 || distance > len(out) {
				return nil, errors.Errorf("palmdoc back-reference distance %d out of range", distance)
			}
			start := len(out) - distance
			// Byte by byte, since the source may overlap what is being written.
			for j := 0; j < length; j++ {
				out = append(out, out[start+j])
			}
		default:
			out = append(out, ' ', c^0x80)
		}
	}

	return out, nil
}

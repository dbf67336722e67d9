package mobi

import (
	"context"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/hunt2035/SoundSync-sub002/internal/testgen"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompressPalmDOC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"literals", []byte("abc"), "abc"},
		{"escaped run", []byte{0x02, 0xC3, 0xA9, 'x'}, "éx"},
		{"space pair", []byte{'a', 'b' ^ 0x80}, "a b"},
		{"back reference", []byte{'a', 'b', 'c', 0x80, 0x18}, "abcabc"},
		{"overlapping reference", []byte{'a', 0x80, 0x0A}, "aaaaaa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := decompressPalmDOC(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestDecompressPalmDOC_Corrupt(t *testing.T) {
	t.Parallel()
	_, err := decompressPalmDOC([]byte{0x05, 'a'})
	require.Error(t, err)
	_, err = decompressPalmDOC([]byte{0x80, 0x18})
	require.Error(t, err)
	_, err = decompressPalmDOC([]byte{'a', 0x80})
	require.Error(t, err)
}

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()
	input := []byte(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40) + "naïve café\x01")
	out, err := decompressPalmDOC(testgen.CompressPalmDOC(input))
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestTrailingEntries(t *testing.T) {
	t.Parallel()
	b := &Book{extraDataFlags: 0b11}
	// Text, a two byte multibyte overlap, then a 3 byte trailing entry whose
	// size byte is 0x83.
	rec := []byte{'t', 'e', 'x', 't', 0xAA, 0x01, 0xBB, 0xCC, 0x83}
	assert.Equal(t, []byte("text"), b.trimTrailingEntries(rec))
}

func TestConverter(t *testing.T) {
	t.Parallel()
	body := "<html><body><h1>Chapter One</h1><p>" + strings.Repeat("Call me Ishmael. ", 400) + "</p><mbp:pagebreak/><p>Ünïcödé ending</p></body></html>"
	path := testgen.GenerateMOBI(t, t.TempDir(), "whale.mobi", testgen.MOBIOptions{
		Title:    "Moby-Dick",
		Author:   "Herman Melville",
		Text:     body,
		HasCover: true,
	})
	c := NewConverter()

	text, err := mediafile.ExtractTextString(context.Background(), c, path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Chapter One\nCall me Ishmael."))
	assert.True(t, strings.HasSuffix(text, "Ünïcödé ending"))
	assert.NotContains(t, text, "<p>")

	meta, err := c.ExtractMetadata(context.Background(), path, formats.MOBI)
	require.NoError(t, err)
	assert.Equal(t, "Moby-Dick", meta.Title)
	assert.Equal(t, "Herman Melville", meta.Author)
	assert.Equal(t, 3, meta.PageCount)
	assert.True(t, meta.PageCountEstimated)
	require.NotNil(t, meta.Cover)
	assert.Equal(t, "image/jpeg", meta.CoverMimeType)
}

func TestConverter_Uncompressed(t *testing.T) {
	t.Parallel()
	path := testgen.GenerateMOBI(t, t.TempDir(), "plain.mobi", testgen.MOBIOptions{
		Text:        "<p>Plain record</p>",
		Compression: 1,
	})

	meta, err := NewConverter().ExtractMetadata(context.Background(), path, formats.MOBI)
	require.NoError(t, err)
	assert.Equal(t, "Full Name Fallback", meta.Title)
	assert.Empty(t, meta.Author)
	assert.Nil(t, meta.Cover)

	text, err := ReadText(path)
	require.NoError(t, err)
	assert.Equal(t, "Plain record", text)
}

func TestConverter_HuffCompression(t *testing.T) {
	t.Parallel()
	path := testgen.GenerateMOBI(t, t.TempDir(), "huff.mobi", testgen.MOBIOptions{
		Text:        "<p>ignored</p>",
		Compression: 17480,
	})

	_, err := NewConverter().ExtractMetadata(context.Background(), path, formats.MOBI)
	var extractionErr *mediafile.ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.ErrorIs(t, err, ErrHuffCompression)
	assert.Equal(t, "Could not read MOBI document: HUFF/CDIC compressed books are not supported.", err.Error())
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("short"))
	require.Error(t, err)

	_, err = Parse(testgen.BuildPDB("x", "APPLDATA", [][]byte{make([]byte, 16)}))
	require.Error(t, err)

	rec0 := make([]byte, 16)
	binary.BigEndian.PutUint16(rec0[12:], 2)
	_, err = Parse(testgen.BuildPDB("x", "BOOKMOBI", [][]byte{rec0}))
	assert.ErrorIs(t, err, ErrEncrypted)
}

func TestParse_PalmDOC(t *testing.T) {
	t.Parallel()
	rec0 := make([]byte, 16)
	binary.BigEndian.PutUint16(rec0[0:], compressionNone)
	binary.BigEndian.PutUint32(rec0[4:], 5)
	binary.BigEndian.PutUint16(rec0[8:], 1)

	b, err := Parse(testgen.BuildPDB("Old Doc", "TEXtREAd", [][]byte{rec0, []byte("hello")}))
	require.NoError(t, err)
	assert.Equal(t, "Old Doc", b.Title)

	raw, err := b.RawText()
	require.NoError(t, err)
	assert.Equal(t, "hello", raw)
}

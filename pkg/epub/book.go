package epub

import (
	"archive/zip"
	"io"
	"path"

	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/pkg/errors"
)

// maxEntrySize bounds how much of a single archive entry is read into memory.
const maxEntrySize = 64 << 20

// Book is an open EPUB archive. Close releases the underlying file.
type Book struct {
	OPF      *OPF
	Chapters []mediafile.ParsedChapter

	zr    *zip.ReadCloser
	files map[string]*zip.File
}

func Open(filepath string) (*Book, error) {
	zr, err := zip.OpenReader(filepath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	b := &Book{zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		b.files[f.Name] = f
	}

	rootfile, err := findRootfile(b.files, zr.File)
	if err != nil {
		zr.Close()
		return nil, err
	}

	r, err := b.files[rootfile].Open()
	if err != nil {
		zr.Close()
		return nil, errors.WithStack(err)
	}
	b.OPF, err = ParseOPF(rootfile, io.LimitReader(r, maxEntrySize))
	r.Close()
	if err != nil {
		zr.Close()
		return nil, err
	}

	b.Chapters = b.readTableOfContents()

	return b, nil
}

// readTableOfContents prefers the EPUB 3 navigation document and falls back
// to the EPUB 2 NCX. A broken table of contents is not an error; the book
// just has no chapters from it.
func (b *Book) readTableOfContents() []mediafile.ParsedChapter {
	type source struct {
		filepath string
		parse    func(io.Reader) ([]mediafile.ParsedChapter, error)
	}
	for _, src := range []source{
		{b.OPF.NavFilepath, parseNavDocument},
		{b.OPF.NCXFilepath, parseNCX},
	} {
		if src.filepath == "" {
			continue
		}
		f, ok := b.files[src.filepath]
		if !ok {
			continue
		}
		r, err := f.Open()
		if err != nil {
			continue
		}
		chapters, err := src.parse(io.LimitReader(r, maxEntrySize))
		r.Close()
		if err != nil || len(chapters) == 0 {
			continue
		}
		resolveChapterHrefs(chapters, path.Dir(src.filepath))
		return chapters
	}
	return nil
}

// ReadFile returns the contents of an archive entry.
func (b *Book) ReadFile(name string) ([]byte, error) {
	f, ok := b.files[name]
	if !ok {
		return nil, errors.Errorf("%s not found in archive", name)
	}
	r, err := f.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxEntrySize))
	return data, errors.WithStack(err)
}

// Cover returns the raw cover image bytes and their declared mime type, or
// nil when the book declares no cover.
func (b *Book) Cover() ([]byte, string, error) {
	if b.OPF.CoverFilepath == "" {
		return nil, "", nil
	}
	data, err := b.ReadFile(b.OPF.CoverFilepath)
	if err != nil {
		return nil, "", err
	}
	return data, b.OPF.CoverMimeType, nil
}

func (b *Book) Close() error {
	if b.zr == nil {
		return nil
	}
	err := b.zr.Close()
	b.zr = nil
	return errors.WithStack(err)
}

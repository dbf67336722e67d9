package pdf

import (
	"os"
	"strings"

	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
)

// Info is the document information dictionary plus the page count.
type Info struct {
	Title     string
	Author    string
	PageCount int
}

// ReadInfo reads and validates the PDF structure with pdfcpu.
func ReadInfo(path string) (info *Info, err error) {
	defer recoverParse(&err)

	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Info{
		Title:     strings.TrimSpace(ctx.Title),
		Author:    strings.TrimSpace(ctx.Author),
		PageCount: ctx.PageCount,
	}, nil
}

// ReadBookmarks returns the document outline as a chapter tree. Some PDFs
// without an outline report that as an error, so callers treat any failure
// as "no chapters".
func ReadBookmarks(path string) (chapters []mediafile.ParsedChapter, err error) {
	defer recoverParse(&err)

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	bookmarks, err := api.Bookmarks(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return convertBookmarks(bookmarks), nil
}

func convertBookmarks(bookmarks []pdfcpu.Bookmark) []mediafile.ParsedChapter {
	if len(bookmarks) == 0 {
		return nil
	}
	chapters := make([]mediafile.ParsedChapter, 0, len(bookmarks))
	for _, bm := range bookmarks {
		chapter := mediafile.ParsedChapter{
			Title:    strings.TrimSpace(bm.Title),
			Children: convertBookmarks(bm.Kids),
		}
		if bm.PageFrom > 0 {
			page := bm.PageFrom - 1
			chapter.StartPage = &page
		}
		chapters = append(chapters, chapter)
	}
	return chapters
}

package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hunt2035/SoundSync-sub002/internal/testgen"
	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tenLines is 1000 bytes: ten lines of 99 characters plus a newline, so a
// page size of 100 gives exactly ten pages.
func tenLines() string {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		line := fmt.Sprintf("line %d ", i) + strings.Repeat("x", 99)
		sb.WriteString(line[:99])
		sb.WriteString("\n")
	}
	return sb.String()
}

func textBook(t *testing.T, name, content string) *models.Book {
	t.Helper()
	path := testgen.WriteFile(t, t.TempDir(), name, []byte(content))
	return &models.Book{
		ID:       1,
		Title:    strings.TrimSuffix(name, ".txt"),
		Filepath: path,
		Format:   formats.Detect(name).String(),
	}
}

func openEngine(t *testing.T, book *models.Book, deps Deps, position int) Engine {
	t.Helper()
	e := New(formats.Parse(book.Format), deps)
	require.NoError(t, e.Initialize(book, position))
	require.NoError(t, e.LoadContent(context.Background()))
	t.Cleanup(func() {
		_ = e.Close()
	})
	return e
}

func TestEngine_TenPageDocument(t *testing.T) {
	t.Parallel()

	book := textBook(t, "ten.txt", tenLines())
	e := openEngine(t, book, Deps{Config: Config{CharsPerPage: 100}}, 0)

	state := e.State()
	assert.Equal(t, Ready, state.Lifecycle)
	assert.False(t, state.IsLoading)
	assert.Equal(t, 10, state.TotalPages)

	require.NoError(t, e.GoToPage(3))
	page, err := e.NavigatePage(Previous)
	require.NoError(t, err)
	assert.Equal(t, 2, page)
	assert.Equal(t, 2, e.State().CurrentPage)
	assert.InDelta(t, 0.2, e.ReadingProgress(), 1e-9)
	assert.InDelta(t, 0.2, e.State().ReadingProgress, 1e-9)

	text, err := e.CurrentPageText()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "line 2 "))
}

func TestEngine_NavigationClamps(t *testing.T) {
	t.Parallel()

	book := textBook(t, "ten.txt", tenLines())
	e := openEngine(t, book, Deps{Config: Config{CharsPerPage: 100}}, 0)

	page, err := e.NavigatePage(Previous)
	require.NoError(t, err)
	assert.Equal(t, 0, page)

	require.NoError(t, e.GoToPage(9))
	page, err = e.NavigatePage(Next)
	require.NoError(t, err)
	assert.Equal(t, 9, page)

	err = e.GoToPage(10)
	require.Error(t, err)
	assert.Equal(t, "Page 10 is out of range (0..9).", err.Error())
	assert.Equal(t, 9, e.State().CurrentPage)

	err = e.GoToPage(-1)
	require.Error(t, err)
	assert.Equal(t, 9, e.State().CurrentPage)

	err = e.GoToChapter(0)
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, "out_of_range"))
}

func TestEngine_FirstAndLastPageFlags(t *testing.T) {
	t.Parallel()

	book := textBook(t, "ten.txt", tenLines())
	e := openEngine(t, book, Deps{Config: Config{CharsPerPage: 100}}, 0)

	content, err := e.CurrentPage()
	require.NoError(t, err)
	assert.True(t, content.IsFirstPage)
	assert.False(t, content.IsLastPage)
	assert.Nil(t, content.Markup)

	require.NoError(t, e.GoToPage(9))
	content, err = e.CurrentPage()
	require.NoError(t, err)
	assert.False(t, content.IsFirstPage)
	assert.True(t, content.IsLastPage)

	single := openEngine(t, textBook(t, "one.txt", "just one page"), Deps{}, 0)
	content, err = single.CurrentPage()
	require.NoError(t, err)
	assert.True(t, content.IsFirstPage)
	assert.True(t, content.IsLastPage)
	assert.Equal(t, "just one page", content.Text)
}

func TestEngine_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	book := textBook(t, "ten.txt", tenLines())
	e := New(formats.TXT, Deps{})

	state := e.State()
	assert.Equal(t, Uninitialized, state.Lifecycle)
	assert.True(t, state.IsLoading)
	assert.Equal(t, -1, state.CurrentChapter)

	_, err := e.NavigatePage(Next)
	assert.True(t, errcodes.HasCode(err, "not_ready"))
	assert.Error(t, e.LoadContent(ctx))

	require.NoError(t, e.Initialize(book, 0))
	assert.Equal(t, Loading, e.State().Lifecycle)
	assert.True(t, e.State().IsLoading)
	assert.Error(t, e.Initialize(book, 0), "an engine binds once")

	_, err = e.CurrentPage()
	assert.Equal(t, "The book is still loading.", err.Error())

	require.NoError(t, e.LoadContent(ctx))
	assert.Equal(t, Ready, e.State().Lifecycle)
	assert.True(t, errcodes.HasCode(e.LoadContent(ctx), "conflict"))

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, Closed, e.State().Lifecycle)

	_, err = e.CurrentPageText()
	assert.Equal(t, "The reader has been closed.", err.Error())
	assert.Nil(t, e.Chapters())
	assert.Nil(t, e.BookCover(ctx))
}

func TestEngine_MissingFile(t *testing.T) {
	t.Parallel()

	book := &models.Book{ID: 3, Title: "Gone", Filepath: "/nonexistent/gone.txt", Format: "txt"}
	e := New(formats.TXT, Deps{})
	require.NoError(t, e.Initialize(book, 0))

	err := e.LoadContent(context.Background())
	require.Error(t, err)
	assert.Equal(t, "The book file is missing.", err.Error())

	state := e.State()
	assert.Equal(t, Errored, state.Lifecycle)
	assert.False(t, state.IsLoading)
	require.NotNil(t, state.Error)
	assert.Equal(t, "The book file is missing.", *state.Error)

	_, err = e.NavigatePage(Next)
	assert.Equal(t, "The book file is missing.", err.Error())
	assert.NoError(t, e.Close())
}

func TestEngine_CorruptContent(t *testing.T) {
	t.Parallel()

	path := testgen.WriteFile(t, t.TempDir(), "broken.epub", []byte("not a zip"))
	book := &models.Book{ID: 4, Title: "Broken", Filepath: path, Format: "epub"}
	e := New(formats.EPUB, Deps{})
	require.NoError(t, e.Initialize(book, 0))

	err := e.LoadContent(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Could not read EPUB document: the archive could not be opened.", err.Error())
	assert.Equal(t, Errored, e.State().Lifecycle)
}

func TestEngine_UnsupportedEncoding(t *testing.T) {
	t.Parallel()

	book := textBook(t, "binary.txt", "abc\x00\x01\x02def")
	e := New(formats.TXT, Deps{})
	require.NoError(t, e.Initialize(book, 0))

	require.Error(t, e.LoadContent(context.Background()))
	assert.Equal(t, Errored, e.State().Lifecycle)
}

func TestEngine_ContentNotMatchingFormat(t *testing.T) {
	t.Parallel()

	book := textBook(t, "ten.txt", tenLines())
	book.Format = "docx"
	e := New(formats.DOCX, Deps{})
	require.NoError(t, e.Initialize(book, 0))

	err := e.LoadContent(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Could not read DOCX document: the file is not a Word document archive.", err.Error())
	assert.Equal(t, Errored, e.State().Lifecycle)
}

// blockingVariant is a one-page document whose load waits for release or
// ctx.
type blockingVariant struct {
	textVariant
	started chan struct{}
	release chan struct{}
	closed  int
}

func (v *blockingVariant) load(ctx context.Context, _ *models.Book, _ Config) error {
	close(v.started)
	select {
	case <-v.release:
		v.pages = []textPage{{0, 0}}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *blockingVariant) close() error {
	v.closed++
	return nil
}

func newBlockingVariant() *blockingVariant {
	return &blockingVariant{started: make(chan struct{}), release: make(chan struct{})}
}

func TestEngine_CancelledLoad(t *testing.T) {
	t.Parallel()

	v := newBlockingVariant()
	e := newEngine(formats.TXT, v, Deps{})
	require.NoError(t, e.Initialize(&models.Book{ID: 2}, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.LoadContent(ctx)
	}()

	<-v.started
	assert.True(t, e.State().IsLoading)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.Equal(t, errcodes.Cancelled().Error(), err.Error())
	assert.Equal(t, Errored, e.State().Lifecycle)
	assert.Equal(t, 1, v.closed)
}

func TestEngine_CloseWhileLoading(t *testing.T) {
	t.Parallel()

	v := newBlockingVariant()
	e := newEngine(formats.TXT, v, Deps{})
	require.NoError(t, e.Initialize(&models.Book{ID: 2}, 0))

	done := make(chan error, 1)
	go func() {
		done <- e.LoadContent(context.Background())
	}()

	<-v.started
	require.NoError(t, e.Close())
	assert.Equal(t, 0, v.closed, "the load still owns the variant")
	close(v.release)

	err := <-done
	require.Error(t, err)
	assert.Equal(t, "The reader has been closed.", err.Error())
	assert.Equal(t, Closed, e.State().Lifecycle)
	assert.Equal(t, 1, v.closed)
}

func TestEngine_InitialPosition(t *testing.T) {
	t.Parallel()

	book := textBook(t, "ten.txt", tenLines())
	e := openEngine(t, book, Deps{Config: Config{CharsPerPage: 100}}, 550)
	assert.Equal(t, 5, e.State().CurrentPage)
	assert.Equal(t, 500, e.Position())

	beyond := openEngine(t, book, Deps{Config: Config{CharsPerPage: 100}}, 1<<20)
	assert.Equal(t, 9, beyond.State().CurrentPage)
}

func TestEngine_TextChapters(t *testing.T) {
	t.Parallel()

	content := "Title page\n\nChapter 1: Departure\nThey left at dawn.\n\nChapter 2: Arrival\nThey arrived at dusk.\n"
	book := textBook(t, "story.txt", content)
	e := openEngine(t, book, Deps{}, 0)

	chapters := e.Chapters()
	require.Len(t, chapters, 2)
	assert.Equal(t, "Chapter 1: Departure", chapters[0].Title)
	assert.Equal(t, 0, chapters[0].Index)
	assert.Equal(t, strings.Index(content, "Chapter 1"), chapters[0].StartPosition)
	assert.Equal(t, "Chapter 2: Arrival", chapters[1].Title)
	assert.Equal(t, 1, chapters[1].Index)
	assert.Greater(t, chapters[1].PageIndex, chapters[0].PageIndex)

	// The title page comes before every chapter.
	assert.Equal(t, 3, e.State().TotalPages)
	assert.Equal(t, -1, e.State().CurrentChapter)

	require.NoError(t, e.GoToChapter(1))
	state := e.State()
	assert.Equal(t, 1, state.CurrentChapter)
	assert.Equal(t, 2, state.TotalChapters)
	assert.Equal(t, chapters[1].PageIndex, state.CurrentPage)

	text, err := e.CurrentChapterText()
	require.NoError(t, err)
	assert.Equal(t, "Chapter 2: Arrival\nThey arrived at dusk.", text)
	assert.Equal(t, text, e.Chapters()[1].Content)
	assert.Empty(t, chapters[1].Content, "earlier copies are not written to")

	again := e.Chapters()
	require.Len(t, again, 2)
	assert.NotSame(t, chapters[0], again[0])
	assert.Equal(t, chapters[0].Title, again[0].Title)
	assert.Equal(t, chapters[0].PageIndex, again[0].PageIndex)
}

func TestEngine_ChaptersSafeWhileReadingChapterText(t *testing.T) {
	t.Parallel()

	content := "Chapter 1: Departure\nThey left at dawn.\n\nChapter 2: Arrival\nThey arrived at dusk.\n"
	book := textBook(t, "story.txt", content)
	e := openEngine(t, book, Deps{}, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			data, err := json.Marshal(e.Chapters())
			assert.NoError(t, err)
			assert.NotContains(t, string(data), "They left at dawn")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := e.CurrentChapterText()
			assert.NoError(t, err)
			assert.NoError(t, e.GoToChapter(i%2))
		}
	}()
	wg.Wait()

	require.NoError(t, e.GoToChapter(0))
	text, err := e.CurrentChapterText()
	require.NoError(t, err)
	assert.Equal(t, text, e.Chapters()[0].Content)
}

func TestEngine_ChapterTextWithoutChapters(t *testing.T) {
	t.Parallel()

	book := textBook(t, "ten.txt", tenLines())
	e := openEngine(t, book, Deps{Config: Config{CharsPerPage: 100}}, 0)
	require.NoError(t, e.GoToPage(4))

	page, err := e.CurrentPageText()
	require.NoError(t, err)
	chapter, err := e.CurrentChapterText()
	require.NoError(t, err)
	assert.Equal(t, page, chapter)
}

func TestEngine_MarkdownChapterTree(t *testing.T) {
	t.Parallel()

	content := "---\ntitle: Handbook\n---\n# Guide\n\nIntro text.\n\n## Install\n\nRun the installer.\n\n## Usage\n\nOpen the app.\n\n# Appendix\n\nNotes.\n"
	path := testgen.WriteFile(t, t.TempDir(), "guide.md", []byte(content))
	book := &models.Book{ID: 7, Title: "Handbook", Filepath: path, Format: "markdown"}
	e := openEngine(t, book, Deps{}, 0)

	chapters := e.Chapters()
	require.Len(t, chapters, 2)
	assert.Equal(t, "Guide", chapters[0].Title)
	require.Len(t, chapters[0].SubChapters, 2)
	assert.Equal(t, "Install", chapters[0].SubChapters[0].Title)
	assert.Equal(t, 1, chapters[0].SubChapters[0].Index)
	assert.Equal(t, "Usage", chapters[0].SubChapters[1].Title)
	assert.Equal(t, 2, chapters[0].SubChapters[1].Index)
	assert.Equal(t, "Appendix", chapters[1].Title)
	assert.Equal(t, 3, chapters[1].Index)
	assert.Equal(t, 4, e.State().TotalChapters)

	require.NoError(t, e.GoToChapter(2))
	text, err := e.CurrentPageText()
	require.NoError(t, err)
	assert.Equal(t, "Usage\n\nOpen the app.", text)
	assert.NotContains(t, text, "#")
}

func TestEngine_UpdateConfigRepaginates(t *testing.T) {
	t.Parallel()

	book := textBook(t, "ten.txt", tenLines())
	e := openEngine(t, book, Deps{Config: Config{CharsPerPage: 100}}, 0)
	require.NoError(t, e.GoToPage(5))

	require.NoError(t, e.UpdateConfig(Config{CharsPerPage: 200}))
	state := e.State()
	assert.Equal(t, 5, state.TotalPages)
	assert.Equal(t, 2, state.CurrentPage, "the page holding the old position")

	// Unchanged page size keeps everything as is.
	require.NoError(t, e.UpdateConfig(Config{CharsPerPage: 200, DarkMode: true}))
	assert.Equal(t, 2, e.State().CurrentPage)
}

func TestEngine_UpdateConfigIgnoredByPagedFormats(t *testing.T) {
	t.Parallel()

	path := testgen.GeneratePDF(t, t.TempDir(), "doc.pdf", testgen.PDFOptions{Pages: []string{"one", "two", "three"}})
	e := openEngine(t, &models.Book{ID: 9, Filepath: path, Format: "pdf"}, Deps{}, 1)

	require.NoError(t, e.UpdateConfig(Config{FontSize: 40}))
	state := e.State()
	assert.Equal(t, 3, state.TotalPages)
	assert.Equal(t, 1, state.CurrentPage)
}

type fakeProgressStore struct {
	err                  error
	bookID, page, offset int
	calls                int
}

func (f *fakeProgressStore) UpdateReadingProgress(_ context.Context, bookID, page, position int) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.bookID, f.page, f.offset = bookID, page, position
	return nil
}

func TestEngine_SaveReadingProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := &fakeProgressStore{}
	book := textBook(t, "ten.txt", tenLines())
	e := openEngine(t, book, Deps{Progress: store, Config: Config{CharsPerPage: 100}}, 0)

	require.NoError(t, e.GoToPage(7))
	require.NoError(t, e.SaveReadingProgress(ctx))
	assert.Equal(t, 1, store.bookID)
	assert.Equal(t, 7, store.page)
	assert.Equal(t, 700, store.offset)
	assert.Equal(t, 7, book.LastReadPage)

	store.err = errors.New("database is locked")
	require.NoError(t, e.GoToPage(8))
	err := e.SaveReadingProgress(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Equal(t, 8, e.State().CurrentPage, "in-memory state is untouched")
	assert.Equal(t, 7, book.LastReadPage)

	_, err = e.NavigatePage(Next)
	assert.NoError(t, err)
}

func TestNew_SelectsVariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format formats.Format
		want   interface{}
	}{
		{formats.EPUB, &epubVariant{}},
		{formats.PDF, &pdfVariant{}},
		{formats.TXT, &textVariant{}},
		{formats.Markdown, &textVariant{}},
		{formats.DOCX, &textVariant{}},
		{formats.DOC, &textVariant{}},
		{formats.MOBI, &textVariant{}},
		{formats.Unknown, &textVariant{}},
	}

	for _, tt := range tests {
		e, ok := New(tt.format, Deps{}).(*engine)
		require.True(t, ok)
		assert.IsType(t, tt.want, e.v, tt.format.String())
	}
}

func TestConfig_PageSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2000, DefaultConfig().PageSize())
	assert.Equal(t, 500, Config{FontSize: 32, Margin: 16, LineSpacing: 1.5}.PageSize())
	assert.Equal(t, 1000, Config{FontSize: 16, Margin: 16, LineSpacing: 3}.PageSize())
	assert.Equal(t, 1500, Config{FontSize: 16, Margin: 66, LineSpacing: 1.5}.PageSize())
	assert.Equal(t, 1234, Config{CharsPerPage: 1234}.PageSize())
	assert.Equal(t, minCharsPerPage, Config{FontSize: 72, Margin: 200, LineSpacing: 3}.PageSize())
}

package reader

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearcher_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := &searcher{query: "whale", radius: 5}
	s.scan("The WHALE and the Whale.", 3, 1)

	require.Len(t, s.results, 2)
	for _, r := range s.results {
		assert.Equal(t, 3, r.PageIndex)
		assert.Equal(t, 1, r.ChapterIndex)
		assert.True(t, strings.EqualFold("whale", r.Snippet[r.HighlightStart:r.HighlightEnd]))
	}
	assert.Equal(t, "The WHALE and ", s.results[0].Snippet)
	assert.Equal(t, " the Whale.", s.results[1].Snippet)
}

func TestSearcher_MultibyteFold(t *testing.T) {
	t.Parallel()

	s := &searcher{query: "école", radius: 3}
	s.scan("À l'ÉCOLE ce matin", 0, -1)

	require.Len(t, s.results, 1)
	r := s.results[0]
	assert.Equal(t, "ÉCOLE", r.Snippet[r.HighlightStart:r.HighlightEnd])
	assert.Equal(t, " l'ÉCOLE ce", r.Snippet)
}

func TestSearcher_FlattensWhitespace(t *testing.T) {
	t.Parallel()

	s := &searcher{query: "b", radius: 2}
	s.scan("a\n\tb\r\nc", 0, 0)

	require.Len(t, s.results, 1)
	assert.Equal(t, "  b  ", s.results[0].Snippet)
	assert.Equal(t, 2, s.results[0].HighlightStart)
	assert.Equal(t, 3, s.results[0].HighlightEnd)
}

func TestSearcher_Cap(t *testing.T) {
	t.Parallel()

	s := &searcher{query: "a", radius: 1, max: 3}
	capped := s.scan("aaaaaa", 0, 0)

	assert.True(t, capped)
	assert.Len(t, s.results, 3)
}

func TestSearcher_NoMatches(t *testing.T) {
	t.Parallel()

	s := &searcher{query: "zebra", radius: 10}
	assert.False(t, s.scan("nothing to see", 0, 0))
	assert.NotNil(t, s.results)
	assert.Empty(t, s.results)
}

func TestEngine_SearchText(t *testing.T) {
	t.Parallel()

	content := "Chapter 1\nThe lighthouse stood alone.\n\nChapter 2\nA second lighthouse, far away.\n"
	book := textBook(t, "lights.txt", content)
	e := openEngine(t, book, Deps{Config: Config{CharsPerPage: 200}, SnippetRadius: 8}, 0)

	results, err := e.SearchText(context.Background(), "LIGHTHOUSE")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 0, results[0].PageIndex)
	assert.Equal(t, 0, results[0].ChapterIndex)
	assert.Equal(t, 1, results[1].PageIndex)
	assert.Equal(t, 1, results[1].ChapterIndex)
	for _, r := range results {
		assert.Equal(t, "lighthouse", r.Snippet[r.HighlightStart:r.HighlightEnd])
	}

	empty, err := e.SearchText(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestEngine_SearchTextCap(t *testing.T) {
	t.Parallel()

	book := textBook(t, "ten.txt", tenLines())
	e := openEngine(t, book, Deps{Config: Config{CharsPerPage: 100}, MaxSearchResults: 4}, 0)

	results, err := e.SearchText(context.Background(), "line")
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Equal(t, 3, results[3].PageIndex)
}

func TestEngine_SearchTextCancelled(t *testing.T) {
	t.Parallel()

	book := textBook(t, "ten.txt", tenLines())
	e := openEngine(t, book, Deps{Config: Config{CharsPerPage: 100}}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.SearchText(ctx, "line")
	assert.ErrorIs(t, err, context.Canceled)
}

package search

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hunt2035/SoundSync-sub002/pkg/binder"
	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlers_SearchBooks(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	seedBooks(t, db)

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle
	RegisterRoutesWithGroup(e.Group("/books"), db)

	req := httptest.NewRequest(http.MethodGet, "/books/search?q=moby", nil)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp SearchBooksResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Books, 1)
	assert.Equal(t, "Moby-Dick", resp.Books[0].Title)

	for _, target := range []string{"/books/search", "/books/search?q=moby&format=cbz", "/books/search?q=moby&limit=500"} {
		req = httptest.NewRequest(http.MethodGet, target, nil)
		rr = httptest.NewRecorder()
		e.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, target)
	}
}

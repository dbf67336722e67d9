package books

import (
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/hunt2035/SoundSync-sub002/pkg/binder"
	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	db := setupTestDB(t)

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	RegisterRoutesWithGroup(e.Group("/books"), db)

	return e, NewService(db)
}

func TestHandlers_ListAndRetrieve(t *testing.T) {
	t.Parallel()
	e, svc := newTestServer(t)

	book := createBook(t, svc, "Dune", "/data/books/dune.txt", "abc")
	createBook(t, svc, "Emma", "/data/books/emma.txt", "def")

	req := httptest.NewRequest(http.MethodGet, "/books?limit=1", nil)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var listResp struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listResp))
	assert.Equal(t, 2, listResp.Total)
	require.Len(t, listResp.Books, 1)
	assert.Equal(t, "Dune", listResp.Books[0].Title)

	req = httptest.NewRequest(http.MethodGet, "/books/"+strconv.Itoa(book.ID), nil)
	rr = httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"content_hash":"abc"`)

	req = httptest.NewRequest(http.MethodGet, "/books/9999", nil)
	rr = httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlers_ListRejectsUnknownFormat(t *testing.T) {
	t.Parallel()
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/books?format=cbz", nil)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandlers_Update(t *testing.T) {
	t.Parallel()
	e, svc := newTestServer(t)

	book := createBook(t, svc, "dune", "/data/books/dune.txt", "abc")

	body := `{"title":"  Dune  ","author":"Frank Herbert"}`
	req := httptest.NewRequest(http.MethodPost, "/books/"+strconv.Itoa(book.ID), strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	updated, err := svc.RetrieveBook(context.Background(), RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, "Dune", updated.Title)
	assert.Equal(t, "Frank Herbert", updated.Author)
}

func TestHandlers_Cover(t *testing.T) {
	t.Parallel()
	e, svc := newTestServer(t)

	noCover := createBook(t, svc, "A", "/a.txt", "1")

	req := httptest.NewRequest(http.MethodGet, "/books/"+strconv.Itoa(noCover.ID)+"/cover", nil)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	coverPath := filepath.Join(t.TempDir(), "cover.jpg")
	f, err := os.Create(coverPath)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 6)), nil))
	require.NoError(t, f.Close())

	withCover := &models.Book{Title: "B", Filepath: "/b.txt", ContentHash: "2", Format: "txt", CoverPath: &coverPath}
	require.NoError(t, svc.CreateBook(context.Background(), withCover))

	req = httptest.NewRequest(http.MethodGet, "/books/"+strconv.Itoa(withCover.ID)+"/cover", nil)
	rr = httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/jpeg", rr.Header().Get(echo.HeaderContentType))
}

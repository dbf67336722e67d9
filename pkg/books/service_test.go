package books

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/migrations"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createBook(t *testing.T, svc *Service, title, path, hash string) *models.Book {
	t.Helper()
	book := &models.Book{
		Title:       title,
		Filepath:    path,
		ContentHash: hash,
		Format:      "txt",
	}
	require.NoError(t, svc.CreateBook(context.Background(), book))
	return book
}

func TestCreateBook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))

	book := createBook(t, svc, "Dune", "/data/books/dune.txt", "abc")
	assert.NotZero(t, book.ID)
	assert.False(t, book.CreatedAt.IsZero())

	retrieved, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, "Dune", retrieved.Title)
	assert.Equal(t, "abc", retrieved.ContentHash)
	assert.Nil(t, retrieved.CoverPath)
}

func TestCreateBook_DuplicateHash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))

	createBook(t, svc, "Dune", "/data/books/dune.txt", "abc")

	err := svc.CreateBook(ctx, &models.Book{
		Title:       "Dune (copy)",
		Filepath:    "/data/books/dune-copy.txt",
		ContentHash: "abc",
		Format:      "txt",
	})
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, "duplicate"))
	assert.Contains(t, err.Error(), `"Dune"`)

	books, err := svc.ListBooks(ctx, ListBooksOptions{})
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestCreateBook_EmptyHashesMayRepeat(t *testing.T) {
	t.Parallel()
	svc := NewService(setupTestDB(t))

	createBook(t, svc, "A", "/data/books/a.txt", "")
	createBook(t, svc, "B", "/data/books/b.txt", "")
}

func TestFindDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))

	existing := createBook(t, svc, "Dune", "/data/books/dune.txt", "abc")

	tests := []struct {
		name     string
		path     string
		hash     string
		expected bool
	}{
		{"same path", "/data/books/dune.txt", "zzz", true},
		{"same hash", "/data/books/other.txt", "abc", true},
		{"neither", "/data/books/other.txt", "zzz", false},
		{"empty hash does not match", "/data/books/other.txt", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := svc.FindDuplicate(ctx, tt.path, tt.hash)
			require.NoError(t, err)
			if tt.expected {
				require.NotNil(t, found)
				assert.Equal(t, existing.ID, found.ID)
			} else {
				assert.Nil(t, found)
			}
		})
	}
}

func TestRetrieveBook_NotFound(t *testing.T) {
	t.Parallel()
	svc := NewService(setupTestDB(t))

	id := 42
	_, err := svc.RetrieveBook(context.Background(), RetrieveBookOptions{ID: &id})
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, "not_found"))
}

func TestListBooksWithTotal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))

	createBook(t, svc, "A", "/a.txt", "1")
	createBook(t, svc, "B", "/b.txt", "2")
	createBook(t, svc, "C", "/c.txt", "3")

	limit := 2
	books, total, err := svc.ListBooksWithTotal(ctx, ListBooksOptions{Limit: &limit})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, books, 2)
	assert.Equal(t, "A", books[0].Title)
	assert.Equal(t, "B", books[1].Title)

	format := "epub"
	books, err = svc.ListBooks(ctx, ListBooksOptions{Format: &format})
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestUpdateReadingProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))

	book := createBook(t, svc, "A", "/a.txt", "1")

	err := svc.UpdateReadingProgress(ctx, book.ID, 7, 4200)
	require.NoError(t, err)

	retrieved, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, 7, retrieved.LastReadPage)
	assert.Equal(t, 4200, retrieved.LastReadPosition)
	assert.Equal(t, "A", retrieved.Title)

	err = svc.UpdateReadingProgress(ctx, book.ID+100, 1, 1)
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, "not_found"))
}

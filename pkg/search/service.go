package search

import (
	"context"

	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type SearchBooksOptions struct {
	Query  string
	Format *string
	Limit  int
	Offset int
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// SearchBooks finds catalog records whose title or author contains words
// starting with every word of the query, best matches first. Accents and
// case are ignored.
func (svc *Service) SearchBooks(ctx context.Context, opts SearchBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}

	ftsQuery := BuildPrefixQuery(opts.Query)
	if ftsQuery == "" {
		return books, 0, nil
	}

	q := svc.db.
		NewSelect().
		Model(&books).
		Join("JOIN books_fts ON books_fts.book_id = b.id").
		Where("books_fts MATCH ?", ftsQuery).
		OrderExpr("bm25(books_fts)").
		Order("b.id ASC")

	if opts.Format != nil {
		q = q.Where("b.format = ?", *opts.Format)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return books, total, nil
}

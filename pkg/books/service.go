package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/hunt2035/SoundSync-sub002/pkg/database"
	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID          *int
	Filepath    *string
	ContentHash *string
}

type ListBooksOptions struct {
	Limit  *int
	Offset *int
	Format *string

	includeTotal bool
}

type UpdateBookOptions struct {
	Columns []string
}

type Service struct {
	db         *bun.DB
	maxRetries int
}

type Option func(*Service)

// WithMaxRetries sets how often a write is retried while the database is
// busy.
func WithMaxRetries(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxRetries = n
		}
	}
}

func NewService(db *bun.DB, opts ...Option) *Service {
	svc := &Service{db: db, maxRetries: 3}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateBook inserts a new catalog record. A record whose file path or
// non-empty content hash is already taken fails as a duplicate naming the
// existing title.
func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt

	err := database.WithRetry(ctx, svc.maxRetries, func() error {
		_, err := svc.db.
			NewInsert().
			Model(book).
			Returning("*").
			Exec(ctx)
		return err
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			existing, ferr := svc.FindDuplicate(ctx, book.Filepath, book.ContentHash)
			if ferr == nil && existing != nil {
				return errcodes.Duplicate(existing.Title)
			}
			return errcodes.Duplicate(book.Title)
		}
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book)

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}
	if opts.Filepath != nil {
		q = q.Where("b.filepath = ?", *opts.Filepath)
	}
	if opts.ContentHash != nil {
		q = q.Where("b.content_hash = ?", *opts.ContentHash)
	}

	err := q.Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

// FindDuplicate returns the record that already occupies filepath or, when
// hash is non-empty, carries the same content hash. It returns nil when there
// is no such record.
func (svc *Service) FindDuplicate(ctx context.Context, filepath, hash string) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("b.filepath = ?", filepath)
			if hash != "" {
				q = q.WhereOr("b.content_hash = ?", hash)
			}
			return q
		}).
		Order("b.id ASC").
		Limit(1)

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	b, _, err := svc.listBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	opts.includeTotal = true
	return svc.listBooksWithTotal(ctx, opts)
}

func (svc *Service) listBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&books).
		Order("b.created_at ASC", "b.id ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.Format != nil {
		q = q.Where("b.format = ?", *opts.Format)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return books, total, nil
}

func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	book.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	err := database.WithRetry(ctx, svc.maxRetries, func() error {
		res, err := svc.db.
			NewUpdate().
			Model(book).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errcodes.NotFound("Book")
		}
		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// UpdateReadingProgress persists the reading position of a book.
func (svc *Service) UpdateReadingProgress(ctx context.Context, bookID, page, position int) error {
	book := &models.Book{ID: bookID, LastReadPage: page, LastReadPosition: position}
	return svc.UpdateBook(ctx, book, UpdateBookOptions{
		Columns: []string{"last_read_page", "last_read_position"},
	})
}

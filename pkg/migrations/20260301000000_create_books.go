package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				author TEXT NOT NULL DEFAULT '',
				filepath TEXT NOT NULL,
				original_filepath TEXT,
				cover_path TEXT,
				content_hash TEXT NOT NULL DEFAULT '',
				format TEXT NOT NULL,
				last_read_page INTEGER NOT NULL DEFAULT 0,
				last_read_position INTEGER NOT NULL DEFAULT 0,
				total_pages INTEGER NOT NULL DEFAULT 0
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE UNIQUE INDEX ux_books_filepath ON books(filepath)`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Empty hashes are allowed to repeat.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_books_content_hash ON books(content_hash) WHERE content_hash != ''`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX ix_books_created_at ON books(created_at)`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DROP TABLE IF EXISTS books`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}

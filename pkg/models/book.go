package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Book is the catalog record for one imported document.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID               int       `bun:",pk,nullzero" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Title            string    `bun:",nullzero" json:"title"`
	Author           string    `json:"author"`
	Filepath         string    `bun:",nullzero" json:"filepath"`
	OriginalFilepath *string   `json:"original_filepath"`
	CoverPath        *string   `json:"cover_path"`
	ContentHash      string    `json:"content_hash"`
	Format           string    `bun:",nullzero" json:"format"`
	LastReadPage     int       `json:"last_read_page"`
	LastReadPosition int       `json:"last_read_position"`
	TotalPages       int       `json:"total_pages"`
}

// HasCover reports whether a cover file was saved for the book.
func (b *Book) HasCover() bool {
	return b.CoverPath != nil && *b.CoverPath != ""
}

package search

import "github.com/hunt2035/SoundSync-sub002/pkg/models"

type SearchBooksQuery struct {
	Query  string  `query:"q" json:"q" mod:"trim" validate:"required,max=100"`
	Format *string `query:"format" json:"format,omitempty" validate:"omitempty,bookformat"`
	Limit  int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

type SearchBooksResponse struct {
	Books []*models.Book `json:"books"`
	Total int            `json:"total"`
}

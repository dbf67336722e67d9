package books

type ListBooksQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Format *string `query:"format" json:"format,omitempty" validate:"omitempty,bookformat"`
}

type UpdateBookPayload struct {
	Title  *string `json:"title,omitempty" mod:"trim" validate:"omitempty,min=1,max=300"`
	Author *string `json:"author,omitempty" mod:"trim" validate:"omitempty,max=200"`
}

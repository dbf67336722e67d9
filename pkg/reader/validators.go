package reader

type NavigatePayload struct {
	Direction string `json:"direction" mod:"trim,lcase" validate:"required,oneof=next previous"`
}

// GoToPayload moves to a page or to the start of a chapter. Exactly one of
// the two must be set.
type GoToPayload struct {
	Page    *int `json:"page,omitempty" validate:"omitempty,min=0"`
	Chapter *int `json:"chapter,omitempty" validate:"omitempty,min=0"`
}

type SearchQuery struct {
	Query string `query:"q" json:"q" mod:"trim"`
}

type SpeechQuery struct {
	Scope string `query:"scope" json:"scope" default:"page" mod:"trim,lcase" validate:"oneof=page chapter"`
}

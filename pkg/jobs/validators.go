package jobs

type CreateJobPayload struct {
	Type string                 `json:"type" default:"import" validate:"oneof=import"`
	Data CreateImportJobPayload `json:"data" validate:"required"`
}

// CreateImportJobPayload names the content to import. Source is a path,
// file:// URI or http(s) URL.
type CreateImportJobPayload struct {
	Source   string `json:"source" mod:"trim" validate:"required,source"`
	FileName string `json:"file_name,omitempty" mod:"trim"`
}

type ListJobsQuery struct {
	Limit  int      `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=100"`
	Offset int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status []string `query:"status" json:"status,omitempty" validate:"dive,oneof=pending in_progress completed failed"`
	Type   *string  `query:"type" json:"type,omitempty" validate:"omitempty,oneof=import"`
}

package filesystem

type BrowseQuery struct {
	Path       string `query:"path" json:"path,omitempty"`
	ShowHidden bool   `query:"show_hidden" json:"show_hidden,omitempty"`
	// AllFiles lists files whose extension is not an importable format too.
	AllFiles bool   `query:"all_files" json:"all_files,omitempty"`
	Limit    int    `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset   int    `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search   string `query:"search" json:"search,omitempty" mod:"trim"`
}

type Entry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	// Format is empty for directories and for files that cannot be imported.
	Format string `json:"format,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

type BrowseResponse struct {
	CurrentPath string  `json:"current_path"`
	ParentPath  string  `json:"parent_path,omitempty"`
	Entries     []Entry `json:"entries"`
	Total       int     `json:"total"`
	HasMore     bool    `json:"has_more"`
}

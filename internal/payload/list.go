package payload

// Sort order constants shared by list endpoints.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

type (
	// FileListQuery binds the list controls from the query string. Bounds
	// beyond what gin can express in tags (limit cap, enums) are checked in
	// the handler.
	FileListQuery struct {
		Page      int    `form:"page,default=1"`
		Limit     int    `form:"limit,default=20"`
		Search    string `form:"search"`
		SortBy    string `form:"sortBy,default=uploadedAt"`
		SortOrder string `form:"sortOrder,default=desc"`
	}

	Pagination struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"totalPages"`
	}
)

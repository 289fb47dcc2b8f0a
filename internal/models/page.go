package models

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is the pagination envelope returned by list endpoints.
type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

type PageMeta struct {
	CurrentPage int    `json:"current_page"`
	LastPage    int    `json:"last_page"`
	PerPage     int    `json:"per_page"`
	From        int    `json:"from"`
	To          int    `json:"to"`
	Total       int    `json:"total"`
	Path        string `json:"path"`
}

// NormalizePaging applies defaults to 1-based page numbers and caps limit.
func NormalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Offset is the number of rows skipped before page.
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// NewPageMeta computes pagination metadata. To is the nominal end of the page
// window, not clipped to total.
func NewPageMeta(page, limit, total int, path string) PageMeta {
	lastPage := 0
	if limit > 0 {
		lastPage = (total + limit - 1) / limit
	}
	from := Offset(page, limit) + 1
	return PageMeta{
		CurrentPage: page,
		LastPage:    lastPage,
		PerPage:     limit,
		From:        from,
		To:          from + limit - 1,
		Total:       total,
		Path:        path,
	}
}

package services

// Page is a 1-based page request. Zero values fall back to page 1 of 10.
type Page struct {
	Page  int
	Limit int
}

const maxPageSize = 100

func (p Page) normalize() (page, limit, offset int) {
	page, limit = p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}

// Pagination echoes the resolved page back to the caller.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

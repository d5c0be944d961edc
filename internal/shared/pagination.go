package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes pagination metadata. Non-positive page or limit fall
// back to 1 and defaultLimit.
func NewPagination(page, limit, total, defaultLimit int) Pagination {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if page <= 0 {
		page = 1
	}
	if total < 0 {
		total = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// Offset is the zero-based index of the first item on the page. Pages past
// the last one report Total so the product never overflows.
func (p Pagination) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Page-1 >= p.TotalPages {
		return p.Total
	}
	return (p.Page - 1) * p.Limit
}

// Window returns the [start,end) slice bounds for the page within total items.
// Pages past the end yield an empty window.
func (p Pagination) Window() (int, int) {
	start := p.Offset()
	if start >= p.Total {
		return p.Total, p.Total
	}
	end := start + p.Limit
	if end > p.Total {
		end = p.Total
	}
	return start, end
}

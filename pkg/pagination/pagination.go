// Package pagination provides offset-based pagination utilities.
package pagination

// Limits applied to all list endpoints.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page holds pagination parameters.
type Page struct {
	Limit  int
	Offset int
}

// New creates a Page with defaults and bounds applied.
func New(limit, offset int) Page {
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// Result represents a paginated result set.
// HasMore is computed from the exact total count rather than inferred
// from the returned page size, so the last full page does not report a
// phantom next page.
type Result[T any] struct {
	Data    []T   `json:"data"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// NewResult creates a new paginated Result.
func NewResult[T any](data []T, total int64, p Page) Result[T] {
	if data == nil {
		data = make([]T, 0)
	}
	return Result[T]{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: int64(p.Offset+len(data)) < total,
	}
}

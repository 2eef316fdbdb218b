package domain

// Pagination defaults applied when the caller supplies none.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageOptions control sorting and slicing for query operations. SortBy uses
// the form "field:asc" or "field:desc"; repositories resolve the field
// against their own sortable columns.
type PageOptions struct {
	SortBy string
	Limit  int
	Page   int
}

// Normalize clamps limit and page to usable values.
func (o PageOptions) Normalize() PageOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultPageLimit
	}
	if o.Limit > MaxPageLimit {
		o.Limit = MaxPageLimit
	}
	if o.Page <= 0 {
		o.Page = 1
	}
	return o
}

// Offset returns the row offset for the normalized page.
func (o PageOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// Page is the envelope returned by query operations.
type Page[T any] struct {
	Results      []T
	Page         int
	Limit        int
	TotalPages   int
	TotalResults int
}

// NewPage assembles a Page from one slice of results and the total row count.
func NewPage[T any](results []T, opts PageOptions, total int) Page[T] {
	totalPages := total / opts.Limit
	if total%opts.Limit != 0 {
		totalPages++
	}
	return Page[T]{
		Results:      results,
		Page:         opts.Page,
		Limit:        opts.Limit,
		TotalPages:   totalPages,
		TotalResults: total,
	}
}

// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSort marks sortBy expressions that cannot be resolved; callers
// treat it as invalid input rather than a storage failure.
var ErrInvalidSort = errors.New("invalid sort expression")

// ParseSort resolves a sortBy expression of the form "field" or
// "field:asc|desc" against a whitelist of sortable columns and returns an
// ORDER BY fragment. An empty expression yields the fallback fragment.
func ParseSort(sortBy string, columns map[string]string, fallback string) (string, error) {
	if strings.TrimSpace(sortBy) == "" {
		return fallback, nil
	}

	field := sortBy
	direction := "ASC"
	if idx := strings.IndexByte(sortBy, ':'); idx >= 0 {
		field = sortBy[:idx]
		switch strings.ToLower(sortBy[idx+1:]) {
		case "asc":
			direction = "ASC"
		case "desc":
			direction = "DESC"
		default:
			return "", fmt.Errorf("%w: bad direction in %q", ErrInvalidSort, sortBy)
		}
	}

	column, ok := columns[field]
	if !ok {
		return "", fmt.Errorf("%w: unsortable field %q", ErrInvalidSort, field)
	}
	return column + " " + direction, nil
}

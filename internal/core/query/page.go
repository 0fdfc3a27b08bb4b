package query

import (
	"math"

	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
)

// TotalPages is ceil(total/perPage), and 0 when there is nothing to page.
func TotalPages(total int64, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// Offset is the number of items preceding page. It saturates at
// math.MaxInt64, so a page far past the end still reads as past the end.
func Offset(page, perPage int) int64 {
	if page <= 1 || perPage <= 0 {
		return 0
	}
	before := int64(page - 1)
	if before > math.MaxInt64/int64(perPage) {
		return math.MaxInt64
	}
	return before * int64(perPage)
}

// NewPage builds the pagination envelope. Items is never nil, so an empty
// page serialises as [] rather than null.
func NewPage[T any](items []T, page, perPage int, total int64) *ports.Page[T] {
	if items == nil {
		items = []T{}
	}
	return &ports.Page[T]{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: TotalPages(total, perPage),
	}
}

// NormalizePaging applies the default and cap to raw paging input.
func NormalizePaging(page, perPage int) (int, int, error) {
	page, perPage, violations := normalizePaging(page, perPage)
	if len(violations) > 0 {
		return 0, 0, &domain.ValidationError{Violations: violations}
	}
	return page, perPage, nil
}

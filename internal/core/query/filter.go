// Package query turns raw list requests into normalised filters, store
// predicates and deterministic cache keys.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/bugtracker/bugtracker/internal/core/cache"
	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
)

const (
	All        = "all"
	Unassigned = "unassigned"

	DefaultPerPage = 10
	MaxPerPage     = 100
)

// BugFilter is a normalised bug list request. Build it with NormalizeBugFilter.
type BugFilter struct {
	Status   string // a domain.Status or "all"
	Priority string // a domain.Priority or "all"
	Assignee string // a username, "unassigned" or "all"
	Search   string // lower-cased; empty means no text constraint
	Page     int
	PerPage  int
}

// NormalizeBugFilter validates in and fills defaults. Two requests that mean the
// same thing normalise to the same BugFilter.
func NormalizeBugFilter(in ports.ListBugsInput) (BugFilter, error) {
	f := BugFilter{
		Status:   enumOrAll(in.Status),
		Priority: enumOrAll(in.Priority),
		Assignee: strings.TrimSpace(in.Assignee),
		Search:   strings.ToLower(strings.TrimSpace(in.Search)),
	}

	var violations []domain.FieldViolation
	if f.Status != All && !domain.Status(f.Status).Valid() {
		violations = append(violations, domain.FieldViolation{Field: "status", Reason: "must be one of: all open in_progress resolved closed"})
	}
	if f.Priority != All && !domain.Priority(f.Priority).Valid() {
		violations = append(violations, domain.FieldViolation{Field: "priority", Reason: "must be one of: all low medium high critical"})
	}
	// Only the exact lowercase keywords are reserved; "Unassigned" or "ALL"
	// name a user.
	if f.Assignee == "" {
		f.Assignee = All
	}

	page, perPage, pv := normalizePaging(in.Page, in.PerPage)
	violations = append(violations, pv...)
	f.Page, f.PerPage = page, perPage

	if len(violations) > 0 {
		return BugFilter{}, &domain.ValidationError{Violations: violations}
	}
	return f, nil
}

func enumOrAll(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return All
	}
	return v
}

func normalizePaging(page, perPage int) (int, int, []domain.FieldViolation) {
	var violations []domain.FieldViolation
	if page < 0 {
		violations = append(violations, domain.FieldViolation{Field: "page", Reason: "must be a positive integer"})
	}
	if perPage < 0 {
		violations = append(violations, domain.FieldViolation{Field: "per_page", Reason: "must be a positive integer"})
	}
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage, violations
}

// CacheKey returns a compact key that depends only on the normalised filter.
func (f BugFilter) CacheKey() string {
	return cache.ClassList.Key(hashPairs(
		"status", f.Status,
		"priority", f.Priority,
		"assignee", f.Assignee,
		"search", f.Search,
		"page", strconv.Itoa(f.Page),
		"per_page", strconv.Itoa(f.PerPage),
	))
}

// StatsCacheKey is the key of the global bug statistics aggregate.
func StatsCacheKey() string {
	return cache.ClassStats.Key(hashPairs("scope", All))
}

// hashPairs writes k=v pairs in the given order and hashes the result.
func hashPairs(kv ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv[i])
		b.WriteByte('=')
		b.WriteString(strconv.Quote(kv[i+1]))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

package domain

import (
	"strings"
	"time"
)

// Status represents the lifecycle state of a bug.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Priority represents how urgently a bug should be handled.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// AllPriorities returns every priority from lowest to highest.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// Valid reports whether p is one of the enumerated priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Comment is an append-only note owned by exactly one Bug.
type Comment struct {
	AuthorID  string    `json:"author_id"`
	Author    *UserRef  `json:"author,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Bug is the core aggregate root. Comments are embedded and share its lifecycle.
//
// Reporter, Assignee and Comment.Author are read projections filled by the
// service layer. The store persists only the ids.
type Bug struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Status           Status    `json:"status"`
	Priority         Priority  `json:"priority"`
	Tags             []string  `json:"tags"`
	StepsToReproduce string    `json:"steps_to_reproduce,omitempty"`
	ExpectedBehavior string    `json:"expected_behavior,omitempty"`
	Environment      string    `json:"environment,omitempty"`
	ReporterID       string    `json:"reporter_id"`
	Reporter         *UserRef  `json:"reporter,omitempty"`
	AssigneeID       *string   `json:"assignee_id"`
	Assignee         *UserRef  `json:"assignee,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Comments         []Comment `json:"comments,omitempty"`
}

// IsAssigned reports whether the bug currently has an assignee.
func (b *Bug) IsAssigned() bool {
	return b.AssigneeID != nil && *b.AssigneeID != ""
}

// BugStats aggregates bug counts. Every enumerated key is present, zero or not.
type BugStats struct {
	Total      int64              `json:"total"`
	ByStatus   map[Status]int64   `json:"by_status"`
	ByPriority map[Priority]int64 `json:"by_priority"`
}

// NewBugStats returns stats with all enum buckets initialised to zero.
func NewBugStats() *BugStats {
	s := &BugStats{
		ByStatus:   make(map[Status]int64, 4),
		ByPriority: make(map[Priority]int64, 4),
	}
	for _, st := range AllStatuses() {
		s.ByStatus[st] = 0
	}
	for _, p := range AllPriorities() {
		s.ByPriority[p] = 0
	}
	return s
}

// NormalizeTags trims every tag, drops empty ones and removes duplicates while
// keeping the first occurrence. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

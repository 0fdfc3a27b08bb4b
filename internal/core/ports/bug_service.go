package ports

import (
	"context"

	"github.com/bugtracker/bugtracker/internal/core/domain"
)

// BugDraft carries the fields of a new bug. Assignee is a username; empty means unassigned.
// Empty Status and Priority default to open and medium.
type BugDraft struct {
	Title            string          `json:"title" validate:"required,notblank,min=5,max=200"`
	Description      string          `json:"description" validate:"required,notblank"`
	Status           domain.Status   `json:"status" validate:"omitempty,bugstatus"`
	Priority         domain.Priority `json:"priority" validate:"omitempty,bugpriority"`
	Tags             []string        `json:"tags" validate:"max=20,dive,max=50"`
	StepsToReproduce string          `json:"steps_to_reproduce" validate:"max=5000"`
	ExpectedBehavior string          `json:"expected_behavior" validate:"max=5000"`
	Environment      string          `json:"environment" validate:"max=200"`
	Assignee         string          `json:"assignee"`
}

// BugPatch is a partial update: nil fields are absent and left untouched.
// A present but empty Assignee clears the assignment.
type BugPatch struct {
	Title            *string          `json:"title" validate:"omitnil,notblank,min=5,max=200"`
	Description      *string          `json:"description" validate:"omitnil,notblank"`
	Status           *domain.Status   `json:"status" validate:"omitnil,bugstatus"`
	Priority         *domain.Priority `json:"priority" validate:"omitnil,bugpriority"`
	Tags             *[]string        `json:"tags" validate:"omitnil,max=20,dive,max=50"`
	StepsToReproduce *string          `json:"steps_to_reproduce" validate:"omitnil,max=5000"`
	ExpectedBehavior *string          `json:"expected_behavior" validate:"omitnil,max=5000"`
	Environment      *string          `json:"environment" validate:"omitnil,max=200"`
	Assignee         *string          `json:"assignee"`
}

// ListBugsInput is the raw filter request as received from the caller.
// Enum fields accept a value, "all" or empty; Assignee also accepts "unassigned".
type ListBugsInput struct {
	Status   string
	Priority string
	Assignee string
	Search   string
	Page     int
	PerPage  int
}

// Page is the pagination envelope shared by every list operation.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// BugService is the Issue Store use-case surface.
type BugService interface {
	CreateBug(ctx context.Context, reporter domain.Principal, draft BugDraft) (*domain.Bug, error)
	GetBug(ctx context.Context, id string) (*domain.Bug, error)
	UpdateBug(ctx context.Context, id string, patch BugPatch) (*domain.Bug, error)
	DeleteBug(ctx context.Context, id string) error
	AddComment(ctx context.Context, id, authorID, content string) (*domain.Comment, error)
	ListBugs(ctx context.Context, input ListBugsInput) (*Page[domain.Bug], error)
	Stats(ctx context.Context) (*domain.BugStats, error)
}

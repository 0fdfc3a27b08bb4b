package ports

import (
	"context"
	"time"

	"github.com/bugtracker/bugtracker/internal/core/domain"
)

// BugQuery is the store-level predicate produced by the query planner.
// Empty string fields mean "no constraint".
type BugQuery struct {
	Status     domain.Status
	Priority   domain.Priority
	AssigneeID string // exact assignee match
	Unassigned bool   // assignee must be absent; wins over AssigneeID
	Search     string // literal, case-insensitive substring over title OR description
	Skip       int64
	Limit      int64
}

// BugUpdate is a partial update. Nil fields are left untouched.
type BugUpdate struct {
	Title            *string
	Description      *string
	Status           *domain.Status
	Priority         *domain.Priority
	Tags             *[]string
	StepsToReproduce *string
	ExpectedBehavior *string
	Environment      *string
	AssigneeID       *string // set to this user id
	ClearAssignee    bool    // remove the assignee; wins over AssigneeID
	UpdatedAt        time.Time
}

// BugRepository persists bugs with their embedded comments. Every mutating
// method is a single-document atomic operation in the store.
type BugRepository interface {
	// Create inserts b and fills in its generated ID.
	Create(ctx context.Context, b *domain.Bug) error
	FindByID(ctx context.Context, id string) (*domain.Bug, error)
	// Update applies u atomically and returns the post-update document.
	Update(ctx context.Context, id string, u BugUpdate) (*domain.Bug, error)
	Delete(ctx context.Context, id string) error
	// AppendComment pushes c onto the comment list and bumps updated_at to c.CreatedAt.
	AppendComment(ctx context.Context, id string, c domain.Comment) error
	// List returns one page of bugs (without comments) and the total match count,
	// ordered by created_at descending then id ascending.
	List(ctx context.Context, q BugQuery) ([]domain.Bug, int64, error)
	Stats(ctx context.Context) (*domain.BugStats, error)

	CountByReporter(ctx context.Context, userID string) (int64, error)
	DeleteByReporter(ctx context.Context, userID string) (int64, error)
	// UnassignUser clears the assignee on every bug assigned to userID.
	UnassignUser(ctx context.Context, userID string, at time.Time) (int64, error)
}

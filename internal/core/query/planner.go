package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
)

// Plan is the store-level form of a BugFilter.
type Plan struct {
	Query ports.BugQuery
	// NoMatch is set when the filter can match nothing, e.g. an assignee
	// username that does not exist. The store is not consulted.
	NoMatch bool
}

// Planner resolves the parts of a filter that need a lookup.
type Planner struct {
	users ports.UserResolver
}

func NewPlanner(users ports.UserResolver) *Planner {
	return &Planner{users: users}
}

// Plan translates f into a store predicate sorted by created_at descending,
// ties broken by id ascending.
func (p *Planner) Plan(ctx context.Context, f BugFilter) (Plan, error) {
	q := ports.BugQuery{
		Search: f.Search,
		Skip:   Offset(f.Page, f.PerPage),
		Limit:  int64(f.PerPage),
	}
	if f.Status != All {
		q.Status = domain.Status(f.Status)
	}
	if f.Priority != All {
		q.Priority = domain.Priority(f.Priority)
	}

	switch f.Assignee {
	case All:
	case Unassigned:
		q.Unassigned = true
	default:
		u, err := p.users.FindByUsername(ctx, f.Assignee)
		if errors.Is(err, domain.ErrNotFound) {
			return Plan{Query: q, NoMatch: true}, nil
		}
		if err != nil {
			return Plan{}, fmt.Errorf("resolve assignee: %w", err)
		}
		q.AssigneeID = u.ID
	}
	return Plan{Query: q}, nil
}

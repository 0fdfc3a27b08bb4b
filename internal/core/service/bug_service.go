package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bugtracker/bugtracker/internal/core/cache"
	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
	"github.com/bugtracker/bugtracker/internal/core/query"
	"github.com/bugtracker/bugtracker/internal/pkg/metrics"
	"github.com/bugtracker/bugtracker/internal/pkg/validation"
)

// BugService implements the Issue Store operations. Every acknowledged
// mutation has already invalidated the cache entries it could affect.
type BugService struct {
	bugs        ports.BugRepository
	users       ports.UserRepository
	planner     *query.Planner
	reads       *cache.ReadThrough
	invalidator *cache.Invalidator
	opts        BugOptions
	logger      zerolog.Logger
	now         func() time.Time
}

func NewBugService(
	bugs ports.BugRepository,
	users ports.UserRepository,
	reads *cache.ReadThrough,
	invalidator *cache.Invalidator,
	opts BugOptions,
	logger zerolog.Logger,
) *BugService {
	return &BugService{
		bugs:        bugs,
		users:       users,
		planner:     query.NewPlanner(users),
		reads:       reads,
		invalidator: invalidator,
		opts:        opts.withDefaults(),
		logger:      logger,
		now:         now,
	}
}

// CreateBug validates draft, resolves its assignee and persists a new bug
// reported by reporter.
func (s *BugService) CreateBug(ctx context.Context, reporter domain.Principal, draft ports.BugDraft) (*domain.Bug, error) {
	if err := validation.Struct(draft); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, reporter.UserID); err != nil {
		return nil, fmt.Errorf("reporter: %w", err)
	}

	var assigneeID *string
	if name := strings.TrimSpace(draft.Assignee); name != "" {
		id, err := s.resolveAssignee(ctx, name)
		if err != nil {
			return nil, err
		}
		assigneeID = id
	}

	status, priority := draft.Status, draft.Priority
	if status == "" {
		status = domain.StatusOpen
	}
	if priority == "" {
		priority = domain.PriorityMedium
	}

	at := s.now()
	bug := &domain.Bug{
		Title:            draft.Title,
		Description:      draft.Description,
		Status:           status,
		Priority:         priority,
		Tags:             domain.NormalizeTags(draft.Tags),
		StepsToReproduce: draft.StepsToReproduce,
		ExpectedBehavior: draft.ExpectedBehavior,
		Environment:      draft.Environment,
		ReporterID:       reporter.UserID,
		AssigneeID:       assigneeID,
		CreatedAt:        at,
		UpdatedAt:        at,
		Comments:         []domain.Comment{},
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.bugs.Create(ctx, bug); err != nil {
		return nil, s.storeFailure("bug_create", err)
	}
	bug = s.settle(ctx, bug)

	s.invalidator.BugsChanged(ctx, bug.ID)
	metrics.BugMutationsTotal.WithLabelValues("create").Inc()
	s.logger.Info().Str("bug_id", bug.ID).Str("reporter_id", bug.ReporterID).Msg("bug created")
	return bug, nil
}

// GetBug returns the bug with its comments, served from the detail cache when warm.
func (s *BugService) GetBug(ctx context.Context, id string) (*domain.Bug, error) {
	return cache.Fetch[*domain.Bug](ctx, s.reads, cache.ClassBug, cache.BugKey(id), s.opts.BugTTL,
		func(ctx context.Context) (*domain.Bug, error) {
			b, err := s.bugs.FindByID(ctx, id)
			if err != nil {
				return nil, s.storeFailure("bug_get", err)
			}
			if _, err := s.decorate(ctx, b); err != nil {
				return nil, s.storeFailure("bug_refs", err)
			}
			return b, nil
		})
}

// UpdateBug applies the fields present in patch. Absent fields are untouched
// and updated_at always advances.
func (s *BugService) UpdateBug(ctx context.Context, id string, patch ports.BugPatch) (*domain.Bug, error) {
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	u := ports.BugUpdate{
		Title:            patch.Title,
		Description:      patch.Description,
		Status:           patch.Status,
		Priority:         patch.Priority,
		StepsToReproduce: patch.StepsToReproduce,
		ExpectedBehavior: patch.ExpectedBehavior,
		Environment:      patch.Environment,
	}
	if patch.Tags != nil {
		tags := domain.NormalizeTags(*patch.Tags)
		u.Tags = &tags
	}
	if patch.Assignee != nil {
		name := strings.TrimSpace(*patch.Assignee)
		if name == "" {
			u.ClearAssignee = true
		} else {
			assigneeID, err := s.resolveAssignee(ctx, name)
			if err != nil {
				return nil, err
			}
			if assigneeID == nil {
				u.ClearAssignee = true
			}
			u.AssigneeID = assigneeID
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u.UpdatedAt = s.now()
	bug, err := s.bugs.Update(ctx, id, u)
	if err != nil {
		return nil, s.storeFailure("bug_update", err)
	}
	bug = s.settle(ctx, bug)

	s.invalidator.BugsChanged(ctx, id)
	metrics.BugMutationsTotal.WithLabelValues("update").Inc()
	s.logger.Info().Str("bug_id", id).Msg("bug updated")
	return bug, nil
}

// DeleteBug removes the bug together with its comments.
func (s *BugService) DeleteBug(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.bugs.Delete(ctx, id); err != nil {
		return s.storeFailure("bug_delete", err)
	}

	s.invalidator.BugsChanged(ctx, id)
	metrics.BugMutationsTotal.WithLabelValues("delete").Inc()
	s.logger.Info().Str("bug_id", id).Msg("bug deleted")
	return nil
}

// AddComment appends a comment by authorID to the bug's comment sequence.
func (s *BugService) AddComment(ctx context.Context, id, authorID, content string) (*domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewValidationError("content", "must not be blank")
	}
	author, err := s.users.FindByID(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("author: %w", err)
	}

	c := domain.Comment{AuthorID: authorID, Content: content, CreatedAt: s.now()}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.bugs.AppendComment(ctx, id, c); err != nil {
		return nil, s.storeFailure("bug_comment", err)
	}
	ref := author.Ref()
	c.Author = &ref

	s.invalidator.BugsChanged(ctx, id)
	metrics.BugMutationsTotal.WithLabelValues("comment").Inc()
	s.logger.Info().Str("bug_id", id).Str("author_id", authorID).Msg("comment added")
	return &c, nil
}

// ListBugs returns one page of bugs matching input, newest first.
func (s *BugService) ListBugs(ctx context.Context, input ports.ListBugsInput) (*ports.Page[domain.Bug], error) {
	f, err := query.NormalizeBugFilter(input)
	if err != nil {
		return nil, err
	}

	return cache.Fetch[*ports.Page[domain.Bug]](ctx, s.reads, cache.ClassList, f.CacheKey(), s.opts.ListTTL,
		func(ctx context.Context) (*ports.Page[domain.Bug], error) {
			plan, err := s.planner.Plan(ctx, f)
			if err != nil {
				return nil, s.storeFailure("bug_list", err)
			}
			if plan.NoMatch {
				return query.NewPage[domain.Bug](nil, f.Page, f.PerPage, 0), nil
			}
			items, total, err := s.bugs.List(ctx, plan.Query)
			if err != nil {
				return nil, s.storeFailure("bug_list", err)
			}
			ptrs := make([]*domain.Bug, len(items))
			for i := range items {
				ptrs[i] = &items[i]
			}
			if _, err := s.decorate(ctx, ptrs...); err != nil {
				return nil, s.storeFailure("bug_refs", err)
			}
			return query.NewPage(items, f.Page, f.PerPage, total), nil
		})
}

// Stats returns bug counts by status and priority.
func (s *BugService) Stats(ctx context.Context) (*domain.BugStats, error) {
	return cache.Fetch[*domain.BugStats](ctx, s.reads, cache.ClassStats, query.StatsCacheKey(), s.opts.StatsTTL,
		func(ctx context.Context) (*domain.BugStats, error) {
			st, err := s.bugs.Stats(ctx)
			if err != nil {
				return nil, s.storeFailure("bug_stats", err)
			}
			return st, nil
		})
}

// resolveAssignee maps a username to a user id. Under AssigneeIgnore an
// unknown username yields nil with no error.
func (s *BugService) resolveAssignee(ctx context.Context, username string) (*string, error) {
	u, err := s.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return &u.ID, nil
	case errors.Is(err, domain.ErrNotFound) && s.opts.AssigneePolicy == AssigneeIgnore:
		s.logger.Warn().Str("assignee", username).Msg("unknown assignee ignored")
		return nil, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("assignee %q: %w", username, domain.ErrUserNotFound)
	default:
		return nil, err
	}
}

// decorate fills the reporter, assignee and comment author projections of
// bugs from a single batched lookup and returns the refs it found. Ids of
// users that no longer exist leave their projection nil.
func (s *BugService) decorate(ctx context.Context, bugs ...*domain.Bug) (map[string]domain.UserRef, error) {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, b := range bugs {
		add(b.ReporterID)
		if b.AssigneeID != nil {
			add(*b.AssigneeID)
		}
		for _, c := range b.Comments {
			add(c.AuthorID)
		}
	}
	if len(ids) == 0 {
		return map[string]domain.UserRef{}, nil
	}

	refs, err := s.users.RefsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	applyRefs(refs, bugs...)
	return refs, nil
}

func applyRefs(refs map[string]domain.UserRef, bugs ...*domain.Bug) {
	for _, b := range bugs {
		b.Reporter = refFor(refs, b.ReporterID)
		b.Assignee = nil
		if b.AssigneeID != nil {
			b.Assignee = refFor(refs, *b.AssigneeID)
		}
		for i := range b.Comments {
			b.Comments[i].Author = refFor(refs, b.Comments[i].AuthorID)
		}
	}
}

func refFor(refs map[string]domain.UserRef, id string) *domain.UserRef {
	r, ok := refs[id]
	if !ok {
		return nil
	}
	return &r
}

// settle decorates a bug that was just written. The write is already
// acknowledged, so a failed lookup costs only the projections.
//
// The assignee is resolved before the write, so a concurrent DeleteUser can
// slip in between. DeleteUser removes the user before it unassigns bugs,
// which means an assignee missing here is gone for good and the bug is
// unassigned again instead of keeping a dangling id.
func (s *BugService) settle(ctx context.Context, bug *domain.Bug) *domain.Bug {
	refs, err := s.decorate(ctx, bug)
	if err != nil {
		s.logger.Warn().Err(err).Str("bug_id", bug.ID).Msg("user references unavailable")
		return bug
	}
	if !bug.IsAssigned() {
		return bug
	}
	if _, ok := refs[*bug.AssigneeID]; ok {
		return bug
	}

	cleared, err := s.bugs.Update(ctx, bug.ID, ports.BugUpdate{ClearAssignee: true, UpdatedAt: s.now()})
	if err != nil {
		s.logger.Error().Err(err).Str("bug_id", bug.ID).Str("assignee_id", *bug.AssigneeID).Msg("clear deleted assignee failed")
		return bug
	}
	s.logger.Warn().Str("bug_id", bug.ID).Str("assignee_id", *bug.AssigneeID).Msg("assignee deleted during write, cleared")
	applyRefs(refs, cleared)
	return cleared
}

func (s *BugService) storeFailure(op string, err error) error {
	if errors.Is(err, domain.ErrUnavailable) {
		metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
		s.logger.Error().Err(err).Str("op", op).Msg("document store unavailable")
	}
	return err
}

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

// UserService implements the Identity Store operations.
type UserService struct {
	users       ports.UserRepository
	bugs        ports.BugRepository
	tx          ports.Transactor
	hasher      ports.CredentialHasher
	invalidator *cache.Invalidator
	policy      ReporterPolicy
	logger      zerolog.Logger
	now         func() time.Time
}

func NewUserService(
	users ports.UserRepository,
	bugs ports.BugRepository,
	tx ports.Transactor,
	hasher ports.CredentialHasher,
	invalidator *cache.Invalidator,
	policy ReporterPolicy,
	logger zerolog.Logger,
) *UserService {
	if policy == "" {
		policy = ReporterReject
	}
	return &UserService{
		users:       users,
		bugs:        bugs,
		tx:          tx,
		hasher:      hasher,
		invalidator: invalidator,
		policy:      policy,
		logger:      logger,
		now:         now,
	}
}

// CreateUser registers a local (password) or federated (auth_id) identity.
func (s *UserService) CreateUser(ctx context.Context, input ports.NewUser) (*domain.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = domain.NormalizeEmail(input.Email)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	switch {
	case input.Password == "" && input.AuthID == "":
		return nil, domain.NewValidationError("password", "is required")
	case input.Password != "" && input.AuthID != "":
		return nil, domain.NewValidationError("auth_id", "must not be combined with password")
	}
	if input.Role == "" {
		input.Role = domain.RoleUser
	}

	if err := s.ensureUnique(ctx, "", input.Username, input.Email); err != nil {
		return nil, err
	}

	at := s.now()
	u := &domain.User{
		Username:  input.Username,
		Email:     input.Email,
		AuthID:    input.AuthID,
		Role:      input.Role,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if input.Password != "" {
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, fmt.Errorf("hash credential: %w", err)
		}
		u.PasswordHash = hash
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, s.storeFailure("user_create", err)
	}

	s.logger.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("user created")
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeFailure("user_get", err)
	}
	return u, nil
}

// ResolveUser looks a user up by exact, case-sensitive username.
func (s *UserService) ResolveUser(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, s.storeFailure("user_resolve", err)
	}
	return u, nil
}

// VerifyCredential compares secret with the stored hash. Federated accounts
// have no local secret and never verify.
func (s *UserService) VerifyCredential(user *domain.User, secret string) bool {
	if user == nil || user.PasswordHash == "" || secret == "" {
		return false
	}
	return s.hasher.Compare(user.PasswordHash, secret)
}

// ListUsers returns one page of users ordered by username.
func (s *UserService) ListUsers(ctx context.Context, input ports.ListUsersInput) (*ports.Page[domain.User], error) {
	page, perPage, err := query.NormalizePaging(input.Page, input.PerPage)
	if err != nil {
		return nil, err
	}
	q := ports.UserQuery{
		Search: strings.ToLower(strings.TrimSpace(input.Search)),
		Skip:   query.Offset(page, perPage),
		Limit:  int64(perPage),
	}
	items, total, err := s.users.List(ctx, q)
	if err != nil {
		return nil, s.storeFailure("user_list", err)
	}
	return query.NewPage(items, page, perPage, total), nil
}

// Assignees returns every user as a lightweight reference, ordered by username.
func (s *UserService) Assignees(ctx context.Context) ([]domain.UserRef, error) {
	refs, err := s.users.Refs(ctx)
	if err != nil {
		return nil, s.storeFailure("user_refs", err)
	}
	if refs == nil {
		refs = []domain.UserRef{}
	}
	return refs, nil
}

// UpdateUser applies patch to user id. Users may edit themselves; admins may
// edit anyone. A role change from a non-admin is dropped.
func (s *UserService) UpdateUser(ctx context.Context, actor domain.Principal, id string, patch ports.UserPatch) (*domain.User, error) {
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if patch.Role != nil && !actor.IsAdmin() {
		patch.Role = nil
	}
	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		patch.Username = &name
	}
	if patch.Email != nil {
		email := domain.NormalizeEmail(*patch.Email)
		patch.Email = &email
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	current, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeFailure("user_get", err)
	}

	renamed := patch.Username != nil && *patch.Username != current.Username
	var username, email string
	if renamed {
		username = *patch.Username
	}
	if patch.Email != nil && *patch.Email != current.Email {
		email = *patch.Email
	}
	if err := s.ensureUnique(ctx, id, username, email); err != nil {
		return nil, err
	}

	u := ports.UserUpdate{
		Username: patch.Username,
		Email:    patch.Email,
		Role:     patch.Role,
	}
	if patch.Password != nil {
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("hash credential: %w", err)
		}
		u.PasswordHash = &hash
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u.UpdatedAt = s.now()
	updated, err := s.users.Update(ctx, id, u)
	if err != nil {
		return nil, s.storeFailure("user_update", err)
	}

	// Assignee filters are keyed by username.
	if renamed {
		s.invalidator.Everything(ctx)
	}
	s.logger.Info().Str("user_id", id).Str("actor_id", actor.UserID).Msg("user updated")
	return updated, nil
}

// DeleteUser removes user id. Bugs assigned to the user lose their assignee;
// bugs reported by the user follow the configured ReporterPolicy. All of it
// happens in one transaction.
func (s *UserService) DeleteUser(ctx context.Context, actor domain.Principal, id string) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if actor.UserID == id {
		return domain.ErrSelfDelete
	}
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return s.storeFailure("user_get", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var unassigned, cascaded int64
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if s.policy == ReporterReject {
			n, err := s.bugs.CountByReporter(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%d bugs: %w", n, domain.ErrReporterReferenced)
			}
		}

		// The user goes first: a bug write racing this sweep either lands
		// before it and is unassigned, or sees the user gone and clears itself.
		if err := s.users.Delete(ctx, id); err != nil {
			return err
		}
		var err error
		if unassigned, err = s.bugs.UnassignUser(ctx, id, s.now()); err != nil {
			return err
		}
		if s.policy == ReporterCascade {
			if cascaded, err = s.bugs.DeleteByReporter(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.storeFailure("user_delete", err)
	}

	s.invalidator.Everything(ctx)
	s.logger.Info().
		Str("user_id", id).
		Str("actor_id", actor.UserID).
		Int64("bugs_unassigned", unassigned).
		Int64("bugs_deleted", cascaded).
		Msg("user deleted")
	return nil
}

// ensureUnique checks username and email against users other than selfID.
// Empty values are skipped. The unique indexes still catch races.
func (s *UserService) ensureUnique(ctx context.Context, selfID, username, email string) error {
	if username != "" {
		u, err := s.users.FindByUsername(ctx, username)
		if err == nil && u.ID != selfID {
			return domain.ErrUsernameTaken
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return s.storeFailure("user_get", err)
		}
	}
	if email != "" {
		u, err := s.users.FindByEmail(ctx, email)
		if err == nil && u.ID != selfID {
			return domain.ErrEmailTaken
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return s.storeFailure("user_get", err)
		}
	}
	return nil
}

func (s *UserService) storeFailure(op string, err error) error {
	if errors.Is(err, domain.ErrUnavailable) {
		metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
		s.logger.Error().Err(err).Str("op", op).Msg("document store unavailable")
	}
	return err
}

package ports

import (
	"context"
	"time"

	"github.com/bugtracker/bugtracker/internal/core/domain"
)

// UserQuery filters the user directory.
type UserQuery struct {
	Search string // case-insensitive substring over username OR email
	Skip   int64
	Limit  int64
}

// UserUpdate is a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Username     *string
	Email        *string
	Role         *domain.Role
	PasswordHash *string
	UpdatedAt    time.Time
}

// UserRepository persists identities. Username and email uniqueness is
// enforced by the store; violations surface as domain.ErrUsernameTaken or
// domain.ErrEmailTaken.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// FindByEmail expects an already normalised email.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, q UserQuery) ([]domain.User, int64, error)
	Refs(ctx context.Context) ([]domain.UserRef, error)
	// RefsByIDs resolves ids in one round trip. Unknown or malformed ids are
	// absent from the result.
	RefsByIDs(ctx context.Context, ids []string) (map[string]domain.UserRef, error)
	Update(ctx context.Context, id string, u UserUpdate) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

// UserResolver is the narrow lookup the query planner needs.
type UserResolver interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Transactor runs fn so that all store writes inside it commit or abort together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CredentialHasher is the one-way credential primitive supplied from outside the core.
type CredentialHasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}

package ports

import (
	"context"

	"github.com/bugtracker/bugtracker/internal/core/domain"
)

// NewUser carries the fields of a new identity. Exactly one of Password and
// AuthID must be set. Empty Role defaults to user.
type NewUser struct {
	Username string      `json:"username" validate:"required,min=3,max=50"`
	Email    string      `json:"email" validate:"required,email,max=254"`
	Password string      `json:"password" validate:"omitempty,min=6,max=72"`
	AuthID   string      `json:"auth_id" validate:"omitempty,max=200"`
	Role     domain.Role `json:"role" validate:"omitempty,userrole"`
}

// UserPatch is a partial update of a user; nil fields are left untouched.
type UserPatch struct {
	Username *string      `json:"username" validate:"omitnil,min=3,max=50"`
	Email    *string      `json:"email" validate:"omitnil,email,max=254"`
	Password *string      `json:"password" validate:"omitnil,min=6,max=72"`
	Role     *domain.Role `json:"role" validate:"omitnil,userrole"`
}

// ListUsersInput filters the user directory.
type ListUsersInput struct {
	Search  string
	Page    int
	PerPage int
}

// UserService is the Identity Store use-case surface.
type UserService interface {
	CreateUser(ctx context.Context, input NewUser) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ResolveUser(ctx context.Context, username string) (*domain.User, error)
	VerifyCredential(user *domain.User, secret string) bool
	ListUsers(ctx context.Context, input ListUsersInput) (*Page[domain.User], error)
	Assignees(ctx context.Context) ([]domain.UserRef, error)
	UpdateUser(ctx context.Context, actor domain.Principal, id string, patch UserPatch) (*domain.User, error)
	DeleteUser(ctx context.Context, actor domain.Principal, id string) error
}

package ports

import (
	"context"

	"github.com/bugtracker/bugtracker/internal/core/domain"
)

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (string, *domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
}

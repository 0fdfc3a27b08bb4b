package handler

import (
	"github.com/bugtracker/bugtracker/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error      string                  `json:"error"`
	Violations []domain.FieldViolation `json:"violations,omitempty"`
}

// --- Auth ---

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token,omitempty"`
	User  *domain.User `json:"user,omitempty"`
}

// --- Bugs ---

type listBugsQuery struct {
	Status   string `query:"status"`
	Priority string `query:"priority"`
	Assignee string `query:"assignee"`
	Search   string `query:"search"`
	Page     int    `query:"page"`
	PerPage  int    `query:"per_page"`
}

type commentRequest struct {
	Content string `json:"content" validate:"required"`
}

// --- Users ---

type listUsersQuery struct {
	Search  string `query:"search"`
	Page    int    `query:"page"`
	PerPage int    `query:"per_page"`
}

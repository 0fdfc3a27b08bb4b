package domain

import (
	"strings"
	"time"
)

// Role is the coarse authorisation level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User models an identity that can report, be assigned and comment on bugs.
// Local accounts carry a PasswordHash; federated accounts carry an AuthID instead.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AuthID       string    `json:"auth_id,omitempty"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsFederated reports whether the account authenticates through an external provider.
func (u *User) IsFederated() bool {
	return u.PasswordHash == "" && u.AuthID != ""
}

// Ref returns the lightweight reference used in assignee pickers.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}

// UserRef is the minimal projection of a user.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// NormalizeEmail is the canonical form used for storage and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Principal is the already-authenticated caller. The core trusts it as given.
type Principal struct {
	UserID   string
	Username string
	Role     Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

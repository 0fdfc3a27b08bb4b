package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/bugtracker/bugtracker/internal/core/domain"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, username, email, password string) (string, *domain.User, error)
	loginFn    func(ctx context.Context, username, password string) (string, *domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, username, email, password string) (string, *domain.User, error) {
	return s.registerFn(ctx, username, email, password)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, username, password)
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, username, email, password string) (string, *domain.User, error) {
			if username != "alice" || email != "a@example.com" || password != "secret1" {
				t.Fatalf("unexpected args: %s %s %s", username, email, password)
			}
			return "token123", &domain.User{ID: "u1", Username: username, Email: email, Role: domain.RoleUser, PasswordHash: "hash"}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/api/auth/register", `{"username":"alice","email":"a@example.com","password":"secret1"}`, domain.Principal{})

	if err := NewAuthHandler(stub).Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["token"] != "token123" {
		t.Fatalf("expected token, got %v", resp["token"])
	}
	user, ok := resp["user"].(map[string]any)
	if !ok || user["username"] != "alice" || user["role"] != "user" {
		t.Fatalf("unexpected user payload: %+v", resp["user"])
	}
	if _, leaked := user["PasswordHash"]; leaked {
		t.Fatal("password hash must never be serialised")
	}
}

func TestAuthHandler_Register_PassesServiceErrorsThrough(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, username, email, password string) (string, *domain.User, error) {
			return "", nil, domain.ErrUsernameTaken
		},
	}
	c, _ := newContext(http.MethodPost, "/api/auth/register", `{"username":"bob","email":"b@example.com","password":"secret1"}`, domain.Principal{})

	if err := NewAuthHandler(stub).Register(c); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestAuthHandler_Register_MissingFields(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, username, email, password string) (string, *domain.User, error) {
			t.Fatalf("should not be called")
			return "", nil, nil
		},
	}
	c, _ := newContext(http.MethodPost, "/api/auth/register", `{"username":"bob"}`, domain.Principal{})

	err := NewAuthHandler(stub).Register(c)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Violations) != 2 {
		t.Fatalf("expected email and password violations, got %+v", ve.Violations)
	}
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	stub := &stubAuthService{}
	c, _ := newContext(http.MethodPost, "/api/auth/register", "not-json", domain.Principal{})
	expectHTTPError(t, NewAuthHandler(stub).Register(c), http.StatusBadRequest)
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (string, *domain.User, error) {
			if username != "alice" || password != "secret1" {
				t.Fatalf("unexpected args: %s %s", username, password)
			}
			return "token123", &domain.User{Username: "alice", Role: domain.RoleAdmin}, nil
		},
	}
	c, rec := newContext(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret1"}`, domain.Principal{})

	if err := NewAuthHandler(stub).Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token != "token123" || resp.User.Username != "alice" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (string, *domain.User, error) {
			return "", nil, domain.ErrInvalidCredentials
		},
	}
	c, _ := newContext(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"bad"}`, domain.Principal{})

	if err := NewAuthHandler(stub).Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_InvalidPayload(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/api/auth/login", "{", domain.Principal{})
	expectHTTPError(t, NewAuthHandler(&stubAuthService{}).Login(c), http.StatusBadRequest)
}

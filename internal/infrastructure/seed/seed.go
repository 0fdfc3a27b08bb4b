// Package seed loads users and bugs from a YAML fixture through the service
// layer, so validation, hashing and cache invalidation apply as for any caller.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
)

// File is the top-level document of a seed fixture.
type File struct {
	Users []User `yaml:"users"`
	Bugs  []Bug  `yaml:"bugs"`
}

type User struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	AuthID   string `yaml:"auth_id"`
	Role     string `yaml:"role"`
}

// Bug references its reporter, assignee and comment authors by username.
type Bug struct {
	Title            string    `yaml:"title"`
	Description      string    `yaml:"description"`
	Status           string    `yaml:"status"`
	Priority         string    `yaml:"priority"`
	Tags             []string  `yaml:"tags"`
	StepsToReproduce string    `yaml:"steps_to_reproduce"`
	ExpectedBehavior string    `yaml:"expected_behavior"`
	Environment      string    `yaml:"environment"`
	Reporter         string    `yaml:"reporter"`
	Assignee         string    `yaml:"assignee"`
	Comments         []Comment `yaml:"comments"`
}

type Comment struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

// Result counts what a seed run did.
type Result struct {
	UsersCreated  int
	UsersSkipped  int
	BugsCreated   int
	CommentsAdded int
}

// Parse decodes a fixture. Unknown keys are rejected so typos surface early.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &f, nil
}

// ParseFile opens and decodes the fixture at path.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

type Loader struct {
	users  ports.UserService
	bugs   ports.BugService
	logger zerolog.Logger
}

func NewLoader(users ports.UserService, bugs ports.BugService, logger zerolog.Logger) *Loader {
	return &Loader{users: users, bugs: bugs, logger: logger}
}

// Apply creates the users of f that do not exist yet, then every bug of f.
// It stops at the first error; what was created before stays.
func (l *Loader) Apply(ctx context.Context, f *File) (Result, error) {
	var res Result

	for _, u := range f.Users {
		if _, err := l.users.ResolveUser(ctx, u.Username); err == nil {
			res.UsersSkipped++
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return res, fmt.Errorf("look up user %q: %w", u.Username, err)
		}

		created, err := l.users.CreateUser(ctx, ports.NewUser{
			Username: u.Username,
			Email:    u.Email,
			Password: u.Password,
			AuthID:   u.AuthID,
			Role:     domain.Role(u.Role),
		})
		if err != nil {
			return res, fmt.Errorf("create user %q: %w", u.Username, err)
		}
		res.UsersCreated++
		l.logger.Debug().Str("user_id", created.ID).Str("username", created.Username).Msg("seeded user")
	}

	for i, b := range f.Bugs {
		reporter, err := l.principal(ctx, b.Reporter)
		if err != nil {
			return res, fmt.Errorf("bug %d reporter: %w", i, err)
		}

		bug, err := l.bugs.CreateBug(ctx, reporter, ports.BugDraft{
			Title:            b.Title,
			Description:      b.Description,
			Status:           domain.Status(b.Status),
			Priority:         domain.Priority(b.Priority),
			Tags:             b.Tags,
			StepsToReproduce: b.StepsToReproduce,
			ExpectedBehavior: b.ExpectedBehavior,
			Environment:      b.Environment,
			Assignee:         b.Assignee,
		})
		if err != nil {
			return res, fmt.Errorf("create bug %q: %w", b.Title, err)
		}
		res.BugsCreated++

		for _, c := range b.Comments {
			author, err := l.principal(ctx, c.Author)
			if err != nil {
				return res, fmt.Errorf("bug %q comment author: %w", b.Title, err)
			}
			if _, err := l.bugs.AddComment(ctx, bug.ID, author.UserID, c.Content); err != nil {
				return res, fmt.Errorf("comment on bug %q: %w", b.Title, err)
			}
			res.CommentsAdded++
		}
	}

	return res, nil
}

func (l *Loader) principal(ctx context.Context, username string) (domain.Principal, error) {
	u, err := l.users.ResolveUser(ctx, username)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("resolve %q: %w", username, err)
	}
	return domain.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}

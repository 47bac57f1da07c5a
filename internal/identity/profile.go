package identity

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool { return r == RoleTeacher || r == RoleStudent }

type Profile struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (p Profile) IsTeacher() bool { return p.Role == RoleTeacher }
func (p Profile) IsStudent() bool { return p.Role == RoleStudent }

// Registration is what a new user supplies at sign-up.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// Provider is the identity backend: credentials plus profile rows.
type Provider interface {
	Register(ctx context.Context, r Registration) (Profile, error)
	Authenticate(ctx context.Context, email, password string) (Profile, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
	SetUsername(ctx context.Context, id, username string) (Profile, error)
}

var ErrInvalidCredentials = errors.New("invalid email or password")

const (
	minUsername = 3
	maxUsername = 20
	minPassword = 6
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateUsername enforces 3-20 characters from [a-zA-Z0-9_-].
func ValidateUsername(u string) error {
	switch {
	case u == "":
		return quiz.Validation("username is required")
	case len(u) < minUsername || len(u) > maxUsername:
		return quiz.Validation("username must be between %d and %d characters", minUsername, maxUsername)
	case !usernamePattern.MatchString(u):
		return quiz.Validation("username may only contain letters, numbers, underscores and hyphens")
	}
	return nil
}

func (r Registration) normalize() Registration {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)
	return r
}

func (r Registration) validate() error {
	switch {
	case r.Email == "" || !strings.Contains(r.Email, "@"):
		return quiz.Validation("a valid email is required")
	case len(r.Password) < minPassword:
		return quiz.Validation("password must be at least %d characters", minPassword)
	case r.FullName == "":
		return quiz.Validation("full name is required")
	case !r.Role.Valid():
		return quiz.Validation("role must be teacher or student")
	}
	return nil
}

package identity

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

const bcryptCost = 12

type SQLProvider struct {
	db   *sql.DB
	cost int
	now  func() time.Time
}

func NewSQLProvider(dbh *sql.DB) *SQLProvider {
	return &SQLProvider{db: dbh, cost: bcryptCost, now: time.Now}
}

// SetCost changes the bcrypt cost for new passwords. Out-of-range values
// are ignored.
func (p *SQLProvider) SetCost(cost int) {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		p.cost = cost
	}
}

func (p *SQLProvider) Register(ctx context.Context, r Registration) (Profile, error) {
	r = r.normalize()
	if err := r.validate(); err != nil {
		return Profile{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), p.cost)
	if err != nil {
		return Profile{}, quiz.Transient(err, "create account")
	}
	prof := Profile{
		ID:        uuid.NewString(),
		Role:      r.Role,
		FullName:  r.FullName,
		Email:     r.Email,
		CreatedAt: time.Unix(p.now().Unix(), 0).UTC(),
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO users (id,email,password_hash,role,full_name,username,created_at)
		VALUES ($1,$2,$3,$4,$5,NULL,$6)`,
		prof.ID, prof.Email, string(hash), string(prof.Role), prof.FullName, prof.CreatedAt.Unix())
	switch {
	case db.ViolatesColumn(err, "email"):
		return Profile{}, quiz.Validation("an account with this email already exists")
	case err != nil:
		return Profile{}, quiz.Transient(err, "create account")
	}
	return prof, nil
}

func (p *SQLProvider) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var hash string
	row := p.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE email=$1`, email)
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrInvalidCredentials
		}
		return Profile{}, quiz.Transient(err, "sign in")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Profile{}, ErrInvalidCredentials
	}
	return p.byColumn(ctx, "email", email)
}

func (p *SQLProvider) GetProfile(ctx context.Context, id string) (Profile, error) {
	return p.byColumn(ctx, "id", id)
}

func (p *SQLProvider) SetUsername(ctx context.Context, id, username string) (Profile, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return Profile{}, err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE users SET username=$1 WHERE id=$2`, username, id)
	switch {
	case db.ViolatesColumn(err, "username"):
		return Profile{}, quiz.Validation("username is already taken")
	case err != nil:
		return Profile{}, quiz.Transient(err, "save username")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Profile{}, quiz.NotFound("profile not found")
	}
	return p.GetProfile(ctx, id)
}

// column is one of the fixed names above, never user input.
func (p *SQLProvider) byColumn(ctx context.Context, column, value string) (Profile, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id,role,full_name,email,username,created_at FROM users WHERE `+column+`=$1`, value)
	var prof Profile
	var role string
	var username sql.NullString
	var created int64
	if err := row.Scan(&prof.ID, &role, &prof.FullName, &prof.Email, &username, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, quiz.NotFound("profile not found")
		}
		return Profile{}, quiz.Transient(err, "load profile")
	}
	prof.Role = Role(role)
	prof.Username = username.String
	prof.CreatedAt = time.Unix(created, 0).UTC()
	return prof, nil
}

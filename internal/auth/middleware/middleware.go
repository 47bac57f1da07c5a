package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

type AuthService struct {
	hmac   []byte
	issuer string
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{hmac: []byte(secret), issuer: "mindengage-quiz"}
}

type Claims struct {
	Sub       string `json:"sub"`
	Role      string `json:"role"` // "teacher" or "student"
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// IssueJWT signs a token bound to s. It expires with the session.
func (a *AuthService) IssueJWT(s Session) (string, error) {
	claims := &Claims{
		Sub:       s.Profile.ID,
		Role:      string(s.Profile.Role),
		SessionID: s.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(s.StartedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(a.issuer))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.SessionID == "" {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	// browsers cannot set headers on a WebSocket upgrade
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// JWTMiddleware resolves the bearer token to a live session and puts it,
// and its role, on the request context.
func JWTMiddleware(a *AuthService, sessions *Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearer(r)
			if tok == "" {
				deny(w, http.StatusUnauthorized, "missing bearer")
				return
			}
			c, err := a.Parse(tok)
			if err != nil {
				deny(w, http.StatusUnauthorized, "bad token")
				return
			}
			sess, ok := sessions.Lookup(c.SessionID)
			if !ok || sess.Profile.ID != c.Sub {
				deny(w, http.StatusUnauthorized, "session ended, sign in again")
				return
			}
			ctx := WithSession(r.Context(), sess)
			ctx = rbac.WithRole(ctx, string(sess.Profile.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUsername blocks students who have not picked a username yet.
func RequireUsername(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := ProfileFromContext(r.Context())
		if p.IsStudent() && p.Username == "" {
			deny(w, http.StatusBadRequest, "set a username before taking quizzes")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token signs s and reports the remaining lifetime in seconds.
func (a *AuthService) Token(s Session, now time.Time) (TokenResponse, error) {
	tok, err := a.IssueJWT(s)
	if err != nil {
		return TokenResponse{}, errors.Wrap(err, "sign token")
	}
	left := int(s.ExpiresAt.Sub(now).Seconds())
	if left < 0 {
		left = 0
	}
	return TokenResponse{AccessToken: tok, TokenType: "Bearer", ExpiresIn: left}, nil
}

package http

import (
	"net/http"
	"time"

	"github.com/pkg/errors"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/identity"
)

type sessionResponse struct {
	auth.TokenResponse
	Profile identity.Profile `json:"profile"`
}

func beginSession(w http.ResponseWriter, r *http.Request, a *auth.AuthService, sessions *auth.Sessions, p identity.Profile, status int) {
	sess := sessions.Begin(p)
	tr, err := a.Token(sess, time.Now())
	if err != nil {
		sessions.End(sess.ID)
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, sessionResponse{TokenResponse: tr, Profile: p})
}

// POST /auth/signup {email, password, full_name, role}
func SignupHandler(ids identity.Provider, a *auth.AuthService, sessions *auth.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identity.Registration
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		p, err := ids.Register(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		beginSession(w, r, a, sessions, p, http.StatusCreated)
	}
}

// POST /auth/login {email, password}
func LoginHandler(ids identity.Provider, a *auth.AuthService, sessions *auth.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		p, err := ids.Authenticate(r.Context(), req.Email, req.Password)
		if errors.Is(err, identity.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		beginSession(w, r, a, sessions, p, http.StatusOK)
	}
}

// POST /auth/logout
func LogoutHandler(sessions *auth.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := auth.SessionFromContext(r.Context()); ok {
			sessions.End(sess.ID)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /me
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, auth.ProfileFromContext(r.Context()))
	}
}

// PUT /me/username {username}
func SetUsernameHandler(ids identity.Provider, sessions *auth.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		sess, _ := auth.SessionFromContext(r.Context())
		p, err := ids.SetUsername(r.Context(), sess.Profile.ID, req.Username)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sessions.Update(sess.ID, p)
		writeJSON(w, http.StatusOK, p)
	}
}

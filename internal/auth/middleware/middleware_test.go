package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/identity"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

var student = identity.Profile{ID: "u-1", Role: identity.RoleStudent, FullName: "Sam", Email: "sam@example.com"}

func echoProfile() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := ProfileFromContext(r.Context())
		w.Header().Set("X-Role", rbac.RoleFromContext(r.Context()))
		_, _ = w.Write([]byte(p.ID + "|" + p.Username))
	})
}

func get(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestJWTMiddleware_SessionLifecycle(t *testing.T) {
	a := NewAuthService("test-secret")
	sessions := NewSessions(time.Hour)
	h := JWTMiddleware(a, sessions)(echoProfile())

	require.Equal(t, http.StatusUnauthorized, get(t, h, "").Code)
	require.Equal(t, http.StatusUnauthorized, get(t, h, "not-a-jwt").Code)

	sess := sessions.Begin(student)
	tr, err := a.Token(sess, sess.StartedAt)
	require.NoError(t, err)
	require.Equal(t, "Bearer", tr.TokenType)
	require.Equal(t, 3600, tr.ExpiresIn)

	rr := get(t, h, tr.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "u-1|", rr.Body.String())
	require.Equal(t, "student", rr.Header().Get("X-Role"))

	sessions.End(sess.ID)
	require.Equal(t, http.StatusUnauthorized, get(t, h, tr.AccessToken).Code)
}

func TestJWTMiddleware_RejectsForeignSignature(t *testing.T) {
	sessions := NewSessions(time.Hour)
	sess := sessions.Begin(student)
	tok, err := NewAuthService("other-secret").IssueJWT(sess)
	require.NoError(t, err)

	h := JWTMiddleware(NewAuthService("test-secret"), sessions)(echoProfile())
	require.Equal(t, http.StatusUnauthorized, get(t, h, tok).Code)
}

func TestJWTMiddleware_WebSocketQueryToken(t *testing.T) {
	a := NewAuthService("test-secret")
	sessions := NewSessions(time.Hour)
	sess := sessions.Begin(student)
	tok, err := a.IssueJWT(sess)
	require.NoError(t, err)
	h := JWTMiddleware(a, sessions)(echoProfile())

	req := httptest.NewRequest(http.MethodGet, "/attempts/a1/countdown?access_token="+tok, nil)
	req.Header.Set("Upgrade", "websocket")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/me?access_token="+tok, nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSessions_Expiry(t *testing.T) {
	s := NewSessions(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	a := s.Begin(student)
	b := s.Begin(student)
	require.NotEqual(t, a.ID, b.ID)

	_, ok := s.Lookup(a.ID)
	require.True(t, ok)

	named := student
	named.Username = "sam_1"
	got, ok := s.Update(b.ID, named)
	require.True(t, ok)
	require.Equal(t, "sam_1", got.Profile.Username)

	now = now.Add(time.Minute)
	_, ok = s.Lookup(a.ID)
	require.False(t, ok)
	require.Equal(t, 1, s.Sweep())
	_, ok = s.Update(b.ID, named)
	require.False(t, ok)
}

func TestRequireUsername(t *testing.T) {
	h := RequireUsername(echoProfile())
	serve := func(p identity.Profile) int {
		req := httptest.NewRequest(http.MethodGet, "/join/ABCDEF", nil)
		req = req.WithContext(WithSession(req.Context(), Session{ID: "s", Profile: p}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	require.Equal(t, http.StatusBadRequest, serve(student))
	named := student
	named.Username = "sam_1"
	require.Equal(t, http.StatusOK, serve(named))
	require.Equal(t, http.StatusOK, serve(identity.Profile{ID: "t", Role: identity.RoleTeacher}))
}

type stubProvider struct {
	identity.Provider
	profile identity.Profile
	err     error
}

func (s stubProvider) GetProfile(context.Context, string) (identity.Profile, error) {
	return s.profile, s.err
}

func TestAttachProfile(t *testing.T) {
	sessions := NewSessions(time.Hour)
	sess := sessions.Begin(student)
	serve := func(p identity.Provider, fallback bool) *httptest.ResponseRecorder {
		h := AttachProfile(p, sessions, fallback)(echoProfile())
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req = req.WithContext(WithSession(req.Context(), sess))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	named := student
	named.Username = "sam_1"
	rr := serve(stubProvider{profile: named}, false)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "u-1|sam_1", rr.Body.String())
	live, ok := sessions.Lookup(sess.ID)
	require.True(t, ok)
	require.Equal(t, "sam_1", live.Profile.Username)

	down := stubProvider{err: quiz.Transient(context.DeadlineExceeded, "load profile")}
	require.Equal(t, http.StatusServiceUnavailable, serve(down, false).Code)
	require.Equal(t, http.StatusOK, serve(down, true).Code)

	require.Equal(t, http.StatusUnauthorized, serve(stubProvider{err: quiz.NotFound("profile not found")}, false).Code)
	_, ok = sessions.Lookup(sess.ID)
	require.False(t, ok)
}

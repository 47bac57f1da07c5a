package auth

import (
	"net/http"

	"github.com/golang/glog"

	"github.com/mind-engage/mindengage-quiz/internal/identity"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// AttachProfile reloads the session's profile from the identity store so
// role and username are authoritative. allowSessionFallback keeps the
// profile captured at sign-in when the store is unreachable (dev/offline).
func AttachProfile(provider identity.Provider, sessions *Sessions, allowSessionFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, ok := SessionFromContext(ctx)
			if !ok {
				deny(w, http.StatusUnauthorized, "missing session")
				return
			}

			p, err := provider.GetProfile(ctx, sess.Profile.ID)
			switch {
			case err == nil:
				if p != sess.Profile {
					sessions.Update(sess.ID, p)
					sess.Profile = p
				}
				ctx = WithSession(ctx, sess)
				ctx = rbac.WithRole(ctx, string(p.Role))
				next.ServeHTTP(w, r.WithContext(ctx))

			case quiz.IsKind(err, quiz.KindNotFound):
				sessions.End(sess.ID)
				deny(w, http.StatusUnauthorized, "account not found")

			default:
				glog.Errorf("attach profile %s: %v", sess.Profile.ID, err)
				if allowSessionFallback {
					next.ServeHTTP(w, r)
					return
				}
				deny(w, http.StatusServiceUnavailable, "failed to load profile, try again")
			}
		})
	}
}

package auth

import (
	"context"

	"github.com/mind-engage/mindengage-quiz/internal/identity"
)

type ctxKey string

const ctxKeySession ctxKey = "session"

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKeySession).(Session)
	return s, ok
}

// ProfileFromContext is the signed-in profile, or the zero Profile.
func ProfileFromContext(ctx context.Context) identity.Profile {
	s, _ := SessionFromContext(ctx)
	return s.Profile
}

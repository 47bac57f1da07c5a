package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/mindengage-quiz/internal/attempt"
	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/generation"
	"github.com/mind-engage/mindengage-quiz/internal/identity"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Identity  identity.Provider
	Auth      *auth.AuthService
	Sessions  *auth.Sessions
	Store     quiz.Store
	Attempts  *attempt.Service
	Generator generation.Generator
	Events    attempt.EventSink

	PublicURL          string
	AllowedOrigins     []string
	DevProfileFallback bool
	RequestTimeout     time.Duration
	Ready              func(ctx context.Context) error
}

type nopEvents struct{}

func (nopEvents) Record(context.Context, string, string, any) {}

func NewRouter(d Deps) chi.Router {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if d.Generator == nil {
		d.Generator = generation.Disabled{}
	}
	if d.Events == nil {
		d.Events = nopEvents{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]int{"live_attempts": d.Attempts.Registry().Len()})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(d.RequestTimeout))
		pr.Post("/auth/signup", SignupHandler(d.Identity, d.Auth, d.Sessions))
		pr.Post("/auth/login", LoginHandler(d.Identity, d.Auth, d.Sessions))
	})

	// Protected API (JWT → session → fresh profile → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth, d.Sessions))
		pr.Use(auth.AttachProfile(d.Identity, d.Sessions, d.DevProfileFallback))

		// long-lived; no request timeout
		pr.With(rbac.Require(rbac.PermAttemptViewOwn)).
			Get("/attempts/{attemptID}/countdown", CountdownHandler(d.Attempts, d.AllowedOrigins))

		pr.Group(func(tr chi.Router) {
			tr.Use(middleware.Timeout(d.RequestTimeout))

			tr.Post("/auth/logout", LogoutHandler(d.Sessions))
			tr.Get("/me", MeHandler())
			tr.With(rbac.Require(rbac.PermProfileEdit)).
				Put("/me/username", SetUsernameHandler(d.Identity, d.Sessions))

			// Teacher: authoring
			tr.With(rbac.Require(rbac.PermQuizGenerate)).
				Post("/quizzes/generate", GenerateQuestionsHandler(d.Generator))
			tr.With(rbac.Require(rbac.PermQuizCreate)).
				Post("/quizzes", CreateQuizHandler(d.Store, d.Events, d.PublicURL))
			manage := tr.With(rbac.Require(rbac.PermQuizManageOwn))
			manage.Get("/quizzes", ListQuizzesHandler(d.Store, d.PublicURL))
			manage.Get("/quizzes/{quizID}", GetQuizHandler(d.Store, d.PublicURL))
			manage.Patch("/quizzes/{quizID}/active", SetQuizActiveHandler(d.Store, d.PublicURL))
			manage.Delete("/quizzes/{quizID}", DeleteQuizHandler(d.Store, d.Events))
			tr.With(rbac.Require(rbac.PermAttemptReview)).
				Get("/quizzes/{quizID}/attempts", QuizAttemptsHandler(d.Store))

			// Student: taking a quiz
			tr.Group(func(sr chi.Router) {
				sr.Use(auth.RequireUsername)
				sr.With(rbac.Require(rbac.PermQuizJoin)).
					Get("/join/{code}", JoinHandler(d.Attempts, d.PublicURL))
				sr.With(rbac.Require(rbac.PermAttemptCreate)).
					Post("/join/{code}/start", StartAttemptHandler(d.Attempts))
				sr.With(rbac.Require(rbac.PermAttemptSave)).
					Put("/attempts/{attemptID}/answers/{questionID}", RecordAnswerHandler(d.Attempts))
				sr.With(rbac.Require(rbac.PermAttemptSave)).
					Post("/attempts/{attemptID}/navigate", NavigateHandler(d.Attempts))
				sr.With(rbac.Require(rbac.PermAttemptSubmit)).
					Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(d.Attempts))
				sr.With(rbac.Require(rbac.PermAttemptViewOwn)).
					Get("/attempts/{attemptID}", AttemptStatusHandler(d.Attempts))
				sr.With(rbac.Require(rbac.PermAttemptViewOwn)).
					Get("/me/attempts", MyAttemptsHandler(d.Attempts))
			})

			tr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptReview)).
				Get("/attempts/{attemptID}/results", AttemptResultsHandler(d.Attempts))
		})
	})

	return r
}

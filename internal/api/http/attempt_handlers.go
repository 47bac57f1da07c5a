package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quiz/internal/attempt"
	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// GET /join/{code}
func JoinHandler(svc *attempt.Service, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Join(r.Context(), auth.ProfileFromContext(r.Context()), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quiz": viewOf(v.Quiz, publicURL)})
	}
}

// POST /join/{code}/start
func StartAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Start(r.Context(), auth.ProfileFromContext(r.Context()), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	}
}

// PUT /attempts/{attemptID}/answers/{questionID} {answer_text}
func RecordAnswerHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AnswerText string `json:"answer_text"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		snap, err := svc.Answer(r.Context(), auth.ProfileFromContext(r.Context()),
			chi.URLParam(r, "attemptID"), chi.URLParam(r, "questionID"), req.AnswerText)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func parseDirection(s string) (attempt.Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next", "forward":
		return attempt.Forward, true
	case "prev", "previous", "back", "backward":
		return attempt.Backward, true
	}
	return 0, false
}

// POST /attempts/{attemptID}/navigate {direction: next|previous}
func NavigateHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Direction string `json:"direction"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		dir, ok := parseDirection(req.Direction)
		if !ok {
			writeError(w, r, quiz.Validation("direction must be next or previous"))
			return
		}
		snap, err := svc.Navigate(r.Context(), auth.ProfileFromContext(r.Context()), chi.URLParam(r, "attemptID"), dir)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// POST /attempts/{attemptID}/submit
func SubmitAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Submit(r.Context(), auth.ProfileFromContext(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"attempt":      a,
			"availability": svc.Availability(a),
		})
	}
}

// GET /attempts/{attemptID}
func AttemptStatusHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Status(r.Context(), auth.ProfileFromContext(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// GET /attempts/{attemptID}/results
func AttemptResultsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rv, err := svc.Result(r.Context(), auth.ProfileFromContext(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rv)
	}
}

// GET /me/attempts
func MyAttemptsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListMine(r.Context(), auth.ProfileFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

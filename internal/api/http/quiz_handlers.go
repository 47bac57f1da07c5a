package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quiz/internal/attempt"
	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/generation"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

// quizView adds the share link to a quiz payload.
type quizView struct {
	quiz.Quiz
	ShareURL string `json:"share_url"`
}

func viewOf(q quiz.Quiz, publicURL string) quizView {
	return quizView{Quiz: q, ShareURL: quiz.ShareURL(publicURL, q.Code)}
}

// ownQuiz loads quizID if the caller owns it. Someone else's quiz is
// reported as missing.
func ownQuiz(r *http.Request, store quiz.Store, quizID string) (quiz.Quiz, error) {
	q, err := store.GetQuiz(r.Context(), quizID)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if q.TeacherID != auth.ProfileFromContext(r.Context()).ID {
		return quiz.Quiz{}, quiz.NotFound("quiz not found")
	}
	return q, nil
}

// POST /quizzes/generate {topic, counts: {type: n}, difficulty}
func GenerateQuestionsHandler(gen generation.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generation.Request
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		drafts, err := gen.Generate(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"questions": drafts})
	}
}

type createQuizRequest struct {
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	Topic           string               `json:"topic"`
	DurationMinutes int                  `json:"duration_minutes"`
	StartTime       *time.Time           `json:"start_time"`
	EndTime         *time.Time           `json:"end_time"`
	Questions       []quiz.QuestionDraft `json:"questions"`
}

// POST /quizzes: saves reviewed drafts as a new, inactive quiz.
func CreateQuizHandler(store quiz.Store, events attempt.EventSink, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createQuizRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		p := auth.ProfileFromContext(r.Context())
		q, err := store.CreateQuiz(r.Context(), quiz.NewQuiz{
			TeacherID:       p.ID,
			Title:           req.Title,
			Description:     req.Description,
			Topic:           req.Topic,
			DurationMinutes: req.DurationMinutes,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			Questions:       req.Questions,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		events.Record(r.Context(), syncx.TypeQuizCreated, q.ID, map[string]any{
			"teacher_id": p.ID,
			"quiz_code":  q.Code,
			"questions":  q.TotalQuestions,
		})
		writeJSON(w, http.StatusCreated, viewOf(q, publicURL))
	}
}

// GET /quizzes
func ListQuizzesHandler(store quiz.Store, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := store.ListQuizzesByTeacher(r.Context(), auth.ProfileFromContext(r.Context()).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]quizView, 0, len(qs))
		for _, q := range qs {
			out = append(out, viewOf(q, publicURL))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /quizzes/{quizID}: the quiz with answer keys, for its teacher.
func GetQuizHandler(store quiz.Store, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := ownQuiz(r, store, chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		qs, err := store.ListQuestions(r.Context(), q.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quiz": viewOf(q, publicURL), "questions": qs})
	}
}

// PATCH /quizzes/{quizID}/active {is_active}
func SetQuizActiveHandler(store quiz.Store, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IsActive *bool `json:"is_active"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.IsActive == nil {
			writeError(w, r, quiz.Validation("is_active is required"))
			return
		}
		p := auth.ProfileFromContext(r.Context())
		q, err := store.SetQuizActive(r.Context(), p.ID, chi.URLParam(r, "quizID"), *req.IsActive)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(q, publicURL))
	}
}

// DELETE /quizzes/{quizID}: removes questions, attempts and answers too.
func DeleteQuizHandler(store quiz.Store, events attempt.EventSink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.ProfileFromContext(r.Context())
		id := chi.URLParam(r, "quizID")
		if err := store.DeleteQuiz(r.Context(), p.ID, id); err != nil {
			writeError(w, r, err)
			return
		}
		events.Record(r.Context(), syncx.TypeQuizDeleted, id, map[string]any{"teacher_id": p.ID})
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /quizzes/{quizID}/attempts
func QuizAttemptsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := ownQuiz(r, store, chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		as, err := store.ListAttemptsByQuiz(r.Context(), q.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, as)
	}
}

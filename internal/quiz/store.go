package quiz

import (
	"context"
	"time"
)

// Store is the typed data-access layer over the backing database. Every
// method returns *Error values: NotFound for missing rows, ErrAlreadyAttempted
// for the (quiz, student) constraint, Transient for everything else.
type Store interface {
	// CreateQuiz stores a quiz with its questions. The quiz starts inactive
	// and gets a fresh unique code.
	CreateQuiz(ctx context.Context, n NewQuiz) (Quiz, error)
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	GetQuizByCode(ctx context.Context, code string) (Quiz, error)
	ListQuizzesByTeacher(ctx context.Context, teacherID string) ([]Quiz, error)
	SetQuizActive(ctx context.Context, teacherID, quizID string, active bool) (Quiz, error)
	DeleteQuiz(ctx context.Context, teacherID, quizID string) error

	// ListQuestions returns questions ordered by order_index.
	ListQuestions(ctx context.Context, quizID string) ([]Question, error)
	GetQuestion(ctx context.Context, id string) (Question, error)

	CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	FindAttempt(ctx context.Context, quizID, studentID string) (Attempt, error)
	ListAttemptsByStudent(ctx context.Context, studentID string) ([]Attempt, error)
	ListAttemptsByQuiz(ctx context.Context, quizID string) ([]Attempt, error)
	CompleteAttempt(ctx context.Context, id string, score, timeTakenMinutes int, completedAt time.Time) (Attempt, error)

	// UpsertAnswers writes one row per (attempt, question), replacing the
	// text of rows left behind by an earlier failed submission.
	UpsertAnswers(ctx context.Context, attemptID string, answers map[string]string) ([]StudentAnswer, error)
	SetAnswerCorrect(ctx context.Context, answerID string, correct bool) error
	ListAnswers(ctx context.Context, attemptID string) ([]StudentAnswer, error)
}

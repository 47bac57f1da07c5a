package attempt

import (
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// TimeLayout formats window boundaries in admission messages.
const TimeLayout = "2006-01-02 15:04 MST"

// Admit decides whether a student may start q at now. existing is the
// student's prior attempt on q, if any.
func Admit(q quiz.Quiz, existing *quiz.Attempt, now time.Time) error {
	if !q.IsActive {
		return quiz.NotAvailable("this quiz is not active")
	}
	if q.StartTime != nil && now.Before(*q.StartTime) {
		return quiz.NotAvailable("this quiz opens at %s", q.StartTime.Format(TimeLayout))
	}
	if q.EndTime != nil && now.After(*q.EndTime) {
		return quiz.NotAvailable("this quiz closed at %s", q.EndTime.Format(TimeLayout))
	}
	if existing != nil {
		return quiz.ErrAlreadyAttempted
	}
	return nil
}

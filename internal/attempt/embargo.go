package attempt

import (
	"math"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// ResultEmbargo is how long a completed attempt's results stay hidden from
// the student.
const ResultEmbargo = 60 * time.Minute

type AvailabilityStatus string

const (
	ResultsAvailable    AvailabilityStatus = "available"
	ResultsEmbargoed    AvailabilityStatus = "embargoed"
	ResultsNotCompleted AvailabilityStatus = "not_completed"
)

type Availability struct {
	Status           AvailabilityStatus `json:"status"`
	RemainingMinutes int                `json:"remaining_minutes,omitempty"`
	AvailableAt      time.Time          `json:"available_at,omitzero"`
}

// ResultAvailability decides whether a student may see results for a at
// now. The embargo runs from completion.
func ResultAvailability(a quiz.Attempt, now time.Time) Availability {
	if !a.IsCompleted || a.CompletedAt == nil {
		return Availability{Status: ResultsNotCompleted}
	}
	at := a.CompletedAt.Add(ResultEmbargo)
	elapsed := now.Sub(*a.CompletedAt)
	if elapsed >= ResultEmbargo {
		return Availability{Status: ResultsAvailable, AvailableAt: at}
	}
	left := int(math.Ceil((ResultEmbargo - elapsed).Minutes()))
	return Availability{Status: ResultsEmbargoed, RemainingMinutes: left, AvailableAt: at}
}

// Err maps a non-available state to the user-facing error.
func (av Availability) Err() error {
	switch av.Status {
	case ResultsNotCompleted:
		return quiz.NotAvailable("this attempt has not been submitted yet")
	case ResultsEmbargoed:
		return quiz.NotAvailable("results will be available in %d minutes", av.RemainingMinutes)
	}
	return nil
}

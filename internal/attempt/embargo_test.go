package attempt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

func completedAt(t time.Time) quiz.Attempt {
	return quiz.Attempt{ID: "a1", StartedAt: t.Add(-20 * time.Minute), CompletedAt: &t, IsCompleted: true}
}

func TestResultAvailability_Boundary(t *testing.T) {
	done := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	a := completedAt(done)

	av := ResultAvailability(a, done.Add(59*time.Minute+59*time.Second))
	require.Equal(t, ResultsEmbargoed, av.Status)
	require.Equal(t, 1, av.RemainingMinutes)
	require.True(t, quiz.IsKind(av.Err(), quiz.KindNotAvailable))

	av = ResultAvailability(a, done.Add(60*time.Minute))
	require.Equal(t, ResultsAvailable, av.Status)
	require.NoError(t, av.Err())
	require.Equal(t, done.Add(time.Hour), av.AvailableAt)

	av = ResultAvailability(a, done.Add(3*time.Hour))
	require.Equal(t, ResultsAvailable, av.Status)
}

func TestResultAvailability_RemainingMinutes(t *testing.T) {
	done := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	a := completedAt(done)

	cases := map[time.Duration]int{
		0:                               60,
		time.Second:                     60,
		30 * time.Minute:                30,
		30*time.Minute + 1*time.Second:  30,
		45*time.Minute + 30*time.Second: 15,
	}
	for elapsed, want := range cases {
		av := ResultAvailability(a, done.Add(elapsed))
		require.Equal(t, ResultsEmbargoed, av.Status, elapsed)
		require.Equal(t, want, av.RemainingMinutes, elapsed)
	}
	require.Equal(t, "results will be available in 15 minutes", quiz.Message(ResultAvailability(a, done.Add(45*time.Minute)).Err()))
}

func TestResultAvailability_NotCompleted(t *testing.T) {
	now := time.Now()
	av := ResultAvailability(quiz.Attempt{StartedAt: now.Add(-2 * time.Hour)}, now)
	require.Equal(t, ResultsNotCompleted, av.Status)
	require.True(t, quiz.IsKind(av.Err(), quiz.KindNotAvailable))
}

package attempt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

func TestAdmit(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	open := quiz.Quiz{ID: "q1", IsActive: true}
	require.NoError(t, Admit(open, nil, now))

	err := Admit(quiz.Quiz{ID: "q1"}, nil, now)
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))
	require.Equal(t, "this quiz is not active", quiz.Message(err))

	notYet := open
	notYet.StartTime = &future
	err = Admit(notYet, nil, now)
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))
	require.True(t, strings.Contains(quiz.Message(err), future.Format(TimeLayout)), quiz.Message(err))

	closed := open
	closed.StartTime = &past
	closed.EndTime = &past
	err = Admit(closed, nil, now)
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))
	require.Contains(t, quiz.Message(err), "closed at "+past.Format(TimeLayout))

	window := open
	window.StartTime = &past
	window.EndTime = &future
	require.NoError(t, Admit(window, nil, now))

	err = Admit(window, &quiz.Attempt{ID: "a1"}, now)
	require.ErrorIs(t, err, quiz.ErrAlreadyAttempted)

	// an inactive quiz is reported before a prior attempt
	err = Admit(quiz.Quiz{}, &quiz.Attempt{ID: "a1"}, now)
	require.Equal(t, "this quiz is not active", quiz.Message(err))
}

func TestAdmit_BoundariesAreInclusive(t *testing.T) {
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	q := quiz.Quiz{IsActive: true, StartTime: &start, EndTime: &end}
	require.NoError(t, Admit(q, nil, start))
	require.NoError(t, Admit(q, nil, end))
	require.Error(t, Admit(q, nil, end.Add(time.Second)))
	require.Error(t, Admit(q, nil, start.Add(-time.Second)))
}

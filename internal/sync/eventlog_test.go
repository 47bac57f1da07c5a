package syncx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

func TestEventRepo_RecordAndList(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	defer dbh.Close()

	repo := NewEventRepo(dbh, "")
	repo.Record(ctx, TypeAttemptStarted, "attempt-1", map[string]any{"quiz_id": "q1"})
	repo.Record(ctx, TypeAttemptSubmitted, "attempt-1", map[string]any{"score": 67})
	repo.Record(ctx, TypeAttemptStarted, "attempt-2", nil)

	events, err := repo.List(ctx, "attempt-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, TypeAttemptStarted, events[0].Type)
	require.Equal(t, TypeAttemptSubmitted, events[1].Type)
	require.JSONEq(t, `{"score":67}`, events[1].DataJSON)
	require.Equal(t, "local", events[0].SiteID)
	require.Less(t, events[0].Seq, events[1].Seq)
}

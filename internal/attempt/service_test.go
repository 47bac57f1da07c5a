package attempt

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/identity"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

type recordedEvent struct {
	typ, key string
}

type fakeSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeSink) Record(_ context.Context, typ, key string, _ any) {
	f.mu.Lock()
	f.events = append(f.events, recordedEvent{typ, key})
	f.mu.Unlock()
}

func (f *fakeSink) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.typ)
	}
	return out
}

var (
	student = identity.Profile{ID: "student-1", Role: identity.RoleStudent, FullName: "Sam", Username: "sam_1"}
	other   = identity.Profile{ID: "student-2", Role: identity.RoleStudent, FullName: "Kim", Username: "kim_2"}
	owner   = identity.Profile{ID: "teacher-1", Role: identity.RoleTeacher, FullName: "Tess"}
)

type serviceFixture struct {
	svc   *Service
	store *countingStore
	clock *fakeClock
	sink  *fakeSink
	quiz  quiz.Quiz
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	st := newCounting()
	clock := newFakeClock()
	sink := &fakeSink{}
	q := seedQuiz(t, st, 30, threeQuestions()...)
	svc := NewService(st,
		WithEvents(sink),
		WithServiceClock(clock.Now),
		WithBaseContext(ctx),
		WithCountdownTick(time.Hour),
	)
	return serviceFixture{svc: svc, store: st, clock: clock, sink: sink, quiz: q}
}

func TestService_JoinGuards(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.svc.Join(ctx, owner, f.quiz.Code)
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))

	noName := student
	noName.Username = ""
	_, err = f.svc.Join(ctx, noName, f.quiz.Code)
	require.True(t, quiz.IsKind(err, quiz.KindValidation))
	require.Equal(t, "set a username before taking quizzes", quiz.Message(err))

	_, err = f.svc.Join(ctx, student, "abc")
	require.True(t, quiz.IsKind(err, quiz.KindValidation))

	_, err = f.svc.Join(ctx, student, "ZZZZZZ")
	require.True(t, quiz.IsKind(err, quiz.KindNotFound))

	v, err := f.svc.Join(ctx, student, " "+strings.ToLower(f.quiz.Code)+" ")
	require.NoError(t, err)
	require.Equal(t, f.quiz.ID, v.Quiz.ID)

	_, err = f.store.SetQuizActive(ctx, owner.ID, f.quiz.ID, false)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, student, f.quiz.Code)
	require.Equal(t, "this quiz is not active", quiz.Message(err))
}

func TestService_FullAttempt(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	sv, err := f.svc.Start(ctx, student, f.quiz.Code)
	require.NoError(t, err)
	require.Len(t, sv.Questions, 3)
	require.Equal(t, StateInProgress, sv.Snapshot.State)
	id := sv.Snapshot.AttemptID
	require.Equal(t, 1, f.svc.Registry().Len())

	_, err = f.svc.Start(ctx, student, f.quiz.Code)
	require.ErrorIs(t, err, quiz.ErrAlreadyAttempted)

	for i, text := range []string{"a", "True", "43"} {
		_, err := f.svc.Answer(ctx, student, id, sv.Questions[i].ID, text)
		require.NoError(t, err)
	}
	snap, err := f.svc.Navigate(ctx, student, id, Forward)
	require.NoError(t, err)
	require.Equal(t, 1, snap.Cursor)

	_, err = f.svc.Answer(ctx, other, id, sv.Questions[0].ID, "B")
	require.True(t, quiz.IsKind(err, quiz.KindNotFound))

	f.clock.Advance(5 * time.Minute)
	a, err := f.svc.Submit(ctx, student, id)
	require.NoError(t, err)
	require.True(t, a.IsCompleted)
	require.Zero(t, a.Score)
	require.Equal(t, 5, a.TimeTakenMinutes)
	stored, err := f.store.GetAttempt(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 67, stored.Score)
	require.Equal(t, 0, f.svc.Registry().Len())

	again, err := f.svc.Submit(ctx, student, id)
	require.NoError(t, err)
	require.Equal(t, a.ID, again.ID)
	require.EqualValues(t, 1, f.store.completes.Load())

	_, err = f.svc.Answer(ctx, student, id, sv.Questions[0].ID, "B")
	require.ErrorIs(t, err, ErrNotInProgress)

	st, err := f.svc.Status(ctx, student, id)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, st.State)
	require.Zero(t, st.Attempt.Score)

	require.Equal(t, []string{syncx.TypeAttemptStarted, syncx.TypeAttemptSubmitted}, f.sink.types())

	mine, err := f.svc.ListMine(ctx, student)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Capitals", mine[0].QuizTitle)
	require.Equal(t, ResultsEmbargoed, mine[0].Availability.Status)
}

func TestService_ResultEmbargoForStudentsOnly(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	sv, err := f.svc.Start(ctx, student, f.quiz.Code)
	require.NoError(t, err)
	id := sv.Snapshot.AttemptID

	_, err = f.svc.Result(ctx, student, id)
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))
	_, err = f.svc.Result(ctx, owner, id)
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))

	_, err = f.svc.Answer(ctx, student, id, sv.Questions[0].ID, "A")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, student, id)
	require.NoError(t, err)

	_, err = f.svc.Result(ctx, student, id)
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))
	require.Equal(t, "results will be available in 60 minutes", quiz.Message(err))

	rv, err := f.svc.Result(ctx, owner, id)
	require.NoError(t, err)
	require.Equal(t, ResultsEmbargoed, rv.Availability.Status)
	require.Len(t, rv.Items, 3)

	stranger := identity.Profile{ID: "teacher-2", Role: identity.RoleTeacher}
	_, err = f.svc.Result(ctx, stranger, id)
	require.True(t, quiz.IsKind(err, quiz.KindNotFound))
	_, err = f.svc.Result(ctx, other, id)
	require.True(t, quiz.IsKind(err, quiz.KindNotFound))

	f.clock.Advance(time.Hour)
	rv, err = f.svc.Result(ctx, student, id)
	require.NoError(t, err)
	require.Equal(t, ResultsAvailable, rv.Availability.Status)
	require.True(t, rv.Items[0].Answered)
	require.True(t, rv.Items[0].IsCorrect)
	require.Equal(t, "A", rv.Items[0].Question.CorrectAnswer)
	require.False(t, rv.Items[1].Answered)
	require.Equal(t, 33, rv.Attempt.Score)
}

func TestService_ConcurrentSubmitsShareOneWrite(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	sv, err := f.svc.Start(ctx, student, f.quiz.Code)
	require.NoError(t, err)
	id := sv.Snapshot.AttemptID
	_, err = f.svc.Answer(ctx, student, id, sv.Questions[2].ID, "42")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]quiz.Attempt, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Submit(ctx, student, id)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, id, results[i].ID)
	}
	stored, err := f.store.GetAttempt(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 33, stored.Score)
	require.EqualValues(t, 1, f.store.completes.Load())
	require.EqualValues(t, 1, f.store.upserts.Load())
}

func TestService_LiveAttemptWithoutController(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	sv, err := f.svc.Start(ctx, student, f.quiz.Code)
	require.NoError(t, err)
	id := sv.Snapshot.AttemptID

	// a restarted process has the row but no controller
	f.svc.Registry().Remove(id)

	_, err = f.svc.Answer(ctx, student, id, sv.Questions[0].ID, "A")
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))
	_, err = f.svc.Submit(ctx, student, id)
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))
	_, err = f.svc.Status(ctx, student, id)
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))
	_, _, err = f.svc.Subscribe(student, id)
	require.True(t, quiz.IsKind(err, quiz.KindNotFound))
}

func TestService_ScoreHiddenFromStudentUntilAvailable(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	sv, err := f.svc.Start(ctx, student, f.quiz.Code)
	require.NoError(t, err)
	id := sv.Snapshot.AttemptID

	snaps, cancel, err := f.svc.Subscribe(student, id)
	require.NoError(t, err)
	defer cancel()

	for i, text := range []string{"a", "True", "43"} {
		_, err := f.svc.Answer(ctx, student, id, sv.Questions[i].ID, text)
		require.NoError(t, err)
	}
	a, err := f.svc.Submit(ctx, student, id)
	require.NoError(t, err)
	require.Zero(t, a.Score)

	var last Snapshot
	for snap := range snaps {
		last = snap
	}
	require.Equal(t, StateCompleted, last.State)
	require.NotNil(t, last.Attempt)
	require.Zero(t, last.Attempt.Score)

	scores := func(p identity.Profile) (submit, status, listed int) {
		t.Helper()
		a, err := f.svc.Submit(ctx, p, id)
		require.NoError(t, err)
		st, err := f.svc.Status(ctx, p, id)
		require.NoError(t, err)
		submit, status = a.Score, st.Attempt.Score
		if p.IsStudent() {
			mine, err := f.svc.ListMine(ctx, p)
			require.NoError(t, err)
			require.Len(t, mine, 1)
			listed = mine[0].Attempt.Score
		}
		return submit, status, listed
	}

	rv, err := f.svc.Result(ctx, owner, id)
	require.NoError(t, err)
	require.Equal(t, 67, rv.Attempt.Score)

	f.clock.Advance(59*time.Minute + 59*time.Second)
	submit, status, listed := scores(student)
	require.Zero(t, submit)
	require.Zero(t, status)
	require.Zero(t, listed)

	f.clock.Advance(time.Second)
	submit, status, listed = scores(student)
	require.Equal(t, 67, submit)
	require.Equal(t, 67, status)
	require.Equal(t, 67, listed)
}

func TestService_ManualSubmitDuringTimedSubmit(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	sv, err := f.svc.Start(ctx, student, f.quiz.Code)
	require.NoError(t, err)
	id := sv.Snapshot.AttemptID
	_, err = f.svc.Answer(ctx, student, id, sv.Questions[0].ID, "A")
	require.NoError(t, err)

	c, ok := f.svc.Registry().Get(id)
	require.True(t, ok)
	for i := 0; i < 30*60-1; i++ {
		require.False(t, c.Tick(ctx))
	}

	f.store.entered = make(chan struct{})
	f.store.release = make(chan struct{})
	go c.Tick(ctx)
	<-f.store.entered

	done := make(chan error, 1)
	var got quiz.Attempt
	go func() {
		a, err := f.svc.Submit(ctx, student, id)
		got = a
		done <- err
	}()
	close(f.store.release)

	require.NoError(t, <-done)
	require.True(t, got.IsCompleted)
	require.Equal(t, id, got.ID)
	require.EqualValues(t, 1, f.store.completes.Load())
}

func timedService(t *testing.T, st *countingStore, retry time.Duration) (*Service, quiz.Quiz) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q := seedQuiz(t, st, 1, threeQuestions()...)
	svc := NewService(st,
		WithBaseContext(ctx),
		WithCountdownTick(time.Millisecond),
		WithSubmitRetryWindow(retry),
	)
	return svc, q
}

func TestService_FailedTimedSubmitIsDroppedAfterRetryWindow(t *testing.T) {
	ctx := context.Background()
	st := newCounting()
	st.failComplete.Store(1)
	svc, q := timedService(t, st, 50*time.Millisecond)

	_, err := svc.Start(ctx, student, q.Code)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return svc.Registry().Len() == 0 }, 5*time.Second, 5*time.Millisecond)
	require.EqualValues(t, 0, st.completes.Load())
}

func TestService_ManualSubmitWithinRetryWindow(t *testing.T) {
	ctx := context.Background()
	st := newCounting()
	st.failComplete.Store(1)
	svc, q := timedService(t, st, time.Hour)

	sv, err := svc.Start(ctx, student, q.Code)
	require.NoError(t, err)
	id := sv.Snapshot.AttemptID
	c, ok := svc.Registry().Get(id)
	require.True(t, ok)
	require.Eventually(t, func() bool { return c.Err() != nil }, 5*time.Second, time.Millisecond)

	_, err = svc.Answer(ctx, student, id, sv.Questions[0].ID, "A")
	require.ErrorIs(t, err, ErrTimeUp)
	_, err = svc.Navigate(ctx, student, id, Forward)
	require.ErrorIs(t, err, ErrTimeUp)
	require.Equal(t, 1, svc.Registry().Len())

	a, err := svc.Submit(ctx, student, id)
	require.NoError(t, err)
	require.True(t, a.IsCompleted)
	require.Eventually(t, func() bool { return svc.Registry().Len() == 0 }, time.Second, time.Millisecond)
}

func TestService_TimedSubmitOnMissingAttemptIsDropped(t *testing.T) {
	ctx := context.Background()
	st := newCounting()
	st.completeErr = quiz.NotFound("attempt not found")
	svc, q := timedService(t, st, time.Hour)

	_, err := svc.Start(ctx, student, q.Code)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return svc.Registry().Len() == 0 }, 5*time.Second, 5*time.Millisecond)
}

package attempt

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/singleflight"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/identity"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

// EventSink receives lifecycle events. Implementations must not block for
// long and never fail the caller.
type EventSink interface {
	Record(ctx context.Context, typ, key string, data any)
}

type nopSink struct{}

func (nopSink) Record(context.Context, string, string, any) {}

var errNotRunning = quiz.NotAvailable("this attempt is no longer running")

// Service is the student-facing side of the attempt lifecycle. Every call
// takes the caller's profile from the request session.
type Service struct {
	store    quiz.Store
	registry *Registry
	events   EventSink
	grader   grading.Grader
	now      func() time.Time
	base     context.Context
	tick     time.Duration
	retry    time.Duration
	flight   singleflight.Group
}

type ServiceOption func(*Service)

func WithEvents(e EventSink) ServiceOption { return func(s *Service) { s.events = e } }

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithServiceGrader(g grading.Grader) ServiceOption {
	return func(s *Service) { s.grader = g }
}

// WithBaseContext bounds the lifetime of countdown goroutines.
func WithBaseContext(ctx context.Context) ServiceOption {
	return func(s *Service) { s.base = ctx }
}

func WithCountdownTick(d time.Duration) ServiceOption {
	return func(s *Service) { s.tick = d }
}

// WithSubmitRetryWindow is how long a controller whose timed submit failed
// stays registered so the student can still submit by hand.
func WithSubmitRetryWindow(d time.Duration) ServiceOption {
	return func(s *Service) { s.retry = d }
}

func NewService(store quiz.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		registry: NewRegistry(),
		events:   nopSink{},
		grader:   grading.NewDefaultGrader(),
		now:      time.Now,
		base:     context.Background(),
		tick:     time.Second,
		retry:    10 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Registry() *Registry { return s.registry }

// Availability is ResultAvailability on the service clock.
func (s *Service) Availability(a quiz.Attempt) Availability {
	return ResultAvailability(a, s.now())
}

// forViewer hides the score from the student who took the attempt until
// results are available. Teachers get the attempt unchanged.
func (s *Service) forViewer(p identity.Profile, a quiz.Attempt) quiz.Attempt {
	if p.IsStudent() && a.StudentID == p.ID && s.Availability(a).Status != ResultsAvailable {
		a.Score = 0
	}
	return a
}

func (s *Service) snapshotFor(p identity.Profile, snap Snapshot) Snapshot {
	if snap.Attempt != nil {
		a := s.forViewer(p, *snap.Attempt)
		snap.Attempt = &a
	}
	return snap
}

// JoinView is what a student sees before starting.
type JoinView struct {
	Quiz quiz.Quiz `json:"quiz"`
}

// StartView is the attempt handed to the student when the countdown begins.
type StartView struct {
	Snapshot  Snapshot        `json:"attempt"`
	Quiz      quiz.Quiz       `json:"quiz"`
	Questions []quiz.Question `json:"questions"`
}

// ResultItem pairs a question with the student's stored answer.
type ResultItem struct {
	Question   quiz.Question `json:"question"`
	AnswerText string        `json:"answer_text"`
	Answered   bool          `json:"answered"`
	IsCorrect  bool          `json:"is_correct"`
}

type ResultView struct {
	Attempt      quiz.Attempt `json:"attempt"`
	Quiz         quiz.Quiz    `json:"quiz"`
	Availability Availability `json:"availability"`
	Items        []ResultItem `json:"items"`
}

// AttemptSummary is one row of a student's history.
type AttemptSummary struct {
	Attempt      quiz.Attempt `json:"attempt"`
	QuizTitle    string       `json:"quiz_title"`
	Availability Availability `json:"availability"`
}

func requireTaker(p identity.Profile) error {
	if !p.IsStudent() {
		return quiz.NotAvailable("only students can take quizzes")
	}
	if p.Username == "" {
		return quiz.Validation("set a username before taking quizzes")
	}
	return nil
}

// admit resolves code to a quiz and runs the admission guard for p.
func (s *Service) admit(ctx context.Context, p identity.Profile, code string) (quiz.Quiz, error) {
	if err := requireTaker(p); err != nil {
		return quiz.Quiz{}, err
	}
	code = quiz.NormalizeCode(code)
	if !quiz.ValidCode(code) {
		return quiz.Quiz{}, quiz.Validation("enter a valid %d-character quiz code", quiz.CodeLength)
	}
	q, err := s.store.GetQuizByCode(ctx, code)
	if err != nil {
		return quiz.Quiz{}, err
	}
	var existing *quiz.Attempt
	a, err := s.store.FindAttempt(ctx, q.ID, p.ID)
	switch {
	case err == nil:
		existing = &a
	case quiz.IsKind(err, quiz.KindNotFound):
	default:
		return quiz.Quiz{}, err
	}
	if err := Admit(q, existing, s.now()); err != nil {
		return quiz.Quiz{}, err
	}
	return q, nil
}

// Join looks a quiz up by its share code and reports whether p may start it.
func (s *Service) Join(ctx context.Context, p identity.Profile, code string) (JoinView, error) {
	q, err := s.admit(ctx, p, code)
	if err != nil {
		return JoinView{}, err
	}
	return JoinView{Quiz: q}, nil
}

// Start admits p, creates the attempt and starts its countdown.
func (s *Service) Start(ctx context.Context, p identity.Profile, code string) (StartView, error) {
	q, err := s.admit(ctx, p, code)
	if err != nil {
		return StartView{}, err
	}
	c := New(s.store, q.ID, p.ID,
		WithClock(s.now),
		WithGrader(s.grader),
		WithTickInterval(s.tick),
		OnComplete(s.completed),
	)
	qs, err := c.Initialize(ctx)
	if err != nil {
		return StartView{}, err
	}
	snap := c.Snapshot()
	s.registry.Put(snap.AttemptID, c)
	go s.run(c)

	s.events.Record(ctx, syncx.TypeAttemptStarted, snap.AttemptID, map[string]any{
		"quiz_id":    q.ID,
		"student_id": p.ID,
	})
	return StartView{Snapshot: snap, Quiz: q, Questions: qs}, nil
}

func (s *Service) completed(a quiz.Attempt) {
	s.registry.Remove(a.ID)
	s.events.Record(s.base, syncx.TypeAttemptSubmitted, a.ID, map[string]any{
		"quiz_id":            a.QuizID,
		"student_id":         a.StudentID,
		"score":              a.Score,
		"time_taken_minutes": a.TimeTakenMinutes,
	})
}

// run drives c's countdown. A controller whose timed submit failed is kept
// for the retry window so the student can submit by hand, then dropped; one
// whose quiz or attempt has disappeared is dropped at once.
func (s *Service) run(c *Controller) {
	c.Run(s.base)
	select {
	case <-c.Done():
		return
	case <-s.base.Done():
		return
	default:
	}
	id := c.Snapshot().AttemptID
	if err := c.Err(); !quiz.IsKind(err, quiz.KindNotFound) {
		t := time.NewTimer(s.retry)
		defer t.Stop()
		select {
		case <-c.Done():
			return
		case <-s.base.Done():
			return
		case <-t.C:
		}
	}
	s.registry.Remove(id)
	glog.Warningf("attempt %s: dropped after failed timed submit: %v", id, c.Err())
}

// live returns p's running controller for attemptID.
func (s *Service) live(p identity.Profile, attemptID string) (*Controller, error) {
	c, ok := s.registry.Get(attemptID)
	if !ok || c.StudentID() != p.ID {
		return nil, quiz.NotFound("attempt not found")
	}
	return c, nil
}

// stored loads an attempt p owns.
func (s *Service) stored(ctx context.Context, p identity.Profile, attemptID string) (quiz.Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	if a.StudentID != p.ID {
		return quiz.Attempt{}, quiz.NotFound("attempt not found")
	}
	return a, nil
}

func (s *Service) Answer(ctx context.Context, p identity.Profile, attemptID, questionID, text string) (Snapshot, error) {
	c, err := s.running(ctx, p, attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := c.RecordAnswer(questionID, text); err != nil {
		return Snapshot{}, err
	}
	return c.Snapshot(), nil
}

func (s *Service) Navigate(ctx context.Context, p identity.Profile, attemptID string, dir Direction) (Snapshot, error) {
	c, err := s.running(ctx, p, attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	if _, err := c.Advance(dir); err != nil {
		return Snapshot{}, err
	}
	return c.Snapshot(), nil
}

// running is live with a better error for attempts that exist in the store
// but whose controller is gone.
func (s *Service) running(ctx context.Context, p identity.Profile, attemptID string) (*Controller, error) {
	if c, err := s.live(p, attemptID); err == nil {
		return c, nil
	}
	a, err := s.stored(ctx, p, attemptID)
	if err != nil {
		return nil, err
	}
	if a.IsCompleted {
		return nil, ErrNotInProgress
	}
	return nil, errNotRunning
}

// Submit grades and completes the attempt. Concurrent requests for the same
// attempt share one submission, and a request that races the timed submit
// waits for it. The submission is not cancelled when the request goes away.
// Students see a zero score until results are available.
func (s *Service) Submit(ctx context.Context, p identity.Profile, attemptID string) (quiz.Attempt, error) {
	c, err := s.live(p, attemptID)
	if err != nil {
		a, serr := s.stored(ctx, p, attemptID)
		if serr != nil {
			return quiz.Attempt{}, serr
		}
		if a.IsCompleted {
			return s.forViewer(p, a), nil
		}
		return quiz.Attempt{}, errNotRunning
	}
	detached := context.WithoutCancel(ctx)
	v, err, shared := s.flight.Do(attemptID, func() (any, error) {
		return c.Submit(detached)
	})
	if shared {
		glog.V(2).Infof("attempt %s: joined in-flight submit", attemptID)
	}
	if err != nil {
		return quiz.Attempt{}, err
	}
	return s.forViewer(p, v.(quiz.Attempt)), nil
}

// Status is the live snapshot, or a snapshot built from the stored row once
// the controller has finished.
func (s *Service) Status(ctx context.Context, p identity.Profile, attemptID string) (Snapshot, error) {
	if c, err := s.live(p, attemptID); err == nil {
		return s.snapshotFor(p, c.Snapshot()), nil
	}
	a, err := s.stored(ctx, p, attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	if !a.IsCompleted {
		return Snapshot{}, errNotRunning
	}
	a = s.forViewer(p, a)
	return Snapshot{
		AttemptID:     a.ID,
		QuizID:        a.QuizID,
		State:         StateCompleted,
		QuestionCount: a.TotalQuestions,
		Answers:       map[string]string{},
		Attempt:       &a,
	}, nil
}

// Subscribe streams snapshots of a running attempt owned by p.
func (s *Service) Subscribe(p identity.Profile, attemptID string) (<-chan Snapshot, func(), error) {
	c, err := s.live(p, attemptID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := c.Subscribe()
	out := make(chan Snapshot, cap(ch))
	stop := make(chan struct{})
	go func() {
		defer close(out)
		for snap := range ch {
			select {
			case out <- s.snapshotFor(p, snap):
			case <-stop:
				return
			}
		}
	}()
	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(stop)
			cancel()
		})
	}, nil
}

// Result returns graded answers. Students see their own attempt once the
// embargo has passed; a teacher sees attempts on their own quizzes at any
// time after completion.
func (s *Service) Result(ctx context.Context, p identity.Profile, attemptID string) (ResultView, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return ResultView{}, err
	}
	q, err := s.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return ResultView{}, err
	}
	av := ResultAvailability(a, s.now())
	switch {
	case p.IsStudent() && a.StudentID == p.ID:
		if err := av.Err(); err != nil {
			return ResultView{}, err
		}
	case p.IsTeacher() && q.TeacherID == p.ID:
		if av.Status == ResultsNotCompleted {
			return ResultView{}, av.Err()
		}
	default:
		return ResultView{}, quiz.NotFound("attempt not found")
	}

	qs, err := s.store.ListQuestions(ctx, a.QuizID)
	if err != nil {
		return ResultView{}, err
	}
	answers, err := s.store.ListAnswers(ctx, a.ID)
	if err != nil {
		return ResultView{}, err
	}
	byQuestion := make(map[string]quiz.StudentAnswer, len(answers))
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}
	items := make([]ResultItem, 0, len(qs))
	for _, qq := range qs {
		it := ResultItem{Question: qq}
		if ans, ok := byQuestion[qq.ID]; ok {
			it.Answered = true
			it.AnswerText = ans.AnswerText
			it.IsCorrect = ans.IsCorrect
		}
		items = append(items, it)
	}
	return ResultView{Attempt: a, Quiz: q, Availability: av, Items: items}, nil
}

// ListMine is p's attempt history, newest first, with result availability.
func (s *Service) ListMine(ctx context.Context, p identity.Profile) ([]AttemptSummary, error) {
	if !p.IsStudent() {
		return nil, quiz.NotAvailable("only students have attempts")
	}
	as, err := s.store.ListAttemptsByStudent(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	titles := map[string]string{}
	out := make([]AttemptSummary, 0, len(as))
	for _, a := range as {
		title, ok := titles[a.QuizID]
		if !ok {
			q, err := s.store.GetQuiz(ctx, a.QuizID)
			if err != nil && !quiz.IsKind(err, quiz.KindNotFound) {
				return nil, err
			}
			title = q.Title
			titles[a.QuizID] = title
		}
		out = append(out, AttemptSummary{Attempt: s.forViewer(p, a), QuizTitle: title, Availability: s.Availability(a)})
	}
	return out, nil
}

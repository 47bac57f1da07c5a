package attempt

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateInProgress    State = "in_progress"
	StateSubmitting    State = "submitting"
	StateCompleted     State = "completed"
)

type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

var (
	ErrNotInProgress = &quiz.Error{Kind: quiz.KindNotAvailable, Msg: "this attempt is not in progress"}
	ErrTimeUp        = &quiz.Error{Kind: quiz.KindNotAvailable, Msg: "time is up, submit your answers"}
	errInitialized   = &quiz.Error{Kind: quiz.KindValidation, Msg: "attempt already initialized"}
)

// submission is one run of persist; callers that arrive while it is in
// flight wait on done and share its outcome.
type submission struct {
	done    chan struct{}
	attempt quiz.Attempt
	err     error
}

// Snapshot is a read-only view of a controller.
type Snapshot struct {
	AttemptID        string            `json:"attempt_id"`
	QuizID           string            `json:"quiz_id"`
	State            State             `json:"state"`
	Cursor           int               `json:"current_question"`
	QuestionCount    int               `json:"question_count"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Answers          map[string]string `json:"answers"`
	Attempt          *quiz.Attempt     `json:"attempt,omitempty"`
}

// Controller drives one student through one timed attempt of one quiz.
// It is safe for concurrent use: the countdown goroutine and request
// handlers share it.
type Controller struct {
	store      quiz.Store
	grader     grading.Grader
	now        func() time.Time
	tickEvery  time.Duration
	onComplete func(quiz.Attempt)

	quizID    string
	studentID string

	mu        sync.Mutex
	state     State
	quiz      quiz.Quiz
	questions []quiz.Question
	index     map[string]int
	attempt   quiz.Attempt
	answers   map[string]string
	cursor    int
	remaining int
	subs      map[chan Snapshot]struct{}
	done      chan struct{}
	pending   *submission
	lastErr   error
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithTickInterval sets the wall-clock length of one countdown tick for Run.
func WithTickInterval(d time.Duration) Option { return func(c *Controller) { c.tickEvery = d } }

func WithGrader(g grading.Grader) Option { return func(c *Controller) { c.grader = g } }

// OnComplete runs once, after the attempt is persisted as completed.
func OnComplete(fn func(quiz.Attempt)) Option { return func(c *Controller) { c.onComplete = fn } }

func New(store quiz.Store, quizID, studentID string, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		grader:    grading.NewDefaultGrader(),
		now:       time.Now,
		tickEvery: time.Second,
		quizID:    quizID,
		studentID: studentID,
		state:     StateUninitialized,
		answers:   map[string]string{},
		subs:      map[chan Snapshot]struct{}{},
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) QuizID() string    { return c.quizID }
func (c *Controller) StudentID() string { return c.studentID }

// Initialize loads the quiz and its questions, creates the attempt row and
// arms the countdown. Questions come back without answer keys.
func (c *Controller) Initialize(ctx context.Context) ([]quiz.Question, error) {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return nil, errInitialized
	}
	c.state = StateLoading
	c.mu.Unlock()

	q, qs, a, err := c.load(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateUninitialized
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.quiz = q
	c.questions = qs
	c.index = make(map[string]int, len(qs))
	for i, qq := range qs {
		c.index[qq.ID] = i
	}
	c.attempt = a
	c.remaining = q.DurationMinutes * 60
	c.state = StateInProgress
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.broadcast(snap)

	glog.V(2).Infof("attempt %s started: quiz=%s student=%s questions=%d", a.ID, q.ID, c.studentID, len(qs))
	return publicQuestions(qs), nil
}

func (c *Controller) load(ctx context.Context) (quiz.Quiz, []quiz.Question, quiz.Attempt, error) {
	q, err := c.store.GetQuiz(ctx, c.quizID)
	if err != nil {
		return quiz.Quiz{}, nil, quiz.Attempt{}, quiz.Transient(err, "load quiz")
	}
	qs, err := c.store.ListQuestions(ctx, c.quizID)
	if err != nil {
		return quiz.Quiz{}, nil, quiz.Attempt{}, quiz.Transient(err, "load questions")
	}
	a, err := c.store.CreateAttempt(ctx, quiz.Attempt{
		QuizID:         c.quizID,
		StudentID:      c.studentID,
		StartedAt:      c.now(),
		TotalQuestions: len(qs),
	})
	if err != nil {
		return quiz.Quiz{}, nil, quiz.Attempt{}, quiz.Transient(err, "start attempt")
	}
	return q, qs, a, nil
}

// RecordAnswer stores or replaces the answer for a question. Nothing is
// written to the store until Submit.
func (c *Controller) RecordAnswer(questionID, text string) error {
	c.mu.Lock()
	if err := c.answerableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if _, ok := c.index[questionID]; !ok {
		c.mu.Unlock()
		return quiz.Validation("question %s is not part of this quiz", questionID)
	}
	c.answers[questionID] = text
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.broadcast(snap)
	return nil
}

// answerableLocked reports why the student may not change the attempt.
// Once the countdown has run out only Submit is allowed.
func (c *Controller) answerableLocked() error {
	switch {
	case c.state != StateInProgress:
		return ErrNotInProgress
	case c.remaining == 0:
		return ErrTimeUp
	}
	return nil
}

// Advance moves the question cursor by one, clamped to the question range.
func (c *Controller) Advance(dir Direction) (int, error) {
	c.mu.Lock()
	if err := c.answerableLocked(); err != nil {
		cur := c.cursor
		c.mu.Unlock()
		return cur, err
	}
	n := len(c.questions)
	next := c.cursor
	switch {
	case dir > 0:
		next++
	case dir < 0:
		next--
	}
	if next > n-1 {
		next = n - 1
	}
	if next < 0 {
		next = 0
	}
	c.cursor = next
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.broadcast(snap)
	return next, nil
}

// Tick takes one second off the countdown. The tick that reaches zero
// submits the attempt; it reports true once the countdown has run out.
func (c *Controller) Tick(ctx context.Context) bool {
	c.mu.Lock()
	switch c.state {
	case StateCompleted:
		c.mu.Unlock()
		return true
	case StateInProgress:
	default:
		c.mu.Unlock()
		return false
	}
	if c.remaining == 0 {
		// an earlier timed submit failed; the student submits by hand
		c.mu.Unlock()
		return true
	}
	c.remaining--
	fire := c.remaining == 0
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.broadcast(snap)

	if !fire {
		return false
	}
	glog.V(2).Infof("attempt %s: time is up, submitting", snap.AttemptID)
	if _, err := c.Submit(ctx); err != nil {
		glog.Errorf("attempt %s: timed submit: %v", snap.AttemptID, err)
	}
	return true
}

// Run drives Tick once per interval until the countdown expires, the
// attempt completes or ctx is done.
func (c *Controller) Run(ctx context.Context) {
	t := time.NewTicker(c.tickEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-t.C:
			if c.Tick(ctx) {
				return
			}
		}
	}
}

// Done is closed once the attempt is completed.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Err is the failure of the most recent submission, nil once completed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Submit grades and persists the attempt. Only one submission runs at a
// time: a caller that arrives while one is in flight waits for it and gets
// its outcome, and a caller after completion gets the recorded attempt back
// without any writes.
func (c *Controller) Submit(ctx context.Context) (quiz.Attempt, error) {
	c.mu.Lock()
	switch c.state {
	case StateCompleted:
		a := c.attempt
		c.mu.Unlock()
		return a, nil
	case StateSubmitting:
		sub := c.pending
		c.mu.Unlock()
		select {
		case <-sub.done:
			return sub.attempt, sub.err
		case <-ctx.Done():
			return quiz.Attempt{}, quiz.Transient(ctx.Err(), "submit quiz")
		}
	case StateInProgress:
	default:
		c.mu.Unlock()
		return quiz.Attempt{}, ErrNotInProgress
	}
	c.state = StateSubmitting
	sub := &submission{done: make(chan struct{})}
	c.pending = sub
	a := c.attempt
	answers := make(map[string]string, len(c.answers))
	for k, v := range c.answers {
		answers[k] = v
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.broadcast(snap)

	done, err := c.persist(ctx, a, answers)

	c.mu.Lock()
	c.pending = nil
	if err != nil {
		err = quiz.Transient(err, "submit quiz")
		sub.err = err
		close(sub.done)
		c.lastErr = err
		c.state = StateInProgress
		snap = c.snapshotLocked()
		c.mu.Unlock()
		c.broadcast(snap)
		return quiz.Attempt{}, err
	}
	sub.attempt = done
	close(sub.done)
	c.lastErr = nil
	c.state = StateCompleted
	c.attempt = done
	c.remaining = 0
	snap = c.snapshotLocked()
	close(c.done)
	c.mu.Unlock()
	c.broadcast(snap)
	c.closeSubs()

	glog.Infof("attempt %s submitted: score=%d answered=%d/%d", done.ID, done.Score, len(answers), done.TotalQuestions)
	if c.onComplete != nil {
		c.onComplete(done)
	}
	return done, nil
}

// persist writes answers, grades each against its question's correct
// answer (one lookup per answer) and completes the attempt last, so a
// failure part way through leaves the attempt incomplete.
func (c *Controller) persist(ctx context.Context, a quiz.Attempt, answers map[string]string) (quiz.Attempt, error) {
	now := c.now()
	var rows []quiz.StudentAnswer
	if len(answers) > 0 {
		var err error
		if rows, err = c.store.UpsertAnswers(ctx, a.ID, answers); err != nil {
			return quiz.Attempt{}, err
		}
	}
	correct := 0
	for _, row := range rows {
		q, err := c.store.GetQuestion(ctx, row.QuestionID)
		if err != nil {
			return quiz.Attempt{}, err
		}
		res := c.grader.Grade(ctx, grading.Q{Type: string(q.Type), CorrectAnswer: q.CorrectAnswer, Options: q.Options}, row.AnswerText)
		if err := c.store.SetAnswerCorrect(ctx, row.ID, res.Correct); err != nil {
			return quiz.Attempt{}, err
		}
		if res.Correct {
			correct++
		}
	}
	score := grading.Score(correct, a.TotalQuestions)
	return c.store.CompleteAttempt(ctx, a.ID, score, elapsedMinutes(a.StartedAt, now), now)
}

func elapsedMinutes(start, end time.Time) int {
	m := int(math.Round(end.Sub(start).Minutes()))
	if m < 0 {
		return 0
	}
	return m
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Questions returns the loaded questions without answer keys.
func (c *Controller) Questions() []quiz.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	return publicQuestions(c.questions)
}

func (c *Controller) snapshotLocked() Snapshot {
	answers := make(map[string]string, len(c.answers))
	for k, v := range c.answers {
		answers[k] = v
	}
	s := Snapshot{
		AttemptID:        c.attempt.ID,
		QuizID:           c.quizID,
		State:            c.state,
		Cursor:           c.cursor,
		QuestionCount:    len(c.questions),
		RemainingSeconds: c.remaining,
		Answers:          answers,
	}
	if c.state == StateCompleted {
		a := c.attempt
		s.Attempt = &a
	}
	return s
}

// Subscribe streams snapshots, starting with the current one. The channel
// is closed when the attempt completes or cancel is called. Slow readers
// miss intermediate snapshots.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 4)
	c.mu.Lock()
	ch <- c.snapshotLocked()
	if c.state == StateCompleted {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (c *Controller) broadcast(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (c *Controller) closeSubs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs {
		close(ch)
		delete(c.subs, ch)
	}
}

func publicQuestions(qs []quiz.Question) []quiz.Question {
	out := make([]quiz.Question, len(qs))
	for i, q := range qs {
		out[i] = q.Public()
	}
	return out
}

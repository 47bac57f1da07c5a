package quiz

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// generateCode is swapped in tests to force collisions.
var generateCode = GenerateCode

type memoryStore struct {
	mu        sync.RWMutex
	quizzes   map[string]Quiz
	codes     map[string]string // quiz_code -> quiz id
	questions map[string]Question
	attempts  map[string]Attempt
	answers   map[string]StudentAnswer
	now       func() time.Time
}

// NewInMemoryStore keeps everything in maps. It enforces the same
// constraints as the SQL schema.
func NewInMemoryStore() Store {
	return &memoryStore{
		quizzes:   map[string]Quiz{},
		codes:     map[string]string{},
		questions: map[string]Question{},
		attempts:  map[string]Attempt{},
		answers:   map[string]StudentAnswer{},
		now:       time.Now,
	}
}

func (m *memoryStore) CreateQuiz(_ context.Context, n NewQuiz) (Quiz, error) {
	if err := n.Validate(); err != nil {
		return Quiz{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var code string
	for i := 0; ; i++ {
		if i == maxCodeTries {
			return Quiz{}, Transient(errCodeExhausted, "create quiz")
		}
		c, err := generateCode()
		if err != nil {
			return Quiz{}, Transient(err, "create quiz")
		}
		if _, taken := m.codes[c]; !taken {
			code = c
			break
		}
	}

	q := Quiz{
		ID:              uuid.NewString(),
		TeacherID:       n.TeacherID,
		Title:           n.Title,
		Description:     n.Description,
		Topic:           n.Topic,
		TotalQuestions:  len(n.Questions),
		DurationMinutes: n.DurationMinutes,
		StartTime:       n.StartTime,
		EndTime:         n.EndTime,
		Code:            code,
		CreatedAt:       m.now().UTC().Truncate(time.Second),
	}
	m.quizzes[q.ID] = q
	m.codes[code] = q.ID
	for i, d := range n.Questions {
		d = d.Normalize()
		qq := Question{
			ID:            uuid.NewString(),
			QuizID:        q.ID,
			Text:          d.Text,
			Type:          d.Type,
			Difficulty:    d.Difficulty,
			CorrectAnswer: d.CorrectAnswer,
			Options:       append([]string(nil), d.Options...),
			Points:        d.Points,
			OrderIndex:    i,
		}
		m.questions[qq.ID] = qq
	}
	return q, nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, NotFound("quiz not found")
	}
	return q, nil
}

func (m *memoryStore) GetQuizByCode(_ context.Context, code string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.codes[NormalizeCode(code)]
	if !ok {
		return Quiz{}, NotFound("no quiz matches code %s", NormalizeCode(code))
	}
	return m.quizzes[id], nil
}

func (m *memoryStore) ListQuizzesByTeacher(_ context.Context, teacherID string) ([]Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Quiz{}
	for _, q := range m.quizzes {
		if q.TeacherID == teacherID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) SetQuizActive(_ context.Context, teacherID, quizID string, active bool) (Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[quizID]
	if !ok || q.TeacherID != teacherID {
		return Quiz{}, NotFound("quiz not found")
	}
	q.IsActive = active
	m.quizzes[quizID] = q
	return q, nil
}

func (m *memoryStore) DeleteQuiz(_ context.Context, teacherID, quizID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[quizID]
	if !ok || q.TeacherID != teacherID {
		return NotFound("quiz not found")
	}
	delete(m.quizzes, quizID)
	delete(m.codes, q.Code)
	for id, qq := range m.questions {
		if qq.QuizID == quizID {
			delete(m.questions, id)
		}
	}
	for id, a := range m.attempts {
		if a.QuizID != quizID {
			continue
		}
		for aid, ans := range m.answers {
			if ans.AttemptID == id {
				delete(m.answers, aid)
			}
		}
		delete(m.attempts, id)
	}
	return nil
}

func (m *memoryStore) ListQuestions(_ context.Context, quizID string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.quizzes[quizID]; !ok {
		return nil, NotFound("quiz not found")
	}
	out := []Question{}
	for _, q := range m.questions {
		if q.QuizID == quizID {
			q.Options = append([]string(nil), q.Options...)
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memoryStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, NotFound("question not found")
	}
	q.Options = append([]string(nil), q.Options...)
	return q, nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[a.QuizID]; !ok {
		return Attempt{}, NotFound("quiz not found")
	}
	for _, x := range m.attempts {
		if x.QuizID == a.QuizID && x.StudentID == a.StudentID {
			return Attempt{}, ErrAlreadyAttempted
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.IsCompleted = false
	a.CompletedAt = nil
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, NotFound("attempt not found")
	}
	return a, nil
}

func (m *memoryStore) FindAttempt(_ context.Context, quizID, studentID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.StudentID == studentID {
			return a, nil
		}
	}
	return Attempt{}, NotFound("attempt not found")
}

func (m *memoryStore) ListAttemptsByStudent(_ context.Context, studentID string) ([]Attempt, error) {
	return m.listAttempts(func(a Attempt) bool { return a.StudentID == studentID }), nil
}

func (m *memoryStore) ListAttemptsByQuiz(_ context.Context, quizID string) ([]Attempt, error) {
	return m.listAttempts(func(a Attempt) bool { return a.QuizID == quizID }), nil
}

func (m *memoryStore) listAttempts(keep func(Attempt) bool) []Attempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (m *memoryStore) CompleteAttempt(_ context.Context, id string, score, timeTaken int, completedAt time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, NotFound("attempt not found")
	}
	if a.IsCompleted {
		return a, nil
	}
	t := completedAt
	a.CompletedAt = &t
	a.IsCompleted = true
	a.Score = score
	a.TimeTakenMinutes = timeTaken
	m.attempts[id] = a
	return a, nil
}

func (m *memoryStore) UpsertAnswers(_ context.Context, attemptID string, answers map[string]string) ([]StudentAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[attemptID]; !ok {
		return nil, NotFound("attempt not found")
	}
	existing := map[string]string{} // question id -> answer id
	for id, ans := range m.answers {
		if ans.AttemptID == attemptID {
			existing[ans.QuestionID] = id
		}
	}
	out := make([]StudentAnswer, 0, len(answers))
	for _, qid := range sortedKeys(answers) {
		if _, ok := m.questions[qid]; !ok {
			return nil, NotFound("question not found")
		}
		sa := StudentAnswer{AttemptID: attemptID, QuestionID: qid, AnswerText: answers[qid]}
		if id, ok := existing[qid]; ok {
			sa.ID = id
		} else {
			sa.ID = uuid.NewString()
		}
		m.answers[sa.ID] = sa
		out = append(out, sa)
	}
	return out, nil
}

func (m *memoryStore) SetAnswerCorrect(_ context.Context, answerID string, correct bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sa, ok := m.answers[answerID]
	if !ok {
		return NotFound("answer not found")
	}
	sa.IsCorrect = correct
	m.answers[answerID] = sa
	return nil
}

func (m *memoryStore) ListAnswers(_ context.Context, attemptID string) ([]StudentAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []StudentAnswer{}
	for _, sa := range m.answers {
		if sa.AttemptID == attemptID {
			out = append(out, sa)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.questions[out[i].QuestionID].OrderIndex < m.questions[out[j].QuestionID].OrderIndex
	})
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

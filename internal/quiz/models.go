package quiz

import "time"

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	FillInBlank    QuestionType = "fill_in_the_blank"
	Theory         QuestionType = "theory"
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, FillInBlank, Theory:
		return true
	}
	return false
}

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

type Quiz struct {
	ID              string     `json:"id"`
	TeacherID       string     `json:"teacher_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Topic           string     `json:"topic,omitempty"`
	TotalQuestions  int        `json:"total_questions"`
	DurationMinutes int        `json:"duration_minutes"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	IsActive        bool       `json:"is_active"`
	Code            string     `json:"quiz_code"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quiz_id"`
	Text          string       `json:"question_text"`
	Type          QuestionType `json:"question_type"`
	Difficulty    Difficulty   `json:"difficulty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Options       []string     `json:"options,omitempty"` // multiple_choice only
	Points        int          `json:"points"`
	OrderIndex    int          `json:"order_index"`
}

// Public strips the answer key before a question is shown to a student.
func (q Question) Public() Question {
	q.CorrectAnswer = ""
	return q
}

// QuestionDraft is an unsaved question, either generated or typed in by a
// teacher. Order is given by the slice position at creation.
type QuestionDraft struct {
	Text          string       `json:"question_text"`
	Type          QuestionType `json:"question_type"`
	Difficulty    Difficulty   `json:"difficulty"`
	CorrectAnswer string       `json:"correct_answer"`
	Options       []string     `json:"options,omitempty"`
	Points        int          `json:"points"`
}

type Attempt struct {
	ID               string     `json:"id"`
	QuizID           string     `json:"quiz_id"`
	StudentID        string     `json:"student_id"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Score            int        `json:"score"`
	TotalQuestions   int        `json:"total_questions"`
	IsCompleted      bool       `json:"is_completed"`
	TimeTakenMinutes int        `json:"time_taken_minutes"`
}

type StudentAnswer struct {
	ID         string `json:"id"`
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`
	AnswerText string `json:"answer_text"`
	IsCorrect  bool   `json:"is_correct"`
}

// NewQuiz is the teacher-supplied part of a quiz at creation time.
type NewQuiz struct {
	TeacherID       string
	Title           string
	Description     string
	Topic           string
	DurationMinutes int
	StartTime       *time.Time
	EndTime         *time.Time
	Questions       []QuestionDraft
}

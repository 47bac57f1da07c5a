package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

type SQLStore struct {
	db     *sql.DB
	driver db.Driver
	now    func() time.Time
}

func NewSQLStore(dbh *sql.DB, driver db.Driver) *SQLStore {
	return &SQLStore{db: dbh, driver: driver, now: time.Now}
}

const quizColumns = `id,teacher_id,title,description,topic,total_questions,duration_minutes,start_time,end_time,is_active,quiz_code,created_at`

const questionColumns = `id,quiz_id,question_text,question_type,difficulty,correct_answer,options_json,points,order_index`

const attemptColumns = `id,quiz_id,student_id,started_at,completed_at,score,total_questions,is_completed,time_taken_minutes`

func (s *SQLStore) CreateQuiz(ctx context.Context, n NewQuiz) (Quiz, error) {
	if err := n.Validate(); err != nil {
		return Quiz{}, err
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
		CreatedAt:       time.Unix(s.now().Unix(), 0).UTC(),
	}

	for i := 0; i < maxCodeTries; i++ {
		code, err := generateCode()
		if err != nil {
			return Quiz{}, Transient(err, "create quiz")
		}
		q.Code = code
		err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			return s.insertQuiz(ctx, tx, q, n.Questions)
		})
		if err == nil {
			return q, nil
		}
		if !db.ViolatesColumn(err, "quiz_code") {
			return Quiz{}, Transient(err, "create quiz")
		}
	}
	return Quiz{}, Transient(errCodeExhausted, "create quiz")
}

func (s *SQLStore) insertQuiz(ctx context.Context, tx *sql.Tx, q Quiz, drafts []QuestionDraft) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO quizzes (`+quizColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		q.ID, q.TeacherID, q.Title, q.Description, q.Topic, q.TotalQuestions, q.DurationMinutes,
		unixOrNull(q.StartTime), unixOrNull(q.EndTime), false, q.Code, q.CreatedAt.Unix())
	if err != nil {
		return err
	}
	for i, d := range drafts {
		d = d.Normalize()
		opts, err := json.Marshal(nonNil(d.Options))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO questions (`+questionColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			uuid.NewString(), q.ID, d.Text, string(d.Type), string(d.Difficulty), d.CorrectAnswer,
			string(opts), d.Points, i)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id=$1`, id)
	q, err := scanQuiz(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, NotFound("quiz not found")
	}
	return q, Transient(err, "load quiz")
}

func (s *SQLStore) GetQuizByCode(ctx context.Context, code string) (Quiz, error) {
	code = NormalizeCode(code)
	row := s.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE quiz_code=$1`, code)
	q, err := scanQuiz(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, NotFound("no quiz matches code %s", code)
	}
	return q, Transient(err, "look up quiz")
}

func (s *SQLStore) ListQuizzesByTeacher(ctx context.Context, teacherID string) ([]Quiz, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE teacher_id=$1 ORDER BY created_at DESC, id`, teacherID)
	if err != nil {
		return nil, Transient(err, "list quizzes")
	}
	defer rows.Close()
	out := []Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, Transient(err, "list quizzes")
		}
		out = append(out, q)
	}
	return out, Transient(rows.Err(), "list quizzes")
}

func (s *SQLStore) SetQuizActive(ctx context.Context, teacherID, quizID string, active bool) (Quiz, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE quizzes SET is_active=$1 WHERE id=$2 AND teacher_id=$3`,
		active, quizID, teacherID)
	if err != nil {
		return Quiz{}, Transient(err, "update quiz")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Quiz{}, NotFound("quiz not found")
	}
	return s.GetQuiz(ctx, quizID)
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, teacherID, quizID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1 AND teacher_id=$2`, quizID, teacherID)
	if err != nil {
		return Transient(err, "delete quiz")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFound("quiz not found")
	}
	return nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, quizID string) ([]Question, error) {
	if _, err := s.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE quiz_id=$1 ORDER BY order_index`, quizID)
	if err != nil {
		return nil, Transient(err, "load questions")
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, Transient(err, "load questions")
		}
		out = append(out, q)
	}
	return out, Transient(rows.Err(), "load questions")
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, NotFound("question not found")
	}
	return q, Transient(err, "load question")
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.StartedAt = time.Unix(a.StartedAt.Unix(), 0).UTC()
	a.IsCompleted = false
	a.CompletedAt = nil
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts (`+attemptColumns+`)
		VALUES ($1,$2,$3,$4,NULL,0,$5,$6,0)`,
		a.ID, a.QuizID, a.StudentID, a.StartedAt.Unix(), a.TotalQuestions, false)
	switch {
	case db.ViolatesColumn(err, "student_id"):
		return Attempt{}, ErrAlreadyAttempted
	case err != nil:
		return Attempt{}, Transient(err, "start attempt")
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, NotFound("attempt not found")
	}
	return a, Transient(err, "load attempt")
}

func (s *SQLStore) FindAttempt(ctx context.Context, quizID, studentID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE quiz_id=$1 AND student_id=$2`, quizID, studentID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, NotFound("attempt not found")
	}
	return a, Transient(err, "check previous attempts")
}

func (s *SQLStore) ListAttemptsByStudent(ctx context.Context, studentID string) ([]Attempt, error) {
	return s.listAttempts(ctx, `student_id=$1`, studentID)
}

func (s *SQLStore) ListAttemptsByQuiz(ctx context.Context, quizID string) ([]Attempt, error) {
	return s.listAttempts(ctx, `quiz_id=$1`, quizID)
}

func (s *SQLStore) listAttempts(ctx context.Context, where string, arg string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE `+where+` ORDER BY started_at DESC, id`, arg)
	if err != nil {
		return nil, Transient(err, "list attempts")
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, Transient(err, "list attempts")
		}
		out = append(out, a)
	}
	return out, Transient(rows.Err(), "list attempts")
}

func (s *SQLStore) CompleteAttempt(ctx context.Context, id string, score, timeTaken int, completedAt time.Time) (Attempt, error) {
	// is_completed guard keeps the first completion authoritative
	_, err := s.db.ExecContext(ctx, `UPDATE attempts
		SET is_completed=$1, completed_at=$2, score=$3, time_taken_minutes=$4
		WHERE id=$5 AND is_completed=$6`,
		true, completedAt.Unix(), score, timeTaken, id, false)
	if err != nil {
		return Attempt{}, Transient(err, "submit attempt")
	}
	return s.GetAttempt(ctx, id)
}

func (s *SQLStore) UpsertAnswers(ctx context.Context, attemptID string, answers map[string]string) ([]StudentAnswer, error) {
	out := make([]StudentAnswer, 0, len(answers))
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, qid := range sortedKeys(answers) {
			sa := StudentAnswer{ID: uuid.NewString(), AttemptID: attemptID, QuestionID: qid, AnswerText: answers[qid]}
			_, err := tx.ExecContext(ctx, `INSERT INTO student_answers (id,attempt_id,question_id,answer_text,is_correct)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT (attempt_id, question_id) DO UPDATE SET answer_text=EXCLUDED.answer_text`,
				sa.ID, attemptID, qid, sa.AnswerText, false)
			if err != nil {
				return err
			}
			// conflict keeps the original id
			if err := tx.QueryRowContext(ctx,
				`SELECT id FROM student_answers WHERE attempt_id=$1 AND question_id=$2`,
				attemptID, qid).Scan(&sa.ID); err != nil {
				return err
			}
			out = append(out, sa)
		}
		return nil
	})
	if err != nil {
		return nil, Transient(err, "save answers")
	}
	return out, nil
}

func (s *SQLStore) SetAnswerCorrect(ctx context.Context, answerID string, correct bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE student_answers SET is_correct=$1 WHERE id=$2`, correct, answerID)
	if err != nil {
		return Transient(err, "grade answer")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFound("answer not found")
	}
	return nil
}

func (s *SQLStore) ListAnswers(ctx context.Context, attemptID string) ([]StudentAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT a.id,a.attempt_id,a.question_id,a.answer_text,a.is_correct
		FROM student_answers a JOIN questions q ON q.id=a.question_id
		WHERE a.attempt_id=$1 ORDER BY q.order_index`, attemptID)
	if err != nil {
		return nil, Transient(err, "load answers")
	}
	defer rows.Close()
	out := []StudentAnswer{}
	for rows.Next() {
		var sa StudentAnswer
		if err := rows.Scan(&sa.ID, &sa.AttemptID, &sa.QuestionID, &sa.AnswerText, &sa.IsCorrect); err != nil {
			return nil, Transient(err, "load answers")
		}
		out = append(out, sa)
	}
	return out, Transient(rows.Err(), "load answers")
}

// ---- scanning ----

type scanner interface {
	Scan(dest ...any) error
}

func scanQuiz(r scanner) (Quiz, error) {
	var q Quiz
	var start, end sql.NullInt64
	var created int64
	if err := r.Scan(&q.ID, &q.TeacherID, &q.Title, &q.Description, &q.Topic, &q.TotalQuestions,
		&q.DurationMinutes, &start, &end, &q.IsActive, &q.Code, &created); err != nil {
		return Quiz{}, err
	}
	q.StartTime = timeOrNil(start)
	q.EndTime = timeOrNil(end)
	q.CreatedAt = time.Unix(created, 0).UTC()
	return q, nil
}

func scanQuestion(r scanner) (Question, error) {
	var q Question
	var typ, diff, opts string
	if err := r.Scan(&q.ID, &q.QuizID, &q.Text, &typ, &diff, &q.CorrectAnswer, &opts, &q.Points, &q.OrderIndex); err != nil {
		return Question{}, err
	}
	q.Type = QuestionType(typ)
	q.Difficulty = Difficulty(diff)
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return Question{}, errors.Wrapf(err, "question %s options", q.ID)
	}
	if len(q.Options) == 0 {
		q.Options = nil
	}
	return q, nil
}

func scanAttempt(r scanner) (Attempt, error) {
	var a Attempt
	var started int64
	var completed sql.NullInt64
	if err := r.Scan(&a.ID, &a.QuizID, &a.StudentID, &started, &completed, &a.Score,
		&a.TotalQuestions, &a.IsCompleted, &a.TimeTakenMinutes); err != nil {
		return Attempt{}, err
	}
	a.StartedAt = time.Unix(started, 0).UTC()
	a.CompletedAt = timeOrNil(completed)
	return a, nil
}

func unixOrNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

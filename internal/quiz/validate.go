package quiz

import (
	"strings"
)

// ValidateDraft checks one question draft. Generated content is not trusted
// to be correct, only to be well-formed.
func ValidateDraft(d QuestionDraft) error {
	if strings.TrimSpace(d.Text) == "" {
		return Validation("question text is required")
	}
	if !d.Type.Valid() {
		return Validation("unknown question type %q", d.Type)
	}
	if d.Difficulty != "" && !d.Difficulty.Valid() {
		return Validation("unknown difficulty %q", d.Difficulty)
	}
	if strings.TrimSpace(d.CorrectAnswer) == "" {
		return Validation("correct answer is required")
	}
	if d.Points < 0 {
		return Validation("points must not be negative")
	}
	switch d.Type {
	case MultipleChoice:
		if len(d.Options) < 2 {
			return Validation("multiple choice questions need at least two options")
		}
	default:
		if len(d.Options) > 0 {
			return Validation("only multiple choice questions carry options")
		}
	}
	return nil
}

// Normalize fills defaults on a draft that passed ValidateDraft.
func (d QuestionDraft) Normalize() QuestionDraft {
	d.Text = strings.TrimSpace(d.Text)
	d.CorrectAnswer = strings.TrimSpace(d.CorrectAnswer)
	if d.Difficulty == "" {
		d.Difficulty = Medium
	}
	if d.Points == 0 {
		d.Points = 1
	}
	return d
}

func (n NewQuiz) Validate() error {
	if strings.TrimSpace(n.TeacherID) == "" {
		return Validation("teacher is required")
	}
	if strings.TrimSpace(n.Title) == "" {
		return Validation("title is required")
	}
	if n.DurationMinutes <= 0 {
		return Validation("duration must be at least one minute")
	}
	if n.StartTime != nil && n.EndTime != nil && !n.EndTime.After(*n.StartTime) {
		return Validation("end time must be after start time")
	}
	if len(n.Questions) == 0 {
		return Validation("a quiz needs at least one question")
	}
	for i, d := range n.Questions {
		if err := ValidateDraft(d); err != nil {
			return Validation("question %d: %s", i+1, Message(err))
		}
	}
	return nil
}

package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// MaxQuestions caps one generation request.
const MaxQuestions = 50

// Request describes the questions a teacher wants drafted.
type Request struct {
	Topic      string                    `json:"topic"`
	Counts     map[quiz.QuestionType]int `json:"counts"`
	Difficulty quiz.Difficulty           `json:"difficulty"`
}

func (r Request) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return quiz.Validation("topic is required")
	}
	if r.Difficulty != "" && !r.Difficulty.Valid() {
		return quiz.Validation("unknown difficulty %q", r.Difficulty)
	}
	for t, c := range r.Counts {
		if !t.Valid() {
			return quiz.Validation("unknown question type %q", t)
		}
		if c < 0 {
			return quiz.Validation("question counts must not be negative")
		}
	}
	if n := r.Total(); n == 0 || n > MaxQuestions {
		return quiz.Validation("ask for between 1 and %d questions", MaxQuestions)
	}
	return nil
}

// Generator drafts questions for review. Drafts are never saved here.
type Generator interface {
	Generate(ctx context.Context, r Request) ([]quiz.QuestionDraft, error)
}

// TextModel is a single-prompt text completion backend.
type TextModel interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ModelGenerator turns a Request into a prompt, asks the model and keeps
// the well-formed drafts from its answer.
type ModelGenerator struct {
	model TextModel
}

func NewModelGenerator(m TextModel) *ModelGenerator { return &ModelGenerator{model: m} }

func (g *ModelGenerator) Generate(ctx context.Context, r Request) ([]quiz.QuestionDraft, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	text, err := g.model.GenerateText(ctx, BuildPrompt(r))
	if err != nil {
		return nil, quiz.Transient(err, "generate questions")
	}
	drafts, err := ParseDrafts(text, r.Difficulty)
	if err != nil {
		return nil, quiz.Transient(err, "generate questions")
	}
	return drafts, nil
}

// Disabled is used when no model is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, Request) ([]quiz.QuestionDraft, error) {
	return nil, quiz.NotAvailable("question generation is not configured")
}

var typeHints = map[quiz.QuestionType]string{
	quiz.MultipleChoice: `"options" holds 4 choices and "correct_answer" is the exact text of one of them`,
	quiz.TrueFalse:      `"correct_answer" is "True" or "False" and there are no options`,
	quiz.FillInBlank:    `the text marks the blank with ____ and "correct_answer" is the missing word or number`,
	quiz.Theory:         `"correct_answer" is a short model answer`,
}

// BuildPrompt asks for a bare JSON array so ParseDrafts can read it.
func BuildPrompt(r Request) string {
	difficulty := r.Difficulty
	if difficulty == "" {
		difficulty = quiz.Medium
	}
	types := make([]string, 0, len(r.Counts))
	for t, c := range r.Counts {
		if c > 0 {
			types = append(types, string(t))
		}
	}
	sort.Strings(types)

	var b strings.Builder
	fmt.Fprintf(&b, "Write %d quiz questions about %q at %s difficulty.\n", r.Total(), strings.TrimSpace(r.Topic), difficulty)
	b.WriteString("Questions needed:\n")
	for _, t := range types {
		qt := quiz.QuestionType(t)
		fmt.Fprintf(&b, "- %d of type %s: %s\n", r.Counts[qt], t, typeHints[qt])
	}
	b.WriteString("Reply with only a JSON array. Each element has the keys ")
	b.WriteString(`"question_text", "question_type", "difficulty", "correct_answer", "options", "points".`)
	b.WriteString("\nUse points 1 unless a question is clearly harder.")
	return b.String()
}

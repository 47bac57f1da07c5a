package generation

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

type fakeModel struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeModel) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

const fencedReply = "Here you go:\n```json\n" + `[
  {"question_text": "Capital of France?", "question_type": "multiple_choice", "difficulty": "easy",
   "correct_answer": "Paris", "options": ["Paris", "Rome", "Madrid", "Oslo"], "points": 1},
  {"question_text": "The Seine flows through Paris.", "question_type": "true_false", "correct_answer": true},
  {"question_text": "France has ____ regions.", "question_type": "fill_in_the_blank", "correct_answer": 18, "options": ["x"]},
  {"question_text": "Pick one", "question_type": "multiple_choice", "correct_answer": "A", "options": ["A"]},
  {"question_text": "", "question_type": "theory", "correct_answer": "nothing"},
  {"question_text": "Describe", "question_type": "essay", "correct_answer": "x"}
]` + "\n```"

func TestParseDrafts(t *testing.T) {
	drafts, err := ParseDrafts(fencedReply, quiz.Hard)
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	require.Equal(t, quiz.MultipleChoice, drafts[0].Type)
	require.Equal(t, quiz.Easy, drafts[0].Difficulty)
	require.Len(t, drafts[0].Options, 4)

	require.Equal(t, "True", drafts[1].CorrectAnswer)
	require.Equal(t, quiz.Hard, drafts[1].Difficulty)
	require.Equal(t, 1, drafts[1].Points)

	require.Equal(t, "18", drafts[2].CorrectAnswer)
	require.Nil(t, drafts[2].Options)
}

func TestParseDrafts_Errors(t *testing.T) {
	_, err := ParseDrafts("I cannot help with that.", "")
	require.Error(t, err)

	_, err = ParseDrafts(`[{"question_text": "", "question_type": "theory", "correct_answer": "x"}]`, "")
	require.ErrorIs(t, err, ErrNoDrafts)
}

func TestRequestValidate(t *testing.T) {
	ok := Request{Topic: "fractions", Counts: map[quiz.QuestionType]int{quiz.TrueFalse: 2, quiz.Theory: 1}}
	require.NoError(t, ok.Validate())
	require.Equal(t, 3, ok.Total())

	bad := []Request{
		{Topic: " ", Counts: map[quiz.QuestionType]int{quiz.TrueFalse: 1}},
		{Topic: "x"},
		{Topic: "x", Counts: map[quiz.QuestionType]int{"essay": 1}},
		{Topic: "x", Counts: map[quiz.QuestionType]int{quiz.TrueFalse: MaxQuestions + 1}},
		{Topic: "x", Counts: map[quiz.QuestionType]int{quiz.TrueFalse: 1}, Difficulty: "brutal"},
	}
	for _, r := range bad {
		require.True(t, quiz.IsKind(r.Validate(), quiz.KindValidation), "%+v", r)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(Request{Topic: " photosynthesis ", Counts: map[quiz.QuestionType]int{
		quiz.MultipleChoice: 3,
		quiz.FillInBlank:    2,
		quiz.Theory:         0,
	}})
	require.Contains(t, p, `Write 5 quiz questions about "photosynthesis" at medium difficulty.`)
	require.Contains(t, p, "- 2 of type fill_in_the_blank")
	require.Contains(t, p, "- 3 of type multiple_choice")
	require.NotContains(t, p, "of type theory")
	require.Less(t, strings.Index(p, "fill_in_the_blank"), strings.Index(p, "of type multiple_choice"))
}

func TestModelGenerator(t *testing.T) {
	ctx := context.Background()
	req := Request{Topic: "France", Counts: map[quiz.QuestionType]int{quiz.MultipleChoice: 1, quiz.TrueFalse: 1}}

	m := &fakeModel{reply: fencedReply}
	drafts, err := NewModelGenerator(m).Generate(ctx, req)
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	require.Contains(t, m.prompt, "France")

	_, err = NewModelGenerator(&fakeModel{err: errors.New("quota exceeded")}).Generate(ctx, req)
	require.True(t, quiz.IsKind(err, quiz.KindTransientStore))
	require.Equal(t, "failed to generate questions, try again", quiz.Message(err))

	_, err = NewModelGenerator(m).Generate(ctx, Request{})
	require.True(t, quiz.IsKind(err, quiz.KindValidation))

	_, err = Disabled{}.Generate(ctx, req)
	require.True(t, quiz.IsKind(err, quiz.KindNotAvailable))
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "")
	require.Error(t, err)
}

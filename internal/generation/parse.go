package generation

import (
	"encoding/json"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

var ErrNoDrafts = errors.New("model returned no usable questions")

type rawDraft struct {
	Text          string          `json:"question_text"`
	Type          string          `json:"question_type"`
	Difficulty    string          `json:"difficulty"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Options       []string        `json:"options"`
	Points        int             `json:"points"`
}

// stripFences removes a ```json ... ``` wrapper and any chatter around the
// outermost JSON array.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if i, j := strings.Index(s, "["), strings.LastIndex(s, "]"); i >= 0 && j > i {
		s = s[i : j+1]
	}
	return strings.TrimSpace(s)
}

// answerText accepts a JSON string, bool or number.
func answerText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "True"
		}
		return "False"
	}
	return strings.TrimSpace(string(raw))
}

// ParseDrafts reads the model's reply. Invalid drafts are dropped; a reply
// with none left is an error.
func ParseDrafts(text string, difficulty quiz.Difficulty) ([]quiz.QuestionDraft, error) {
	var raws []rawDraft
	if err := json.Unmarshal([]byte(stripFences(text)), &raws); err != nil {
		return nil, errors.Wrap(err, "decode model reply")
	}
	out := make([]quiz.QuestionDraft, 0, len(raws))
	for i, r := range raws {
		d := quiz.QuestionDraft{
			Text:          r.Text,
			Type:          quiz.QuestionType(strings.ToLower(strings.TrimSpace(r.Type))),
			Difficulty:    quiz.Difficulty(strings.ToLower(strings.TrimSpace(r.Difficulty))),
			CorrectAnswer: answerText(r.CorrectAnswer),
			Options:       r.Options,
			Points:        r.Points,
		}
		if d.Type != quiz.MultipleChoice {
			d.Options = nil
		}
		if !d.Difficulty.Valid() {
			d.Difficulty = difficulty
		}
		if err := quiz.ValidateDraft(d); err != nil {
			glog.V(2).Infof("generation: dropping draft %d: %s", i, quiz.Message(err))
			continue
		}
		out = append(out, d.Normalize())
	}
	if len(out) == 0 {
		return nil, ErrNoDrafts
	}
	return out, nil
}

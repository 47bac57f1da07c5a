package grading

import (
	"context"
)

// Q is the part of a question needed for grading.
type Q struct {
	Type          string
	CorrectAnswer string
	Options       []string
}

// Result is the outcome of grading a single response.
type Result struct {
	Correct  bool
	Feedback []string
}

// Strategy grades a single question type.
type Strategy interface {
	Grade(ctx context.Context, q Q, response string) Result
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response string) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response string) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{Feedback: []string{"no strategy for question type " + q.Type}}
	}
	return s.Grade(ctx, q, response)
}

type Option func(*config)

type config struct {
	strategies map[string]Strategy
}

// WithStrategy installs or replaces the strategy for a question type.
func WithStrategy(questionType string, s Strategy) Option {
	return func(c *config) { c.strategies[questionType] = s }
}

// NewDefaultGrader installs the built-in strategies. Every built-in type is
// graded by exact text match after trimming and case folding.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{strategies: map[string]Strategy{
		"multiple_choice":   optionStrategy{},
		"true_false":        textMatchStrategy{},
		"fill_in_the_blank": textMatchStrategy{},
		"theory":            textMatchStrategy{},
	}}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{strategies: cfg.strategies}
}

type textMatchStrategy struct{}

func (textMatchStrategy) Grade(_ context.Context, q Q, response string) Result {
	return Result{Correct: Match(response, q.CorrectAnswer)}
}

// optionStrategy grades a selected option label. A label that is not one of
// the offered options still goes through the same comparison.
type optionStrategy struct{}

func (optionStrategy) Grade(_ context.Context, q Q, response string) Result {
	res := Result{Correct: Match(response, q.CorrectAnswer)}
	if !res.Correct && len(q.Options) > 0 && !offered(q.Options, response) {
		res.Feedback = append(res.Feedback, "answer is not one of the options")
	}
	return res
}

func offered(options []string, response string) bool {
	for _, o := range options {
		if Match(o, response) {
			return true
		}
	}
	return false
}

package grading

import (
	"math"
	"strings"
)

// Match compares a response to a correct answer, ignoring surrounding
// whitespace and letter case.
func Match(response, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(response), strings.TrimSpace(correct))
}

// Score is round(100 * correct / total), 0 when there are no questions.
func Score(correct, total int) int {
	if total <= 0 || correct <= 0 {
		return 0
	}
	if correct > total {
		correct = total
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

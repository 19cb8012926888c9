package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"echo-trivia/internal/generator"
)

// CannedCompleter is an offline text-completion provider for local runs and tests.
// Multiple-choice answers are always choice B, true/false answers are always true and
// short answers are "canned".
type CannedCompleter struct {
	n atomic.Int64
}

func NewCannedCompleter() *CannedCompleter {
	return &CannedCompleter{}
}

func (c *CannedCompleter) Complete(_ context.Context, p generator.Prompt) (string, error) {
	n := c.n.Add(1)
	user := p.User
	var payload any
	switch {
	case strings.Contains(user, "Player answer:"):
		payload = map[string]any{"score": 0.0, "rationale": "offline grader only accepts exact answers"}
	case strings.Contains(user, "multiple-choice"):
		payload = map[string]any{
			"question": fmt.Sprintf("Canned question %d: which option is second?", n),
			"choices": []map[string]string{
				{"label": "A", "text": fmt.Sprintf("First %d", n)},
				{"label": "B", "text": fmt.Sprintf("Second %d", n)},
				{"label": "C", "text": fmt.Sprintf("Third %d", n)},
				{"label": "D", "text": fmt.Sprintf("Fourth %d", n)},
			},
			"answer":      "B",
			"explanation": "The second option is labeled B.",
		}
	case strings.Contains(user, "true/false"):
		payload = map[string]any{"question": fmt.Sprintf("Canned statement %d is true.", n), "answer": "true"}
	default:
		payload = map[string]any{"question": fmt.Sprintf("Canned question %d: type canned.", n), "answer": "canned"}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

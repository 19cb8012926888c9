package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"echo-trivia/internal/domain"
)

var choiceLabels = []string{"A", "B", "C", "D"}

type payload struct {
	Question    string          `json:"question"`
	Choices     []domain.Choice `json:"choices"`
	Answer      json.RawMessage `json:"answer"`
	Explanation string          `json:"explanation"`
}

type judgePayload struct {
	Score     *float64 `json:"score"`
	Rationale string   `json:"rationale"`
}

// ExtractJSON returns the outermost {...} object in text, ignoring prose or code fences around it.
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in response")
	}
	return text[start : end+1], nil
}

// Parse validates a provider response against the schema for want.
// Multiple choice needs exactly four choices labeled A-D; nothing is padded or truncated.
func Parse(text string, want domain.QuestionType) (RawQuestion, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return RawQuestion{}, err
	}
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return RawQuestion{}, fmt.Errorf("decode: %w", err)
	}
	p.Question = strings.TrimSpace(p.Question)
	if p.Question == "" {
		return RawQuestion{}, errors.New("question is empty")
	}
	answer, err := answerString(p.Answer)
	if err != nil {
		return RawQuestion{}, err
	}

	q := RawQuestion{
		Type:        want,
		Prompt:      p.Question,
		Explanation: strings.TrimSpace(p.Explanation),
	}
	switch want {
	case domain.MultipleChoice:
		choices, err := normalizeChoices(p.Choices)
		if err != nil {
			return RawQuestion{}, err
		}
		text, err := resolveChoiceAnswer(choices, answer)
		if err != nil {
			return RawQuestion{}, err
		}
		q.Choices = choices
		q.Answer = text
	case domain.TrueFalse:
		switch domain.NormalizeLoose(answer) {
		case "true":
			q.Answer = "True"
		case "false":
			q.Answer = "False"
		default:
			return RawQuestion{}, fmt.Errorf("true/false answer %q", answer)
		}
	case domain.ShortAnswer:
		if answer == "" {
			return RawQuestion{}, errors.New("answer is empty")
		}
		q.Answer = answer
	default:
		return RawQuestion{}, fmt.Errorf("unknown question type %q", want)
	}
	return q, nil
}

// answerString accepts a JSON string or boolean.
func answerString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("answer is missing")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "true", nil
		}
		return "false", nil
	}
	return "", fmt.Errorf("answer has unsupported JSON type: %s", raw)
}

func normalizeChoices(in []domain.Choice) ([]domain.Choice, error) {
	if len(in) != len(choiceLabels) {
		return nil, fmt.Errorf("expected %d choices, got %d", len(choiceLabels), len(in))
	}
	out := make([]domain.Choice, len(in))
	seen := make(map[string]bool, len(in))
	for i, c := range in {
		label := strings.ToUpper(strings.TrimSpace(c.Label))
		text := strings.TrimSpace(c.Text)
		if text == "" {
			return nil, fmt.Errorf("choice %q has no text", label)
		}
		if seen[label] {
			return nil, fmt.Errorf("duplicate choice label %q", label)
		}
		seen[label] = true
		out[i] = domain.Choice{Label: label, Text: text}
	}
	for _, l := range choiceLabels {
		if !seen[l] {
			return nil, fmt.Errorf("missing choice label %q", l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// resolveChoiceAnswer accepts a label ("B", "b)", "B. Paris") or the choice text and returns the text.
func resolveChoiceAnswer(choices []domain.Choice, answer string) (string, error) {
	norm := domain.NormalizeLoose(answer)
	for _, c := range choices {
		if domain.NormalizeLoose(c.Text) == norm {
			return c.Text, nil
		}
	}
	label := strings.ToUpper(strings.TrimRight(strings.TrimSpace(answer), ").:"))
	for _, c := range choices {
		if label == c.Label {
			return c.Text, nil
		}
	}
	if len(answer) > 2 {
		prefix := strings.ToUpper(answer[:1])
		rest := strings.TrimSpace(strings.TrimLeft(answer[1:], ").: "))
		for _, c := range choices {
			if c.Label == prefix && domain.NormalizeLoose(c.Text) == domain.NormalizeLoose(rest) {
				return c.Text, nil
			}
		}
	}
	return "", fmt.Errorf("answer %q matches no choice", answer)
}

// ParseJudgment validates a grader response. Score must lie in [0,1].
func ParseJudgment(text string) (Judgment, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	var p judgePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Judgment{}, fmt.Errorf("%w: decode judgment: %v", domain.ErrGeneration, err)
	}
	if p.Score == nil || *p.Score < 0 || *p.Score > 1 {
		return Judgment{}, fmt.Errorf("%w: judgment score missing or out of range", domain.ErrGeneration)
	}
	return Judgment{Score: *p.Score, Rationale: strings.TrimSpace(p.Rationale)}, nil
}

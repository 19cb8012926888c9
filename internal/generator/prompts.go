package generator

import (
	"fmt"
	"strings"

	"echo-trivia/internal/domain"
)

const systemPrompt = "You write trivia questions. Reply with a single JSON object and nothing else."

func schemaFor(t domain.QuestionType) string {
	switch t {
	case domain.MultipleChoice:
		return `{"question": string, "choices": [{"label": "A"|"B"|"C"|"D", "text": string}] (exactly 4), "answer": label or choice text, "explanation": string}`
	case domain.TrueFalse:
		return `{"question": string, "answer": "true"|"false", "explanation": string}`
	default:
		return `{"question": string, "answer": short string, "explanation": string}`
	}
}

func questionPrompt(spec Spec, temperature float32) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Write one %s trivia question about %q.\n", spec.Difficulty, spec.Category)
	switch spec.Type {
	case domain.MultipleChoice:
		b.WriteString("It is a multiple-choice question with exactly four options labeled A, B, C and D, one of them correct.\n")
	case domain.TrueFalse:
		b.WriteString("It is a true/false statement.\n")
	case domain.ShortAnswer:
		b.WriteString("It has a short factual answer of a few words.\n")
	}
	fmt.Fprintf(&b, "Schema: %s", schemaFor(spec.Type))
	return Prompt{System: systemPrompt, User: b.String(), Temperature: temperature}
}

func repairPrompt(spec Spec, previous string, cause error) Prompt {
	user := fmt.Sprintf("Fix this JSON to match schema %s.\nProblem: %v\nJSON:\n%s",
		schemaFor(spec.Type), cause, previous)
	return Prompt{System: systemPrompt, User: user}
}

func judgePrompt(question, canonical, response string) Prompt {
	user := fmt.Sprintf(
		"Question: %s\nExpected answer: %s\nPlayer answer: %s\n"+
			"Score how well the player answer matches the expected answer, allowing for spelling and phrasing.\n"+
			`Schema: {"score": number between 0 and 1, "rationale": string}`,
		question, canonical, response)
	return Prompt{System: "You grade trivia answers. Reply with a single JSON object and nothing else.", User: user}
}

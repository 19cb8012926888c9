package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"echo-trivia/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Prompt is a single chat-style request to a text-completion provider.
type Prompt struct {
	System      string
	User        string
	Temperature float32
}

// Completer is the text-completion collaborator.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Spec asks for one question. Difficulty is always supplied by the caller.
type Spec struct {
	Category   string
	Difficulty domain.Difficulty
	Type       domain.QuestionType
}

// RawQuestion is a validated provider question. Answer is normalized:
// the choice text for multiple choice, True/False for true/false.
type RawQuestion struct {
	Type        domain.QuestionType
	Prompt      string
	Choices     []domain.Choice
	Answer      string
	Explanation string
}

// Options tune a Generator.
type Options struct {
	Timeout     time.Duration
	Parallelism int
	Temperature float32
	Logger      *slog.Logger
}

// Generator turns Specs into validated RawQuestions.
type Generator struct {
	completer   Completer
	timeout     time.Duration
	parallelism int
	temperature float32
	log         *slog.Logger
}

func New(c Completer, opts Options) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Generator{
		completer:   c,
		timeout:     opts.Timeout,
		parallelism: opts.Parallelism,
		temperature: opts.Temperature,
		log:         opts.Logger,
	}
}

// Generate requests one question, validates it, and tries exactly one repair prompt if the
// first answer does not parse.
func (g *Generator) Generate(ctx context.Context, spec Spec) (RawQuestion, error) {
	if err := validateSpec(spec); err != nil {
		return RawQuestion{}, err
	}

	text, err := g.complete(ctx, questionPrompt(spec, g.temperature))
	if err != nil {
		return RawQuestion{}, err
	}
	q, perr := Parse(text, spec.Type)
	if perr == nil {
		return q, nil
	}

	g.log.Warn("question did not match schema, repairing", "category", spec.Category, "type", spec.Type, "err", perr)
	text, err = g.complete(ctx, repairPrompt(spec, text, perr))
	if err != nil {
		return RawQuestion{}, err
	}
	q, perr = Parse(text, spec.Type)
	if perr != nil {
		return RawQuestion{}, fmt.Errorf("%w: repair failed: %v", domain.ErrGeneration, perr)
	}
	return q, nil
}

// GenerateBatch generates one question per spec with bounded parallelism.
// Either every question is returned, in spec order, or an error.
func (g *Generator) GenerateBatch(ctx context.Context, specs []Spec) ([]RawQuestion, error) {
	out := make([]RawQuestion, len(specs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelism)
	for i, spec := range specs {
		i, spec := i, spec
		eg.Go(func() error {
			q, err := g.Generate(ctx, spec)
			if err != nil {
				return err
			}
			out[i] = q
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Judgment is the fuzzy grader's opinion of a free-text answer.
type Judgment struct {
	Score     float64
	Rationale string
}

// Judge asks the provider how close response is to canonical. No repair is attempted.
func (g *Generator) Judge(ctx context.Context, prompt, canonical, response string) (Judgment, error) {
	text, err := g.complete(ctx, judgePrompt(prompt, canonical, response))
	if err != nil {
		return Judgment{}, err
	}
	return ParseJudgment(text)
}

func (g *Generator) complete(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.completer.Complete(ctx, p)
	if err != nil {
		if errors.Is(err, domain.ErrGeneration) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	return text, nil
}

func validateSpec(spec Spec) error {
	if spec.Category == "" {
		return domain.Validationf("category is required")
	}
	if !spec.Difficulty.Valid() {
		return domain.Validationf("unknown difficulty %q", spec.Difficulty)
	}
	if !spec.Type.Valid() {
		return domain.Validationf("unknown question type %q", spec.Type)
	}
	return nil
}

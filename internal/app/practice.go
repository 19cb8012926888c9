package app

import (
	"context"
	"strings"

	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
)

// MaxQuizQuestions bounds practice quiz size.
const MaxQuizQuestions = 20

// PracticeAnswer is the outcome of one practice answer.
type PracticeAnswer struct {
	Verdict   domain.Verdict `json:"verdict"`
	Answered  int            `json:"answered"`
	Correct   int            `json:"correct"`
	Total     int            `json:"total"`
	Completed bool           `json:"completed"`
}

// PracticeService runs generated quizzes that guests may play too.
type PracticeService struct {
	core    *Core
	quizzes stateRepo[domain.PracticeQuiz]
}

func NewPracticeService(core *Core) *PracticeService {
	return &PracticeService{
		core:    core,
		quizzes: newStateRepo[domain.PracticeQuiz](core.States, practicePrefix, core.TTL.State),
	}
}

// Create generates a quiz. ownerID is empty for guests.
func (s *PracticeService) Create(ctx context.Context, ownerID string, settings domain.QuizSettings) (*domain.PracticeQuiz, error) {
	settings, err := normalizeSettings(settings)
	if err != nil {
		return nil, err
	}
	specs := make([]generator.Spec, settings.Count)
	for i := range specs {
		specs[i] = generator.Spec{Category: settings.Category, Difficulty: settings.Difficulty, Type: settings.QuestionType}
	}
	raws, err := s.core.Source.GenerateBatch(ctx, specs)
	if err != nil {
		return nil, err
	}

	quizID := s.core.NewID()
	keyed, err := s.core.issue(ctx, quizID, specs, raws, nil)
	if err != nil {
		return nil, err
	}
	quiz := domain.NewPracticeQuiz(quizID, ownerID, settings, domain.Public(keyed), s.core.Now())
	if err := s.quizzes.create(ctx, quizID, quiz); err != nil {
		return nil, err
	}
	s.core.Log.Info("practice quiz created", "quiz", quizID, "category", settings.Category, "count", settings.Count)
	return quiz, nil
}

// Evaluate checks one answer. The quiz id is both the key container and the evaluation scope.
// Only the signed-in owner gets fuzzy judging; guest quizzes are exact match for everyone.
func (s *PracticeService) Evaluate(ctx context.Context, userID, quizID, questionID, response string) (PracticeAnswer, error) {
	quiz, _, err := s.quizzes.load(ctx, quizID)
	if err != nil {
		return PracticeAnswer{}, err
	}
	if quiz.OwnerID != "" {
		if err := checkOwner(quiz.OwnerID, userID); err != nil {
			return PracticeAnswer{}, err
		}
	}
	question, ok := quiz.Question(questionID)
	if !ok {
		return PracticeAnswer{}, domain.ErrQuestionNotFound
	}

	v, err := s.core.Evaluator.Evaluate(ctx, EvalRequest{
		Container:     quizID,
		Scope:         quizID,
		QuestionID:    questionID,
		Prompt:        question.Prompt,
		Response:      response,
		Authenticated: userID != "" && quiz.OwnerID == userID,
	})
	if err != nil {
		return PracticeAnswer{}, err
	}
	quiz, err = s.quizzes.update(ctx, quizID, func(q *domain.PracticeQuiz) error {
		if !q.Record(attemptFor(question, v.Response, v)) {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return PracticeAnswer{}, err
	}
	return PracticeAnswer{
		Verdict:   v,
		Answered:  len(quiz.Answered),
		Correct:   quiz.Correct,
		Total:     len(quiz.Questions),
		Completed: quiz.Completed(),
	}, nil
}

// Get returns a quiz without touching it.
func (s *PracticeService) Get(ctx context.Context, quizID string) (*domain.PracticeQuiz, error) {
	quiz, _, err := s.quizzes.load(ctx, quizID)
	return quiz, err
}

func normalizeSettings(in domain.QuizSettings) (domain.QuizSettings, error) {
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		return in, domain.Validationf("category is required")
	}
	if in.Difficulty == "" {
		in.Difficulty = domain.Medium
	}
	if !in.Difficulty.Valid() {
		return in, domain.Validationf("unknown difficulty %q", in.Difficulty)
	}
	if in.QuestionType == "" {
		in.QuestionType = domain.MultipleChoice
	}
	if !in.QuestionType.Valid() {
		return in, domain.Validationf("unknown question type %q", in.QuestionType)
	}
	if in.Count == 0 {
		in.Count = 10
	}
	if in.Count < 1 || in.Count > MaxQuizQuestions {
		return in, domain.Validationf("count must be between 1 and %d", MaxQuizQuestions)
	}
	return in, nil
}

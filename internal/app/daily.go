package app

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
	"golang.org/x/sync/singleflight"
)

// DailyOptions configures the daily challenge.
type DailyOptions struct {
	Categories []string
	Count      int
	Difficulty domain.Difficulty
	TTL        time.Duration
}

// DailyStart is handed to a player starting today's quiz.
type DailyStart struct {
	SessionID string           `json:"sessionId"`
	Quiz      domain.DailyQuiz `json:"quiz"`
}

// DailyService serves one shared quiz per day, generated once.
type DailyService struct {
	core    *Core
	play    *PlayService
	quizzes stateRepo[domain.DailyQuiz]
	opts    DailyOptions
	sf      singleflight.Group
}

func NewDailyService(core *Core, play *PlayService, opts DailyOptions) *DailyService {
	if opts.Count <= 0 {
		opts.Count = 10
	}
	if !opts.Difficulty.Valid() {
		opts.Difficulty = domain.Medium
	}
	if opts.TTL <= 0 {
		opts.TTL = 48 * time.Hour
	}
	return &DailyService{
		core:    core,
		play:    play,
		quizzes: newStateRepo[domain.DailyQuiz](core.States, dailyPrefix, opts.TTL),
		opts:    opts,
	}
}

// Today returns the current day's quiz, generating it on first use.
func (s *DailyService) Today(ctx context.Context) (domain.DailyQuiz, error) {
	date := s.core.Now().UTC().Format("2006-01-02")
	if quiz, _, err := s.quizzes.load(ctx, date); err == nil {
		return *quiz, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.DailyQuiz{}, err
	}

	result, err, _ := s.sf.Do(date, func() (interface{}, error) {
		// Re-check in case another caller filled it.
		if quiz, _, err := s.quizzes.load(ctx, date); err == nil {
			return *quiz, nil
		}
		return s.generate(ctx, date)
	})
	if err != nil {
		return domain.DailyQuiz{}, err
	}
	return result.(domain.DailyQuiz), nil
}

// Start opens the player's session on today's quiz, or returns the one still in progress.
func (s *DailyService) Start(ctx context.Context, playerID string) (DailyStart, error) {
	if playerID == "" {
		return DailyStart{}, domain.ErrSignInRequired
	}
	quiz, err := s.Today(ctx)
	if err != nil {
		return DailyStart{}, err
	}
	session, err := s.play.start(ctx, playerID, domain.DailyContainer(quiz.Date), domain.ModeDaily, quiz.Date, quiz.Questions, s.opts.TTL)
	if err != nil {
		return DailyStart{}, err
	}
	return DailyStart{SessionID: session.ID, Quiz: quiz}, nil
}

// SubmitAnswer and Finish are shared with Faceoff sessions.
func (s *DailyService) SubmitAnswer(ctx context.Context, playerID, sessionID, questionID, response string) (PlayAnswer, error) {
	return s.play.SubmitAnswer(ctx, playerID, sessionID, questionID, response)
}

func (s *DailyService) Finish(ctx context.Context, playerID, sessionID string) (PlayResult, error) {
	return s.play.Finish(ctx, playerID, sessionID)
}

func (s *DailyService) generate(ctx context.Context, date string) (domain.DailyQuiz, error) {
	if len(s.opts.Categories) == 0 {
		return domain.DailyQuiz{}, domain.Validationf("no daily categories configured")
	}
	settings := domain.QuizSettings{
		Category:     dailyCategory(date, s.opts.Categories),
		Difficulty:   s.opts.Difficulty,
		QuestionType: domain.MultipleChoice,
		Count:        s.opts.Count,
	}
	specs := make([]generator.Spec, settings.Count)
	for i := range specs {
		specs[i] = generator.Spec{Category: settings.Category, Difficulty: settings.Difficulty, Type: settings.QuestionType}
	}
	raws, err := s.core.Source.GenerateBatch(ctx, specs)
	if err != nil {
		return domain.DailyQuiz{}, err
	}

	container := domain.DailyContainer(date)
	keyed, err := s.core.issueFor(ctx, container, specs, raws, nil, s.opts.TTL)
	if err != nil {
		return domain.DailyQuiz{}, err
	}
	quiz := domain.DailyQuiz{
		Date:      date,
		Settings:  settings,
		Questions: domain.Public(keyed),
		CreatedAt: s.core.Now(),
	}
	if err := s.quizzes.create(ctx, date, &quiz); err != nil {
		if !errors.Is(err, ErrStateConflict) {
			return domain.DailyQuiz{}, err
		}
		// another instance won; serve its quiz
		winner, _, err := s.quizzes.load(ctx, date)
		if err != nil {
			return domain.DailyQuiz{}, err
		}
		return *winner, nil
	}
	s.core.Log.Info("daily quiz generated", "date", date, "category", settings.Category)
	return quiz, nil
}

// dailyCategory picks a stable category for a date.
func dailyCategory(date string, categories []string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(date))
	return categories[int(h.Sum32()%uint32(len(categories)))]
}

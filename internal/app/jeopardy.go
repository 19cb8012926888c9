package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"echo-trivia/internal/domain"
	"echo-trivia/internal/generator"
)

// JeopardyResult is the outcome of one board answer.
type JeopardyResult struct {
	Verdict       domain.Verdict    `json:"verdict"`
	Score         int               `json:"score"`
	Status        domain.GameStatus `json:"status"`
	AnsweredCells int               `json:"answeredCells"`
	TotalCells    int               `json:"totalCells"`
	Standing      *domain.Standing  `json:"standing,omitempty"`
}

// JeopardyService runs single-player category boards.
type JeopardyService struct {
	core       *Core
	games      stateRepo[domain.GameState]
	hub        *LiveHub
	categories []string
	qtype      domain.QuestionType

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewJeopardyService builds the service. categories is the pool used when a board is started
// without explicit categories; hub may be nil.
func NewJeopardyService(core *Core, categories []string, hub *LiveHub) *JeopardyService {
	if hub == nil {
		hub = NewLiveHub()
	}
	return &JeopardyService{
		core:       core,
		games:      newStateRepo[domain.GameState](core.States, jeopardyPrefix, core.TTL.State),
		hub:        hub,
		categories: categories,
		qtype:      domain.MultipleChoice,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start opens a board with boardSize categories, drawing from the pool when none are given.
func (s *JeopardyService) Start(ctx context.Context, ownerID string, boardSize int, categories []string) (*domain.GameState, error) {
	if ownerID == "" {
		return nil, domain.ErrSignInRequired
	}
	if len(categories) == 0 {
		picked, err := s.pickCategories(boardSize)
		if err != nil {
			return nil, err
		}
		categories = picked
	} else if len(categories) != boardSize {
		return nil, domain.Validationf("board size %d does not match %d categories", boardSize, len(categories))
	}
	game, err := domain.NewGameState(s.core.NewID(), ownerID, categories, s.core.Now())
	if err != nil {
		return nil, err
	}
	if err := s.games.create(ctx, game.ID, game); err != nil {
		return nil, err
	}
	s.core.Log.Info("jeopardy game started", "game", game.ID, "size", game.BoardSize)
	return game, nil
}

// SelectCell consumes a cell and returns its freshly generated question.
func (s *JeopardyService) SelectCell(ctx context.Context, ownerID, gameID, category string, points int) (domain.PublicQuestion, error) {
	game, _, err := s.games.load(ctx, gameID)
	if err != nil {
		return domain.PublicQuestion{}, err
	}
	if err := checkOwner(game.OwnerID, ownerID); err != nil {
		return domain.PublicQuestion{}, err
	}
	if err := game.CheckSelectable(category, points); err != nil {
		return domain.PublicQuestion{}, err
	}

	spec := generator.Spec{Category: category, Difficulty: domain.DifficultyForPoints(points), Type: s.qtype}
	q, err := s.core.generateOne(ctx, gameID, spec, points)
	if err != nil {
		return domain.PublicQuestion{}, err
	}

	game, err = s.games.update(ctx, gameID, func(g *domain.GameState) error {
		return g.Select(category, points, q.PublicQuestion, s.core.Now())
	})
	if err != nil {
		return domain.PublicQuestion{}, err
	}
	s.hub.Publish(boardUpdate(game, s.core.Now()))
	return q.PublicQuestion, nil
}

// SubmitAnswer scores the pending question and completes the board after the last cell.
// Retrying after a failure applies the stored verdict or records the finished board.
func (s *JeopardyService) SubmitAnswer(ctx context.Context, ownerID, gameID, questionID, response string) (JeopardyResult, error) {
	game, _, err := s.games.load(ctx, gameID)
	if err != nil {
		return JeopardyResult{}, err
	}
	if err := checkOwner(game.OwnerID, ownerID); err != nil {
		return JeopardyResult{}, err
	}

	req := EvalRequest{Container: gameID, Scope: gameID, QuestionID: questionID, Response: response, Authenticated: true}
	v, answered, err := s.core.Evaluator.Previous(ctx, req)
	if err != nil {
		return JeopardyResult{}, err
	}
	if !answered {
		if game.Status != domain.GameInProgress {
			return JeopardyResult{}, domain.ErrGameComplete
		}
		if game.Pending == nil || game.Pending.Question.ID != questionID {
			return JeopardyResult{}, domain.ErrNoPendingQuestion
		}
		req.Prompt = game.Pending.Question.Prompt
		if v, err = s.core.Evaluator.Evaluate(ctx, req); err != nil {
			return JeopardyResult{}, err
		}
	}

	applied := false
	game, err = s.games.update(ctx, gameID, func(g *domain.GameState) error {
		applied = false
		if g.Status != domain.GameInProgress || g.Pending == nil || g.Pending.Question.ID != questionID {
			return errUnchanged
		}
		applied = true
		return g.Answer(attemptFor(g.Pending.Question, v.Response, v), s.core.Now())
	})
	if err != nil {
		return JeopardyResult{}, err
	}

	var standing *domain.Standing
	if game.Status == domain.GameComplete {
		st, err := s.finish(ctx, game)
		if err != nil {
			return JeopardyResult{}, err
		}
		standing = &st
	}

	if applied || standing != nil {
		update := boardUpdate(game, s.core.Now())
		update.LastVerdict = &v
		update.Standing = standing
		s.hub.Publish(update)
	}
	if standing != nil {
		s.hub.Close(gameID)
	}
	return jeopardyResult(v, game, standing), nil
}

// finish records a completed board, then drops its keys and state.
func (s *JeopardyService) finish(ctx context.Context, game *domain.GameState) (domain.Standing, error) {
	standing, err := s.core.complete(ctx, game.Completed(game.ID))
	if err != nil {
		return domain.Standing{}, err
	}
	s.core.invalidate(ctx, game.ID)
	if err := s.games.delete(ctx, game.ID); err != nil {
		s.core.Log.Warn("delete jeopardy game", "game", game.ID, "err", err)
	}
	s.core.Log.Info("jeopardy game complete", "game", game.ID, "score", game.Score, "rank", standing.Rank)
	return standing, nil
}

// Abandon discards the board without recording it.
func (s *JeopardyService) Abandon(ctx context.Context, ownerID, gameID string) error {
	game, _, err := s.games.load(ctx, gameID)
	if err != nil {
		return err
	}
	if err := checkOwner(game.OwnerID, ownerID); err != nil {
		return err
	}
	s.core.invalidate(ctx, gameID)
	if err := s.games.delete(ctx, gameID); err != nil {
		return err
	}
	s.hub.Close(gameID)
	s.core.Log.Info("jeopardy game abandoned", "game", gameID)
	return nil
}

// Watch subscribes to live updates of a board the caller owns.
func (s *JeopardyService) Watch(ctx context.Context, ownerID, gameID string) (<-chan BoardUpdate, func(), error) {
	game, _, err := s.games.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkOwner(game.OwnerID, ownerID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(gameID, boardUpdate(game, s.core.Now()))
	return ch, cancel, nil
}

func (s *JeopardyService) pickCategories(n int) ([]string, error) {
	if n != 3 && n != 5 {
		return nil, domain.Validationf("board size must be 3 or 5, got %d", n)
	}
	if len(s.categories) < n {
		return nil, domain.Validationf("only %d categories configured", len(s.categories))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	perm := s.rnd.Perm(len(s.categories))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = s.categories[perm[i]]
	}
	return out, nil
}

func jeopardyResult(v domain.Verdict, g *domain.GameState, standing *domain.Standing) JeopardyResult {
	return JeopardyResult{
		Verdict:       v,
		Score:         g.Score,
		Status:        g.Status,
		AnsweredCells: g.AnsweredCells(),
		TotalCells:    g.TotalCells(),
		Standing:      standing,
	}
}

package app

import (
	"context"
	"errors"
	"time"

	"echo-trivia/internal/domain"
)

// PlayAnswer is the outcome of one answer in a shared-quiz session.
type PlayAnswer struct {
	Verdict  domain.Verdict `json:"verdict"`
	Answered int            `json:"answered"`
	Score    int            `json:"score"`
	Total    int            `json:"total"`
}

// PlayResult is returned when a shared-quiz session finishes.
type PlayResult struct {
	SessionID string                   `json:"sessionId"`
	Mode      string                   `json:"mode"`
	Score     int                      `json:"score"`
	Total     int                      `json:"total"`
	Attempts  []domain.QuestionAttempt `json:"attempts"`
	Standing  domain.Standing          `json:"standing"`
}

// playClaim binds a player to the one session they may open on a shared container.
type playClaim struct {
	SessionID string `json:"sessionId"`
}

// PlayService runs sessions over shared answer-key containers (Faceoff challenges, daily quizzes).
// Each session is its own evaluation scope; the container is never invalidated by a session.
// A player gets a single session per container: finished sessions reveal every answer.
type PlayService struct {
	core     *Core
	sessions stateRepo[domain.PlaySession]
	claims   stateRepo[playClaim]
}

func NewPlayService(core *Core) *PlayService {
	return &PlayService{
		core:     core,
		sessions: newStateRepo[domain.PlaySession](core.States, playPrefix, core.TTL.State),
		claims:   newStateRepo[playClaim](core.States, claimPrefix, core.TTL.Claim),
	}
}

// start opens the player's session on containerID, or hands back the one still in progress.
// claimTTL should cover the lifetime of the container.
func (s *PlayService) start(ctx context.Context, ownerID, containerID, mode, bucket string, questions []domain.PublicQuestion, claimTTL time.Duration) (*domain.PlaySession, error) {
	if ownerID == "" {
		return nil, domain.ErrSignInRequired
	}
	claimID := containerID + ":" + ownerID
	sessionID := s.core.NewID()
	err := s.claims.withTTL(claimTTL).create(ctx, claimID, &playClaim{SessionID: sessionID})
	if errors.Is(err, ErrStateConflict) {
		return s.resume(ctx, claimID)
	}
	if err != nil {
		return nil, err
	}

	session := domain.NewPlaySession(sessionID, ownerID, containerID, mode, bucket, questions, s.core.Now())
	if err := s.sessions.create(ctx, session.ID, session); err != nil {
		if derr := s.claims.delete(ctx, claimID); derr != nil {
			s.core.Log.Warn("release play claim", "claim", claimID, "err", derr)
		}
		return nil, err
	}
	s.core.Log.Info("play session started", "session", session.ID, "mode", mode, "container", containerID)
	return session, nil
}

func (s *PlayService) resume(ctx context.Context, claimID string) (*domain.PlaySession, error) {
	claim, _, err := s.claims.load(ctx, claimID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAlreadyPlayed
	}
	if err != nil {
		return nil, err
	}
	session, _, err := s.sessions.load(ctx, claim.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAlreadyPlayed
	}
	if err != nil {
		return nil, err
	}
	if session.Status != domain.GameInProgress {
		return nil, domain.ErrAlreadyPlayed
	}
	s.core.Log.Info("play session resumed", "session", session.ID, "container", session.ContainerID)
	return session, nil
}

// SubmitAnswer evaluates against the shared container with the session as scope.
func (s *PlayService) SubmitAnswer(ctx context.Context, ownerID, sessionID, questionID, response string) (PlayAnswer, error) {
	session, _, err := s.sessions.load(ctx, sessionID)
	if err != nil {
		return PlayAnswer{}, err
	}
	if err := checkOwner(session.OwnerID, ownerID); err != nil {
		return PlayAnswer{}, err
	}
	question, ok := session.Question(questionID)
	if !ok {
		return PlayAnswer{}, domain.ErrQuestionNotFound
	}

	req := EvalRequest{
		Container:     session.ContainerID,
		Scope:         session.ID,
		QuestionID:    questionID,
		Prompt:        question.Prompt,
		Response:      response,
		Authenticated: true,
	}
	v, answered, err := s.core.Evaluator.Previous(ctx, req)
	if err != nil {
		return PlayAnswer{}, err
	}
	if !answered {
		if session.Status != domain.GameInProgress {
			return PlayAnswer{}, domain.ErrSessionFinished
		}
		if v, err = s.core.Evaluator.Evaluate(ctx, req); err != nil {
			return PlayAnswer{}, err
		}
	}

	session, err = s.sessions.update(ctx, sessionID, func(ps *domain.PlaySession) error {
		if _, done := ps.Answered[questionID]; done || ps.Status != domain.GameInProgress {
			return errUnchanged
		}
		return ps.Answer(attemptFor(question, v.Response, v))
	})
	if err != nil {
		return PlayAnswer{}, err
	}
	return playAnswer(v, session), nil
}

// Finish persists the session and removes its state. Shared answer keys stay in place.
// Finishing a session that is finished but not recorded yet records it.
func (s *PlayService) Finish(ctx context.Context, ownerID, sessionID string) (PlayResult, error) {
	session, _, err := s.sessions.load(ctx, sessionID)
	if err != nil {
		return PlayResult{}, err
	}
	if err := checkOwner(session.OwnerID, ownerID); err != nil {
		return PlayResult{}, err
	}
	session, err = s.sessions.update(ctx, sessionID, func(ps *domain.PlaySession) error {
		if ps.Status != domain.GameInProgress {
			return errUnchanged
		}
		return ps.Finish(s.core.Now())
	})
	if err != nil {
		return PlayResult{}, err
	}
	rec := session.Completed(session.ID)
	standing, err := s.core.complete(ctx, rec)
	if err != nil {
		return PlayResult{}, err
	}
	if err := s.sessions.delete(ctx, sessionID); err != nil {
		s.core.Log.Warn("delete play session", "session", sessionID, "err", err)
	}
	s.core.Log.Info("play session finished", "session", sessionID, "mode", session.Mode, "score", session.Score)
	return PlayResult{
		SessionID: session.ID,
		Mode:      session.Mode,
		Score:     session.Score,
		Total:     len(session.Questions),
		Attempts:  rec.Attempts,
		Standing:  standing,
	}, nil
}

func playAnswer(v domain.Verdict, s *domain.PlaySession) PlayAnswer {
	return PlayAnswer{Verdict: v, Answered: len(s.Answered), Score: s.Score, Total: len(s.Questions)}
}

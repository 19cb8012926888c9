package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"echo-trivia/internal/domain"
)

const (
	shareCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	shareCodeLength   = 8
)

// ChallengeView is the public face of a challenge.
type ChallengeView struct {
	ID           string                  `json:"id"`
	ShareCode    string                  `json:"shareCode"`
	CreatorID    string                  `json:"creatorId"`
	Settings     domain.QuizSettings     `json:"settings"`
	CreatorScore int                     `json:"creatorScore"`
	Questions    []domain.PublicQuestion `json:"questions"`
}

// FaceoffStart is handed to a player joining a challenge.
type FaceoffStart struct {
	SessionID string        `json:"sessionId"`
	Challenge ChallengeView `json:"challenge"`
}

// FaceoffService turns finished practice quizzes into shareable challenges.
type FaceoffService struct {
	core       *Core
	practice   *PracticeService
	play       *PlayService
	challenges ChallengeStore
}

func NewFaceoffService(core *Core, practice *PracticeService, play *PlayService, challenges ChallengeStore) *FaceoffService {
	return &FaceoffService{core: core, practice: practice, play: play, challenges: challenges}
}

// Create freezes a completed practice quiz of ownerID into a challenge.
func (s *FaceoffService) Create(ctx context.Context, ownerID, quizID string) (ChallengeView, error) {
	if ownerID == "" {
		return ChallengeView{}, domain.ErrSignInRequired
	}
	quiz, err := s.practice.Get(ctx, quizID)
	if err != nil {
		return ChallengeView{}, err
	}
	if err := checkOwner(quiz.OwnerID, ownerID); err != nil {
		return ChallengeView{}, err
	}
	if !quiz.Completed() {
		return ChallengeView{}, domain.ErrQuizIncomplete
	}

	entries, err := s.core.Keys.Entries(ctx, quizID)
	if err != nil {
		return ChallengeView{}, fmt.Errorf("load quiz answers: %w", err)
	}
	byID := make(map[string]domain.AnswerKeyEntry, len(entries))
	for _, e := range entries {
		byID[e.QuestionID] = e
	}
	questions := make([]domain.KeyedQuestion, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		e, ok := byID[q.ID]
		if !ok {
			return ChallengeView{}, domain.ErrSessionExpired
		}
		questions = append(questions, domain.KeyedQuestion{PublicQuestion: q, Answer: e.CanonicalAnswer, Explanation: e.Explanation})
	}

	code, err := newShareCode()
	if err != nil {
		return ChallengeView{}, err
	}
	ch := domain.FaceoffChallenge{
		ID:           s.core.NewID(),
		ShareCode:    code,
		CreatorID:    ownerID,
		Questions:    questions,
		Settings:     quiz.Settings,
		CreatorScore: quiz.Correct,
		CreatedAt:    s.core.Now(),
	}
	if err := s.challenges.Create(ctx, ch); err != nil {
		return ChallengeView{}, fmt.Errorf("create challenge: %w", err)
	}
	s.core.Log.Info("faceoff challenge created", "challenge", ch.ID, "code", ch.ShareCode, "quiz", quizID)
	return challengeView(ch), nil
}

// Start opens a session for playerID on the challenge behind shareCode. Answer keys are
// re-hydrated from the durable challenge so an expired cache never blocks a player. Each
// player gets one session per challenge, and the creator cannot play their own.
func (s *FaceoffService) Start(ctx context.Context, playerID, shareCode string) (FaceoffStart, error) {
	if playerID == "" {
		return FaceoffStart{}, domain.ErrSignInRequired
	}
	ch, err := s.challenges.ByCode(ctx, shareCode)
	if errors.Is(err, domain.ErrNotFound) {
		return FaceoffStart{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return FaceoffStart{}, err
	}
	if ch.CreatorID == playerID {
		return FaceoffStart{}, domain.ErrOwnChallenge
	}

	entries := make([]domain.AnswerKeyEntry, len(ch.Questions))
	for i, q := range ch.Questions {
		entries[i] = q.Key()
	}
	if err := s.core.Keys.Store(ctx, ch.ID, entries, s.core.TTL.AnswerKey); err != nil {
		return FaceoffStart{}, fmt.Errorf("hydrate challenge answers: %w", err)
	}

	session, err := s.play.start(ctx, playerID, ch.ID, domain.ModeFaceoff, ch.ID, ch.PublicQuestions(), s.core.TTL.Claim)
	if err != nil {
		return FaceoffStart{}, err
	}
	return FaceoffStart{SessionID: session.ID, Challenge: challengeView(ch)}, nil
}

// SubmitAnswer evaluates within the player's own session scope.
func (s *FaceoffService) SubmitAnswer(ctx context.Context, playerID, sessionID, questionID, response string) (PlayAnswer, error) {
	return s.play.SubmitAnswer(ctx, playerID, sessionID, questionID, response)
}

// Finish records the player's result against the challenge bucket.
func (s *FaceoffService) Finish(ctx context.Context, playerID, sessionID string) (PlayResult, error) {
	return s.play.Finish(ctx, playerID, sessionID)
}

func challengeView(ch domain.FaceoffChallenge) ChallengeView {
	return ChallengeView{
		ID:           ch.ID,
		ShareCode:    ch.ShareCode,
		CreatorID:    ch.CreatorID,
		Settings:     ch.Settings,
		CreatorScore: ch.CreatorScore,
		Questions:    ch.PublicQuestions(),
	}
}

func newShareCode() (string, error) {
	buf := make([]byte, shareCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("share code: %w", err)
	}
	for i, b := range buf {
		buf[i] = shareCodeAlphabet[int(b)%len(shareCodeAlphabet)]
	}
	return string(buf), nil
}

package domain

import (
	"sort"
	"time"
)

// SurvivalMode selects where survival questions come from.
type SurvivalMode string

const (
	SurvivalMixed    SurvivalMode = "mixed"
	SurvivalCategory SurvivalMode = "category"
)

// RunStatus is the tagged state of a survival run.
type RunStatus string

const (
	RunActive     RunStatus = "active"
	RunTerminated RunStatus = "terminated"
)

// PendingQuestion is a question that was handed to the client and not answered yet.
type PendingQuestion struct {
	Question PublicQuestion `json:"question"`
	AskedAt  time.Time      `json:"askedAt"`
}

// RunState is the ephemeral state of one survival run.
type RunState struct {
	ID             string            `json:"id"`
	OwnerID        string            `json:"ownerId"`
	Mode           SurvivalMode      `json:"mode"`
	Category       string            `json:"category,omitempty"`
	Streak         int               `json:"streak"`
	CategoriesSeen []string          `json:"categoriesSeen"`
	StartTime      time.Time         `json:"startTime"`
	LastQuestionID string            `json:"lastQuestionId,omitempty"`
	Pending        *PendingQuestion  `json:"pending,omitempty"`
	Attempts       []QuestionAttempt `json:"questionsAttempted"`
	Status         RunStatus         `json:"status"`
	EndedAt        time.Time         `json:"endedAt,omitempty"`
}

// NewRunState validates the mode/category combination and returns an active run.
func NewRunState(id, ownerID string, mode SurvivalMode, category string, now time.Time) (*RunState, error) {
	switch mode {
	case SurvivalMixed:
		category = ""
	case SurvivalCategory:
		if category == "" {
			return nil, Validationf("category mode requires a category")
		}
	default:
		return nil, Validationf("unknown survival mode %q", mode)
	}
	return &RunState{
		ID:             id,
		OwnerID:        ownerID,
		Mode:           mode,
		Category:       category,
		CategoriesSeen: []string{},
		StartTime:      now,
		Attempts:       []QuestionAttempt{},
		Status:         RunActive,
	}, nil
}

// Bucket is the leaderboard partition of the run: "mixed" or the category name.
func (r *RunState) Bucket() string {
	if r.Mode == SurvivalMixed {
		return string(SurvivalMixed)
	}
	return r.Category
}

// NextDifficulty escalates with the streak.
func (r *RunState) NextDifficulty() Difficulty {
	switch {
	case r.Streak >= 10:
		return Hard
	case r.Streak >= 5:
		return Medium
	default:
		return Easy
	}
}

// Ask records q as the pending question.
func (r *RunState) Ask(q PublicQuestion, now time.Time) error {
	if r.Status != RunActive {
		return ErrRunTerminated
	}
	if r.Pending != nil {
		return ErrQuestionPending
	}
	r.Pending = &PendingQuestion{Question: q, AskedAt: now}
	r.LastQuestionID = q.ID
	return nil
}

// Answer applies a verdict for the pending question. An incorrect answer terminates the run.
func (r *RunState) Answer(attempt QuestionAttempt, now time.Time) error {
	if r.Status != RunActive {
		return ErrRunTerminated
	}
	if r.Pending == nil || r.Pending.Question.ID != attempt.QuestionID {
		return ErrNoPendingQuestion
	}
	attempt.Category = r.Pending.Question.Category
	r.Pending = nil
	r.Attempts = append(r.Attempts, attempt)

	if !attempt.Correct {
		r.Status = RunTerminated
		r.EndedAt = now
		return nil
	}
	r.Streak++
	// only survived categories count; the category of the final wrong answer is never added
	if r.Mode == SurvivalMixed && attempt.Category != "" {
		r.addCategory(attempt.Category)
	}
	return nil
}

// End terminates an active run early, keeping the current streak.
func (r *RunState) End(now time.Time) error {
	if r.Status != RunActive {
		return ErrRunTerminated
	}
	r.Status = RunTerminated
	r.Pending = nil
	r.EndedAt = now
	return nil
}

// Terminal reports whether no further answers are accepted.
func (r *RunState) Terminal() bool {
	return r.Status == RunTerminated
}

func (r *RunState) addCategory(category string) {
	for _, c := range r.CategoriesSeen {
		if c == category {
			return
		}
	}
	r.CategoriesSeen = append(r.CategoriesSeen, category)
	sort.Strings(r.CategoriesSeen)
}

// Completed builds the history record for a terminated run.
func (r *RunState) Completed(recordID string) CompletedSession {
	return CompletedSession{
		ID:          recordID,
		UserID:      r.OwnerID,
		Mode:        ModeSurvival,
		Bucket:      r.Bucket(),
		Score:       r.Streak,
		Streak:      r.Streak,
		Attempts:    r.Attempts,
		TimePlayed:  r.EndedAt.Sub(r.StartTime),
		StartedAt:   r.StartTime,
		CompletedAt: r.EndedAt,
	}
}

package memory

import (
	"context"
	"sort"
	"sync"

	"echo-trivia/internal/domain"
)

// SessionHistory is an in-memory implementation of app.SessionHistory and app.LeaderboardReader.
type SessionHistory struct {
	mu       sync.RWMutex
	sessions []domain.CompletedSession
	ids      map[string]struct{}
}

func NewSessionHistory() *SessionHistory {
	return &SessionHistory{ids: make(map[string]struct{})}
}

// Save appends rec. Records are never mutated; a second save of the same id keeps the first.
func (h *SessionHistory) Save(_ context.Context, rec domain.CompletedSession) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.ids[rec.ID]; ok {
		return nil
	}
	h.ids[rec.ID] = struct{}{}
	h.sessions = append(h.sessions, rec)
	return nil
}

func (h *SessionHistory) Rank(_ context.Context, mode, bucket string, score int) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	better := 0
	for _, s := range h.sessions {
		if s.Mode == mode && s.Bucket == bucket && s.Score > score {
			better++
		}
	}
	return better + 1, nil
}

func (h *SessionHistory) PersonalBest(_ context.Context, userID, mode, bucket string, score int, excludeID string) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		if s.ID == excludeID || s.UserID != userID || s.Mode != mode || s.Bucket != bucket {
			continue
		}
		if s.Score >= score {
			return false, nil
		}
	}
	return true, nil
}

// Top returns each user's best score in mode/bucket, highest first; ties go to the earlier finisher.
func (h *SessionHistory) Top(_ context.Context, mode, bucket string, limit int) (domain.Leaderboard, error) {
	h.mu.RLock()
	best := make(map[string]domain.CompletedSession)
	for _, s := range h.sessions {
		if s.Mode != mode || s.Bucket != bucket {
			continue
		}
		cur, ok := best[s.UserID]
		if !ok || s.Score > cur.Score || (s.Score == cur.Score && s.CompletedAt.Before(cur.CompletedAt)) {
			best[s.UserID] = s
		}
	}
	h.mu.RUnlock()

	rows := make([]domain.CompletedSession, 0, len(best))
	for _, s := range best {
		rows = append(rows, s)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if !rows[i].CompletedAt.Equal(rows[j].CompletedAt) {
			return rows[i].CompletedAt.Before(rows[j].CompletedAt)
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	lb := domain.Leaderboard{Mode: mode, Bucket: bucket, Entries: make([]domain.LeaderboardEntry, 0, len(rows))}
	for i, s := range rows {
		lb.Entries = append(lb.Entries, domain.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      s.UserID,
			Score:       s.Score,
			CompletedAt: s.CompletedAt,
		})
	}
	return lb, nil
}

// Sessions returns a copy of everything recorded for userID.
func (h *SessionHistory) Sessions(userID string) []domain.CompletedSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []domain.CompletedSession
	for _, s := range h.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

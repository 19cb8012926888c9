package app

import (
	"context"
	"strings"

	"echo-trivia/internal/domain"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

var rankedModes = map[string]bool{
	domain.ModeSurvival: true,
	domain.ModeJeopardy: true,
	domain.ModeTower:    true,
	domain.ModeFaceoff:  true,
	domain.ModeDaily:    true,
}

// LeaderboardService reads ranked projections of completed sessions.
type LeaderboardService struct {
	reader LeaderboardReader
}

func NewLeaderboardService(reader LeaderboardReader) *LeaderboardService {
	return &LeaderboardService{reader: reader}
}

// Top lists the best score per user for a mode and bucket.
func (s *LeaderboardService) Top(ctx context.Context, mode, bucket string, limit int) (domain.Leaderboard, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if !rankedModes[mode] {
		return domain.Leaderboard{}, domain.Validationf("unknown mode %q", mode)
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return domain.Leaderboard{}, domain.Validationf("bucket is required")
	}
	switch {
	case limit == 0:
		limit = DefaultLeaderboardLimit
	case limit < 0 || limit > MaxLeaderboardLimit:
		return domain.Leaderboard{}, domain.Validationf("limit must be between 1 and %d", MaxLeaderboardLimit)
	}
	return s.reader.Top(ctx, mode, bucket, limit)
}

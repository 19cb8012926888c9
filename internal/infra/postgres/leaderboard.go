package postgres

import (
	"context"
	"fmt"

	"echo-trivia/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Leaderboard reads the best session per user straight from completed_sessions.
type Leaderboard struct {
	pool *pgxpool.Pool
}

func NewLeaderboard(pool *pgxpool.Pool) *Leaderboard {
	return &Leaderboard{pool: pool}
}

const topQuery = `
SELECT user_id, score, completed_at FROM (
	SELECT DISTINCT ON (user_id) user_id, score, completed_at
	FROM completed_sessions
	WHERE mode = $1 AND bucket = $2
	ORDER BY user_id, score DESC, completed_at ASC
) best
ORDER BY score DESC, completed_at ASC, user_id
LIMIT $3`

func (l *Leaderboard) Top(ctx context.Context, mode, bucket string, limit int) (domain.Leaderboard, error) {
	rows, err := l.pool.Query(ctx, topQuery, mode, bucket, limit)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	lb := domain.Leaderboard{Mode: mode, Bucket: bucket, Entries: []domain.LeaderboardEntry{}}
	for rows.Next() {
		e := domain.LeaderboardEntry{Rank: len(lb.Entries) + 1}
		if err := rows.Scan(&e.UserID, &e.Score, &e.CompletedAt); err != nil {
			return domain.Leaderboard{}, fmt.Errorf("scan leaderboard: %w", err)
		}
		lb.Entries = append(lb.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return domain.Leaderboard{}, fmt.Errorf("read leaderboard: %w", err)
	}
	return lb, nil
}

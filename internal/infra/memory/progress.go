package memory

import (
	"context"
	"sync"

	"echo-trivia/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStore.
type ProgressStore struct {
	mu       sync.Mutex
	progress map[string]domain.TowerProgress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{progress: make(map[string]domain.TowerProgress)}
}

func (s *ProgressStore) Get(_ context.Context, userID string) (domain.TowerProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[userID]
	if !ok {
		return domain.TowerProgress{}, domain.ErrNotFound
	}
	p.PerfectFloors = append([]int{}, p.PerfectFloors...)
	p.Achievements = append([]string{}, p.Achievements...)
	return p, nil
}

// Update applies fn under the store lock.
func (s *ProgressStore) Update(_ context.Context, userID string, fn func(*domain.TowerProgress) error) (domain.TowerProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.progress[userID]
	if !ok {
		cur = domain.NewTowerProgress(userID)
	}
	p := cur
	p.PerfectFloors = append([]int{}, cur.PerfectFloors...)
	p.Achievements = append([]string{}, cur.Achievements...)
	p.AppliedAttempts = append([]string{}, cur.AppliedAttempts...)
	if err := fn(&p); err != nil {
		return domain.TowerProgress{}, err
	}
	p.UserID = userID
	if cur.HighestFloor > p.HighestFloor {
		p.HighestFloor = cur.HighestFloor
	}
	p.Achievements = cur.Achievements
	s.progress[userID] = p

	out := p
	out.Achievements = append([]string{}, p.Achievements...)
	return out, nil
}

func (s *ProgressStore) AddAchievements(_ context.Context, userID string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[userID]
	if !ok {
		p = domain.NewTowerProgress(userID)
	}
	for _, n := range names {
		if !p.HasAchievement(n) {
			p.Achievements = append(p.Achievements, n)
		}
	}
	s.progress[userID] = p
	return nil
}

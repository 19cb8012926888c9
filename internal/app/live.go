package app

import (
	"sync"
	"time"

	"echo-trivia/internal/domain"
)

// BoardUpdate is a Jeopardy snapshot pushed to live watchers. It never carries answers
// for the pending question.
type BoardUpdate struct {
	GameID      string                 `json:"gameId"`
	Score       int                    `json:"score"`
	Status      domain.GameStatus      `json:"status"`
	BoardState  map[string]bool        `json:"boardState"`
	Pending     *domain.PublicQuestion `json:"pending,omitempty"`
	LastVerdict *domain.Verdict        `json:"lastVerdict,omitempty"`
	Standing    *domain.Standing       `json:"standing,omitempty"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

func boardUpdate(g *domain.GameState, now time.Time) BoardUpdate {
	board := make(map[string]bool, len(g.BoardState))
	for k, v := range g.BoardState {
		board[k] = v
	}
	u := BoardUpdate{
		GameID:     g.ID,
		Score:      g.Score,
		Status:     g.Status,
		BoardState: board,
		UpdatedAt:  now,
	}
	if g.Pending != nil {
		q := g.Pending.Question
		u.Pending = &q
	}
	return u
}

// LiveHub fans board updates out to in-process subscribers per game.
type LiveHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan BoardUpdate]struct{}
}

func NewLiveHub() *LiveHub {
	return &LiveHub{subscribers: make(map[string]map[chan BoardUpdate]struct{})}
}

// Subscribe registers a watcher and immediately delivers initial.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *LiveHub) Subscribe(gameID string, initial BoardUpdate) (<-chan BoardUpdate, func()) {
	ch := make(chan BoardUpdate, 8)
	ch <- initial

	h.mu.Lock()
	subs, ok := h.subscribers[gameID]
	if !ok {
		subs = make(map[chan BoardUpdate]struct{})
		h.subscribers[gameID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[gameID]
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, gameID)
		}
	}
	return ch, cancel
}

// Publish delivers u to every watcher of the game without blocking on slow readers.
func (h *LiveHub) Publish(u BoardUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[u.GameID] {
		select {
		case ch <- u:
		default:
			// drop the oldest queued update so slow clients never block gameplay
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
	}
}

// Close ends every subscription of a game.
func (h *LiveHub) Close(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[gameID] {
		close(ch)
	}
	delete(h.subscribers, gameID)
}

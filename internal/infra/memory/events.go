package memory

import (
	"context"
	"sync"

	"echo-trivia/internal/app"
)

// EventLog records published events in order (useful for tests/demos).
type EventLog struct {
	mu     sync.Mutex
	events []app.SessionCompleted
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) PublishSessionCompleted(_ context.Context, ev app.SessionCompleted) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (l *EventLog) Events() []app.SessionCompleted {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]app.SessionCompleted(nil), l.events...)
}

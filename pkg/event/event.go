// pkg/event/event.go

// Package event provides a minimal in-process publish/subscribe bus.
// Handlers run asynchronously; publishers never block on subscribers.
package event

import (
	"context"
	"sync"
)

// Handler processes one published event.
type Handler func(ctx context.Context, data any)

// Manager routes published events to their subscribers.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewManager creates an empty event manager.
func NewManager() *Manager {
	return &Manager{
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for the named event.
// Multiple handlers may subscribe to the same event.
func (m *Manager) Subscribe(name string, h Handler) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = append(m.handlers[name], h)
}

// Publish delivers data to every subscriber of the named event.
// Each handler runs in its own goroutine; Publish returns immediately.
// Publishing an event with no subscribers is a no-op.
func (m *Manager) Publish(ctx context.Context, name string, data any) {
	m.mu.RLock()
	subs := m.handlers[name]
	m.mu.RUnlock()

	for _, h := range subs {
		go h(ctx, data)
	}
}

// pkg/hook/hook.go

// Package hook provides named lifecycle hooks. Components register
// callbacks against a hook name (e.g. "onShutdown"); the owner triggers
// the name once at the right point in the lifecycle.
package hook

import (
	"context"
	"sync"
)

// Func is a single hook callback. The context passed to Trigger is
// forwarded as-is, canceled or not.
type Func func(ctx context.Context)

// Manager holds registered hooks and remembers which names fired.
type Manager struct {
	mu        sync.Mutex
	hooks     map[string][]Func
	triggered map[string]bool
}

// NewManager creates an empty hook manager.
func NewManager() *Manager {
	return &Manager{
		hooks:     make(map[string][]Func),
		triggered: make(map[string]bool),
	}
}

// Register adds fn to the named hook.
func (m *Manager) Register(name string, fn Func) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[name] = append(m.hooks[name], fn)
}

// Trigger runs every hook registered under name. Hooks run
// asynchronously; callers that need completion must coordinate inside
// the hook functions themselves.
func (m *Manager) Trigger(ctx context.Context, name string) {
	m.mu.Lock()
	fns := m.hooks[name]
	m.triggered[name] = true
	m.mu.Unlock()

	for _, fn := range fns {
		go fn(ctx)
	}
}

// IsTriggered reports whether the named hook has fired at least once.
func (m *Manager) IsTriggered(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggered[name]
}

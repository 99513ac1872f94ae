package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"visadoc-backend/internal/shared/metrics"
	"visadoc-backend/internal/shared/telemetry"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// DefaultIdleTTL is how long an untouched session survives.
const DefaultIdleTTL = 2 * time.Hour

// Manager holds the live sessions of this process.
type Manager struct {
	deps    Deps
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*Machine
	now      func() time.Time
}

func NewManager(deps Deps, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Manager{
		deps:     deps,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Machine),
		now:      time.Now,
	}
}

// Create starts a new session on the landing screen.
func (mg *Manager) Create() *Machine {
	m := NewMachine(uuid.NewString(), mg.deps)
	mg.mu.Lock()
	mg.sessions[m.ID()] = m
	mg.mu.Unlock()
	metrics.AddActiveSessions(1)
	return m
}

func (mg *Manager) Get(id string) (*Machine, error) {
	mg.mu.RLock()
	m, ok := mg.sessions[id]
	mg.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// Delete closes and forgets a session.
func (mg *Manager) Delete(id string) error {
	mg.mu.Lock()
	m, ok := mg.sessions[id]
	delete(mg.sessions, id)
	mg.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	m.Close()
	metrics.AddActiveSessions(-1)
	return nil
}

// Len returns the number of live sessions.
func (mg *Manager) Len() int {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	return len(mg.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (mg *Manager) Sweep() int {
	cutoff := mg.now().Add(-mg.idleTTL)
	var expired []*Machine
	mg.mu.Lock()
	for id, m := range mg.sessions {
		if m.IdleSince().Before(cutoff) {
			expired = append(expired, m)
			delete(mg.sessions, id)
		}
	}
	mg.mu.Unlock()
	for _, m := range expired {
		m.Close()
		metrics.AddActiveSessions(-1)
	}
	if len(expired) > 0 {
		telemetry.Info("session.sweep", map[string]any{"expired": len(expired)})
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes all sessions.
func (mg *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			mg.Close()
			return
		case <-ticker.C:
			mg.Sweep()
		}
	}
}

// Close ends every live session.
func (mg *Manager) Close() {
	mg.mu.Lock()
	all := mg.sessions
	mg.sessions = make(map[string]*Machine)
	mg.mu.Unlock()
	for _, m := range all {
		m.Close()
		metrics.AddActiveSessions(-1)
	}
}

// Package session provides the in-memory per-user session store for the FSM
// engine, including TTL-based eviction of idle sessions.
//
// Sessions are not persisted: a process restart loses all of them, which is
// acceptable because conversation history lives in the document store.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/estudiodigital/contabot/internal/models"
)

// DefaultSweepInterval is how often the eviction sweep runs, independent of
// request traffic.
const DefaultSweepInterval = 30 * time.Minute

// Store owns the map from phone number to Session. All access goes through
// the store; no other component holds a long-lived session reference.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*models.Session),
		now:      time.Now,
	}
}

// GetOrCreate returns the session for id, creating it in the initial ROOT
// state if none exists. LastActivityAt is refreshed on every call.
func (s *Store) GetOrCreate(id string) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &models.Session{
			ID:             id,
			State:          models.StateRoot,
			CreatedAt:      now,
			LastActivityAt: now,
			TTLMinutes:     models.DefaultSessionTTLMinutes,
		}
		s.sessions[id] = sess
		slog.Debug("SessionStore.GetOrCreate: created session", "id", id)
		return sess
	}
	sess.LastActivityAt = now
	return sess
}

// Get returns the session for id, or nil if none exists. Does not refresh
// the activity timestamp.
func (s *Store) Get(id string) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes every session idle for longer than idleMinutes and returns
// the eviction count.
func (s *Store) Sweep(idleMinutes int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-time.Duration(idleMinutes) * time.Minute)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivityAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("SessionStore.Sweep: evicted idle sessions", "count", removed, "idleMinutes", idleMinutes)
	}
	return removed
}

// RunSweeper runs the periodic eviction sweep until the context is cancelled.
// Note: the sweep threshold is models.SweepIdleMinutes, not the per-session
// TTLMinutes recorded at creation; the two knobs are deliberately separate.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	slog.Info("SessionStore.RunSweeper: starting", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("SessionStore.RunSweeper: stopping")
			return
		case <-ticker.C:
			s.Sweep(models.SweepIdleMinutes)
		}
	}
}

// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/super-pm-ai/superpm-mcp/internal/domain/session"
)

// DefaultCleanupInterval is the default cadence of the expiry sweep.
const DefaultCleanupInterval = 1 * time.Minute

// SessionStore implements session.Store with a mutex-guarded map.
// All state is process-local; nothing survives a restart and clients must
// re-initialize after one. A background goroutine evicts idle sessions so
// an abandoned session cannot accumulate forever.
type SessionStore struct {
	sessions        map[string]*session.Session
	mu              sync.RWMutex
	stopChan        chan struct{}
	wg              sync.WaitGroup
	cleanupInterval time.Duration
	once            sync.Once // Prevent double-close panic on Stop()
}

// NewSessionStore creates an in-memory session store with the default
// cleanup interval.
func NewSessionStore() *SessionStore {
	return NewSessionStoreWithConfig(DefaultCleanupInterval)
}

// NewSessionStoreWithConfig creates an in-memory session store with a
// custom cleanup interval.
func NewSessionStoreWithConfig(cleanupInterval time.Duration) *SessionStore {
	return &SessionStore{
		sessions:        make(map[string]*session.Session),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
}

// StartCleanup starts the background eviction goroutine.
// Call Stop() to stop it gracefully.
func (s *SessionStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

// cleanup removes all expired sessions from the store.
func (s *SessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for id, sess := range s.sessions {
		if sess.IsExpired() {
			delete(s.sessions, id)
			cleaned++
		}
	}

	if cleaned > 0 {
		slog.Debug("evicted idle sessions", "count", cleaned)
	}
}

// Stop stops the background eviction goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *SessionStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Create stores a new session.
// Returns session.ErrSessionExists if the id is already present.
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return session.ErrSessionExists
	}

	// Store a copy to prevent external mutation.
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// Get retrieves a session by id.
// Returns session.ErrSessionNotFound if it doesn't exist or is expired.
// Expired sessions are not deleted here; the background sweep handles that.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, session.ErrSessionNotFound
	}
	if sess.IsExpired() {
		return nil, session.ErrSessionNotFound
	}

	cp := *sess
	return &cp, nil
}

// Update saves changes to an existing session.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return session.ErrSessionNotFound
	}

	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// Delete removes a session. Deleting an absent id is a no-op.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Count returns the number of sessions currently stored, expired or not.
func (s *SessionStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Compile-time interface verification.
var _ session.Store = (*SessionStore)(nil)

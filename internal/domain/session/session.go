package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultTimeout is the default idle session timeout.
const DefaultTimeout = 30 * time.Minute

// Config holds session service configuration.
type Config struct {
	// Timeout is the idle duration before eviction. Default: 30 minutes.
	Timeout time.Duration
}

// Service manages session lifecycle: UNINITIALIZED -> ACTIVE -> TERMINATED.
// Termination is terminal; a terminated id behaves exactly like an unknown
// one on every subsequent operation.
type Service struct {
	store   Store
	timeout time.Duration
}

// NewService creates a Service with the given store and config.
func NewService(store Store, cfg Config) *Service {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		store:   store,
		timeout: timeout,
	}
}

// Create mints a new session id and registers the session.
// Exactly one session is created per call.
func (s *Service) Create(ctx context.Context) (*Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:         id,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.timeout),
		LastAccess: now,
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return sess, nil
}

// Get retrieves a session by id.
// Returns ErrSessionNotFound for unknown, expired, and terminated ids alike.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Double-check expiration in case the store doesn't enforce it.
	if sess.IsExpired() {
		_ = s.store.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}

	return sess, nil
}

// Touch extends the session's idle deadline and updates last access.
// Called on every dispatch so active sessions are never evicted.
func (s *Service) Touch(ctx context.Context, id string) error {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if sess.IsExpired() {
		_ = s.store.Delete(ctx, id)
		return ErrSessionNotFound
	}

	sess.Refresh(s.timeout)

	if err := s.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}

	return nil
}

// Terminate removes the session. Unlike Store.Delete, it reports
// ErrSessionNotFound for an unknown id so callers can distinguish
// "already gone" from "actually closed".
func (s *Service) Terminate(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Count returns the number of active sessions.
func (s *Service) Count(ctx context.Context) int {
	return s.store.Count(ctx)
}

// GenerateSessionID creates a cryptographically random session id.
// Returns 64 hex characters (32 bytes, 256 bits of entropy), far beyond
// the birthday bound for any plausible session volume.
func GenerateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

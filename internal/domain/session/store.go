package session

import (
	"context"
	"errors"
)

// Store provides session persistence. All implementations must be safe for
// concurrent use; a partially constructed session is never observable.
// The store is the sole owner of session state; callers hold no copies
// that could desynchronize.
type Store interface {
	// Create stores a new session.
	// Returns ErrSessionExists if the id is already present.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by id.
	// Returns ErrSessionNotFound if it doesn't exist or is expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Update saves changes to an existing session.
	Update(ctx context.Context, session *Session) error

	// Delete removes a session. Deleting an absent id is a no-op;
	// callers that need to distinguish "already gone" check Get first.
	Delete(ctx context.Context, id string) error

	// Count returns the number of active sessions.
	Count(ctx context.Context) int
}

// ErrSessionNotFound is returned when a session doesn't exist, has expired,
// or has been terminated. All three are indistinguishable by design.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when creating a session whose id is already
// registered. With 256-bit random ids this is effectively unreachable and
// indicates a caller bug, not a collision.
var ErrSessionExists = errors.New("session already exists")

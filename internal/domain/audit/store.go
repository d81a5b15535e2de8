package audit

import (
	"context"
)

// Store persists audit records.
// Implementations: JSON-lines file store (prod), in-memory (test).
type Store interface {
	// Write persists a single record.
	Write(ctx context.Context, record Record) error

	// Close flushes and releases underlying resources.
	Close() error
}

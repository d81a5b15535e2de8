// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the enriched logger.
// Used by HTTP middleware to store and retrieve the logger with the request_id field.
type LoggerKey struct{}

// SessionIDKey is the context key type for the active session identifier.
// Set by the HTTP transport after session lookup so services can tag
// audit records without threading the id through every call.
type SessionIDKey struct{}

// RequestIDKey is the context key type for the per-request correlation id.
// Set by the HTTP request-id middleware; audit records carry it so a log
// line and its audit entry can be matched up.
type RequestIDKey struct{}

// Package audit contains domain types for the tool-call audit trail.
package audit

import (
	"time"
)

// Outcome constants for audit records.
const (
	// OutcomeOK indicates the tool call completed successfully.
	OutcomeOK = "ok"
	// OutcomeError indicates the tool call returned an in-band error.
	OutcomeError = "error"
)

// Record captures one dispatched tool or prompt invocation.
type Record struct {
	// Timestamp when the call completed.
	Timestamp time.Time `json:"timestamp"`
	// SessionID of the HTTP session, or "stdio" for the stdio transport.
	SessionID string `json:"session_id,omitempty"`
	// RequestID for correlation with transport logs.
	RequestID string `json:"request_id,omitempty"`
	// Method is the JSON-RPC method (tools/call, prompts/get, ...).
	Method string `json:"method"`
	// Name is the tool or prompt name, if applicable.
	Name string `json:"name,omitempty"`
	// Outcome is "ok" or "error".
	Outcome string `json:"outcome"`
	// DurationMS is the handler execution time in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// Detail carries the error message for failed calls.
	Detail string `json:"detail,omitempty"`
}

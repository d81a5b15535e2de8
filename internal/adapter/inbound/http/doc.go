// Package http provides the streamable HTTP transport adapter. It binds
// the session lifecycle to four request shapes on one endpoint: POST for
// JSON-RPC dispatch, GET for the SSE push stream, DELETE for session
// termination, plus GET /health for liveness. Origin validation runs
// before any session logic on every /mcp route.
package http

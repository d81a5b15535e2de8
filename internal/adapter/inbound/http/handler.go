package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/super-pm-ai/superpm-mcp/internal/ctxkey"
	"github.com/super-pm-ai/superpm-mcp/internal/domain/session"
	"github.com/super-pm-ai/superpm-mcp/internal/service"
	"github.com/super-pm-ai/superpm-mcp/pkg/mcp"
)

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// SessionIDHeader carries the opaque session token on every route.
const SessionIDHeader = "Session-Id"

// DefaultKeepaliveInterval is the SSE liveness marker period.
const DefaultKeepaliveInterval = 30 * time.Second

// streamRegistry tracks the one push stream each session may hold.
// Attaching a second stream to a session replaces the first: the old
// channel is closed so its event loop exits, and the new connection
// takes over. Rejecting the newcomer would strand clients whose previous
// connection died without a clean close.
type streamRegistry struct {
	mu      sync.Mutex
	streams map[string]chan []byte
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{streams: make(map[string]chan []byte)}
}

// attach binds a fresh channel to sessionID, closing any previous one.
func (r *streamRegistry) attach(sessionID string) chan []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.streams[sessionID]; ok {
		close(old)
	}
	ch := make(chan []byte, 16)
	r.streams[sessionID] = ch
	return ch
}

// detach removes ch from sessionID if it is still the active stream.
// A replaced stream's deferred detach must not remove its successor.
func (r *streamRegistry) detach(sessionID string, ch chan []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.streams[sessionID]; ok && cur == ch {
		delete(r.streams, sessionID)
	}
}

// terminate closes the session's stream, if any.
func (r *streamRegistry) terminate(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.streams[sessionID]; ok {
		close(ch)
		delete(r.streams, sessionID)
	}
}

// closeAll closes every stream. Used at shutdown.
func (r *streamRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.streams {
		close(ch)
	}
	r.streams = make(map[string]chan []byte)
}

// Handler adapts wire requests into session lifecycle calls. It owns no
// business logic: header and body extraction, lifecycle orchestration,
// and translation of outcomes into wire responses.
type Handler struct {
	sessions   *session.Service
	dispatcher *service.DispatchService
	streams    *streamRegistry
	keepalive  time.Duration
	logger     *slog.Logger
	metrics    *Metrics
}

// SetMetrics attaches the stream gauge. Called once before serving.
func (h *Handler) SetMetrics(m *Metrics) {
	h.metrics = m
}

// NewHandler creates the /mcp endpoint handler.
func NewHandler(sessions *session.Service, dispatcher *service.DispatchService, keepalive time.Duration, logger *slog.Logger) *Handler {
	if keepalive <= 0 {
		keepalive = DefaultKeepaliveInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:   sessions,
		dispatcher: dispatcher,
		streams:    newStreamRegistry(),
		keepalive:  keepalive,
		logger:     logger,
	}
}

// ServeHTTP routes by method.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	case http.MethodOptions:
		h.handleOptions(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handlePost processes one JSON-RPC message. Initialize requests mint a
// new session; everything else requires a known session id in the header.
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			writeJSONRPCError(w, http.StatusOK, mcp.CodeParseError, "Parse error: content type must be application/json")
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSONRPCError(w, http.StatusOK, mcp.CodeParseError, "Parse error: request body too large (max 1MB)")
			return
		}
		writeJSONRPCError(w, http.StatusOK, mcp.CodeParseError, "Parse error: failed to read request body")
		return
	}
	if len(body) == 0 {
		writeJSONRPCError(w, http.StatusOK, mcp.CodeParseError, "Parse error: empty request body")
		return
	}
	if !json.Valid(body) {
		writeJSONRPCError(w, http.StatusOK, mcp.CodeParseError, "Parse error: invalid JSON")
		return
	}

	var envelope struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		ID      json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeJSONRPCError(w, http.StatusOK, mcp.CodeInvalidRequest, "Invalid Request: request must be a JSON object")
		return
	}
	if envelope.JSONRPC != "2.0" {
		writeJSONRPCError(w, http.StatusOK, mcp.CodeInvalidRequest, "Invalid Request: missing or invalid jsonrpc version (must be \"2.0\")")
		return
	}
	if envelope.Method == "" {
		writeJSONRPCError(w, http.StatusOK, mcp.CodeInvalidRequest, "Invalid Request: missing method field")
		return
	}

	logger := LoggerFromContext(r.Context())
	ctx := r.Context()

	if envelope.Method == mcp.MethodInitialize {
		sess, err := h.sessions.Create(ctx)
		if err != nil {
			logger.Error("failed to create session", "error", err)
			writeJSONRPCError(w, http.StatusInternalServerError, mcp.CodeInternalError, "Internal error")
			return
		}
		logger.Info("session created", "session_id", sess.ID)
		w.Header().Set(SessionIDHeader, sess.ID)
		ctx = context.WithValue(ctx, ctxkey.SessionIDKey{}, sess.ID)
		h.dispatch(ctx, w, r, body, envelope.ID == nil)
		return
	}

	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		writeJSONRPCError(w, http.StatusBadRequest, mcp.CodeInvalidRequest, "Invalid session: Session-Id header required")
		return
	}
	if _, err := h.sessions.Get(ctx, sessionID); err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, mcp.CodeInvalidRequest, "Invalid session: unknown or expired session")
		return
	}
	if err := h.sessions.Touch(ctx, sessionID); err != nil {
		logger.Warn("failed to refresh session", "session_id", sessionID, "error", err)
	}

	w.Header().Set(SessionIDHeader, sessionID)
	ctx = context.WithValue(ctx, ctxkey.SessionIDKey{}, sessionID)
	h.dispatch(ctx, w, r, body, envelope.ID == nil)
}

// dispatch runs the message through the dispatcher and writes the wire
// response. Notifications return 202 Accepted with no body.
func (h *Handler) dispatch(ctx context.Context, w http.ResponseWriter, r *http.Request, body []byte, isNotification bool) {
	resp, err := h.dispatcher.DispatchRaw(ctx, body)
	if err != nil {
		if r.Context().Err() != nil {
			// Client disconnected mid-dispatch.
			return
		}
		LoggerFromContext(r.Context()).Error("dispatch failed", "error", err)
		writeJSONRPCError(w, http.StatusInternalServerError, mcp.CodeInternalError, "Internal error")
		return
	}

	if isNotification || resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// handleGet attaches the SSE push stream to an existing session. The
// stream carries an initial connected event with the session id, then
// keepalive comments until the connection closes or the session is
// terminated. The keepalive timer is scoped to this connection and is
// released when the loop exits.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		http.Error(w, "Session-Id header required", http.StatusBadRequest)
		return
	}
	if _, err := h.sessions.Get(r.Context(), sessionID); err != nil {
		http.Error(w, "Unknown session", http.StatusBadRequest)
		return
	}
	if err := h.sessions.Touch(r.Context(), sessionID); err != nil {
		LoggerFromContext(r.Context()).Warn("failed to refresh session", "session_id", sessionID, "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(SessionIDHeader, sessionID)

	msgChan := h.streams.attach(sessionID)
	defer h.streams.detach(sessionID, msgChan)

	if h.metrics != nil {
		h.metrics.StreamsActive.Inc()
		defer h.metrics.StreamsActive.Dec()
	}

	logger := LoggerFromContext(r.Context())
	logger.Info("stream attached", "session_id", sessionID)

	_, _ = fmt.Fprintf(w, "event: connected\ndata: {\"sessionId\":%q}\n\n", sessionID)
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			logger.Info("stream closed by client", "session_id", sessionID)
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
			// A listen-only client still holds a live connection; refresh
			// the idle deadline so the session is not evicted mid-stream.
			_ = h.sessions.Touch(ctx, sessionID)
		case msg, ok := <-msgChan:
			if !ok {
				// Session terminated or stream replaced.
				logger.Info("stream detached", "session_id", sessionID)
				return
			}
			_, _ = fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// handleDelete terminates a session. Unknown ids report not found so a
// caller can tell "already gone" from "actually closed".
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		http.Error(w, "Session-Id header required", http.StatusBadRequest)
		return
	}

	if err := h.sessions.Terminate(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		LoggerFromContext(r.Context()).Error("failed to terminate session", "session_id", sessionID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	h.streams.terminate(sessionID)
	LoggerFromContext(r.Context()).Info("session terminated", "session_id", sessionID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"success":true}`))
}

// handleOptions handles CORS preflight requests.
func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Session-Id")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// jsonRPCError is the wire form of a transport-level error envelope.
type jsonRPCError struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      any               `json:"id"`
	Error   jsonRPCErrorField `json:"error"`
}

type jsonRPCErrorField struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeJSONRPCError writes an error envelope with the given HTTP status.
// Parse and shape errors use 200 (they are protocol outcomes); session
// failures use 400 and internal faults 500.
func writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonRPCError{
		JSONRPC: "2.0",
		ID:      nil,
		Error:   jsonRPCErrorField{Code: code, Message: message},
	})
}

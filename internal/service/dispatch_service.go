// Package service contains the core dispatch implementation: the closed
// JSON-RPC method set, the tool/prompt registry, and the audit recorder.
package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/super-pm-ai/superpm-mcp/internal/ctxkey"
	"github.com/super-pm-ai/superpm-mcp/internal/domain/audit"
	"github.com/super-pm-ai/superpm-mcp/pkg/mcp"
)

// maxLineSize bounds a single stdio message (1 MB), matching the HTTP
// transport's body limit.
const maxLineSize = 1 << 20

// loggerFromContext retrieves the enriched logger from context.
// Uses the same key as HTTP middleware for request_id enrichment.
func loggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return nil
}

// sessionIDFromContext retrieves the active session id from context, if any.
func sessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxkey.SessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// requestIDFromContext retrieves the correlation id set by the HTTP
// request-id middleware, if any.
func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxkey.RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// ToolHandler executes one tool call. Recognized failures are reported
// in-band via CallToolResult.IsError, never as a returned error.
type ToolHandler func(ctx context.Context, args json.RawMessage) *mcp.CallToolResult

// PromptHandler renders one prompt. A returned error becomes an
// invalid-params error envelope.
type PromptHandler func(ctx context.Context, args json.RawMessage) (*mcp.GetPromptResult, error)

// DispatchService resolves JSON-RPC requests against the registered tool
// and prompt surface. It interprets no tool semantics itself; handlers are
// black boxes whose results are relayed verbatim.
type DispatchService struct {
	serverInfo     mcp.ServerInfo
	tools          []mcp.Tool
	toolHandlers   map[string]ToolHandler
	prompts        []mcp.Prompt
	promptHandlers map[string]PromptHandler
	auditor        *AuditService
	logger         *slog.Logger
}

// DispatchOption configures a DispatchService.
type DispatchOption func(*DispatchService)

// WithAuditor attaches the async audit recorder.
func WithAuditor(a *AuditService) DispatchOption {
	return func(d *DispatchService) {
		d.auditor = a
	}
}

// NewDispatchService creates a dispatcher identifying itself as info.
func NewDispatchService(info mcp.ServerInfo, logger *slog.Logger, opts ...DispatchOption) *DispatchService {
	if logger == nil {
		logger = slog.Default()
	}
	d := &DispatchService{
		serverInfo:     info,
		toolHandlers:   make(map[string]ToolHandler),
		promptHandlers: make(map[string]PromptHandler),
		logger:         logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterTool adds a tool to the dispatch surface.
// Registration happens at startup, before any transport starts; the
// registry is read-only afterwards.
func (d *DispatchService) RegisterTool(tool mcp.Tool, handler ToolHandler) {
	d.tools = append(d.tools, tool)
	d.toolHandlers[tool.Name] = handler
}

// RegisterPrompt adds a prompt to the dispatch surface.
func (d *DispatchService) RegisterPrompt(prompt mcp.Prompt, handler PromptHandler) {
	d.prompts = append(d.prompts, prompt)
	d.promptHandlers[prompt.Name] = handler
}

// Handshake returns the initialize result advertised to new sessions.
func (d *DispatchService) Handshake() mcp.InitializeResult {
	caps := mcp.ServerCapabilities{}
	if len(d.tools) > 0 {
		caps.Tools = map[string]any{}
	}
	if len(d.prompts) > 0 {
		caps.Prompts = map[string]any{}
	}
	return mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    caps,
		ServerInfo:      d.serverInfo,
	}
}

// DispatchRaw handles one raw JSON-RPC message and returns the encoded
// response. Notifications return (nil, nil): accepted, no response.
// All failures, including panics in handlers, are converted into error
// envelopes; DispatchRaw itself never returns an error for request-level
// problems, only for responses that cannot be encoded.
func (d *DispatchService) DispatchRaw(ctx context.Context, raw []byte) ([]byte, error) {
	msg, err := mcp.DecodeMessage(raw)
	if err != nil {
		return rawErrorEnvelope(nil, mcp.CodeParseError, "Parse error"), nil
	}

	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		return rawErrorEnvelope(nil, mcp.CodeInvalidRequest, "Invalid Request: expected a request"), nil
	}

	if !req.IsCall() {
		// Notification: accepted, no response.
		return nil, nil
	}

	if !mcp.IsValidMethod(req.Method) {
		return d.encodeError(req, mcp.CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}

	result, rpcErr := d.dispatch(ctx, req)
	if rpcErr != nil {
		return d.encodeError(req, rpcErr.Code, rpcErr.Message)
	}
	return d.encodeResult(req, result)
}

// rpcFault is an internal carrier for error envelope fields.
type rpcFault struct {
	Code    int
	Message string
}

// dispatch resolves the method to a handler. Panics are recovered here so
// one request's fault can never take down the process or other sessions.
func (d *DispatchService) dispatch(ctx context.Context, req *jsonrpc.Request) (result any, fault *rpcFault) {
	logger := loggerFromContext(ctx)
	if logger == nil {
		logger = d.logger
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in dispatch", "method", req.Method, "panic", r)
			result = nil
			fault = &rpcFault{Code: mcp.CodeInternalError, Message: "Internal error"}
		}
	}()

	switch req.Method {
	case mcp.MethodInitialize:
		return d.Handshake(), nil

	case mcp.MethodPing:
		return map[string]any{}, nil

	case mcp.MethodToolsList:
		return mcp.ListToolsResult{Tools: d.toolSlice()}, nil

	case mcp.MethodToolsCall:
		return d.callTool(ctx, req, logger)

	case mcp.MethodPromptsList:
		return mcp.ListPromptsResult{Prompts: d.promptSlice()}, nil

	case mcp.MethodPromptsGet:
		return d.getPrompt(ctx, req, logger)
	}

	return nil, &rpcFault{Code: mcp.CodeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)}
}

// callTool parses tools/call params, runs the handler, and records audit.
func (d *DispatchService) callTool(ctx context.Context, req *jsonrpc.Request, logger *slog.Logger) (any, *rpcFault) {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return nil, &rpcFault{Code: mcp.CodeInvalidParams, Message: "Invalid params: missing tool name"}
	}

	handler, ok := d.toolHandlers[params.Name]
	if !ok {
		return nil, &rpcFault{Code: mcp.CodeInvalidParams, Message: fmt.Sprintf("Unknown tool: %s", params.Name)}
	}

	start := time.Now()
	result := handler(ctx, params.Arguments)
	elapsed := time.Since(start)

	outcome := audit.OutcomeOK
	detail := ""
	if result.IsError {
		outcome = audit.OutcomeError
		if len(result.Content) > 0 {
			detail = result.Content[0].Text
		}
	}
	d.record(ctx, mcp.MethodToolsCall, params.Name, outcome, elapsed, detail)

	logger.Debug("tool call dispatched", "tool", params.Name, "outcome", outcome, "duration", elapsed)
	return result, nil
}

// getPrompt parses prompts/get params, renders the prompt, and records audit.
func (d *DispatchService) getPrompt(ctx context.Context, req *jsonrpc.Request, logger *slog.Logger) (any, *rpcFault) {
	var params mcp.GetPromptParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return nil, &rpcFault{Code: mcp.CodeInvalidParams, Message: "Invalid params: missing prompt name"}
	}

	handler, ok := d.promptHandlers[params.Name]
	if !ok {
		return nil, &rpcFault{Code: mcp.CodeInvalidParams, Message: fmt.Sprintf("Unknown prompt: %s", params.Name)}
	}

	start := time.Now()
	result, err := handler(ctx, params.Arguments)
	elapsed := time.Since(start)

	if err != nil {
		d.record(ctx, mcp.MethodPromptsGet, params.Name, audit.OutcomeError, elapsed, err.Error())
		return nil, &rpcFault{Code: mcp.CodeInvalidParams, Message: fmt.Sprintf("Invalid params: %v", err)}
	}

	d.record(ctx, mcp.MethodPromptsGet, params.Name, audit.OutcomeOK, elapsed, "")
	logger.Debug("prompt dispatched", "prompt", params.Name, "duration", elapsed)
	return result, nil
}

// record hands one invocation to the audit recorder, if configured.
func (d *DispatchService) record(ctx context.Context, method, name, outcome string, elapsed time.Duration, detail string) {
	if d.auditor == nil {
		return
	}
	d.auditor.Record(audit.Record{
		Timestamp:  time.Now().UTC(),
		SessionID:  sessionIDFromContext(ctx),
		RequestID:  requestIDFromContext(ctx),
		Method:     method,
		Name:       name,
		Outcome:    outcome,
		DurationMS: elapsed.Milliseconds(),
		Detail:     detail,
	})
}

// toolSlice returns the registered tools, never nil, so tools/list
// serializes as an empty array rather than null.
func (d *DispatchService) toolSlice() []mcp.Tool {
	if d.tools == nil {
		return []mcp.Tool{}
	}
	return d.tools
}

func (d *DispatchService) promptSlice() []mcp.Prompt {
	if d.prompts == nil {
		return []mcp.Prompt{}
	}
	return d.prompts
}

// encodeResult builds a success envelope for req.
func (d *DispatchService) encodeResult(req *jsonrpc.Request, result any) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	resp := &jsonrpc.Response{ID: req.ID, Result: raw}
	encoded, err := mcp.EncodeMessage(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return encoded, nil
}

// encodeError builds an error envelope for req.
func (d *DispatchService) encodeError(req *jsonrpc.Request, code int, message string) ([]byte, error) {
	resp := &jsonrpc.Response{
		ID:    req.ID,
		Error: &jsonrpc.Error{Code: int64(code), Message: message},
	}
	encoded, err := mcp.EncodeMessage(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode error response: %w", err)
	}
	return encoded, nil
}

// wireError is the hand-built envelope used when no decoded request id is
// available (parse failures).
type wireError struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   wireErrorField `json:"error"`
}

type wireErrorField struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rawErrorEnvelope builds an error envelope with the given raw id
// (nil encodes as null).
func rawErrorEnvelope(id json.RawMessage, code int, message string) []byte {
	if id == nil {
		id = json.RawMessage("null")
	}
	out, _ := json.Marshal(wireError{
		JSONRPC: "2.0",
		ID:      id,
		Error:   wireErrorField{Code: code, Message: message},
	})
	return out
}

// Run serves line-delimited JSON-RPC over in/out until EOF or context
// cancellation. This is the stdio transport's engine: one request per
// line, one response per line, notifications produce no line.
func (d *DispatchService) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp, err := d.DispatchRaw(ctx, line)
		if err != nil {
			return err
		}
		if resp == nil {
			continue
		}
		if _, err := out.Write(append(resp, '\n')); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request stream: %w", err)
	}
	return nil
}

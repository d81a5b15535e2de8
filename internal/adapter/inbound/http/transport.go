package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/super-pm-ai/superpm-mcp/internal/domain/session"
	"github.com/super-pm-ai/superpm-mcp/internal/port/inbound"
	"github.com/super-pm-ai/superpm-mcp/internal/service"
)

// Transport is the inbound adapter serving the streamable HTTP surface:
// the /mcp session endpoint, /health, and /metrics.
type Transport struct {
	handler        *Handler
	sessions       *session.Service
	server         *http.Server
	addr           string
	allowedOrigins []string
	logger         *slog.Logger
	metrics        *Metrics
	healthChecker  *HealthChecker

	handlerKeepalive time.Duration
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is "127.0.0.1:3000".
func WithAddr(addr string) Option {
	return func(t *Transport) {
		t.addr = addr
	}
}

// WithAllowedOrigins sets the origin allow-list. If empty, all requests
// that declare an Origin header are blocked (local-only mode).
func WithAllowedOrigins(origins []string) Option {
	return func(t *Transport) {
		t.allowedOrigins = origins
	}
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *Transport) {
		t.healthChecker = hc
	}
}

// WithKeepaliveInterval sets the SSE liveness marker period.
func WithKeepaliveInterval(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.handlerKeepalive = d
		}
	}
}

// NewTransport creates the HTTP transport around the session lifecycle
// and dispatcher.
func NewTransport(sessions *session.Service, dispatcher *service.DispatchService, opts ...Option) *Transport {
	t := &Transport{
		sessions:         sessions,
		addr:             "127.0.0.1:3000",
		allowedOrigins:   []string{},
		logger:           slog.Default(),
		handlerKeepalive: DefaultKeepaliveInterval,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.handler = NewHandler(sessions, dispatcher, t.handlerKeepalive, t.logger)
	return t
}

// Start begins accepting HTTP connections. It blocks until the context
// is cancelled or an error occurs.
func (t *Transport) Start(ctx context.Context) error {
	mux := t.buildMux()

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)

	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		err := t.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// buildMux assembles the route table and middleware chain.
func (t *Transport) buildMux() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.metrics = NewMetrics(reg)
	t.handler.SetMetrics(t.metrics)
	RegisterSessionGauge(reg, func() int { return t.sessions.Count(context.Background()) })

	// Middleware chain, outermost first: metrics, request id, then the
	// session endpoint. The origin check wraps the whole route table
	// below so it runs before any session logic on every route.
	var mcpHandler http.Handler = t.handler
	mcpHandler = RequestIDMiddleware(t.logger)(mcpHandler)
	mcpHandler = MetricsMiddleware(t.metrics)(mcpHandler)

	mux := http.NewServeMux()
	if t.healthChecker != nil {
		mux.Handle("/health", t.healthChecker.Handler())
	} else {
		mux.Handle("/health", NewHealthChecker(t.sessions, nil, "").Handler())
	}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry: reg,
	}))
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.Handle("/mcp", mcpHandler)
	mux.Handle("/mcp/", mcpHandler)

	return OriginValidation(t.allowedOrigins)(mux)
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close all SSE streams first so their handlers exit.
	t.handler.streams.closeAll()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}

var _ inbound.Transport = (*Transport)(nil)

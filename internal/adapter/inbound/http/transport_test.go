package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/super-pm-ai/superpm-mcp/internal/adapter/outbound/memory"
	"github.com/super-pm-ai/superpm-mcp/internal/domain/session"
	"github.com/super-pm-ai/superpm-mcp/internal/service"
	"github.com/super-pm-ai/superpm-mcp/pkg/mcp"
)

func newTestTransport(t *testing.T, opts ...Option) *Transport {
	t.Helper()

	sessions := session.NewService(memory.NewSessionStore(), session.Config{})
	dispatcher := service.NewDispatchService(mcp.ServerInfo{Name: "superpm-mcp", Version: "test"}, testLogger())
	dispatcher.RegisterTool(mcp.Tool{Name: "echo"}, func(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
		return mcp.NewTextResult("ok")
	})

	opts = append([]Option{WithLogger(testLogger())}, opts...)
	return NewTransport(sessions, dispatcher, opts...)
}

func TestTransportRoutes(t *testing.T) {
	tr := newTestTransport(t, WithAllowedOrigins([]string{"https://app.example.com"}))
	srv := httptest.NewServer(tr.buildMux())
	defer srv.Close()

	// Health route responds without a session.
	resp, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	// Metrics route is registered.
	resp, err = srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d", resp.StatusCode)
	}

	// Session endpoint accepts an initialize POST.
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/mcp initialize status = %d", resp.StatusCode)
	}
	if resp.Header.Get(SessionIDHeader) == "" {
		t.Error("initialize response missing session id header")
	}
}

func TestTransportOriginRejectedBeforeSessionLogic(t *testing.T) {
	tr := newTestTransport(t, WithAllowedOrigins([]string{"https://app.example.com"}))
	srv := httptest.NewServer(tr.buildMux())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://evil.example.com")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if got := tr.sessions.Count(context.Background()); got != 0 {
		t.Errorf("active sessions = %d, rejected request must not create one", got)
	}
}

func TestTransportOriginCoversAllRoutes(t *testing.T) {
	tr := newTestTransport(t, WithAllowedOrigins([]string{"http://localhost:3000"}))
	srv := httptest.NewServer(tr.buildMux())
	defer srv.Close()

	for _, path := range []string{"/health", "/metrics", "/mcp"} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Origin", "http://evil.example")

		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("%s status = %d, want 403", path, resp.StatusCode)
		}
	}

	// An allowed origin still reaches the routes.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health with allowed origin status = %d, want 200", resp.StatusCode)
	}
}

func TestTransportStartAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	tr := newTestTransport(t, WithAddr("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- tr.Start(ctx)
	}()

	// Give the listener a moment, then trigger shutdown.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("transport did not shut down")
	}
}

package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOriginValidation(t *testing.T) {
	allowList := []string{"https://app.example.com", "http://localhost:3000"}

	tests := []struct {
		name       string
		origin     string
		allowed    []string
		wantStatus int
	}{
		{"no origin allowed", "", allowList, http.StatusOK},
		{"listed origin allowed", "https://app.example.com", allowList, http.StatusOK},
		{"localhost listed", "http://localhost:3000", allowList, http.StatusOK},
		{"unlisted origin blocked", "https://evil.example.com", allowList, http.StatusForbidden},
		{"scheme mismatch blocked", "http://app.example.com", allowList, http.StatusForbidden},
		{"port mismatch blocked", "http://localhost:3001", allowList, http.StatusForbidden},
		{"empty list blocks any origin", "https://app.example.com", nil, http.StatusForbidden},
		{"empty list allows absent origin", "", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			})

			handler := OriginValidation(tt.allowed)(next)
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden && reached {
				t.Error("blocked request must not reach the session handler")
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seenID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID, _ = r.Context().Value(RequestIDKey).(string)
		if LoggerFromContext(r.Context()) == nil {
			t.Error("logger missing from context")
		}
	})

	handler := RequestIDMiddleware(testLogger())(next)

	// Generated when absent.
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seenID == "" {
		t.Error("request id not generated")
	}
	if rec.Header().Get("X-Request-ID") != seenID {
		t.Error("request id not echoed in response header")
	}

	// Propagated when present.
	req = httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seenID != "req-123" {
		t.Errorf("request id = %q, want req-123", seenID)
	}
}

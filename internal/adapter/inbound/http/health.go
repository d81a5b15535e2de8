package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/super-pm-ai/superpm-mcp/internal/domain/session"
	"github.com/super-pm-ai/superpm-mcp/internal/service"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status         string            `json:"status"`
	Timestamp      string            `json:"timestamp"`
	ActiveSessions int               `json:"activeSessions"`
	Checks         map[string]string `json:"checks"`
	Version        string            `json:"version,omitempty"`
}

// HealthChecker verifies component health.
type HealthChecker struct {
	sessions *session.Service
	auditSvc *service.AuditService
	version  string
}

// NewHealthChecker creates a HealthChecker. Pass nil for components that
// aren't configured.
func NewHealthChecker(sessions *session.Service, auditSvc *service.AuditService, version string) *HealthChecker {
	return &HealthChecker{
		sessions: sessions,
		auditSvc: auditSvc,
		version:  version,
	}
}

// Check reports the active session count and component health.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]string)
	healthy := true
	active := 0

	if h.sessions != nil {
		active = h.sessions.Count(ctx)
		checks["session_store"] = "ok"
	} else {
		checks["session_store"] = "not configured"
	}

	if h.auditSvc != nil {
		depth := h.auditSvc.ChannelDepth()
		capacity := h.auditSvc.ChannelCapacity()
		percentFull := 0
		if capacity > 0 {
			percentFull = depth * 100 / capacity
		}

		if percentFull > 90 {
			// Past 90% the writer is under backpressure.
			checks["audit"] = fmt.Sprintf("degraded: %d/%d (%d%%)", depth, capacity, percentFull)
			healthy = false
		} else {
			checks["audit"] = fmt.Sprintf("ok: %d/%d (%d%%)", depth, capacity, percentFull)
		}

		if drops := h.auditSvc.DroppedRecords(); drops > 0 {
			checks["audit_drops"] = fmt.Sprintf("%d dropped", drops)
		}
	} else {
		checks["audit"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:         status,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ActiveSessions: active,
		Checks:         checks,
		Version:        h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}

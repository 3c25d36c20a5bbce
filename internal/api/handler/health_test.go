package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/vetclinic/clinic-session/internal/core/domain"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler_Readiness(t *testing.T) {
	cases := []struct {
		name    string
		pingErr error
		loading bool
		want    int
	}{
		{"ready", nil, false, http.StatusOK},
		{"store down", errors.New("dial tcp: refused"), false, http.StatusServiceUnavailable},
		{"still restoring", nil, true, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubSession{snap: domain.Snapshot{ActiveKind: domain.KindNone, IsLoading: tc.loading}}
			c, rec := newContext(svc, http.MethodGet, "/health/ready", "")

			if err := NewHealthHandler(stubPinger{err: tc.pingErr}).Readiness(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}

			var body readinessResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body.IsLoading != tc.loading {
				t.Fatalf("expected isLoading=%v", tc.loading)
			}
			if tc.pingErr != nil && body.Dependencies["credential_store"].Status != "unhealthy" {
				t.Fatalf("expected unhealthy store, got %+v", body.Dependencies)
			}
		})
	}
}

func TestHealthHandler_ReadinessWithoutSession(t *testing.T) {
	c, rec := newContext(nil, http.MethodGet, "/health/ready", "")

	if err := NewHealthHandler(stubPinger{}).Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the session is wired, got %d", rec.Code)
	}
}

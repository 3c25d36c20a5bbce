// Package metrics defines and registers all custom Prometheus metrics for the
// clinic session service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package init
// through promauto; /metrics serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clinic_session"

// ── Session transitions ───────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Labels:
//   - kind: identity kind the login resolved to ("SYSTEM", "CLIENT") or "NONE" on failure
//   - result: "success", "invalid_credentials", "transport_failure", "storage_error", "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by resolved kind and result.",
	},
	[]string{"kind", "result"},
)

// LogoutsTotal counts explicit logouts.
// Label:
//   - kind: the identity kind that was active when logging out
var LogoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logouts_total",
		Help:      "Total number of explicit logouts.",
	},
	[]string{"kind"},
)

// RestoresTotal counts startup restorations.
// Label:
//   - outcome: "empty", "restored", "expired", "validation_error", "incomplete", "corrupt_marker", "storage_error", "superseded"
var RestoresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "restores_total",
		Help:      "Total number of session restorations at startup, by outcome.",
	},
	[]string{"outcome"},
)

// ValidationsTotal counts token validations against the backend.
// Label:
//   - result: "valid", "invalid", "error"
var ValidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validations_total",
		Help:      "Total number of stored-token validations, by result.",
	},
	[]string{"result"},
)

// ActiveSession is 1 for the currently active identity kind and 0 for the others.
var ActiveSession = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_session",
		Help:      "Whether a session of the given kind is active (1) or not (0).",
	},
	[]string{"kind"},
)

// Subscribers tracks the number of live state subscribers.
var Subscribers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscribers",
		Help:      "Current number of session state subscribers.",
	},
)

// ── Backend calls ─────────────────────────────────────────────────────────────

// BackendRequestDuration measures calls to the clinic backend.
// Labels:
//   - operation: "login", "client_login", "validate", "logout", "update_profile"
//   - status: HTTP status code, or "error" when no response was received
var BackendRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of requests to the clinic backend.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation", "status"},
)

// LoginRateLimitedTotal counts login requests rejected by the local rate limiter.
var LoginRateLimitedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_rate_limited_total",
		Help:      "Total number of login requests rejected by the rate limiter.",
	},
)

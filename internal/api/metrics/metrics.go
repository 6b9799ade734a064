// Package metrics defines and registers the Prometheus metrics of the HTTP
// layer. Background workers own their collectors in their own packages.
//
// Metrics are registered with the default registry on package init through
// promauto; the /metrics endpoint exposes them alongside echoprometheus' HTTP
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Authentication metrics ────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts by outcome.
// Label:
//   - result: "success", "invalid_credentials", "locked", "disabled", "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// TokensIssuedTotal counts token pairs minted by login and refresh.
// Label:
//   - source: "login" or "refresh"
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_pairs_issued_total",
		Help:      "Total number of access/refresh token pairs issued.",
	},
	[]string{"source"},
)

// LogoutsTotal counts completed logouts.
var LogoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logouts_total",
		Help:      "Total number of logouts that revoked their tokens.",
	},
)

// GuardDecisionsTotal counts authentication guard outcomes per request.
// Label:
//   - outcome: "public", "anonymous", "invalid", "revoked", "unknown_subject", "error", "authenticated"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of requests seen by the authentication guard, by outcome.",
	},
	[]string{"outcome"},
)

// AuthorizationDeniedTotal counts requests rejected by the authorization layer.
// Label:
//   - reason: "unauthenticated" or "forbidden"
var AuthorizationDeniedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_denied_total",
		Help:      "Total number of requests rejected for missing authentication or permissions.",
	},
	[]string{"reason"},
)

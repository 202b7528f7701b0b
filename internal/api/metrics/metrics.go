// Package metrics defines all custom Prometheus metrics for the logbook
// gateway. It is the single source of truth for metric names, labels, and
// help strings; promauto registers everything with the default registry at
// package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "logbook_gateway"

// ── Session lifecycle metrics ────────────────────────────────────────────────

// LoginsTotal counts login attempts by result.
// Label:
//   - result: "ok", "rejected", "rate_limited", "in_flight", or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts handled by the gateway.",
	},
	[]string{"result"},
)

// StatusChecksTotal counts upstream status reconciliations by outcome.
// Label:
//   - outcome: "authenticated" or "unauthenticated"
var StatusChecksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_checks_total",
		Help:      "Total number of upstream session status checks, by outcome.",
	},
	[]string{"outcome"},
)

// SessionsActive tracks the number of live browser sessions in the registry.
var SessionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Current number of live browser sessions held by the gateway.",
	},
)

// ── Authorization metrics ────────────────────────────────────────────────────

// GuardDecisionsTotal counts route guard outcomes.
// Label:
//   - outcome: "grant", "pending", "redirect", or "deny"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions, by outcome.",
	},
	[]string{"outcome"},
)

// GateDecisionsTotal counts permission gate evaluations served over HTTP.
// Label:
//   - granted: "true" or "false"
var GateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Total number of permission gate evaluations, by grant result.",
	},
	[]string{"granted"},
)

// ── Upstream metrics ─────────────────────────────────────────────────────────

// UpstreamRequestDuration measures latency of calls to the upstream API.
// Label:
//   - endpoint: upstream endpoint class, e.g. "proxy"
var UpstreamRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of requests from the gateway to the upstream API.",
		Buckets:   prometheus.DefBuckets, // .005 … 10
	},
	[]string{"endpoint"},
)

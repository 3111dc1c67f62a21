// Package metrics defines and registers all custom Prometheus metrics for the
// ServiPro booking API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "servipro"

// ── Gateway metrics ───────────────────────────────────────────────────────────

// GatewayRequestsTotal counts round trips to the remote store.
// Labels:
//   - table: users, services or bookings
//   - op: insert, select, fetch, update, count, ping
//   - result: "ok" or the error kind (e.g. "connection_failure")
var GatewayRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_requests_total",
		Help:      "Total number of remote store round trips, by table, operation and result.",
	},
	[]string{"table", "op", "result"},
)

// GatewayRequestDuration measures remote store latency.
var GatewayRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_request_duration_seconds",
		Help:      "Duration of remote store round trips.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"table", "op"},
)

// ── Domain metrics ────────────────────────────────────────────────────────────

// CatalogCacheTotal counts services cache lookups.
// Label:
//   - result: "hit", "miss" or "bypass" (forced refresh)
var CatalogCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_cache_total",
		Help:      "Total number of services cache lookups, labelled by result.",
	},
	[]string{"result"},
)

// StatsQueryFailuresTotal counts counting queries that failed and were reported as zero.
var StatsQueryFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stats_query_failures_total",
		Help:      "Total number of statistics queries that failed and were zeroed.",
	},
	[]string{"figure"},
)

// ── Wizard metrics ────────────────────────────────────────────────────────────

// WizardTransitionsTotal counts booking wizard state changes.
var WizardTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wizard_transitions_total",
		Help:      "Total number of booking wizard state transitions.",
	},
	[]string{"from", "to"},
)

// BookingSubmissionsTotal counts submission attempts.
// Label:
//   - outcome: "submitted", "user_failed", "booking_failed" or "interrupted"
var BookingSubmissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_submissions_total",
		Help:      "Total number of booking submission attempts, by outcome.",
	},
	[]string{"outcome"},
)

// AuditQueueDepth tracks the number of audit events waiting in each dispatcher worker channel.
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

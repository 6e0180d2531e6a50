// Package metrics defines and registers all custom Prometheus metrics for
// the session engine. It is the single source of truth for metric names,
// labels, and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campusmarket"

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionTransitionsTotal counts session phase transitions.
// Labels:
//   - from: the phase being left (e.g. "initializing")
//   - to: the phase being entered (e.g. "authenticated")
var SessionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Total number of session phase transitions, by from/to phase.",
	},
	[]string{"from", "to"},
)

// SignInFailuresTotal counts rejected sign-in attempts.
var SignInFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_in_failures_total",
		Help:      "Total number of sign-in attempts rejected by the auth provider.",
	},
)

// ── Profile metrics ───────────────────────────────────────────────────────────

// ProfileResolutionsTotal counts profile resolutions by outcome.
// Label:
//   - outcome: "found", "created", "fallback", or "no_claims"
var ProfileResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_resolutions_total",
		Help:      "Total number of profile resolutions, by outcome.",
	},
	[]string{"outcome"},
)

// RolePromotionsTotal counts durable buyer-to-seller promotion writes.
var RolePromotionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_promotions_total",
		Help:      "Total number of role-promotion writes performed after an approved application.",
	},
)

// ── Presence metrics ──────────────────────────────────────────────────────────

// HeartbeatWritesTotal counts presence writes.
// Label:
//   - kind: "online" or "offline"
var HeartbeatWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "heartbeat_writes_total",
		Help:      "Total number of presence heartbeat writes, by kind.",
	},
	[]string{"kind"},
)

// ── Realtime metrics ──────────────────────────────────────────────────────────

// FeedEventsTotal counts change-feed events applied by the aggregator.
// Labels:
//   - topic: the subscription topic (e.g. "messages")
//   - type: "inserted", "updated", or "deleted"
var FeedEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_events_total",
		Help:      "Total number of change-feed events applied, by topic and type.",
	},
	[]string{"topic", "type"},
)

// PollFallbacksTotal counts full re-fetches triggered by feed staleness.
var PollFallbacksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_fallbacks_total",
		Help:      "Total number of polling re-fetches performed while the change feed was stale.",
	},
)

// CounterRefreshDuration measures how long a full aggregate re-fetch takes.
var CounterRefreshDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "counter_refresh_duration_seconds",
		Help:      "Duration of a full derived-counter re-fetch.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
)

// ── Authorization metrics ─────────────────────────────────────────────────────

// GateDecisionsTotal counts authorization gate decisions.
// Label:
//   - verdict: "pending", "allow", "redirect", or "deny"
var GateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Total number of authorization gate decisions, by verdict.",
	},
	[]string{"verdict"},
)

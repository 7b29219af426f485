// Package metrics provides Prometheus metrics for carepoints: the scoring
// pipeline, point flows, badges, challenges, scheduled jobs and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Pipeline ───────────────────────────────────────────────────────────────

// ActivitiesProcessed counts activity events by type and outcome
// (ok, duplicate, error).
var ActivitiesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "activities_total",
	Help:      "Activity events processed by type and result.",
}, []string{"type", "result"})

// PipelineDuration tracks the time to score one activity event.
var PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "carepoints",
	Name:      "pipeline_duration_seconds",
	Help:      "Time to score one activity event, transaction included.",
	Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
})

// ─── Points ─────────────────────────────────────────────────────────────────

// PointsAwarded tracks points granted by reason (activity type, badge,
// challenge, manual).
var PointsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "points_awarded_total",
	Help:      "Total points awarded by reason.",
}, []string{"reason"})

// PointsSpent tracks points redeemed.
var PointsSpent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "points_spent_total",
	Help:      "Total points spent.",
})

// LevelUps counts level boundaries crossed.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "level_ups_total",
	Help:      "Total level-ups across all users.",
})

// PeriodResets counts weekly and monthly counter resets.
var PeriodResets = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "period_resets_total",
	Help:      "Weekly and monthly point resets performed.",
}, []string{"period"})

// ─── Badges & Challenges ────────────────────────────────────────────────────

// BadgesAwarded counts badge grants by badge code.
var BadgesAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "badges_awarded_total",
	Help:      "Total badges awarded by badge code.",
}, []string{"code"})

// ChallengesCompleted counts challenge completions.
var ChallengesCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "challenges_completed_total",
	Help:      "Total challenge completions.",
})

// ─── Scheduler ──────────────────────────────────────────────────────────────

// JobRuns counts scheduled job executions by job and outcome.
var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "job_runs_total",
	Help:      "Scheduled job executions by job and result.",
}, []string{"job", "result"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route pattern, method and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "http_requests_total",
	Help:      "API requests by route, method and status code.",
}, []string{"route", "method", "code"})

// RateLimited counts requests rejected by the rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "http_rate_limited_total",
	Help:      "Requests rejected by the per-client rate limiter.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "carepoints",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "carepoints",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})

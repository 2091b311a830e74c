// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Settlement outcomes.
const (
	OutcomeSuccess          = "success"
	OutcomePartial          = "partial"
	OutcomeNotFound         = "not_found"
	OutcomeForbidden        = "forbidden"
	OutcomeAlreadyCompleted = "already_completed"
	OutcomeUnavailable      = "unavailable"
)

// Prometheus metrics for the reward settlement service.
var (
	// Settlement.
	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Total mission settlements by outcome",
		},
		[]string{"outcome"},
	)

	SettlementDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "Duration of mission settlements in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
	)

	PointsCreditedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "points_credited_total",
			Help: "Total points credited to users",
		},
	)

	LevelUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "level_ups_total",
			Help: "Total levels gained by users",
		},
	)

	SettlementTailFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_tail_failures_total",
			Help: "Total settlement steps that failed after the mission was marked completed",
		},
		[]string{"step"},
	)

	// Badges.
	BadgesUnlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badges_unlocked_total",
			Help: "Total badges unlocked",
		},
		[]string{"badge_name", "category"},
	)

	ActiveBadgeHolders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_badge_holders",
			Help: "Number of users holding each badge",
		},
		[]string{"badge_name"},
	)

	BadgeSweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_sweep_runs_total",
			Help: "Total badge sweep job runs",
		},
		[]string{"status"},
	)

	BadgeSweepDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "badge_sweep_duration_seconds",
			Help:    "Duration of badge sweep runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
	)

	// Notifications.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total notifications handled by kind and status",
		},
		[]string{"kind", "status"},
	)

	NotificationQueueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_queue_dropped_total",
			Help: "Total notifications dropped because the queue was full",
		},
	)

	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Current number of queued notifications",
		},
	)

	// Reconciliation.
	ReconciliationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_runs_total",
			Help: "Total settlement reconciliation runs",
		},
		[]string{"status"},
	)

	ReconciledStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciled_steps_total",
			Help: "Total settlement steps replayed by reconciliation",
		},
		[]string{"step", "status"},
	)

	// Catalog cache.
	CatalogCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_requests_total",
			Help: "Badge catalog cache lookups by result",
		},
		[]string{"result"},
	)

	// HTTP.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordSettlement records the outcome and duration of a settlement.
func RecordSettlement(outcome string, seconds float64) {
	SettlementsTotal.WithLabelValues(outcome).Inc()
	SettlementDurationSeconds.Observe(seconds)
}

// RecordPointsCredited adds credited points.
func RecordPointsCredited(points int64) {
	if points > 0 {
		PointsCreditedTotal.Add(float64(points))
	}
}

// RecordLevelUps adds gained levels.
func RecordLevelUps(levels int) {
	if levels > 0 {
		LevelUpsTotal.Add(float64(levels))
	}
}

// RecordTailFailure records a failed settlement step.
func RecordTailFailure(step string) {
	SettlementTailFailuresTotal.WithLabelValues(step).Inc()
}

// RecordBadgeUnlocked records a badge unlock.
func RecordBadgeUnlocked(badgeName, category string) {
	BadgesUnlockedTotal.WithLabelValues(badgeName, category).Inc()
}

// SetActiveBadgeHolders sets the holder count of a badge.
func SetActiveBadgeHolders(badgeName string, count int64) {
	ActiveBadgeHolders.WithLabelValues(badgeName).Set(float64(count))
}

// RecordBadgeSweepRun records a badge sweep run.
func RecordBadgeSweepRun(status string) {
	BadgeSweepRunsTotal.WithLabelValues(status).Inc()
}

// ObserveBadgeSweepDuration records the duration of a badge sweep.
func ObserveBadgeSweepDuration(seconds float64) {
	BadgeSweepDurationSeconds.Observe(seconds)
}

// RecordNotification records a handled notification.
func RecordNotification(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordNotificationDropped records a notification dropped on a full queue.
func RecordNotificationDropped() {
	NotificationQueueDroppedTotal.Inc()
}

// SetNotificationQueueDepth sets the current queue depth.
func SetNotificationQueueDepth(depth int) {
	NotificationQueueDepth.Set(float64(depth))
}

// RecordReconciliationRun records a reconciliation run.
func RecordReconciliationRun(status string) {
	ReconciliationRunsTotal.WithLabelValues(status).Inc()
}

// RecordReconciledStep records a replayed settlement step.
func RecordReconciledStep(step, status string) {
	ReconciledStepsTotal.WithLabelValues(step, status).Inc()
}

// RecordCatalogCache records a catalog cache lookup ("hit", "miss" or "error").
func RecordCatalogCache(result string) {
	CatalogCacheRequestsTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route, status string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(seconds)
}

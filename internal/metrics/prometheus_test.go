package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSettlement(t *testing.T) {
	// Reset the counter before test
	SettlementsTotal.Reset()

	RecordSettlement(OutcomeSuccess, 0.02)
	RecordSettlement(OutcomeSuccess, 0.03)
	RecordSettlement(OutcomeAlreadyCompleted, 0.01)

	count := testutil.ToFloat64(SettlementsTotal.WithLabelValues(OutcomeSuccess))
	if count != 2 {
		t.Errorf("Expected success count = 2, got %f", count)
	}

	count = testutil.ToFloat64(SettlementsTotal.WithLabelValues(OutcomeAlreadyCompleted))
	if count != 1 {
		t.Errorf("Expected already_completed count = 1, got %f", count)
	}
}

func TestRecordPointsCredited(t *testing.T) {
	before := testutil.ToFloat64(PointsCreditedTotal)

	RecordPointsCredited(20)
	RecordPointsCredited(5)
	RecordPointsCredited(0)
	RecordPointsCredited(-3)

	if got := testutil.ToFloat64(PointsCreditedTotal) - before; got != 25 {
		t.Errorf("Expected 25 credited points, got %f", got)
	}
}

func TestRecordLevelUps(t *testing.T) {
	before := testutil.ToFloat64(LevelUpsTotal)

	RecordLevelUps(2)
	RecordLevelUps(0)

	if got := testutil.ToFloat64(LevelUpsTotal) - before; got != 2 {
		t.Errorf("Expected 2 level ups, got %f", got)
	}
}

func TestRecordTailFailure(t *testing.T) {
	SettlementTailFailuresTotal.Reset()

	RecordTailFailure("credit_points")
	RecordTailFailure("credit_points")
	RecordTailFailure("evaluate_badges")

	if got := testutil.ToFloat64(SettlementTailFailuresTotal.WithLabelValues("credit_points")); got != 2 {
		t.Errorf("Expected 2 credit_points failures, got %f", got)
	}
}

func TestBadgeMetrics(t *testing.T) {
	BadgesUnlockedTotal.Reset()
	ActiveBadgeHolders.Reset()

	RecordBadgeUnlocked("First Steps", "missions")
	SetActiveBadgeHolders("First Steps", 7)

	if got := testutil.ToFloat64(BadgesUnlockedTotal.WithLabelValues("First Steps", "missions")); got != 1 {
		t.Errorf("Expected 1 unlock, got %f", got)
	}
	if got := testutil.ToFloat64(ActiveBadgeHolders.WithLabelValues("First Steps")); got != 7 {
		t.Errorf("Expected 7 holders, got %f", got)
	}
}

func TestNotificationMetrics(t *testing.T) {
	NotificationsTotal.Reset()
	before := testutil.ToFloat64(NotificationQueueDroppedTotal)

	RecordNotification("level_up", "sent")
	RecordNotificationDropped()
	SetNotificationQueueDepth(3)

	if got := testutil.ToFloat64(NotificationsTotal.WithLabelValues("level_up", "sent")); got != 1 {
		t.Errorf("Expected 1 sent notification, got %f", got)
	}
	if got := testutil.ToFloat64(NotificationQueueDroppedTotal) - before; got != 1 {
		t.Errorf("Expected 1 dropped notification, got %f", got)
	}
	if got := testutil.ToFloat64(NotificationQueueDepth); got != 3 {
		t.Errorf("Expected queue depth 3, got %f", got)
	}
}

func TestJobMetrics(t *testing.T) {
	ReconciliationRunsTotal.Reset()
	BadgeSweepRunsTotal.Reset()

	RecordReconciliationRun("success")
	RecordBadgeSweepRun("failure")

	if got := testutil.ToFloat64(ReconciliationRunsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 reconciliation run, got %f", got)
	}
	if got := testutil.ToFloat64(BadgeSweepRunsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("Expected 1 failed sweep, got %f", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("POST", "/api/v1/missions/:id/complete", "200", 0.01)

	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/missions/:id/complete", "200")); got != 1 {
		t.Errorf("Expected 1 request, got %f", got)
	}
}

package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	prommetrics "github.com/aimd54/travelquest-rewards/internal/metrics"
	"github.com/aimd54/travelquest-rewards/internal/models"
	"github.com/aimd54/travelquest-rewards/internal/repository"
	"github.com/aimd54/travelquest-rewards/internal/service/badges"
)

// Reconciled step statuses recorded in metrics.
const (
	StepReplayed = "replayed"
	StepFailed   = "failed"
	StepSkipped  = "skipped"
)

// ReconcileReport summarizes a reconciliation run.
type ReconcileReport struct {
	Pending  int
	Replayed int
	Failed   int
	Skipped  int
}

// Reconcile replays up to limit pending tail steps. Each step is claimed before it is replayed,
// so it is applied by at most one reconciler; a failed replay releases the step for the next run.
func (s *Service) Reconcile(ctx context.Context, limit int) (ReconcileReport, error) {
	var report ReconcileReport

	pending, err := s.ledger.ListPendingSettlementSteps(ctx, limit)
	if err != nil {
		prommetrics.RecordReconciliationRun("error")
		return report, fmt.Errorf("failed to list pending settlement steps: %w", err)
	}
	report.Pending = len(pending)

	for _, step := range pending {
		if err := ctx.Err(); err != nil {
			prommetrics.RecordReconciliationRun("error")
			return report, err
		}

		status := s.reconcileStep(ctx, step)
		prommetrics.RecordReconciledStep(step.Step, status)
		switch status {
		case StepReplayed:
			report.Replayed++
		case StepFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	status := "success"
	if report.Failed > 0 {
		status = "partial"
	}
	prommetrics.RecordReconciliationRun(status)

	s.log.Info().
		Int("pending", report.Pending).
		Int("replayed", report.Replayed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("Settlement reconciliation complete")

	if report.Failed > 0 {
		return report, fmt.Errorf("%d of %d settlement steps failed to replay", report.Failed, report.Pending)
	}
	return report, nil
}

func (s *Service) reconcileStep(ctx context.Context, step models.SettlementStep) string {
	log := s.log.Settlement(step.MissionID, step.UserID)

	err := s.ledger.ClaimSettlementStep(ctx, step.MissionID, step.Step)
	if errors.Is(err, repository.ErrConflict) {
		log.Debug().Str("step", step.Step).Msg("Settlement step claimed elsewhere, skipping")
		return StepSkipped
	}
	if err != nil {
		log.Error().Err(err).Str("step", step.Step).Msg("Failed to claim settlement step")
		return StepFailed
	}

	if err := s.replay(ctx, step); err != nil {
		log.Error().Err(err).Str("step", step.Step).Int("attempts", step.Attempts+1).Msg("Settlement step replay failed")
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if relErr := s.ledger.ReleaseSettlementStep(callCtx, step.MissionID, step.Step, err); relErr != nil {
			log.Error().Err(relErr).Str("step", step.Step).Msg("Failed to release settlement step")
		}
		return StepFailed
	}

	log.Info().Str("step", step.Step).Msg("Settlement step replayed")
	return StepReplayed
}

// unlockLevelBadges re-evaluates badges after a replayed level-up. The level step is already
// applied, so a failure here is recorded as a pending badge step instead of failing the replay.
func (s *Service) unlockLevelBadges(ctx context.Context, step models.SettlementStep, payload models.SettlementStepPayload, level int) {
	unlocked, err := s.unlockBadges(ctx, step.UserID, level)
	for _, badge := range unlocked {
		s.dispatcher.Notify(ctx, step.UserID, models.NotificationBadgeEarned, badges.BadgeEarnedPayload(badge))
	}
	if err == nil {
		return
	}

	log := s.log.Settlement(step.MissionID, step.UserID)
	log.Error().Err(err).Int("level", level).Msg("Badge evaluation after replayed level-up failed")
	prommetrics.RecordTailFailure(models.StepEvaluateBadges)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if recErr := s.ledger.RecordSettlementStep(callCtx, step.MissionID, step.UserID, models.StepEvaluateBadges, models.StepStatusPending, payload, err); recErr != nil {
		log.Error().Err(recErr).Msg("Failed to record pending badge step")
	}
}

func (s *Service) replay(ctx context.Context, step models.SettlementStep) error {
	var payload models.SettlementStepPayload
	if len(step.Payload) > 0 {
		if err := json.Unmarshal(step.Payload, &payload); err != nil {
			return fmt.Errorf("failed to decode step payload: %w", err)
		}
	}

	switch step.Step {
	case models.StepCreditPoints:
		_, err := s.creditPoints(ctx, step.UserID, payload.Points)
		return err

	case models.StepRecomputeLevel:
		_, outcome, err := s.applyLevel(ctx, step.UserID, payload.XP)
		if err != nil {
			return err
		}
		if outcome.LeveledUp {
			s.dispatcher.Notify(ctx, step.UserID, models.NotificationLevelUp, levelUpPayload(outcome.NewLevel))
			// Badges were evaluated against the old level when the mission settled.
			s.unlockLevelBadges(ctx, step, payload, outcome.NewLevel)
		}
		return nil

	case models.StepEvaluateBadges:
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		user, err := s.store.GetUser(callCtx, step.UserID)
		cancel()
		if err != nil {
			return err
		}
		unlocked, err := s.unlockBadges(ctx, step.UserID, user.Level)
		for _, badge := range unlocked {
			s.dispatcher.Notify(ctx, step.UserID, models.NotificationBadgeEarned, badges.BadgeEarnedPayload(badge))
		}
		return err

	default:
		return fmt.Errorf("unknown settlement step %q", step.Step)
	}
}

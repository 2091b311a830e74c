// Package scheduler runs the periodic settlement reconciliation and badge sweep jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aimd54/travelquest-rewards/internal/config"
	prommetrics "github.com/aimd54/travelquest-rewards/internal/metrics"
	"github.com/aimd54/travelquest-rewards/internal/service/settlement"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// Reconciler replays pending settlement steps.
type Reconciler interface {
	Reconcile(ctx context.Context, limit int) (settlement.ReconcileReport, error)
}

// BadgeSweeper re-evaluates the badges of every user.
type BadgeSweeper interface {
	SweepAllUsers(ctx context.Context) (int, error)
}

// Service handles background job scheduling.
type Service struct {
	config     *config.SchedulerConfig
	batch      int
	reconciler Reconciler
	sweeper    BadgeSweeper
	log        *logger.Logger
	cron       *cron.Cron

	// Guards against a slow run overlapping the next tick of the same job.
	reconcileMu sync.Mutex
	sweepMu     sync.Mutex
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.SchedulerConfig,
	reconcileBatch int,
	reconciler Reconciler,
	sweeper BadgeSweeper,
	log *logger.Logger,
) *Service {
	if reconcileBatch <= 0 {
		reconcileBatch = 100
	}
	return &Service{
		config:     cfg,
		batch:      reconcileBatch,
		reconciler: reconciler,
		sweeper:    sweeper,
		log:        log.Component("scheduler"),
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := time.LoadLocation(s.config.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	if s.config.ReconcileSchedule != "" && s.reconciler != nil {
		if _, err := s.cron.AddFunc(s.config.ReconcileSchedule, func() {
			_, _ = s.RunReconciliation(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register reconciliation job: %w", err)
		}
		s.log.Info().Str("schedule", s.config.ReconcileSchedule).Msg("Reconciliation job registered")
	}

	if s.config.BadgeSweepSchedule != "" && s.sweeper != nil {
		if _, err := s.cron.AddFunc(s.config.BadgeSweepSchedule, func() {
			_, _ = s.RunBadgeSweep(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register badge sweep job: %w", err)
		}
		s.log.Info().Str("schedule", s.config.BadgeSweepSchedule).Msg("Badge sweep job registered")
	}

	s.cron.Start()

	nextRun := ""
	if entries := s.cron.Entries(); len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("timezone", s.config.Timezone).
		Int("jobs", len(s.cron.Entries())).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// RunReconciliation replays one batch of pending settlement steps. A run that starts while
// another is in progress is skipped.
func (s *Service) RunReconciliation(ctx context.Context) (settlement.ReconcileReport, error) {
	if !s.reconcileMu.TryLock() {
		s.log.Warn().Msg("Reconciliation still running, skipping this run")
		prommetrics.RecordReconciliationRun("skipped")
		return settlement.ReconcileReport{}, nil
	}
	defer s.reconcileMu.Unlock()

	start := time.Now()
	s.log.Info().Msg("Running settlement reconciliation job")

	report, err := s.reconciler.Reconcile(ctx, s.batch)
	if err != nil {
		s.log.Error().
			Err(err).
			Int("failed", report.Failed).
			Dur("duration", time.Since(start)).
			Msg("Settlement reconciliation job failed")
		return report, err
	}

	s.log.Info().
		Int("replayed", report.Replayed).
		Dur("duration", time.Since(start)).
		Msg("Settlement reconciliation job completed successfully")
	return report, nil
}

// RunBadgeSweep re-evaluates every user's badges.
func (s *Service) RunBadgeSweep(ctx context.Context) (int, error) {
	if !s.sweepMu.TryLock() {
		s.log.Warn().Msg("Badge sweep still running, skipping this run")
		prommetrics.RecordBadgeSweepRun("skipped")
		return 0, nil
	}
	defer s.sweepMu.Unlock()

	start := time.Now()
	defer func() {
		prommetrics.ObserveBadgeSweepDuration(time.Since(start).Seconds())
	}()

	s.log.Info().Msg("Running badge sweep job")

	unlocked, err := s.sweeper.SweepAllUsers(ctx)
	if err != nil {
		s.log.Error().
			Err(err).
			Int("badges_unlocked", unlocked).
			Dur("duration", time.Since(start)).
			Msg("Badge sweep job failed")
		prommetrics.RecordBadgeSweepRun("error")
		return unlocked, err
	}

	prommetrics.RecordBadgeSweepRun("success")
	s.log.Info().
		Int("badges_unlocked", unlocked).
		Dur("duration", time.Since(start)).
		Msg("Badge sweep job completed successfully")
	return unlocked, nil
}

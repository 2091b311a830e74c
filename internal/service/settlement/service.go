// Package settlement completes missions and applies their rewards exactly once.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimd54/travelquest-rewards/internal/config"
	prommetrics "github.com/aimd54/travelquest-rewards/internal/metrics"
	"github.com/aimd54/travelquest-rewards/internal/models"
	"github.com/aimd54/travelquest-rewards/internal/notify"
	"github.com/aimd54/travelquest-rewards/internal/repository"
	"github.com/aimd54/travelquest-rewards/internal/service/badges"
	"github.com/aimd54/travelquest-rewards/internal/service/leveling"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// Settlement errors returned to callers. Match them with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyCompleted = errors.New("already completed")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store is the subset of the gateway the settlement reads and writes.
type Store interface {
	GetMissionRewardContext(ctx context.Context, missionID uint) (*models.MissionRewardContext, error)
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	MarkMissionCompleted(ctx context.Context, missionID uint, at time.Time) error
	AddUserPoints(ctx context.Context, userID uint, delta int64) (int64, error)
	SetUserLevelState(ctx context.Context, userID uint, next repository.LevelState, expected *repository.LevelState) error
}

// Ledger records tail steps that must be retried.
type Ledger interface {
	RecordSettlementStep(ctx context.Context, missionID, userID uint, step, status string, payload models.SettlementStepPayload, stepErr error) error
	ListPendingSettlementSteps(ctx context.Context, limit int) ([]models.SettlementStep, error)
	ClaimSettlementStep(ctx context.Context, missionID uint, step string) error
	ReleaseSettlementStep(ctx context.Context, missionID uint, step string, stepErr error) error
}

// BadgeEvaluator finds and unlocks the badges a user became eligible for.
type BadgeEvaluator interface {
	CollectStats(ctx context.Context, userID uint, level int) (badges.Stats, error)
	EvaluateAll(ctx context.Context, userID uint, stats badges.Stats) ([]models.Badge, error)
	Unlock(ctx context.Context, userID uint, candidates []models.Badge) ([]models.Badge, error)
}

// PointsBoard mirrors point totals for the leaderboard.
type PointsBoard interface {
	SetPoints(ctx context.Context, userID uint, points int64) error
}

// Result is the outcome of a successful settlement.
type Result struct {
	Message        string         `json:"message"`
	Mission        models.Mission `json:"missionData"`
	UpdatedPoints  int64          `json:"updatedUserPoints"`
	PointsEarned   int64          `json:"pointsEarned"`
	XPGained       int64          `json:"xpGained"`
	LevelUp        bool           `json:"levelUp"`
	NewLevel       int            `json:"newLevel,omitempty"`
	NewXP          int64          `json:"newXp"`
	NewXPNext      int64          `json:"newXpNext,omitempty"`
	UnlockedBadges []string       `json:"unlockedBadges"`
	Warning        string         `json:"warning,omitempty"`
	PendingSteps   []string       `json:"pendingSteps,omitempty"`
}

// Service settles mission completions.
type Service struct {
	store      Store
	ledger     Ledger
	badges     BadgeEvaluator
	board      PointsBoard
	dispatcher notify.Dispatcher
	curve      leveling.Curve
	xpRate     float64
	timeout    time.Duration
	casRetries int
	now        func() time.Time
	log        *logger.Logger
}

// NewService creates a settlement service backed by the gateway.
func NewService(
	gw *repository.Gateway,
	badgeService BadgeEvaluator,
	board PointsBoard,
	dispatcher notify.Dispatcher,
	levelCfg *config.LevelingConfig,
	cfg *config.SettlementConfig,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(gw, gw, badgeService, board, dispatcher, levelCfg, cfg, log)
}

// NewServiceWithInterfaces creates a settlement service with interface dependencies (useful for testing).
// board may be nil.
func NewServiceWithInterfaces(
	store Store,
	ledger Ledger,
	badgeService BadgeEvaluator,
	board PointsBoard,
	dispatcher notify.Dispatcher,
	levelCfg *config.LevelingConfig,
	cfg *config.SettlementConfig,
	log *logger.Logger,
) *Service {
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.LevelCASRetries
	if retries < 0 {
		retries = 0
	}

	return &Service{
		store:      store,
		ledger:     ledger,
		badges:     badgeService,
		board:      board,
		dispatcher: dispatcher,
		curve:      leveling.Curve{BaseThreshold: levelCfg.BaseThreshold, GrowthFactor: levelCfg.GrowthFactor},
		xpRate:     levelCfg.XPPerPoint,
		timeout:    timeout,
		casRetries: retries,
		now:        time.Now,
		log:        log.Component("settlement"),
	}
}

// CompleteMission marks the mission completed on behalf of actingUserID and applies its rewards.
//
// Marking the mission completed is the only linearization point: of all concurrent calls for a
// mission exactly one gets past it, the rest get ErrAlreadyCompleted. Once it succeeds the call
// is no longer cancellable and always returns a Result; tail steps that fail are recorded for
// Reconcile and reported through Result.Warning.
func (s *Service) CompleteMission(ctx context.Context, missionID, actingUserID uint) (*Result, error) {
	start := time.Now()
	res, err := s.completeMission(ctx, missionID, actingUserID)

	outcome := outcomeFor(res, err)
	prommetrics.RecordSettlement(outcome, time.Since(start).Seconds())
	return res, err
}

func (s *Service) completeMission(ctx context.Context, missionID, actingUserID uint) (*Result, error) {
	log := s.log.Settlement(missionID, actingUserID)

	readCtx, cancel := context.WithTimeout(ctx, s.timeout)
	rc, err := s.store.GetMissionRewardContext(readCtx, missionID)
	cancel()
	if err != nil {
		return nil, s.storeError(ctx, err)
	}

	if rc.OwnerID != actingUserID {
		log.Warn().Uint("owner_id", rc.OwnerID).Msg("Mission completion refused, not the journey owner")
		return nil, fmt.Errorf("%w: mission %d does not belong to user %d", ErrForbidden, missionID, actingUserID)
	}
	if rc.Mission.Completed {
		return nil, fmt.Errorf("%w: mission %d", ErrAlreadyCompleted, missionID)
	}

	points := rc.Challenge.Points
	xp := leveling.XPForPoints(points, s.xpRate)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.store.MarkMissionCompleted(writeCtx, missionID, at)
	cancel()
	if errors.Is(err, repository.ErrConflict) {
		log.Info().Msg("Mission already completed by a concurrent settlement")
		return nil, fmt.Errorf("%w: mission %d", ErrAlreadyCompleted, missionID)
	}
	if err != nil {
		return nil, s.storeError(ctx, err)
	}

	// The mission is durably completed. The tail must run to the end.
	tailCtx := context.WithoutCancel(ctx)

	mission := rc.Mission
	mission.Completed = true
	mission.CompletedAt = &at

	res := &Result{
		Message:        "Mission completed",
		Mission:        mission,
		PointsEarned:   points,
		XPGained:       xp,
		UnlockedBadges: []string{},
	}
	payload := models.SettlementStepPayload{Points: points, XP: xp}
	userID := rc.OwnerID

	credited := false
	if total, err := s.creditPoints(tailCtx, userID, points); err != nil {
		s.tailFailed(tailCtx, missionID, userID, models.StepCreditPoints, payload, err, res)
	} else {
		credited = true
		res.UpdatedPoints = total
	}

	user, outcome, err := s.applyLevel(tailCtx, userID, xp)
	if err != nil {
		s.tailFailed(tailCtx, missionID, userID, models.StepRecomputeLevel, payload, err, res)
		// Report the last known state; the pending step applies the XP later.
		if user != nil {
			res.NewLevel = user.Level
			res.NewXP = user.XP
			res.NewXPNext = user.XPNext
		}
	} else {
		res.LevelUp = outcome.LeveledUp
		res.NewLevel = outcome.NewLevel
		res.NewXP = outcome.NewXP
		res.NewXPNext = outcome.NewXPNext
	}
	if user != nil && !credited {
		res.UpdatedPoints = user.Points
	}

	unlocked, err := s.unlockBadges(tailCtx, userID, res.NewLevel)
	for _, badge := range unlocked {
		res.UnlockedBadges = append(res.UnlockedBadges, badge.Name)
	}
	if err != nil {
		s.tailFailed(tailCtx, missionID, userID, models.StepEvaluateBadges, payload, err, res)
	}

	if len(res.PendingSteps) > 0 {
		res.Warning = "Mission completed but some rewards could not be confirmed; they will be applied later"
	}

	s.dispatcher.Notify(tailCtx, userID, models.NotificationMissionCompleted, missionCompletedPayload(rc, points, credited))
	if res.LevelUp {
		s.dispatcher.Notify(tailCtx, userID, models.NotificationLevelUp, levelUpPayload(res.NewLevel))
	}
	for _, badge := range unlocked {
		s.dispatcher.Notify(tailCtx, userID, models.NotificationBadgeEarned, badges.BadgeEarnedPayload(badge))
	}

	log.Info().
		Int64("points", points).
		Int64("xp", xp).
		Bool("level_up", res.LevelUp).
		Int("new_level", res.NewLevel).
		Strs("badges", res.UnlockedBadges).
		Strs("pending_steps", res.PendingSteps).
		Msg("Mission settled")

	return res, nil
}

// creditPoints adds points to the user and mirrors the new total to the leaderboard.
func (s *Service) creditPoints(ctx context.Context, userID uint, points int64) (int64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	total, err := s.store.AddUserPoints(callCtx, userID, points)
	cancel()
	if err != nil {
		return 0, err
	}
	prommetrics.RecordPointsCredited(points)

	if s.board != nil {
		boardCtx, cancel := context.WithTimeout(ctx, s.timeout)
		if err := s.board.SetPoints(boardCtx, userID, total); err != nil {
			s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to update leaderboard")
		}
		cancel()
	}
	return total, nil
}

// applyLevel adds xp to the user's level state with a compare-and-swap write, retrying when a
// concurrent settlement changed the state in between. The last user read is returned even on failure.
func (s *Service) applyLevel(ctx context.Context, userID uint, xp int64) (*models.User, leveling.Outcome, error) {
	var (
		user *models.User
		err  error
	)
	for attempt := 0; attempt <= s.casRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		user, err = s.store.GetUser(callCtx, userID)
		cancel()
		if err != nil {
			return nil, leveling.Outcome{}, err
		}

		outcome := s.curve.ApplyXP(user.Level, user.XP, user.XPNext, xp)
		current := repository.LevelState{Level: user.Level, XP: user.XP, XPNext: user.XPNext}
		next := repository.LevelState{Level: outcome.NewLevel, XP: outcome.NewXP, XPNext: outcome.NewXPNext}

		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		err = s.store.SetUserLevelState(callCtx, userID, next, &current)
		cancel()
		if errors.Is(err, repository.ErrConflict) {
			s.log.Debug().Uint("user_id", userID).Int("attempt", attempt+1).Msg("Level state changed concurrently, retrying")
			continue
		}
		if err != nil {
			return user, leveling.Outcome{}, err
		}

		if outcome.LeveledUp {
			prommetrics.RecordLevelUps(outcome.LevelsGained)
		}
		return user, outcome, nil
	}
	return user, leveling.Outcome{}, fmt.Errorf("level state kept changing after %d attempts: %w", s.casRetries+1, err)
}

// unlockBadges evaluates every badge category against fresh stats and unlocks the eligible badges.
// Badges unlocked before an error are still returned.
func (s *Service) unlockBadges(ctx context.Context, userID uint, level int) ([]models.Badge, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stats, err := s.badges.CollectStats(callCtx, userID, level)
	if err != nil {
		return nil, err
	}
	candidates, evalErr := s.badges.EvaluateAll(callCtx, userID, stats)
	unlocked, unlockErr := s.badges.Unlock(callCtx, userID, candidates)
	return unlocked, errors.Join(evalErr, unlockErr)
}

func (s *Service) tailFailed(ctx context.Context, missionID, userID uint, step string, payload models.SettlementStepPayload, stepErr error, res *Result) {
	res.PendingSteps = append(res.PendingSteps, step)
	prommetrics.RecordTailFailure(step)

	log := s.log.Settlement(missionID, userID)
	log.Error().Err(stepErr).Str("step", step).Msg("Settlement step failed, recorded for reconciliation")

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.ledger.RecordSettlementStep(callCtx, missionID, userID, step, models.StepStatusPending, payload, stepErr); err != nil {
		log.Error().Err(err).Str("step", step).Msg("Failed to record pending settlement step, manual reconciliation required")
	}
}

// storeError maps a gateway error from the read phase onto the settlement errors.
func (s *Service) storeError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return ctxErr
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func outcomeFor(res *Result, err error) string {
	switch {
	case err == nil && len(res.PendingSteps) > 0:
		return prommetrics.OutcomePartial
	case err == nil:
		return prommetrics.OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return prommetrics.OutcomeNotFound
	case errors.Is(err, ErrForbidden):
		return prommetrics.OutcomeForbidden
	case errors.Is(err, ErrAlreadyCompleted):
		return prommetrics.OutcomeAlreadyCompleted
	default:
		return prommetrics.OutcomeUnavailable
	}
}

func missionCompletedPayload(rc *models.MissionRewardContext, points int64, credited bool) notify.Payload {
	message := fmt.Sprintf("You completed %q", rc.Challenge.Title)
	if credited {
		message = fmt.Sprintf("You completed %q and earned %d points", rc.Challenge.Title, points)
	}
	return notify.Payload{
		Title:   "Mission completed!",
		Message: message,
		Data: map[string]interface{}{
			"mission_id":   rc.Mission.ID,
			"challenge_id": rc.Challenge.ID,
			"points":       points,
			"credited":     credited,
		},
	}
}

func levelUpPayload(level int) notify.Payload {
	return notify.Payload{
		Title:   "Level up!",
		Message: fmt.Sprintf("You reached level %d", level),
		Data: map[string]interface{}{
			"level": level,
		},
	}
}

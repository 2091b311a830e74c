// Package badges provides badge evaluation and management services.
package badges

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
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// ErrBadgeNotOwned is returned when a custom title is not the name of an owned badge.
var ErrBadgeNotOwned = errors.New("title must be the name of a badge the user owns")

// BadgeRepository interface for badge operations.
type BadgeRepository interface {
	OwnershipChecker
	GetBadge(ctx context.Context, badgeID uint) (*models.Badge, error)
	ListBadges(ctx context.Context) ([]models.Badge, error)
	InsertUserBadge(ctx context.Context, userID, badgeID uint, at time.Time) error
	ListUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error)
	UserOwnsBadgeNamed(ctx context.Context, userID uint, name string) (bool, error)
	CountBadgeHolders(ctx context.Context, badgeID uint) (int64, error)
}

// StatsRepository interface for the aggregates behind badge stats.
type StatsRepository interface {
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	ListUserIDs(ctx context.Context) ([]uint, error)
	SetCustomTitle(ctx context.Context, userID uint, title string) error
	CountCompletedMissions(ctx context.Context, userID uint) (int64, error)
	CountDistinctCities(ctx context.Context, userID uint) (int64, error)
	CountFriends(ctx context.Context, userID uint) (int64, error)
	CountMissionPhotos(ctx context.Context, userID uint) (int64, error)
	CountMissionsCompletedBetween(ctx context.Context, userID uint, from, to time.Time) (int64, error)
}

// Service handles badge evaluation, unlocking and titles.
type Service struct {
	badgeRepo  BadgeRepository
	statsRepo  StatsRepository
	evaluator  *Evaluator
	dispatcher notify.Dispatcher
	location   *time.Location
	now        func() time.Time
	log        *logger.Logger
}

// NewService creates a new badge service backed by the gateway. Catalog reads go through
// catalog, which may be a cache in front of the gateway.
func NewService(
	gw *repository.Gateway,
	catalog CatalogSource,
	special *config.SpecialBadgesConfig,
	dispatcher notify.Dispatcher,
	location *time.Location,
	log *logger.Logger,
) *Service {
	if catalog == nil {
		catalog = gw
	}
	return NewServiceWithInterfaces(gw, gw, catalog, special, dispatcher, location, log)
}

// NewServiceWithInterfaces creates a new badge service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	badgeRepo BadgeRepository,
	statsRepo StatsRepository,
	catalog CatalogSource,
	special *config.SpecialBadgesConfig,
	dispatcher notify.Dispatcher,
	location *time.Location,
	log *logger.Logger,
) *Service {
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	if location == nil {
		location = time.UTC
	}
	log = log.Component("badges")

	return &Service{
		badgeRepo:  badgeRepo,
		statsRepo:  statsRepo,
		evaluator:  NewEvaluator(catalog, badgeRepo, DefaultThresholdRules(), DefaultCustomRules(special.PhotographerMinPhotos, special.MarathonMinDailyMissions), log),
		dispatcher: dispatcher,
		location:   location,
		now:        time.Now,
		log:        log,
	}
}

// Evaluator returns the underlying evaluator.
func (s *Service) Evaluator() *Evaluator {
	return s.evaluator
}

// CollectStats gathers the aggregates badges are evaluated against. level is the user's
// current level, already known to the caller.
func (s *Service) CollectStats(ctx context.Context, userID uint, level int) (Stats, error) {
	stats := Stats{Level: level}
	var err error

	if stats.CompletedMissions, err = s.statsRepo.CountCompletedMissions(ctx, userID); err != nil {
		return stats, fmt.Errorf("failed to count completed missions: %w", err)
	}
	if stats.DistinctCities, err = s.statsRepo.CountDistinctCities(ctx, userID); err != nil {
		return stats, fmt.Errorf("failed to count cities: %w", err)
	}
	if stats.Friends, err = s.statsRepo.CountFriends(ctx, userID); err != nil {
		return stats, fmt.Errorf("failed to count friends: %w", err)
	}
	if stats.MissionPhotos, err = s.statsRepo.CountMissionPhotos(ctx, userID); err != nil {
		return stats, fmt.Errorf("failed to count mission photos: %w", err)
	}

	from, to := dayBounds(s.now(), s.location)
	if stats.MissionsToday, err = s.statsRepo.CountMissionsCompletedBetween(ctx, userID, from, to); err != nil {
		return stats, fmt.Errorf("failed to count today's missions: %w", err)
	}
	return stats, nil
}

// dayBounds returns the start of the day of t in loc and the start of the next day.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// EvaluateAll returns the badges the user is newly eligible for across every category.
func (s *Service) EvaluateAll(ctx context.Context, userID uint, stats Stats) ([]models.Badge, error) {
	return s.evaluator.EvaluateAll(ctx, userID, stats)
}

// Unlock records each candidate badge for the user and returns those actually unlocked.
// A badge already owned (a concurrent unlock won) is skipped silently. Other failures do
// not stop the remaining badges and are returned joined.
func (s *Service) Unlock(ctx context.Context, userID uint, candidates []models.Badge) ([]models.Badge, error) {
	var (
		unlocked []models.Badge
		errs     []error
	)
	at := s.now().UTC()

	for _, badge := range candidates {
		err := s.badgeRepo.InsertUserBadge(ctx, userID, badge.ID, at)
		if errors.Is(err, repository.ErrConflict) {
			s.log.Debug().Uint("user_id", userID).Str("badge", badge.Name).Msg("Badge already owned, skipping")
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to unlock badge %q: %w", badge.Name, err))
			continue
		}

		unlocked = append(unlocked, badge)
		prommetrics.RecordBadgeUnlocked(badge.Name, badge.Category)
		if count, err := s.badgeRepo.CountBadgeHolders(ctx, badge.ID); err == nil {
			prommetrics.SetActiveBadgeHolders(badge.Name, count)
		}

		s.log.Info().
			Uint("user_id", userID).
			Str("badge", badge.Name).
			Str("category", badge.Category).
			Msg("Badge unlocked")
	}

	return unlocked, errors.Join(errs...)
}

// Catalog returns every badge.
func (s *Service) Catalog(ctx context.Context) ([]models.Badge, error) {
	return s.badgeRepo.ListBadges(ctx)
}

// Badge returns a catalog entry with the number of users holding it.
func (s *Service) Badge(ctx context.Context, badgeID uint) (*models.Badge, int64, error) {
	badge, err := s.badgeRepo.GetBadge(ctx, badgeID)
	if err != nil {
		return nil, 0, err
	}
	holders, err := s.badgeRepo.CountBadgeHolders(ctx, badgeID)
	if err != nil {
		return nil, 0, err
	}
	return badge, holders, nil
}

// UserBadges returns the badges a user owns, newest first.
func (s *Service) UserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	if _, err := s.statsRepo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.badgeRepo.ListUserBadges(ctx, userID)
}

// SetCustomTitle sets the user's display title. The title must be the name of a badge the
// user owns; an empty title clears it.
func (s *Service) SetCustomTitle(ctx context.Context, userID uint, title string) error {
	if _, err := s.statsRepo.GetUser(ctx, userID); err != nil {
		return err
	}

	if title != "" {
		owned, err := s.badgeRepo.UserOwnsBadgeNamed(ctx, userID, title)
		if err != nil {
			return fmt.Errorf("failed to check badge ownership: %w", err)
		}
		if !owned {
			return ErrBadgeNotOwned
		}
	}

	if err := s.statsRepo.SetCustomTitle(ctx, userID, title); err != nil {
		return fmt.Errorf("failed to set custom title: %w", err)
	}

	s.log.Info().Uint("user_id", userID).Str("title", title).Msg("Custom title updated")
	return nil
}

// CheckUser evaluates and unlocks every badge for one user and notifies about new ones.
func (s *Service) CheckUser(ctx context.Context, userID uint) ([]models.Badge, error) {
	user, err := s.statsRepo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.CollectStats(ctx, userID, user.Level)
	if err != nil {
		return nil, err
	}

	candidates, evalErr := s.EvaluateAll(ctx, userID, stats)
	unlocked, unlockErr := s.Unlock(ctx, userID, candidates)

	for _, badge := range unlocked {
		s.dispatcher.Notify(ctx, userID, models.NotificationBadgeEarned, BadgeEarnedPayload(badge))
	}
	return unlocked, errors.Join(evalErr, unlockErr)
}

// SweepAllUsers re-evaluates every user's badges. This is typically run as a scheduled job.
// Returns the number of badges unlocked.
func (s *Service) SweepAllUsers(ctx context.Context) (int, error) {
	s.log.Info().Msg("Starting badge sweep for all users")
	start := time.Now()

	userIDs, err := s.statsRepo.ListUserIDs(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list users")
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	unlockedCount := 0
	failed := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return unlockedCount, err
		}

		unlocked, err := s.CheckUser(ctx, userID)
		unlockedCount += len(unlocked)
		if err != nil {
			failed++
			s.log.Error().
				Err(err).
				Uint("user_id", userID).
				Msg("Failed to evaluate badges for user")
		}
	}

	s.log.Info().
		Int("users_evaluated", len(userIDs)).
		Int("users_failed", failed).
		Int("badges_unlocked", unlockedCount).
		Dur("duration", time.Since(start)).
		Msg("Badge sweep complete")

	if failed > 0 {
		return unlockedCount, fmt.Errorf("badge evaluation failed for %d of %d users", failed, len(userIDs))
	}
	return unlockedCount, nil
}

// BadgeEarnedPayload builds the notification sent when a badge is unlocked.
func BadgeEarnedPayload(badge models.Badge) notify.Payload {
	return notify.Payload{
		Title:   "New badge unlocked!",
		Message: fmt.Sprintf("You earned the %s %s badge", badge.Icon, badge.Name),
		Data: map[string]interface{}{
			"badge_id":   badge.ID,
			"badge_name": badge.Name,
			"category":   badge.Category,
		},
	}
}

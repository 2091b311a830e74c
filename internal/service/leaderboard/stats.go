package leaderboard

import (
	"context"
	"fmt"

	"github.com/aimd54/travelquest-rewards/internal/models"
)

// UserStats represents comprehensive statistics for a user.
type UserStats struct {
	UserID            uint           `json:"user_id"`
	Username          string         `json:"username"`
	CustomTitle       string         `json:"custom_title,omitempty"`
	Points            int64          `json:"points"`
	Level             int            `json:"level"`
	XP                int64          `json:"xp"`
	XPNext            int64          `json:"xp_next"`
	CompletedMissions int64          `json:"completed_missions"`
	VisitedCities     int64          `json:"visited_cities"`
	BadgeCount        int            `json:"badge_count"`
	Badges            []models.Badge `json:"badges"`
	Rank              int            `json:"rank"`
}

// GetUserStats returns comprehensive statistics for a user.
func (s *Service) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	user, err := s.userRepo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	stats := &UserStats{
		UserID:      user.ID,
		Username:    user.Username,
		CustomTitle: user.CustomTitle,
		Points:      user.Points,
		Level:       user.Level,
		XP:          user.XP,
		XPNext:      user.XPNext,
		Badges:      []models.Badge{},
	}

	if stats.CompletedMissions, err = s.progressRepo.CountCompletedMissions(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to count completed missions: %w", err)
	}
	if stats.VisitedCities, err = s.progressRepo.CountDistinctCities(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to count visited cities: %w", err)
	}

	userBadges, err := s.progressRepo.ListUserBadges(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get user badges")
	} else {
		for _, ub := range userBadges {
			if ub.Badge.ID != 0 {
				stats.Badges = append(stats.Badges, ub.Badge)
			}
		}
		stats.BadgeCount = len(stats.Badges)
	}

	rank, err := s.GetUserRank(ctx, user)
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get rank")
	} else {
		stats.Rank = rank
	}

	return stats, nil
}

// Package leaderboard provides leaderboard and ranking services.
package leaderboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/aimd54/travelquest-rewards/internal/cache"
	"github.com/aimd54/travelquest-rewards/internal/models"
	"github.com/aimd54/travelquest-rewards/internal/repository"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// Leaderboard size limits.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// UserRepository interface for user operations.
type UserRepository interface {
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	TopUsersByPoints(ctx context.Context, limit int) ([]models.User, error)
	ListUserPoints(ctx context.Context) (map[uint]int64, error)
	CountUsersWithMorePoints(ctx context.Context, points int64) (int64, error)
}

// ProgressRepository interface for the aggregates shown in user stats.
type ProgressRepository interface {
	CountCompletedMissions(ctx context.Context, userID uint) (int64, error)
	CountDistinctCities(ctx context.Context, userID uint) (int64, error)
	CountUserBadges(ctx context.Context, userID uint) (int64, error)
	ListUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error)
}

// Board is a ranked points index kept alongside the store.
type Board interface {
	Top(ctx context.Context, count int64) ([]cache.Entry, error)
	Rank(ctx context.Context, userID uint) (int64, error)
	Rebuild(ctx context.Context, totals map[uint]int64) error
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	UserID      uint   `json:"user_id"`
	Username    string `json:"username"`
	CustomTitle string `json:"custom_title,omitempty"`
	Points      int64  `json:"points"`
	Level       int    `json:"level"`
	BadgeCount  int    `json:"badge_count"`
	Rank        int    `json:"rank"`
}

// Service handles leaderboard generation and user statistics.
type Service struct {
	userRepo     UserRepository
	progressRepo ProgressRepository
	board        Board
	log          *logger.Logger
}

// NewService creates a new leaderboard service backed by the gateway. board may be nil,
// in which case rankings come from the store alone.
func NewService(gw *repository.Gateway, board Board, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(gw, gw, board, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(userRepo UserRepository, progressRepo ProgressRepository, board Board, log *logger.Logger) *Service {
	return &Service{
		userRepo:     userRepo,
		progressRepo: progressRepo,
		board:        board,
		log:          log.Component("leaderboard"),
	}
}

// NormalizeLimit clamps a requested leaderboard size to [1, MaxLimit], defaulting to DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Top returns the users with the most points. The Redis board is used when it has entries;
// otherwise, or when it fails, the store is queried directly.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	limit = NormalizeLimit(limit)

	users, err := s.topFromBoard(ctx, limit)
	if err != nil || len(users) == 0 {
		if err != nil {
			s.log.Warn().Err(err).Msg("Leaderboard board unavailable, using store")
		}
		users, err = s.userRepo.TopUsersByPoints(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to get top users: %w", err)
		}
	}

	entries := make([]Entry, 0, len(users))
	for i, user := range users {
		entry := Entry{
			UserID:      user.ID,
			Username:    user.Username,
			CustomTitle: user.CustomTitle,
			Points:      user.Points,
			Level:       user.Level,
			Rank:        i + 1,
		}

		count, err := s.progressRepo.CountUserBadges(ctx, user.ID)
		if err != nil {
			s.log.Warn().Err(err).Uint("user_id", user.ID).Msg("Failed to get badge count")
		} else {
			entry.BadgeCount = int(count)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// topFromBoard reads the ranking from the board and loads the matching users, in board order.
func (s *Service) topFromBoard(ctx context.Context, limit int) ([]models.User, error) {
	if s.board == nil {
		return nil, nil
	}

	ranked, err := s.board.Top(ctx, int64(limit))
	if err != nil || len(ranked) == 0 {
		return nil, err
	}

	ids := make([]uint, 0, len(ranked))
	for _, e := range ranked {
		ids = append(ids, e.UserID)
	}
	users, err := s.userRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	position := make(map[uint]int, len(ranked))
	for i, e := range ranked {
		position[e.UserID] = i
	}
	sort.Slice(users, func(i, j int) bool {
		return position[users[i].ID] < position[users[j].ID]
	})
	return users, nil
}

// GetUserRank returns the 1-based points rank of a user.
func (s *Service) GetUserRank(ctx context.Context, user *models.User) (int, error) {
	if s.board != nil {
		rank, err := s.board.Rank(ctx, user.ID)
		if err == nil && rank > 0 {
			return int(rank), nil
		}
		if err != nil {
			s.log.Warn().Err(err).Uint("user_id", user.ID).Msg("Failed to read rank from board")
		}
	}

	above, err := s.userRepo.CountUsersWithMorePoints(ctx, user.Points)
	if err != nil {
		return 0, fmt.Errorf("failed to rank user: %w", err)
	}
	return int(above) + 1, nil
}

// RebuildBoard reloads the board from the store. Returns the number of users indexed.
func (s *Service) RebuildBoard(ctx context.Context) (int, error) {
	if s.board == nil {
		return 0, nil
	}

	totals, err := s.userRepo.ListUserPoints(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list user points: %w", err)
	}
	if err := s.board.Rebuild(ctx, totals); err != nil {
		return 0, fmt.Errorf("failed to rebuild leaderboard: %w", err)
	}

	s.log.Info().Int("users", len(totals)).Msg("Leaderboard rebuilt")
	return len(totals), nil
}

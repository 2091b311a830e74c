package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aimd54/travelquest-rewards/internal/models"
)

// LevelState is the persisted level progression of a user.
type LevelState struct {
	Level  int
	XP     int64
	XPNext int64
}

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return classify("create user", r.db.WithContext(ctx).Create(user).Error)
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, classify("get user", err)
	}
	return &user, nil
}

// AddUserPoints atomically increments a user's points and returns the new total.
func (r *UserRepository) AddUserPoints(ctx context.Context, userID uint, delta int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"points":     gorm.Expr("points + ?", delta),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Pluck("points", &total).Error
	})
	if err != nil {
		return 0, classify("add user points", err)
	}
	return total, nil
}

// SetUserLevelState writes a new level state. When expected is non-nil the write only happens
// if the stored state still equals expected; otherwise ErrConflict is returned.
func (r *UserRepository) SetUserLevelState(ctx context.Context, userID uint, next LevelState, expected *LevelState) error {
	query := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID)
	if expected != nil {
		query = query.Where("level = ? AND xp = ? AND xp_next = ?", expected.Level, expected.XP, expected.XPNext)
	}

	result := query.Updates(map[string]interface{}{
		"level":      next.Level,
		"xp":         next.XP,
		"xp_next":    next.XPNext,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return classify("set user level state", result.Error)
	}
	if result.RowsAffected == 0 {
		if expected == nil {
			return classify("set user level state", ErrNotFound)
		}
		return classify("set user level state", ErrConflict)
	}
	return nil
}

// SetCustomTitle stores the display title of a user. An empty title clears it.
func (r *UserRepository) SetCustomTitle(ctx context.Context, userID uint, title string) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("custom_title", title)
	if result.Error != nil {
		return classify("set custom title", result.Error)
	}
	if result.RowsAffected == 0 {
		return classify("set custom title", ErrNotFound)
	}
	return nil
}

// TopUsersByPoints returns the users with the most points, highest first.
func (r *UserRepository) TopUsersByPoints(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Order("points DESC").
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, classify("top users by points", err)
}

// ListUserIDs returns the IDs of all users.
func (r *UserRepository) ListUserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.User{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, classify("list user ids", err)
}

// CreateFriendship creates a friendship between two users.
func (r *UserRepository) CreateFriendship(ctx context.Context, friendship *models.Friendship) error {
	return classify("create friendship", r.db.WithContext(ctx).Create(friendship).Error)
}

// CountFriends returns the number of accepted friendships a user takes part in.
func (r *UserRepository) CountFriends(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Where("(user_id = ? OR friend_id = ?) AND status = ?", userID, userID, models.FriendshipAccepted).
		Count(&count).Error
	return count, classify("count friends", err)
}

// GetUsersByIDs retrieves the users with the given IDs. Missing IDs are ignored.
func (r *UserRepository) GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, classify("get users by ids", err)
}

// ListUserPoints returns the point total of every user keyed by user ID.
func (r *UserRepository) ListUserPoints(ctx context.Context) (map[uint]int64, error) {
	var rows []struct {
		ID     uint
		Points int64
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Select("id, points").Find(&rows).Error; err != nil {
		return nil, classify("list user points", err)
	}
	totals := make(map[uint]int64, len(rows))
	for _, row := range rows {
		totals[row.ID] = row.Points
	}
	return totals, nil
}

// CountUsersWithMorePoints returns how many users have strictly more than points.
func (r *UserRepository) CountUsersWithMorePoints(ctx context.Context, points int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("points > ?", points).Count(&count).Error
	return count, classify("count users with more points", err)
}

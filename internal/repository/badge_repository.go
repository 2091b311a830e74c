package repository

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/aimd54/travelquest-rewards/internal/models"
)

// BadgeRepository handles badge-related database operations.
type BadgeRepository struct {
	db *DB
}

// NewBadgeRepository creates a new badge repository.
func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// CreateBadge creates a new badge in the database.
func (r *BadgeRepository) CreateBadge(ctx context.Context, badge *models.Badge) error {
	return classify("create badge", r.db.WithContext(ctx).Create(badge).Error)
}

// GetBadge retrieves a badge by its ID.
func (r *BadgeRepository) GetBadge(ctx context.Context, badgeID uint) (*models.Badge, error) {
	var badge models.Badge
	if err := r.db.WithContext(ctx).First(&badge, badgeID).Error; err != nil {
		return nil, classify("get badge", err)
	}
	return &badge, nil
}

// ListBadges retrieves the whole badge catalog ordered by category.
func (r *BadgeRepository) ListBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.WithContext(ctx).Order("category ASC").Order("threshold ASC").Order("id ASC").Find(&badges).Error
	return badges, classify("list badges", err)
}

// ListBadgesByCategory retrieves the badges of a single category, lowest threshold first.
func (r *BadgeRepository) ListBadgesByCategory(ctx context.Context, category string) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("threshold ASC").
		Order("id ASC").
		Find(&badges).Error
	return badges, classify("list badges by category", err)
}

// SeedBadges upserts catalog entries by name, updating description, icon, category, threshold and rule.
func (r *BadgeRepository) SeedBadges(ctx context.Context, badges []models.Badge) error {
	if len(badges) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "icon", "category", "threshold", "rule", "updated_at"}),
	}).Create(&badges).Error
	return classify("seed badges", err)
}

// HasUserBadge checks if a user owns a specific badge.
func (r *BadgeRepository) HasUserBadge(ctx context.Context, userID, badgeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
		Count(&count).Error
	if err != nil {
		return false, classify("has user badge", err)
	}
	return count > 0, nil
}

// InsertUserBadge records that a user unlocked a badge.
// Returns ErrConflict when the user already owns it.
func (r *BadgeRepository) InsertUserBadge(ctx context.Context, userID, badgeID uint, at time.Time) error {
	userBadge := &models.UserBadge{
		UserID:     userID,
		BadgeID:    badgeID,
		UnlockedAt: at,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(userBadge)
	if result.Error != nil {
		return classify("insert user badge", result.Error)
	}
	if result.RowsAffected == 0 {
		return classify("insert user badge", ErrConflict)
	}
	return nil
}

// ListUserBadges retrieves all badges owned by a user with badge details preloaded, newest first.
func (r *BadgeRepository) ListUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	var userBadges []models.UserBadge
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Badge").
		Order("unlocked_at DESC").
		Order("id DESC").
		Find(&userBadges).Error
	return userBadges, classify("list user badges", err)
}

// UserOwnsBadgeNamed reports whether the user owns a badge with the given name.
func (r *BadgeRepository) UserOwnsBadgeNamed(ctx context.Context, userID uint, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserBadge{}).
		Joins("JOIN badges ON badges.id = user_badges.badge_id").
		Where("user_badges.user_id = ? AND badges.name = ?", userID, name).
		Count(&count).Error
	if err != nil {
		return false, classify("user owns badge named", err)
	}
	return count > 0, nil
}

// CountUserBadges returns the total number of badges a user owns.
func (r *BadgeRepository) CountUserBadges(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserBadge{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, classify("count user badges", err)
}

// CountBadgeHolders returns the number of users who unlocked a specific badge.
func (r *BadgeRepository) CountBadgeHolders(ctx context.Context, badgeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserBadge{}).
		Where("badge_id = ?", badgeID).
		Count(&count).Error
	return count, classify("count badge holders", err)
}

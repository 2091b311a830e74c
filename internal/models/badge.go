// Package models defines domain models for the travel reward system.
package models

import (
	"encoding/json"
	"time"
)

// Badge represents an achievement that can be unlocked by users.
type Badge struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Icon        string    `gorm:"size:50" json:"icon"`
	Category    string    `gorm:"size:20;not null;index" json:"category"`
	Threshold   float64   `gorm:"not null;default:0" json:"threshold"`
	Rule        string    `gorm:"size:50" json:"rule,omitempty"` // named predicate for special badges
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for Badge model.
func (Badge) TableName() string {
	return "badges"
}

// UserBadge records that a user unlocked a badge. At most one row per (user, badge).
type UserBadge struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_user_badge" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BadgeID    uint      `gorm:"not null;uniqueIndex:idx_user_badge" json:"badge_id"`
	Badge      Badge     `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
	UnlockedAt time.Time `gorm:"not null" json:"unlocked_at"`
}

// TableName specifies the table name for UserBadge model.
func (UserBadge) TableName() string {
	return "user_badges"
}

// Notification is an in-app notification stored for a user.
type Notification struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	Kind      string          `gorm:"size:50;not null" json:"kind"`
	Title     string          `gorm:"size:255" json:"title"`
	Message   string          `gorm:"type:text" json:"message"`
	Data      json.RawMessage `gorm:"type:jsonb" json:"data,omitempty"`
	Read      bool            `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName specifies the table name for Notification model.
func (Notification) TableName() string {
	return "notifications"
}

// Badge category constants.
const (
	BadgeCategoryMissions = "missions"
	BadgeCategoryCities   = "cities"
	BadgeCategoryLevel    = "level"
	BadgeCategorySocial   = "social"
	BadgeCategorySpecial  = "special"
)

// BadgeCategories lists every category in evaluation order.
var BadgeCategories = []string{
	BadgeCategoryMissions,
	BadgeCategoryCities,
	BadgeCategoryLevel,
	BadgeCategorySocial,
	BadgeCategorySpecial,
}

// IsValidBadgeCategory reports whether category is a known badge category.
func IsValidBadgeCategory(category string) bool {
	for _, c := range BadgeCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Notification kind constants.
const (
	NotificationMissionCompleted = "mission_completed"
	NotificationLevelUp          = "level_up"
	NotificationBadgeEarned      = "badge_earned"
)

package models

import (
	"time"
)

// User represents a traveller and their reward progression.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;not null;size:255" json:"username"`
	Email       string    `gorm:"size:255" json:"email"`
	Points      int64     `gorm:"not null;default:0" json:"points"`
	Level       int       `gorm:"not null;default:1" json:"level"`
	XP          int64     `gorm:"column:xp;not null;default:0" json:"xp"`
	XPNext      int64     `gorm:"column:xp_next;not null;default:50" json:"xp_next"`
	CustomTitle string    `gorm:"size:100" json:"custom_title"` // must match the name of an owned badge
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// Friendship links two users. Only accepted friendships count towards social badges.
type Friendship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	FriendID  uint      `gorm:"not null;index" json:"friend_id"`
	Status    string    `gorm:"size:20;not null;default:pending" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for Friendship model.
func (Friendship) TableName() string {
	return "friendships"
}

// FriendshipStatus constants.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

package models

import (
	"time"
)

// City is a travel destination.
type City struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"not null;size:255" json:"name"`
	Country string `gorm:"size:100" json:"country"`
}

// TableName specifies the table name for City model.
func (City) TableName() string {
	return "cities"
}

// Journey is a single trip owned by one user.
type Journey struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	User        User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CityID      *uint      `gorm:"index" json:"city_id"`
	City        *City      `gorm:"foreignKey:CityID" json:"city,omitempty"`
	Description string     `gorm:"type:text" json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName specifies the table name for Journey model.
func (Journey) TableName() string {
	return "journeys"
}

// Challenge is the reward template a mission is based on.
type Challenge struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"not null;size:255" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Points      int64  `gorm:"not null;default:0" json:"points"`
	Difficulty  string `gorm:"size:20" json:"difficulty"` // 'easy', 'medium', 'hard'
	Category    string `gorm:"size:50;index" json:"category"`
	CityID      *uint  `gorm:"index" json:"city_id"`
}

// TableName specifies the table name for Challenge model.
func (Challenge) TableName() string {
	return "challenges"
}

// Mission is a challenge instance attached to a journey. It is completed at most once.
type Mission struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	JourneyID   uint       `gorm:"not null;index" json:"journey_id"`
	Journey     Journey    `gorm:"foreignKey:JourneyID" json:"journey,omitempty"`
	ChallengeID uint       `gorm:"not null;index" json:"challenge_id"`
	Challenge   Challenge  `gorm:"foreignKey:ChallengeID" json:"challenge,omitempty"`
	Completed   bool       `gorm:"not null;default:false;index" json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	PictureURL  string     `gorm:"type:text" json:"picture_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName specifies the table name for Mission model.
func (Mission) TableName() string {
	return "journey_missions"
}

// MissionRewardContext is the denormalized view of a mission needed to settle it.
type MissionRewardContext struct {
	Mission   Mission   `json:"mission"`
	OwnerID   uint      `json:"owner_id"`
	Challenge Challenge `json:"challenge"`
	CityID    *uint     `json:"city_id"`
}

// Difficulty constants.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

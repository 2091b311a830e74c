package models

import (
	"encoding/json"
	"time"
)

// SettlementStep tracks a post-completion step of a mission settlement.
// Rows are keyed by (mission_id, step) so each step is applied at most once.
type SettlementStep struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	MissionID uint            `gorm:"not null;uniqueIndex:idx_settlement_step" json:"mission_id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	Step      string          `gorm:"size:30;not null;uniqueIndex:idx_settlement_step" json:"step"`
	Status    string          `gorm:"size:20;not null;index" json:"status"`
	Attempts  int             `gorm:"not null;default:0" json:"attempts"`
	LastError string          `gorm:"type:text" json:"last_error,omitempty"`
	Payload   json.RawMessage `gorm:"type:jsonb" json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for SettlementStep model.
func (SettlementStep) TableName() string {
	return "settlement_steps"
}

// SettlementStepPayload carries what a tail step needs to be replayed.
type SettlementStepPayload struct {
	Points int64 `json:"points"`
	XP     int64 `json:"xp"`
}

// Settlement step names.
const (
	StepCreditPoints   = "credit_points"
	StepRecomputeLevel = "recompute_level"
	StepEvaluateBadges = "evaluate_badges"
)

// Settlement step status constants.
const (
	StepStatusPending = "pending"
	StepStatusDone    = "done"
)

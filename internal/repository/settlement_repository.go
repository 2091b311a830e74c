package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimd54/travelquest-rewards/internal/models"
)

// SettlementRepository is the ledger of settlement tail steps keyed by (mission, step).
type SettlementRepository struct {
	db *DB
}

// NewSettlementRepository creates a new settlement step repository.
func NewSettlementRepository(db *DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// RecordSettlementStep upserts the status of a tail step. A step already marked done is never
// moved back to pending.
func (r *SettlementRepository) RecordSettlementStep(ctx context.Context, missionID, userID uint, step, status string, payload models.SettlementStepPayload, stepErr error) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement payload: %w", err)
	}

	lastError := ""
	if stepErr != nil {
		lastError = stepErr.Error()
	}

	row := &models.SettlementStep{
		MissionID: missionID,
		UserID:    userID,
		Step:      step,
		Status:    status,
		Attempts:  1,
		LastError: lastError,
		Payload:   raw,
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mission_id"}, {Name: "step"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     gorm.Expr("CASE WHEN settlement_steps.status = ? THEN settlement_steps.status ELSE ? END", models.StepStatusDone, status),
			"attempts":   gorm.Expr("settlement_steps.attempts + 1"),
			"last_error": lastError,
			"updated_at": time.Now(),
		}),
	}).Create(row).Error
	return classify("record settlement step", err)
}

// GetSettlementStep retrieves the ledger row of a mission step.
func (r *SettlementRepository) GetSettlementStep(ctx context.Context, missionID uint, step string) (*models.SettlementStep, error) {
	var row models.SettlementStep
	err := r.db.WithContext(ctx).Where("mission_id = ? AND step = ?", missionID, step).First(&row).Error
	if err != nil {
		return nil, classify("get settlement step", err)
	}
	return &row, nil
}

// ListPendingSettlementSteps returns pending steps, oldest first.
func (r *SettlementRepository) ListPendingSettlementSteps(ctx context.Context, limit int) ([]models.SettlementStep, error) {
	var rows []models.SettlementStep
	err := r.db.WithContext(ctx).
		Where("status = ?", models.StepStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, classify("list pending settlement steps", err)
}

// ClaimSettlementStep moves a pending step to done. It returns ErrConflict if the step was
// already claimed, so a step is replayed by at most one reconciler.
func (r *SettlementRepository) ClaimSettlementStep(ctx context.Context, missionID uint, step string) error {
	result := r.db.WithContext(ctx).
		Model(&models.SettlementStep{}).
		Where("mission_id = ? AND step = ? AND status = ?", missionID, step, models.StepStatusPending).
		Updates(map[string]interface{}{
			"status":     models.StepStatusDone,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return classify("claim settlement step", result.Error)
	}
	if result.RowsAffected == 0 {
		return classify("claim settlement step", ErrConflict)
	}
	return nil
}

// ReleaseSettlementStep puts a claimed step back to pending after a failed replay.
func (r *SettlementRepository) ReleaseSettlementStep(ctx context.Context, missionID uint, step string, stepErr error) error {
	lastError := ""
	if stepErr != nil {
		lastError = stepErr.Error()
	}
	err := r.db.WithContext(ctx).
		Model(&models.SettlementStep{}).
		Where("mission_id = ? AND step = ?", missionID, step).
		Updates(map[string]interface{}{
			"status":     models.StepStatusPending,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
			"updated_at": time.Now(),
		}).Error
	return classify("release settlement step", err)
}

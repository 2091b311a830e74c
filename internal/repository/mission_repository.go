package repository

import (
	"context"
	"time"

	"github.com/aimd54/travelquest-rewards/internal/models"
)

// MissionRepository handles journey mission and challenge operations.
type MissionRepository struct {
	db *DB
}

// NewMissionRepository creates a new mission repository.
func NewMissionRepository(db *DB) *MissionRepository {
	return &MissionRepository{db: db}
}

// CreateMission creates a new journey mission.
func (r *MissionRepository) CreateMission(ctx context.Context, mission *models.Mission) error {
	return classify("create mission", r.db.WithContext(ctx).Create(mission).Error)
}

// CreateChallenge creates a new challenge.
func (r *MissionRepository) CreateChallenge(ctx context.Context, challenge *models.Challenge) error {
	return classify("create challenge", r.db.WithContext(ctx).Create(challenge).Error)
}

// CreateJourney creates a new journey.
func (r *MissionRepository) CreateJourney(ctx context.Context, journey *models.Journey) error {
	return classify("create journey", r.db.WithContext(ctx).Create(journey).Error)
}

// GetMission retrieves a mission by ID.
func (r *MissionRepository) GetMission(ctx context.Context, missionID uint) (*models.Mission, error) {
	var mission models.Mission
	if err := r.db.WithContext(ctx).First(&mission, missionID).Error; err != nil {
		return nil, classify("get mission", err)
	}
	return &mission, nil
}

// GetChallenge retrieves a challenge by ID.
func (r *MissionRepository) GetChallenge(ctx context.Context, challengeID uint) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := r.db.WithContext(ctx).First(&challenge, challengeID).Error; err != nil {
		return nil, classify("get challenge", err)
	}
	return &challenge, nil
}

// GetMissionRewardContext loads a mission together with its journey owner and challenge in one query.
func (r *MissionRepository) GetMissionRewardContext(ctx context.Context, missionID uint) (*models.MissionRewardContext, error) {
	var mission models.Mission
	err := r.db.WithContext(ctx).
		Joins("Journey").
		Joins("Challenge").
		First(&mission, "journey_missions.id = ?", missionID).Error
	if err != nil {
		return nil, classify("get mission reward context", err)
	}

	rc := &models.MissionRewardContext{
		Mission:   mission,
		OwnerID:   mission.Journey.UserID,
		Challenge: mission.Challenge,
		CityID:    mission.Challenge.CityID,
	}
	if rc.CityID == nil {
		rc.CityID = mission.Journey.CityID
	}
	return rc, nil
}

// MarkMissionCompleted flips completed from false to true in a single conditional update.
// Returns ErrConflict when the mission was already completed and ErrNotFound when it does not exist.
func (r *MissionRepository) MarkMissionCompleted(ctx context.Context, missionID uint, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Mission{}).
		Where("id = ? AND completed = ?", missionID, false).
		Updates(map[string]interface{}{
			"completed":    true,
			"completed_at": at,
		})
	if result.Error != nil {
		return classify("mark mission completed", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	// Nothing updated: either the mission is gone or another settlement won.
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Mission{}).Where("id = ?", missionID).Count(&count).Error; err != nil {
		return classify("mark mission completed", err)
	}
	if count == 0 {
		return classify("mark mission completed", ErrNotFound)
	}
	return classify("mark mission completed", ErrConflict)
}

// CountCompletedMissions returns the number of completed missions across all of a user's journeys.
func (r *MissionRepository) CountCompletedMissions(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Mission{}).
		Joins("JOIN journeys ON journeys.id = journey_missions.journey_id").
		Where("journeys.user_id = ? AND journey_missions.completed = ?", userID, true).
		Count(&count).Error
	return count, classify("count completed missions", err)
}

// CountMissionsCompletedBetween returns the number of missions a user completed in [from, to).
func (r *MissionRepository) CountMissionsCompletedBetween(ctx context.Context, userID uint, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Mission{}).
		Joins("JOIN journeys ON journeys.id = journey_missions.journey_id").
		Where("journeys.user_id = ? AND journey_missions.completed = ?", userID, true).
		Where("journey_missions.completed_at >= ? AND journey_missions.completed_at < ?", from, to).
		Count(&count).Error
	return count, classify("count missions completed between", err)
}

// CountMissionPhotos returns the number of missions with an uploaded picture.
func (r *MissionRepository) CountMissionPhotos(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Mission{}).
		Joins("JOIN journeys ON journeys.id = journey_missions.journey_id").
		Where("journeys.user_id = ? AND journey_missions.picture_url <> ''", userID).
		Count(&count).Error
	return count, classify("count mission photos", err)
}

// CountDistinctCities returns the number of distinct cities across a user's journeys.
func (r *MissionRepository) CountDistinctCities(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Journey{}).
		Where("user_id = ? AND city_id IS NOT NULL", userID).
		Distinct("city_id").
		Count(&count).Error
	return count, classify("count distinct cities", err)
}

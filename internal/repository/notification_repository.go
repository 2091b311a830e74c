package repository

import (
	"context"

	"github.com/aimd54/travelquest-rewards/internal/models"
)

// NotificationRepository stores in-app notifications.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification stores a notification.
func (r *NotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return classify("create notification", r.db.WithContext(ctx).Create(notification).Error)
}

// ListUnreadNotifications returns a user's unread notifications, newest first.
func (r *NotificationRepository) ListUnreadNotifications(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND read = ?", userID, false).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, classify("list unread notifications", err)
}

// MarkNotificationRead marks a notification of a user as read.
func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, userID, notificationID uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return classify("mark notification read", result.Error)
	}
	if result.RowsAffected == 0 {
		return classify("mark notification read", ErrNotFound)
	}
	return nil
}

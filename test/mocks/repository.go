package mocks

import (
	"context"
	"fmt"

	"github.com/aimd54/travelquest-rewards/internal/models"
	"github.com/aimd54/travelquest-rewards/internal/repository"
)

// MockNotificationStore is an in-memory notification inbox.
type MockNotificationStore struct {
	ListUnreadFunc func(userID uint, limit int) ([]models.Notification, error)

	Unread map[uint][]models.Notification
	Read   []uint
}

// NewMockNotificationStore creates an empty inbox.
func NewMockNotificationStore() *MockNotificationStore {
	return &MockNotificationStore{Unread: make(map[uint][]models.Notification)}
}

func (m *MockNotificationStore) ListUnreadNotifications(_ context.Context, userID uint, limit int) ([]models.Notification, error) {
	if m.ListUnreadFunc != nil {
		return m.ListUnreadFunc(userID, limit)
	}
	return m.Unread[userID], nil
}

// MarkNotificationRead fails with repository.ErrNotFound when the notification is not in the user's inbox.
func (m *MockNotificationStore) MarkNotificationRead(_ context.Context, userID, notificationID uint) error {
	for _, n := range m.Unread[userID] {
		if n.ID == notificationID {
			m.Read = append(m.Read, notificationID)
			return nil
		}
	}
	return fmt.Errorf("mark notification read: %w", repository.ErrNotFound)
}

package mocks

import (
	"context"
	"sync"

	"github.com/aimd54/travelquest-rewards/internal/notify"
)

// Notification is a notification captured by RecordingDispatcher.
type Notification struct {
	UserID  uint
	Kind    string
	Payload notify.Payload
}

// RecordingDispatcher captures every notification instead of delivering it.
type RecordingDispatcher struct {
	NotifyFunc func(userID uint, kind string, payload notify.Payload)

	mu   sync.Mutex
	sent []Notification
}

func (d *RecordingDispatcher) Notify(_ context.Context, userID uint, kind string, payload notify.Payload) {
	d.mu.Lock()
	d.sent = append(d.sent, Notification{UserID: userID, Kind: kind, Payload: payload})
	d.mu.Unlock()

	if d.NotifyFunc != nil {
		d.NotifyFunc(userID, kind, payload)
	}
}

// Sent returns a copy of the captured notifications in arrival order.
func (d *RecordingDispatcher) Sent() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notification(nil), d.sent...)
}

// Kinds returns the kinds of the captured notifications in arrival order.
func (d *RecordingDispatcher) Kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]string, 0, len(d.sent))
	for _, n := range d.sent {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

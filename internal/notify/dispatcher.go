// Package notify dispatches user notifications without blocking the caller.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aimd54/travelquest-rewards/internal/config"
	"github.com/aimd54/travelquest-rewards/internal/metrics"
	"github.com/aimd54/travelquest-rewards/internal/models"
	"github.com/aimd54/travelquest-rewards/internal/push"
	"github.com/aimd54/travelquest-rewards/pkg/logger"
)

// Notification statuses recorded in metrics.
const (
	StatusSent          = "sent"
	StatusPersistFailed = "persist_failed"
	StatusPushFailed    = "push_failed"
	StatusDropped       = "dropped"
)

// Payload is the content of a notification.
type Payload struct {
	Title   string
	Message string
	Data    map[string]interface{}
}

// Dispatcher sends notifications fire-and-forget. Notify never blocks on delivery
// and never reports failure to the caller.
type Dispatcher interface {
	Notify(ctx context.Context, userID uint, kind string, payload Payload)
}

// NopDispatcher discards every notification.
type NopDispatcher struct{}

// Notify implements Dispatcher.
func (NopDispatcher) Notify(context.Context, uint, string, Payload) {}

// Store persists in-app notifications.
type Store interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
}

// Pusher delivers push messages.
type Pusher interface {
	Send(ctx context.Context, msg *push.Message) error
}

type job struct {
	userID  uint
	kind    string
	payload Payload
}

// AsyncDispatcher queues notifications in a bounded buffer drained by worker goroutines.
// Each notification is stored in the user's inbox and pushed with exponential backoff.
// When the queue is full the notification is dropped.
type AsyncDispatcher struct {
	store       Store
	pusher      Pusher
	log         *logger.Logger
	workers     int
	maxRetries  uint64
	sendTimeout time.Duration
	newBackOff  func() backoff.BackOff

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

// NewAsyncDispatcher creates a dispatcher. Call Start before Notify and Shutdown when done.
func NewAsyncDispatcher(store Store, pusher Pusher, cfg *config.NotificationsConfig, log *logger.Logger) *AsyncDispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	sendTimeout := cfg.Push.Timeout
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	return &AsyncDispatcher{
		store:       store,
		pusher:      pusher,
		log:         log.Component("notify"),
		workers:     workers,
		maxRetries:  cfg.Push.MaxRetries,
		sendTimeout: sendTimeout,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		queue: make(chan job, queueSize),
	}
}

// Start launches the worker goroutines.
func (d *AsyncDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.log.Info().Int("workers", d.workers).Int("queue_size", cap(d.queue)).Msg("Notification dispatcher started")
}

// Notify enqueues a notification. It returns immediately.
func (d *AsyncDispatcher) Notify(_ context.Context, userID uint, kind string, payload Payload) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(userID, kind, "dispatcher closed")
		return
	}

	select {
	case d.queue <- job{userID: userID, kind: kind, payload: payload}:
		metrics.SetNotificationQueueDepth(len(d.queue))
	default:
		d.drop(userID, kind, "queue full")
	}
}

func (d *AsyncDispatcher) drop(userID uint, kind, reason string) {
	metrics.RecordNotificationDropped()
	metrics.RecordNotification(kind, StatusDropped)
	d.log.Warn().Uint("user_id", userID).Str("kind", kind).Str("reason", reason).Msg("Notification dropped")
}

// Shutdown stops accepting notifications and waits until the queue is drained or ctx is done.
func (d *AsyncDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info().Msg("Notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		metrics.SetNotificationQueueDepth(len(d.queue))
		d.deliver(j)
	}
}

func (d *AsyncDispatcher) deliver(j job) {
	log := d.log.With().Uint("user_id", j.userID).Str("kind", j.kind).Logger()
	status := StatusSent

	if err := d.persist(j); err != nil {
		status = StatusPersistFailed
		log.Error().Err(err).Msg("Failed to store notification")
	}

	if err := d.push(j); err != nil {
		status = StatusPushFailed
		log.Error().Err(err).Msg("Failed to push notification")
	}

	metrics.RecordNotification(j.kind, status)
}

func (d *AsyncDispatcher) persist(j job) error {
	var data json.RawMessage
	if len(j.payload.Data) > 0 {
		raw, err := json.Marshal(j.payload.Data)
		if err != nil {
			return err
		}
		data = raw
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	return d.store.CreateNotification(ctx, &models.Notification{
		UserID:  j.userID,
		Kind:    j.kind,
		Title:   j.payload.Title,
		Message: j.payload.Message,
		Data:    data,
	})
}

func (d *AsyncDispatcher) push(j job) error {
	msg := &push.Message{
		UserID: j.userID,
		Title:  j.payload.Title,
		Body:   j.payload.Message,
		Data:   j.payload.Data,
	}

	operation := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		defer cancel()

		err := d.pusher.Send(ctx, msg)
		if err != nil && push.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.RetryNotify(
		operation,
		backoff.WithMaxRetries(d.newBackOff(), d.maxRetries),
		func(err error, wait time.Duration) {
			d.log.Warn().
				Err(err).
				Uint("user_id", j.userID).
				Dur("backoff", wait).
				Msg("Push attempt failed")
		},
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

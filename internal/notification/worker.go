package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"timetable-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends notifications with the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Banner is one "could not refresh" notice for the subscribers of an identity.
type Banner struct {
	Identity string `json:"identity"`
	Message  string `json:"message"`
}

// WorkerPool delivers banners to push subscribers.
type WorkerPool struct {
	size    int
	jobs    chan Banner
	done    chan struct{}
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Banner, size),
		done:    make(chan struct{}),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log.Named("notification"),
	}
}

// Start launches the worker goroutines. They stop when ctx is done.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
	go func() {
		<-ctx.Done()
		close(wp.done)
	}()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.With(zap.Int("worker", id))
	log.Debug("worker started")
	for {
		select {
		case b := <-wp.jobs:
			log.Debug("delivering banner", zap.String("identity", b.Identity))
			wp.sendBanner(ctx, b)
		case <-ctx.Done():
			log.Debug("worker shutting down")
			return
		}
	}
}

// Dispatch queues a banner. It gives up once the pool has stopped.
func (wp *WorkerPool) Dispatch(b Banner) {
	select {
	case wp.jobs <- b:
	case <-wp.done:
		wp.log.Warn("worker pool stopped, dropping banner", zap.String("identity", b.Identity))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Banner {
	return wp.jobs
}

func (wp *WorkerPool) sendBanner(ctx context.Context, b Banner) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("identity = ?", b.Identity).
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Error("failed to load subscriptions", zap.String("identity", b.Identity), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(b)
	if err != nil {
		wp.log.Error("failed to encode banner", zap.Error(err))
		return
	}

	wp.log.Info("sending banners", zap.String("identity", b.Identity), zap.Int("subscribers", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}

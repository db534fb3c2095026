package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"door-access-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real implementation of Sender.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Event is one emergency state change to announce to operators.
type Event struct {
	BoardID int64
	Message string
}

// WorkerPool delivers emergency alerts to subscribed operator browsers.
type WorkerPool struct {
	size    int
	jobs    chan Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notify worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			wp.sendForBoard(ctx, ev)
		case <-ctx.Done():
			log.Printf("notify worker %d shutting down", id)
			return
		}
	}
}

// Dispatch enqueues an event. Never blocks; alerts are best-effort.
func (wp *WorkerPool) Dispatch(ev Event) {
	select {
	case wp.jobs <- ev:
	default:
		log.Printf("notify queue full, dropping alert for board %d", ev.BoardID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Event {
	return wp.jobs
}

// sendForBoard fetches the board's subscribers and pushes the alert.
func (wp *WorkerPool) sendForBoard(ctx context.Context, ev Event) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_board_mapping sbm ON sbm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sbm.board_id = ?", ev.BoardID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("error fetching subscriptions for board %d: %v", ev.BoardID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Printf("sending %d alerts for board %d", len(subscriptions), ev.BoardID)

	var board model.Board
	boardLabel := fmt.Sprintf("%d", ev.BoardID)
	if err := wp.db.WithContext(ctx).
		Select("name").
		First(&board, ev.BoardID).Error; err != nil {
		log.Printf("error fetching board %d: %v", ev.BoardID, err)
	} else if board.Name != "" {
		boardLabel = board.Name
	}

	message := fmt.Sprintf("Board %s: %s", boardLabel, ev.Message)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification pushes a single alert, dropping expired subscriptions.
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
		log.Printf("error sending alert to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == 410 {
		log.Printf("subscription for endpoint %s is expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}

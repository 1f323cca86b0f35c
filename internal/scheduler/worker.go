package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

// ErrPermanent marks push failures that retrying will not fix
var ErrPermanent = errors.New("permanent push failure")

// Pusher delivers a notification to a device token
type Pusher interface {
	Push(ctx context.Context, token string, n models.Notification) error
}

// HTTPPusher posts notifications to a push gateway
type HTTPPusher struct {
	Endpoint string
	Client   *http.Client
}

type pushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// Push sends one message. 4xx responses other than 429 are permanent.
func (p *HTTPPusher) Push(ctx context.Context, token string, n models.Notification) error {
	msg := pushMessage{To: token, Title: n.Title, Body: n.Body, Data: map[string]string{"kind": n.Kind}}
	if n.PropertyID != "" {
		msg.Data["property_id"] = n.PropertyID
	}
	if n.ChatID != "" {
		msg.Data["chat_id"] = n.ChatID
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("push gateway returned %d", resp.StatusCode)
	default:
		return fmt.Errorf("%w: push gateway returned %d", ErrPermanent, resp.StatusCode)
	}
}

// LogPusher only logs notifications. It is used when no push endpoint is
// configured.
type LogPusher struct {
	Logger *slog.Logger
}

func (p *LogPusher) Push(ctx context.Context, token string, n models.Notification) error {
	p.Logger.Info("push notification", "user_id", n.UserID, "kind", n.Kind, "title", n.Title)
	return nil
}

// NotificationWorker delivers queued notifications to user devices
type NotificationWorker struct {
	gdb          *database.GormDB
	pusher       Pusher
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int

	mu        sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	isRunning bool
}

// NewNotificationWorker creates a new worker
func NewNotificationWorker(gdb *database.GormDB, pusher Pusher, pollInterval time.Duration, batchSize int, logger *slog.Logger) *NotificationWorker {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &NotificationWorker{
		gdb:          gdb,
		pusher:       pusher,
		logger:       logger.With("component", "notification_worker"),
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Start starts the worker loop
func (w *NotificationWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		w.logger.Warn("worker already running")
		return
	}

	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	w.isRunning = true
	w.logger.Info("worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	go w.run(w.stopChan, w.done)
}

// Stop stops the worker and waits for the current batch
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isRunning {
		return
	}
	close(w.stopChan)
	<-w.done
	w.isRunning = false
	w.logger.Info("worker stopped")
}

func (w *NotificationWorker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("failed to process notifications", "err", err)
			}
		}
	}
}

// BatchResult counts the outcome of one batch
type BatchResult struct {
	Sent          int `json:"sent"`
	Retrying      int `json:"retrying"`
	Undeliverable int `json:"undeliverable"`
}

// ProcessBatch delivers up to batchSize due notifications
func (w *NotificationWorker) ProcessBatch(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	items, err := w.gdb.GetPendingNotifications(ctx, w.batchSize)
	if err != nil {
		return result, err
	}

	for i := range items {
		n := &items[i]

		user, err := w.gdb.GetUser(ctx, n.UserID)
		if errors.Is(err, database.ErrNotFound) || (err == nil && user.PushToken == "") {
			if err := w.gdb.MarkNotificationUndeliverable(ctx, n.ID, "no push token"); err != nil {
				return result, err
			}
			result.Undeliverable++
			continue
		}
		if err != nil {
			return result, err
		}

		pushErr := w.pusher.Push(ctx, user.PushToken, *n)
		switch {
		case pushErr == nil:
			err = w.gdb.MarkNotificationSent(ctx, n.ID)
			result.Sent++
		case errors.Is(pushErr, ErrPermanent):
			w.logger.Warn("push rejected", "notification_id", n.ID, "err", pushErr)
			err = w.gdb.MarkNotificationUndeliverable(ctx, n.ID, pushErr.Error())
			result.Undeliverable++
		default:
			w.logger.Warn("push failed, will retry", "notification_id", n.ID, "attempt", n.Attempts+1, "err", pushErr)
			err = w.gdb.MarkNotificationFailed(ctx, n, pushErr)
			result.Retrying++
		}
		if err != nil {
			return result, err
		}
	}

	if len(items) > 0 {
		w.logger.Info("notification batch processed",
			"sent", result.Sent,
			"retrying", result.Retrying,
			"undeliverable", result.Undeliverable)
	}
	return result, nil
}

// GetQueueStats returns notification counts by status
func (w *NotificationWorker) GetQueueStats(ctx context.Context) (map[string]interface{}, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := w.gdb.DB().WithContext(ctx).Model(&models.Notification{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := map[string]interface{}{
		models.NotificationStatusPending:       int64(0),
		models.NotificationStatusSent:          int64(0),
		models.NotificationStatusFailed:        int64(0),
		models.NotificationStatusPermanentFail: int64(0),
	}
	for _, r := range rows {
		stats[r.Status] = r.Count
	}

	w.mu.Lock()
	stats["is_running"] = w.isRunning
	w.mu.Unlock()
	return stats, nil
}

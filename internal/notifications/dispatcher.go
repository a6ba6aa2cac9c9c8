package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"rental_app_backend/internal/metrics"
	"rental_app_backend/pkg/utils"
)

// DispatcherConfig tunes the worker pool.
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	SendTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// ErrDispatcherStopped is returned by Enqueue after Stop.
var ErrDispatcherStopped = errors.New("notification dispatcher stopped")

// ErrQueueFull is returned by Enqueue when the queue has no room.
var ErrQueueFull = errors.New("notification queue full")

// Dispatcher delivers messages on a bounded pool of workers with a small number of retries.
type Dispatcher struct {
	sender Sender
	cfg    DispatcherConfig
	queue  chan Message

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewDispatcher creates a dispatcher. Call Start before enqueueing.
func NewDispatcher(sender Sender, cfg DispatcherConfig) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{sender: sender, cfg: cfg, queue: make(chan Message, cfg.QueueSize)}
}

// Start launches the workers. They run until Stop; cancelling ctx does not
// abort sends, so Stop can still drain the queue after a shutdown signal.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Enqueue schedules msg without blocking.
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- msg:
		metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		metrics.NotificationsTotal.WithLabelValues(string(msg.Kind), metrics.OutcomeDropped).Inc()
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for queued messages to drain, or for ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if d.cancel != nil {
			d.cancel()
		}
		return nil
	case <-ctx.Done():
		if d.cancel != nil {
			d.cancel()
		}
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for msg := range d.queue {
		metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
		d.deliver(ctx, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	fields := map[string]interface{}{"kind": msg.Kind, "application_id": msg.ApplicationID}
	var err error
attempts:
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err = d.sender.Send(sendCtx, msg)
		cancel()
		if err == nil {
			metrics.NotificationsTotal.WithLabelValues(string(msg.Kind), metrics.OutcomeSuccess).Inc()
			utils.LogDebug("Notification sent", fields)
			return
		}
		if errors.Is(err, ErrNoRecipient) || attempt == d.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			break attempts
		case <-time.After(d.cfg.RetryDelay * time.Duration(attempt)):
		}
	}
	metrics.NotificationsTotal.WithLabelValues(string(msg.Kind), metrics.OutcomeFailure).Inc()
	utils.LogError(err, "Notification delivery failed", fields)
}

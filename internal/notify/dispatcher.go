package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// Dispatcher fans events out to a Sender on a fixed pool of workers.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan *entity.NotificationEvent
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.ch = make(chan *entity.NotificationEvent, n)
		}
	}
}

func WithSendTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

func NewDispatcher(sender Sender, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		logger:  logger,
		workers: 2,
		timeout: 30 * time.Second,
		ch:      make(chan *entity.NotificationEvent, 256),
	}
	for _, o := range opts {
		o(d)
	}
	d.start()
	return d
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go func(workerID int) {
				defer d.wg.Done()
				d.logger.Debug("notification worker started", "worker_id", workerID)

				for e := range d.ch {
					ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
					err := d.sender.Send(ctx, e)
					cancel()

					if err != nil {
						d.logger.Error("notification delivery failed", "worker_id", workerID,
							"notification_id", e.ID, "kind", e.Kind, "error", err)
					} else {
						d.logger.Debug("notification delivered", "worker_id", workerID,
							"notification_id", e.ID, "kind", e.Kind)
					}
				}

				d.logger.Debug("notification worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Notify queues an event without blocking the caller. A full queue drops the
// event; it remains in the inbox table.
func (d *Dispatcher) Notify(_ context.Context, e *entity.NotificationEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("cannot queue notification: dispatcher is shutting down", "kind", e.Kind, "request_id", e.RequestID)
		return
	}
	select {
	case d.ch <- e:
	default:
		d.logger.Warn("notification queue full, dropping delivery", "kind", e.Kind, "request_id", e.RequestID)
	}
}

// Shutdown stops accepting events and waits for queued ones to drain.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); d.wg.Wait() }()

	select {
	case <-ctx.Done():
		d.logger.Warn("notification shutdown interrupted by context")
	case <-done:
		d.logger.Info("notification queue drained, shutdown complete")
	}
}

// Package presence forwards timer status transitions to the tracking server
// without blocking the timer.
package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"fomopomo/internal/timer"
)

// Publisher writes one status update to the shared presence store.
type Publisher interface {
	PublishStatus(ctx context.Context, update timer.StatusUpdate) error
}

// Config tunes the dispatcher queue.
type Config struct {
	QueueSize int
	Timeout   time.Duration
	Logger    *log.Logger
}

// Dispatcher is a fire-and-forget timer.PresenceSink. Only the newest
// pending update matters, so stale updates are dropped instead of queued.
type Dispatcher struct {
	publisher Publisher
	timeout   time.Duration
	logger    *log.Logger

	mu     sync.Mutex
	queue  chan timer.StatusUpdate
	closed bool
	done   chan struct{}
}

// NewDispatcher starts the worker goroutine.
func NewDispatcher(publisher Publisher, config Config) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = 8
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	d := &Dispatcher{
		publisher: publisher,
		timeout:   config.Timeout,
		logger:    config.Logger,
		queue:     make(chan timer.StatusUpdate, config.QueueSize),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// UpdateStatus enqueues update. When the queue is full the oldest pending
// update is discarded.
func (d *Dispatcher) UpdateStatus(update timer.StatusUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	for {
		select {
		case d.queue <- update:
			return
		default:
		}
		select {
		case dropped := <-d.queue:
			d.logger.Printf("presence: dropping superseded %s update", dropped.Status)
		default:
		}
	}
}

// Close stops accepting updates and waits for pending ones to be sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for update := range d.queue {
		update = d.newest(update)
		d.publish(update)
	}
}

// newest drains whatever is already queued and keeps the last update.
func (d *Dispatcher) newest(update timer.StatusUpdate) timer.StatusUpdate {
	for {
		select {
		case next, ok := <-d.queue:
			if !ok {
				return update
			}
			update = next
		default:
			return update
		}
	}
}

func (d *Dispatcher) publish(update timer.StatusUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.publisher.PublishStatus(ctx, update); err != nil {
		d.logger.Printf("presence: publish %s: %v", update.Status, err)
	}
}

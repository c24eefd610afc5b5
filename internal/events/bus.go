package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/observability"
)

const defaultPublishTimeout = 2 * time.Second

// Bus delivers events to sinks on a background goroutine. Enqueue never blocks: when the
// queue is full the event is dropped and counted.
type Bus struct {
	sinks   []Sink
	queue   chan Event
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewBus(size int, logger *slog.Logger, sinks ...Sink) *Bus {
	if size <= 0 {
		size = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		sinks:   sinks,
		queue:   make(chan Event, size),
		logger:  logger,
		timeout: defaultPublishTimeout,
		done:    make(chan struct{}),
	}
}

// Start launches the delivery loop. It returns once Close has drained the queue.
func (b *Bus) Start() {
	go func() {
		defer close(b.done)
		for e := range b.queue {
			b.deliver(e)
		}
	}()
}

func (b *Bus) Enqueue(evts ...Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, e := range evts {
		select {
		case b.queue <- e:
		default:
			observability.EventsDropped.Inc()
			b.logger.Warn("event queue full, dropping event", "type", e.Type, "ride_id", e.RideID)
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered or ctx to expire.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) deliver(e Event) {
	for _, s := range b.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		err := s.Publish(ctx, e)
		cancel()
		if err != nil {
			observability.EventsPublished.WithLabelValues(string(e.Type), "error").Inc()
			b.logger.Error("event publish failed", "type", e.Type, "ride_id", e.RideID, "sink", sinkName(s), "error", err)
			continue
		}
		observability.EventsPublished.WithLabelValues(string(e.Type), "ok").Inc()
	}
}

func sinkName(s Sink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "sink"
}

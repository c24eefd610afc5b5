package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []Event
	fail bool
}

func (r *recordingSink) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	if r.fail {
		return errors.New("sink down")
	}
	return nil
}

func (r *recordingSink) events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.got...)
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBusDeliversInOrderToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{fail: true}
	bus := NewBus(16, quietLogger(), a, b)
	bus.Start()
	bus.Enqueue(Event{Type: RideRequested, RideID: "r1"}, Event{Type: RideOffered, RideID: "r1"})
	bus.Enqueue(Event{Type: RideAssigned, RideID: "r1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := bus.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, s := range []*recordingSink{a, b} {
		got := s.events()
		if len(got) != 3 {
			t.Fatalf("expected 3 events, got %d", len(got))
		}
		if got[0].Type != RideRequested || got[2].Type != RideAssigned {
			t.Fatalf("unexpected order: %+v", got)
		}
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	s := &recordingSink{}
	bus := NewBus(1, quietLogger(), s)
	// not started: the queue holds a single event
	bus.Enqueue(Event{Type: RideRequested}, Event{Type: RideOffered}, Event{Type: RideAssigned})
	bus.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := bus.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := len(s.events()); n != 1 {
		t.Fatalf("expected 1 delivered event, got %d", n)
	}
}

func TestEnqueueAfterCloseIsIgnored(t *testing.T) {
	s := &recordingSink{}
	bus := NewBus(4, quietLogger(), s)
	bus.Start()
	if err := bus.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	bus.Enqueue(Event{Type: RideFailed})
	if n := len(s.events()); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestNilBatchIsSafe(t *testing.T) {
	var b *Batch
	b.Add(Event{Type: RideFailed})
	if b.Events() != nil {
		t.Fatal("nil batch must report no events")
	}
}

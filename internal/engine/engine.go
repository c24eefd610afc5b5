package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/matcher"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/simulation"
	"github.com/example/ride-dispatch/internal/storage"
)

// Publisher receives the events of each finished operation. Enqueue is called under
// the engine lock and must not block.
type Publisher interface {
	Enqueue(evts ...events.Event)
}

// Engine is the single-writer boundary around the entity store. Every operation,
// reads included, runs under one mutex so no caller observes a half-applied offer
// or a partially advanced tick.
type Engine struct {
	mu        sync.Mutex
	store     storage.EntityStore
	matcher   *matcher.Service
	protocol  *dispatch.Protocol
	sim       *simulation.Simulator
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Engine)

// WithClock replaces the wall clock used for ride history and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithIDs replaces the id generator, mostly for deterministic tests.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func WithRecentWindow(d time.Duration) Option {
	return func(e *Engine) { e.matcher.Window = min(d, models.HistoryWindow) }
}

func New(store storage.EntityStore, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		matcher: matcher.NewService(),
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	e.matcher.Now = e.now
	e.protocol = dispatch.NewProtocol(store, e.matcher)
	e.protocol.Now = e.now
	e.sim = simulation.NewSimulator(store, e.logger)
	e.sim.Now = e.now
	return e
}

type OfferResult struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Ride    models.RideRequest `json:"ride"`
}

type Snapshot struct {
	Drivers      []models.Driver      `json:"drivers"`
	Riders       []models.Rider       `json:"riders"`
	RideRequests []models.RideRequest `json:"ride_requests"`
	CurrentTick  int                  `json:"current_tick"`
}

// RequestRide creates a ride request for the rider and offers it to the best driver.
// The returned request is FAILED when no driver is eligible.
func (e *Engine) RequestRide(riderID string) (models.RideRequest, error) {
	var b events.Batch
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.publish(&b)

	rider, ok := e.store.Rider(riderID)
	if !ok {
		return models.RideRequest{}, fmt.Errorf("rider %s: %w", riderID, models.ErrNotFound)
	}
	if active := e.activeRideFor(riderID); active != nil {
		return models.RideRequest{}, fmt.Errorf("rider %s already has ride %s: %w", riderID, active.ID, models.ErrInvalidState)
	}
	now := e.now()
	req := &models.RideRequest{
		ID:         e.newID(),
		RiderID:    rider.ID,
		Pickup:     rider.PickupLocation,
		Dropoff:    rider.DropoffLocation,
		Status:     models.RideWaiting,
		RejectedBy: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	e.store.AddRideRequest(req)
	b.Add(events.ForRide(events.RideRequested, req, "", e.store.CurrentTick(), now))

	offered, err := e.protocol.Dispatch(req, &b)
	if err != nil {
		return models.RideRequest{}, err
	}
	if offered {
		e.logger.Info("ride offered", "ride_id", req.ID, "rider_id", riderID, "driver_id", req.OfferedToDriverID)
	} else {
		e.logger.Warn("no eligible driver", "ride_id", req.ID, "rider_id", riderID)
	}
	return req.Clone(), nil
}

// OfferResponse applies a driver's answer to an outstanding offer.
func (e *Engine) OfferResponse(driverID, requestID string, accept bool) (OfferResult, error) {
	var b events.Batch
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.publish(&b)

	if accept {
		req, err := e.protocol.Accept(driverID, requestID, &b)
		if err != nil {
			return OfferResult{Message: err.Error()}, err
		}
		e.logger.Info("ride accepted", "ride_id", req.ID, "driver_id", driverID)
		return OfferResult{Success: true, Message: "ride accepted", Ride: req.Clone()}, nil
	}

	req, err := e.protocol.Reject(driverID, requestID, &b)
	if err != nil {
		return OfferResult{Message: err.Error()}, err
	}
	msg := "ride rejected, offered to next driver"
	if req.Status == models.RideFailed {
		msg = "ride rejected, no driver left"
	}
	e.logger.Info("ride rejected", "ride_id", req.ID, "driver_id", driverID, "status", req.Status, "next_driver_id", req.OfferedToDriverID)
	return OfferResult{Success: true, Message: msg, Ride: req.Clone()}, nil
}

// Tick advances the simulation by one step for every on-trip driver.
func (e *Engine) Tick() simulation.TickResult {
	var b events.Batch
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.publish(&b)
	return e.sim.Tick(&b)
}

// Snapshot returns a deep copy of the whole simulation state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Drivers:      e.drivers(),
		Riders:       e.riders(),
		RideRequests: e.rides(),
		CurrentTick:  e.store.CurrentTick(),
	}
}

func (e *Engine) Drivers() []models.Driver {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drivers()
}

func (e *Engine) Riders() []models.Rider {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.riders()
}

func (e *Engine) Rides() []models.RideRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rides()
}

func (e *Engine) Driver(id string) (models.Driver, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.store.Driver(id)
	if !ok {
		return models.Driver{}, fmt.Errorf("driver %s: %w", id, models.ErrNotFound)
	}
	return d.Clone(), nil
}

func (e *Engine) Ride(id string) (models.RideRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.store.RideRequest(id)
	if !ok {
		return models.RideRequest{}, fmt.Errorf("ride %s: %w", id, models.ErrNotFound)
	}
	return r.Clone(), nil
}

func (e *Engine) drivers() []models.Driver {
	src := e.store.Drivers()
	out := make([]models.Driver, 0, len(src))
	for _, d := range src {
		out = append(out, d.Clone())
	}
	return out
}

func (e *Engine) riders() []models.Rider {
	src := e.store.Riders()
	out := make([]models.Rider, 0, len(src))
	for _, r := range src {
		out = append(out, *r)
	}
	return out
}

func (e *Engine) rides() []models.RideRequest {
	src := e.store.RideRequests()
	out := make([]models.RideRequest, 0, len(src))
	for _, r := range src {
		out = append(out, r.Clone())
	}
	return out
}

func (e *Engine) activeRideFor(riderID string) *models.RideRequest {
	for _, r := range e.store.RideRequests() {
		if r.RiderID == riderID && !r.Status.Terminal() {
			return r
		}
	}
	return nil
}

// publish hands the batch to the publisher while the lock is still held, so batches
// reach the publisher in commit order.
func (e *Engine) publish(b *events.Batch) {
	if e.publisher == nil || len(b.Events()) == 0 {
		return
	}
	e.publisher.Enqueue(b.Events()...)
}

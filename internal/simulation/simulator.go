package simulation

import (
	"log/slog"
	"time"

	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/storage"
)

type TickResult struct {
	CurrentTick  int `json:"current_tick"`
	MovedDrivers int `json:"moved_drivers"`
}

// Simulator advances the discrete clock and moves drivers that are on a trip.
// Callers must serialize Tick with every other mutation of the store.
type Simulator struct {
	Store  storage.EntityStore
	Now    func() time.Time
	Logger *slog.Logger
}

func NewSimulator(store storage.EntityStore, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{Store: store, Now: time.Now, Logger: logger}
}

// Tick moves every on-trip driver exactly one unit toward its current goal and applies
// pickup and dropoff arrivals within the same tick.
func (s *Simulator) Tick(b *events.Batch) TickResult {
	tick := s.Store.AdvanceTick()
	observability.TicksTotal.Inc()
	now := s.now()

	moved := 0
	for _, d := range s.Store.Drivers() {
		if d.Status != models.DriverOnTrip {
			continue
		}
		req, ok := s.Store.RideRequest(d.CurrentRideID)
		if !ok {
			s.Logger.Warn("on-trip driver has no ride", "driver_id", d.ID, "ride_id", d.CurrentRideID, "tick", tick)
			continue
		}
		moved++
		s.step(d, req, tick, now, b)
	}
	return TickResult{CurrentTick: tick, MovedDrivers: moved}
}

func (s *Simulator) step(d *models.Driver, req *models.RideRequest, tick int, now time.Time, b *events.Batch) {
	target := req.Target()
	d.Location = geo.Step(d.Location, target)
	loc := d.Location
	b.Add(events.Event{Type: events.DriverMoved, RideID: req.ID, RiderID: req.RiderID, DriverID: d.ID, Status: req.Status, Location: &loc, Tick: tick, At: now})

	if req.PickupCompleted {
		if rider, ok := s.Store.Rider(req.RiderID); ok {
			rider.Location = d.Location
		}
	}
	if d.Location != target {
		return
	}
	if !req.PickupCompleted {
		s.pickup(d, req, tick, now, b)
		return
	}
	s.dropoff(d, req, tick, now, b)
}

func (s *Simulator) pickup(d *models.Driver, req *models.RideRequest, tick int, now time.Time, b *events.Batch) {
	req.PickupCompleted = true
	req.UpdatedAt = now
	if rider, ok := s.Store.Rider(req.RiderID); ok {
		rider.Location = d.Location
	}
	s.Logger.Debug("rider picked up", "ride_id", req.ID, "driver_id", d.ID, "tick", tick)
	b.Add(events.ForRide(events.RiderPickedUp, req, d.ID, tick, now))
}

func (s *Simulator) dropoff(d *models.Driver, req *models.RideRequest, tick int, now time.Time, b *events.Batch) {
	if err := req.Transition(models.RideCompleted, now); err != nil {
		s.Logger.Error("complete ride", "ride_id", req.ID, "driver_id", d.ID, "error", err)
		return
	}
	if err := d.FinishTrip(now); err != nil {
		s.Logger.Error("release driver", "ride_id", req.ID, "driver_id", d.ID, "error", err)
	}
	s.Store.RemoveRider(req.RiderID)
	observability.RidesFinished.WithLabelValues(string(models.RideCompleted)).Inc()
	observability.DriversOnTrip.Dec()
	s.Logger.Info("ride completed", "ride_id", req.ID, "driver_id", d.ID, "tick", tick)
	b.Add(events.ForRide(events.RideCompleted, req, d.ID, tick, now))
}

func (s *Simulator) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

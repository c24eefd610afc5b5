package engine

import (
	"errors"
	"fmt"

	"github.com/example/ride-dispatch/internal/models"
)

// AddDriver registers an available driver at loc. Bounds are checked by the caller.
func (e *Engine) AddDriver(name string, loc models.Location) models.Driver {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := &models.Driver{ID: e.newID(), Name: name, Location: loc, Status: models.DriverAvailable}
	e.store.AddDriver(d)
	e.logger.Info("driver added", "driver_id", d.ID, "x", loc.X, "y", loc.Y)
	return d.Clone()
}

// RemoveDriver deletes a driver that is neither on a trip nor holding an offer.
func (e *Engine) RemoveDriver(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.store.Driver(id)
	if !ok {
		return fmt.Errorf("driver %s: %w", id, models.ErrNotFound)
	}
	if err := e.ensureIdle(d); err != nil {
		return err
	}
	e.store.RemoveDriver(id)
	e.logger.Info("driver removed", "driver_id", id)
	return nil
}

// SetDriverOnline moves a driver between available and offline.
func (e *Engine) SetDriverOnline(id string, online bool) (models.Driver, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.store.Driver(id)
	if !ok {
		return models.Driver{}, fmt.Errorf("driver %s: %w", id, models.ErrNotFound)
	}
	if !online {
		if err := e.ensureIdle(d); err != nil {
			return models.Driver{}, err
		}
	}
	if err := d.SetOnline(online); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			return models.Driver{}, fmt.Errorf("%w: %w", err, models.ErrInvalidState)
		}
		return models.Driver{}, err
	}
	return d.Clone(), nil
}

// AddRider registers a rider waiting at pickup.
func (e *Engine) AddRider(name string, pickup, dropoff models.Location) models.Rider {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := &models.Rider{ID: e.newID(), Name: name, PickupLocation: pickup, DropoffLocation: dropoff, Location: pickup}
	e.store.AddRider(r)
	e.logger.Info("rider added", "rider_id", r.ID)
	return *r
}

// RemoveRider deletes a rider without an active ride.
func (e *Engine) RemoveRider(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.store.Rider(id); !ok {
		return fmt.Errorf("rider %s: %w", id, models.ErrNotFound)
	}
	if active := e.activeRideFor(id); active != nil {
		return fmt.Errorf("rider %s has ride %s: %w", id, active.ID, models.ErrInvalidState)
	}
	e.store.RemoveRider(id)
	e.logger.Info("rider removed", "rider_id", id)
	return nil
}

func (e *Engine) ensureIdle(d *models.Driver) error {
	if d.Status == models.DriverOnTrip {
		return fmt.Errorf("driver %s is on ride %s: %w", d.ID, d.CurrentRideID, models.ErrInvalidState)
	}
	for _, r := range e.store.RideRequests() {
		if r.Status == models.RidePendingAcceptance && r.OfferedToDriverID == d.ID {
			return fmt.Errorf("driver %s holds offer for ride %s: %w", d.ID, r.ID, models.ErrInvalidState)
		}
	}
	return nil
}

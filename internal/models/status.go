package models

import (
	"fmt"
	"time"
)

type RideStatus string

const (
	RideWaiting           RideStatus = "waiting"
	RidePendingAcceptance RideStatus = "pending_acceptance"
	RideAssigned          RideStatus = "assigned"
	// RideRejected is part of the public status vocabulary but no transition leads to it.
	RideRejected  RideStatus = "rejected"
	RideCompleted RideStatus = "completed"
	RideFailed    RideStatus = "failed"
)

var rideTransitions = map[RideStatus][]RideStatus{
	RideWaiting:           {RidePendingAcceptance, RideFailed},
	RidePendingAcceptance: {RideAssigned, RideWaiting, RideFailed},
	RideAssigned:          {RideCompleted},
}

// Terminal reports whether no further transition is possible.
func (s RideStatus) Terminal() bool {
	return s == RideCompleted || s == RideFailed
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s RideStatus) CanTransition(next RideStatus) bool {
	for _, allowed := range rideTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the request to next, refusing moves the lifecycle does not allow.
func (r *RideRequest) Transition(next RideStatus, at time.Time) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("ride %s %s -> %s: %w", r.ID, r.Status, next, ErrInvalidTransition)
	}
	r.Status = next
	r.UpdatedAt = at
	return nil
}

type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverOnTrip    DriverStatus = "on_trip"
	DriverOffline   DriverStatus = "offline"
)

var driverTransitions = map[DriverStatus][]DriverStatus{
	DriverAvailable: {DriverOnTrip, DriverOffline},
	DriverOnTrip:    {DriverAvailable},
	DriverOffline:   {DriverAvailable},
}

func (s DriverStatus) CanTransition(next DriverStatus) bool {
	for _, allowed := range driverTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StartTrip puts an available driver on the given ride.
func (d *Driver) StartTrip(rideID string) error {
	if !d.Status.CanTransition(DriverOnTrip) {
		return fmt.Errorf("driver %s %s -> %s: %w", d.ID, d.Status, DriverOnTrip, ErrInvalidTransition)
	}
	d.Status = DriverOnTrip
	d.CurrentRideID = rideID
	return nil
}

// FinishTrip releases the driver and records the completion at the given time.
func (d *Driver) FinishTrip(at time.Time) error {
	if d.Status != DriverOnTrip {
		return fmt.Errorf("driver %s %s -> %s: %w", d.ID, d.Status, DriverAvailable, ErrInvalidTransition)
	}
	d.Status = DriverAvailable
	d.CurrentRideID = ""
	d.CompletedRides++
	d.History.Record(at)
	end := at
	d.LastRideEnd = &end
	return nil
}

// SetOnline toggles a driver between available and offline. A driver on a trip is
// released only by FinishTrip.
func (d *Driver) SetOnline(online bool) error {
	next := DriverOffline
	if online {
		next = DriverAvailable
	}
	if d.Status == next {
		return nil
	}
	if d.Status == DriverOnTrip || !d.Status.CanTransition(next) {
		return fmt.Errorf("driver %s %s -> %s: %w", d.ID, d.Status, next, ErrInvalidTransition)
	}
	d.Status = next
	return nil
}

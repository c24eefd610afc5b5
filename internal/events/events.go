package events

import (
	"context"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

type Type string

const (
	RideRequested Type = "ride_requested"
	RideOffered   Type = "ride_offered"
	OfferRejected Type = "offer_rejected"
	RideAssigned  Type = "ride_assigned"
	RiderPickedUp Type = "rider_picked_up"
	RideCompleted Type = "ride_completed"
	RideFailed    Type = "ride_failed"
	DriverMoved   Type = "driver_moved"
)

// Event describes one ride lifecycle or movement change.
type Event struct {
	Type     Type              `json:"type"`
	RideID   string            `json:"ride_id,omitempty"`
	RiderID  string            `json:"rider_id,omitempty"`
	DriverID string            `json:"driver_id,omitempty"`
	Status   models.RideStatus `json:"status,omitempty"`
	Location *models.Location  `json:"location,omitempty"`
	Pickup   *models.Location  `json:"pickup,omitempty"`
	Dropoff  *models.Location  `json:"dropoff,omitempty"`
	Tick     int               `json:"tick"`
	At       time.Time         `json:"at"`
}

// ForRide builds an event carrying the request's identity and route.
func ForRide(t Type, r *models.RideRequest, driverID string, tick int, at time.Time) Event {
	pickup, dropoff := r.Pickup, r.Dropoff
	return Event{
		Type:     t,
		RideID:   r.ID,
		RiderID:  r.RiderID,
		DriverID: driverID,
		Status:   r.Status,
		Pickup:   &pickup,
		Dropoff:  &dropoff,
		Tick:     tick,
		At:       at,
	}
}

// Sink receives events after the operation that produced them has finished.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// Batch collects the events of a single engine operation.
type Batch struct {
	events []Event
}

func (b *Batch) Add(e Event) {
	if b == nil {
		return
	}
	b.events = append(b.events, e)
}

func (b *Batch) Events() []Event {
	if b == nil {
		return nil
	}
	return b.events
}

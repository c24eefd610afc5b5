package models

import "time"

// Location is a point on the integer city grid.
type Location struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DistanceTo returns the Manhattan distance between two grid points.
func (l Location) DistanceTo(o Location) int {
	return abs(l.X-o.X) + abs(l.Y-o.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type Driver struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Location       Location     `json:"location"`
	Status         DriverStatus `json:"status"`
	CurrentRideID  string       `json:"current_ride_id,omitempty"`
	CompletedRides int          `json:"completed_rides"`
	LastRideEnd    *time.Time   `json:"last_ride_end,omitempty"`
	History        RideHistory  `json:"-"`
}

// Clone returns a copy that shares no mutable state with d.
func (d *Driver) Clone() Driver {
	c := *d
	if d.LastRideEnd != nil {
		t := *d.LastRideEnd
		c.LastRideEnd = &t
	}
	c.History = d.History.clone()
	return c
}

type Rider struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	PickupLocation  Location `json:"pickup_location"`
	DropoffLocation Location `json:"dropoff_location"`
	// Location is where the rider currently is; it follows the driver once picked up.
	Location Location `json:"location"`
}

type RideRequest struct {
	ID                string     `json:"id"`
	RiderID           string     `json:"rider_id"`
	Pickup            Location   `json:"pickup_location"`
	Dropoff           Location   `json:"dropoff_location"`
	Status            RideStatus `json:"status"`
	AssignedDriverID  string     `json:"assigned_driver_id,omitempty"`
	OfferedToDriverID string     `json:"offered_to_driver_id,omitempty"`
	RejectedBy        []string   `json:"rejected_by"`
	PickupCompleted   bool       `json:"pickup_completed"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with r.
func (r *RideRequest) Clone() RideRequest {
	c := *r
	c.RejectedBy = append([]string(nil), r.RejectedBy...)
	return c
}

// RejectedByDriver reports whether driverID already turned this request down.
func (r *RideRequest) RejectedByDriver(driverID string) bool {
	for _, id := range r.RejectedBy {
		if id == driverID {
			return true
		}
	}
	return false
}

// Target is the location the assigned driver is currently heading to.
func (r *RideRequest) Target() Location {
	if r.PickupCompleted {
		return r.Dropoff
	}
	return r.Pickup
}

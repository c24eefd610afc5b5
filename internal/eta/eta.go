package eta

import (
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
)

// Client is the interface used by the matcher to get ETAs.
type Client interface {
	Ticks(from, to models.Location) int
}

// Grid estimates travel time on the simulation grid, where a driver covers one unit per tick.
type Grid struct{}

func (Grid) Ticks(from, to models.Location) int { return Ticks(from, to) }

// Ticks is the number of simulation ticks needed to travel between two points.
func Ticks(from, to models.Location) int {
	return geo.Manhattan(from, to)
}

// Estimate describes how long a ride takes once a driver has accepted it.
type Estimate struct {
	PickupTicks int `json:"pickup_ticks"`
	TripTicks   int `json:"trip_ticks"`
	TotalTicks  int `json:"total_ticks"`
}

// ForRide estimates a ride for a driver currently at driverLoc.
func ForRide(driverLoc, pickup, dropoff models.Location) Estimate {
	e := Estimate{PickupTicks: Ticks(driverLoc, pickup), TripTicks: Ticks(pickup, dropoff)}
	e.TotalTicks = e.PickupTicks + e.TripTicks
	return e
}

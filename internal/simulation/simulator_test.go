package simulation

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/storage"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestSimulator(store storage.EntityStore) *Simulator {
	s := NewSimulator(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Now = func() time.Time { return now }
	return s
}

// assignedRide puts a driver at from on a ride from pickup to dropoff.
func assignedRide(store *storage.MemoryStore, from, pickup, dropoff models.Location) (*models.Driver, *models.RideRequest) {
	d := &models.Driver{ID: "d1", Location: from, Status: models.DriverOnTrip, CurrentRideID: "ride1"}
	store.AddDriver(d)
	store.AddRider(&models.Rider{ID: "rider1", PickupLocation: pickup, DropoffLocation: dropoff, Location: pickup})
	req := &models.RideRequest{ID: "ride1", RiderID: "rider1", Pickup: pickup, Dropoff: dropoff, Status: models.RideAssigned, AssignedDriverID: "d1"}
	store.AddRideRequest(req)
	return d, req
}

func TestDriverReachesPickupAlongAxisPriorityPath(t *testing.T) {
	store := storage.NewMemoryStore()
	d, req := assignedRide(store, models.Location{X: 0, Y: 0}, models.Location{X: 3, Y: 2}, models.Location{X: 3, Y: 5})
	sim := newTestSimulator(store)

	for i := 1; i <= 5; i++ {
		res := sim.Tick(nil)
		if res.CurrentTick != i || res.MovedDrivers != 1 {
			t.Fatalf("tick %d: unexpected result %+v", i, res)
		}
		if d.Location.X < 3 && d.Location.Y != 0 {
			t.Fatalf("tick %d: y moved before x reached target: %+v", i, d.Location)
		}
		if i < 5 && req.PickupCompleted {
			t.Fatalf("tick %d: pickup completed early", i)
		}
	}
	if d.Location != (models.Location{X: 3, Y: 2}) {
		t.Fatalf("expected (3,2), got %+v", d.Location)
	}
	if !req.PickupCompleted {
		t.Fatal("expected pickup completed at tick 5")
	}
	if req.Status != models.RideAssigned {
		t.Fatalf("pickup must not change status, got %s", req.Status)
	}
	rider, _ := store.Rider("rider1")
	if rider.Location != d.Location {
		t.Fatalf("rider should be with driver, got %+v", rider.Location)
	}
}

func TestRiderTravelsWithDriverAfterPickup(t *testing.T) {
	store := storage.NewMemoryStore()
	d, _ := assignedRide(store, models.Location{X: 1, Y: 1}, models.Location{X: 1, Y: 1}, models.Location{X: 1, Y: 4})
	sim := newTestSimulator(store)

	sim.Tick(nil) // already at pickup
	sim.Tick(nil)
	rider, ok := store.Rider("rider1")
	if !ok {
		t.Fatal("rider removed too early")
	}
	if rider.Location != (models.Location{X: 1, Y: 2}) || rider.Location != d.Location {
		t.Fatalf("rider at %+v, driver at %+v", rider.Location, d.Location)
	}
}

func TestDropoffCompletesRideInSameTick(t *testing.T) {
	store := storage.NewMemoryStore()
	d, req := assignedRide(store, models.Location{X: 0, Y: 0}, models.Location{X: 1, Y: 0}, models.Location{X: 1, Y: 2})
	sim := newTestSimulator(store)

	var b events.Batch
	for i := 0; i < 3; i++ {
		sim.Tick(&b)
	}
	if req.Status != models.RideCompleted {
		t.Fatalf("expected completed after 3 ticks, got %s", req.Status)
	}
	if d.Status != models.DriverAvailable || d.CurrentRideID != "" {
		t.Fatalf("driver not released: %+v", d)
	}
	if d.CompletedRides != 1 || d.History.Len() != 1 {
		t.Fatalf("unexpected counters: completed=%d history=%d", d.CompletedRides, d.History.Len())
	}
	if d.LastRideEnd == nil || !d.LastRideEnd.Equal(now) {
		t.Fatalf("unexpected last ride end %v", d.LastRideEnd)
	}
	if _, ok := store.Rider("rider1"); ok {
		t.Fatal("rider should be removed at dropoff")
	}
	if _, ok := store.RideRequest("ride1"); !ok {
		t.Fatal("completed request must stay in the store")
	}

	var types []events.Type
	for _, e := range b.Events() {
		if e.Type != events.DriverMoved {
			types = append(types, e.Type)
		}
	}
	if len(types) != 2 || types[0] != events.RiderPickedUp || types[1] != events.RideCompleted {
		t.Fatalf("unexpected lifecycle events %v", types)
	}

	res := sim.Tick(nil)
	if res.MovedDrivers != 0 || d.Location != (models.Location{X: 1, Y: 2}) {
		t.Fatalf("released driver must not move: %+v at %+v", res, d.Location)
	}
}

func TestTickIgnoresDriversNotOnTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	idle := &models.Driver{ID: "idle", Location: models.Location{X: 4, Y: 4}, Status: models.DriverAvailable}
	off := &models.Driver{ID: "off", Location: models.Location{X: 7, Y: 1}, Status: models.DriverOffline}
	store.AddDriver(idle)
	store.AddDriver(off)
	sim := newTestSimulator(store)

	for i := 0; i < 3; i++ {
		if res := sim.Tick(nil); res.MovedDrivers != 0 {
			t.Fatalf("expected no moved drivers, got %d", res.MovedDrivers)
		}
	}
	if idle.Location != (models.Location{X: 4, Y: 4}) || off.Location != (models.Location{X: 7, Y: 1}) {
		t.Fatal("idle drivers moved")
	}
	if store.CurrentTick() != 3 {
		t.Fatalf("expected tick 3, got %d", store.CurrentTick())
	}
}

func TestTickSkipsDriverWithMissingRide(t *testing.T) {
	store := storage.NewMemoryStore()
	d := &models.Driver{ID: "d1", Location: models.Location{X: 0, Y: 0}, Status: models.DriverOnTrip, CurrentRideID: "gone"}
	store.AddDriver(d)
	res := newTestSimulator(store).Tick(nil)
	if res.MovedDrivers != 0 || d.Location != (models.Location{}) {
		t.Fatalf("driver without ride must not move: %+v", res)
	}
}

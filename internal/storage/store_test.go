package storage

import (
	"testing"

	"github.com/example/ride-dispatch/internal/models"
)

func TestMemoryStoreKeepsInsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	for _, id := range []string{"c", "a", "b"} {
		s.AddDriver(&models.Driver{ID: id, Status: models.DriverAvailable})
	}
	got := s.Drivers()
	if len(got) != 3 || got[0].ID != "c" || got[1].ID != "a" || got[2].ID != "b" {
		t.Fatalf("unexpected order: %v", ids(got))
	}
	if !s.RemoveDriver("a") {
		t.Fatal("expected removal to succeed")
	}
	if s.RemoveDriver("a") {
		t.Fatal("second removal must report false")
	}
	s.AddDriver(&models.Driver{ID: "a", Status: models.DriverAvailable})
	got = s.Drivers()
	if got[0].ID != "c" || got[1].ID != "b" || got[2].ID != "a" {
		t.Fatalf("unexpected order after re-add: %v", ids(got))
	}
}

func TestAvailableDrivers(t *testing.T) {
	s := NewMemoryStore()
	s.AddDriver(&models.Driver{ID: "d1", Status: models.DriverAvailable})
	s.AddDriver(&models.Driver{ID: "d2", Status: models.DriverOnTrip, CurrentRideID: "r"})
	s.AddDriver(&models.Driver{ID: "d3", Status: models.DriverOffline})
	got := s.AvailableDrivers()
	if len(got) != 1 || got[0].ID != "d1" {
		t.Fatalf("unexpected available drivers: %v", ids(got))
	}
}

func TestRidersAndRequests(t *testing.T) {
	s := NewMemoryStore()
	s.AddRider(&models.Rider{ID: "r1"})
	if _, ok := s.Rider("r1"); !ok {
		t.Fatal("rider not stored")
	}
	if !s.RemoveRider("r1") {
		t.Fatal("expected rider removal")
	}
	if _, ok := s.Rider("r1"); ok {
		t.Fatal("rider still present")
	}
	s.AddRideRequest(&models.RideRequest{ID: "q1"})
	if _, ok := s.RideRequest("q1"); !ok {
		t.Fatal("request not stored")
	}
	if n := len(s.RideRequests()); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
}

func TestTickCounter(t *testing.T) {
	s := NewMemoryStore()
	if s.CurrentTick() != 0 {
		t.Fatal("tick must start at 0")
	}
	s.AdvanceTick()
	if got := s.AdvanceTick(); got != 2 || s.CurrentTick() != 2 {
		t.Fatalf("expected tick 2, got %d", got)
	}
}

func ids(ds []*models.Driver) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

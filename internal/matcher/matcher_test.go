package matcher

import (
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService() *Service {
	s := NewService()
	s.Now = func() time.Time { return now }
	return s
}

func driverAt(id string, x, y int) *models.Driver {
	return &models.Driver{ID: id, Location: models.Location{X: x, Y: y}, Status: models.DriverAvailable}
}

func withRideEndedAgo(d *models.Driver, ago time.Duration) *models.Driver {
	end := now.Add(-ago)
	d.History.Record(end)
	d.LastRideEnd = &end
	d.CompletedRides++
	return d
}

func request() *models.RideRequest {
	return &models.RideRequest{ID: "r1", Pickup: models.Location{X: 0, Y: 0}, Status: models.RideWaiting}
}

func TestChooseClosestWhenOtherMetricsEqual(t *testing.T) {
	drivers := []*models.Driver{driverAt("far", 10, 0), driverAt("near", 0, 1), driverAt("mid", 2, 3)}
	res, ok := newTestService().Best(request(), drivers)
	if !ok {
		t.Fatal("no match")
	}
	if res.Driver.ID != "near" {
		t.Fatalf("expected near, got %s", res.Driver.ID)
	}
	if len(res.Scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(res.Scores))
	}
	if res.Scores[0].NormETA != 1 || res.Scores[1].NormETA != 0 {
		t.Fatalf("unexpected eta normalization: %+v", res.Scores)
	}
}

func TestNoCandidates(t *testing.T) {
	if _, ok := newTestService().Best(request(), nil); ok {
		t.Fatal("expected no match for empty pool")
	}
	busy := driverAt("busy", 0, 0)
	busy.Status = models.DriverOnTrip
	off := driverAt("off", 0, 0)
	off.Status = models.DriverOffline
	if _, ok := newTestService().Best(request(), []*models.Driver{busy, off}); ok {
		t.Fatal("expected no match when nobody is available")
	}
}

func TestSingleCandidateSkipsScoring(t *testing.T) {
	res, ok := newTestService().Best(request(), []*models.Driver{driverAt("only", 50, 50)})
	if !ok || res.Driver.ID != "only" {
		t.Fatalf("expected only driver, got %+v", res)
	}
	if res.Scores != nil {
		t.Fatalf("expected no scores for a single candidate, got %+v", res.Scores)
	}
}

func TestRejectedDriversExcluded(t *testing.T) {
	req := request()
	req.RejectedBy = []string{"near"}
	drivers := []*models.Driver{driverAt("near", 0, 1), driverAt("far", 9, 9)}
	res, ok := newTestService().Best(req, drivers)
	if !ok || res.Driver.ID != "far" {
		t.Fatalf("expected far, got %+v", res.Driver)
	}
}

func TestRecentLoadPenalized(t *testing.T) {
	busy := driverAt("busy", 1, 0)
	for i := 0; i < 3; i++ {
		end := now.Add(-time.Duration(10+i) * time.Minute)
		busy.History.Record(end)
	}
	end := now.Add(-10 * time.Minute)
	busy.LastRideEnd = &end
	fresh := withRideEndedAgo(driverAt("fresh", 0, 1), 10*time.Minute)

	res, ok := newTestService().Best(request(), []*models.Driver{busy, fresh})
	if !ok || res.Driver.ID != "fresh" {
		t.Fatalf("expected fresh, got %+v", res.Driver)
	}
	if res.Scores[0].RecentRides != 3 || res.Scores[1].RecentRides != 1 {
		t.Fatalf("unexpected recent rides: %+v", res.Scores)
	}
}

func TestLongerIdlePreferred(t *testing.T) {
	rested := withRideEndedAgo(driverAt("rested", 0, 1), 50*time.Minute)
	tired := withRideEndedAgo(driverAt("tired", 1, 0), 5*time.Minute)
	res, ok := newTestService().Best(request(), []*models.Driver{tired, rested})
	if !ok || res.Driver.ID != "rested" {
		t.Fatalf("expected rested, got %+v", res.Driver)
	}
	if res.Scores[0].NormIdle != 1 || res.Scores[1].NormIdle != 0 {
		t.Fatalf("idle normalization not inverted: %+v", res.Scores)
	}
}

func TestNeverRiddenDriverUsesSentinel(t *testing.T) {
	veteran := withRideEndedAgo(driverAt("veteran", 0, 1), 30*time.Minute)
	rookie := driverAt("rookie", 1, 0)
	res, _ := newTestService().Best(request(), []*models.Driver{veteran, rookie})
	if res.Scores[1].IdleMinutes != NeverIdleMinutes {
		t.Fatalf("expected sentinel idle minutes, got %v", res.Scores[1].IdleMinutes)
	}
	if res.Driver.ID != "rookie" {
		t.Fatalf("expected rookie, got %s", res.Driver.ID)
	}
}

func TestIdenticalMetricsTieBreaksOnOrder(t *testing.T) {
	drivers := []*models.Driver{driverAt("a", 2, 0), driverAt("b", 0, 2), driverAt("c", 1, 1)}
	for i := 0; i < 20; i++ {
		res, ok := newTestService().Best(request(), drivers)
		if !ok || res.Driver.ID != "a" {
			t.Fatalf("expected a, got %+v", res.Driver)
		}
		for _, sc := range res.Scores {
			if sc.Total != 0 {
				t.Fatalf("identical metrics must contribute 0, got %+v", sc)
			}
		}
	}
}

func TestBestDoesNotMutateDrivers(t *testing.T) {
	d1 := withRideEndedAgo(driverAt("d1", 3, 3), 20*time.Minute)
	d2 := driverAt("d2", 1, 1)
	before1, before2 := d1.Clone(), d2.Clone()
	req := request()
	newTestService().Best(req, []*models.Driver{d1, d2})
	if d1.Location != before1.Location || d1.Status != before1.Status || d1.CompletedRides != before1.CompletedRides ||
		d1.History.Len() != before1.History.Len() {
		t.Fatal("d1 mutated by matching")
	}
	if d2.Location != before2.Location || d2.Status != before2.Status {
		t.Fatal("d2 mutated by matching")
	}
	if req.Status != models.RideWaiting || req.OfferedToDriverID != "" {
		t.Fatal("request mutated by matching")
	}
}

package matcher

import (
	"time"

	"github.com/example/ride-dispatch/internal/eta"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

// NeverIdleMinutes stands in for the idle time of a driver who has never completed a ride.
const NeverIdleMinutes = 1e6

// Weights of the composite score. Lower composite scores win.
type Weights struct {
	ETA    float64
	Recent float64
	Idle   float64
}

var DefaultWeights = Weights{ETA: 0.6, Recent: 0.25, Idle: 0.15}

// Score is the per-candidate breakdown of a matching decision.
type Score struct {
	DriverID    string  `json:"driver_id"`
	ETA         int     `json:"eta"`
	RecentRides int     `json:"recent_rides"`
	IdleMinutes float64 `json:"idle_minutes"`
	NormETA     float64 `json:"norm_eta"`
	NormRecent  float64 `json:"norm_recent"`
	NormIdle    float64 `json:"norm_idle"`
	Total       float64 `json:"total"`
}

// Result carries the chosen driver and, when scoring ran, every candidate's score in
// candidate order.
type Result struct {
	Driver *models.Driver
	Scores []Score
}

type Service struct {
	ETAClient eta.Client
	Window    time.Duration
	Weights   Weights
	Now       func() time.Time
}

func NewService() *Service {
	return &Service{ETAClient: eta.Grid{}, Window: models.HistoryWindow, Weights: DefaultWeights, Now: time.Now}
}

// Candidates returns the drivers eligible for req, preserving input order.
func Candidates(req *models.RideRequest, drivers []*models.Driver) []*models.Driver {
	out := make([]*models.Driver, 0, len(drivers))
	for _, d := range drivers {
		if d.Status != models.DriverAvailable || req.RejectedByDriver(d.ID) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Best picks the driver for req among drivers. It reads the drivers and never mutates them.
func (s *Service) Best(req *models.RideRequest, drivers []*models.Driver) (Result, bool) {
	start := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(start).Seconds()) }()

	cands := Candidates(req, drivers)
	switch len(cands) {
	case 0:
		return Result{}, false
	case 1:
		return Result{Driver: cands[0]}, true
	}

	scores := s.score(req, cands)
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].Total < scores[best].Total {
			best = i
		}
	}
	return Result{Driver: cands[best], Scores: scores}, true
}

func (s *Service) score(req *models.RideRequest, cands []*models.Driver) []Score {
	now := s.now()
	window := s.Window
	if window <= 0 || window > models.HistoryWindow {
		window = models.HistoryWindow
	}
	etaClient := s.ETAClient
	if etaClient == nil {
		etaClient = eta.Grid{}
	}
	cutoff := now.Add(-window)

	scores := make([]Score, len(cands))
	etas := make([]float64, len(cands))
	recents := make([]float64, len(cands))
	idles := make([]float64, len(cands))
	for i, d := range cands {
		sc := Score{
			DriverID:    d.ID,
			ETA:         etaClient.Ticks(d.Location, req.Pickup),
			RecentRides: d.History.CountSince(cutoff),
			IdleMinutes: NeverIdleMinutes,
		}
		if d.LastRideEnd != nil {
			sc.IdleMinutes = now.Sub(*d.LastRideEnd).Minutes()
		}
		scores[i] = sc
		etas[i] = float64(sc.ETA)
		recents[i] = float64(sc.RecentRides)
		idles[i] = sc.IdleMinutes
	}

	normETA := normalize(etas, false)
	normRecent := normalize(recents, false)
	normIdle := normalize(idles, true)
	w := s.Weights
	if w == (Weights{}) {
		w = DefaultWeights
	}
	for i := range scores {
		scores[i].NormETA = normETA[i]
		scores[i].NormRecent = normRecent[i]
		scores[i].NormIdle = normIdle[i]
		scores[i].Total = w.ETA*normETA[i] + w.Recent*normRecent[i] + w.Idle*normIdle[i]
	}
	return scores
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// normalize min-max scales vals into [0,1]. When every value is equal the metric
// contributes nothing. With invert set, the largest raw value maps to 0.
func normalize(vals []float64, invert bool) []float64 {
	out := make([]float64, len(vals))
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return out
	}
	for i, v := range vals {
		n := (v - lo) / (hi - lo)
		if invert {
			n = 1 - n
		}
		out[i] = n
	}
	return out
}

package dispatch

import (
	"fmt"
	"time"

	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/matcher"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/storage"
)

// MaxRejections bounds how many drivers may turn a request down before it fails.
const MaxRejections = 3

// Protocol runs the offer/accept/reject negotiation for ride requests. Callers must
// serialize calls; Protocol itself takes no locks.
type Protocol struct {
	Store   storage.EntityStore
	Matcher *matcher.Service
	Now     func() time.Time
}

func NewProtocol(store storage.EntityStore, m *matcher.Service) *Protocol {
	return &Protocol{Store: store, Matcher: m, Now: time.Now}
}

// Dispatch finds the best driver for a waiting request and offers it. When nobody is
// eligible the request fails. It reports whether an offer was made.
func (p *Protocol) Dispatch(req *models.RideRequest, b *events.Batch) (bool, error) {
	res, ok := p.Matcher.Best(req, p.Store.AvailableDrivers())
	if !ok {
		return false, p.fail(req, b)
	}
	observability.MatchesTotal.Inc()
	return true, p.Offer(req, res.Driver, b)
}

// Offer proposes req to d. The driver stays available until it accepts.
func (p *Protocol) Offer(req *models.RideRequest, d *models.Driver, b *events.Batch) error {
	now := p.now()
	if err := req.Transition(models.RidePendingAcceptance, now); err != nil {
		return err
	}
	req.OfferedToDriverID = d.ID
	b.Add(events.ForRide(events.RideOffered, req, d.ID, p.Store.CurrentTick(), now))
	return nil
}

// Accept assigns the request to driverID, which must hold the outstanding offer.
func (p *Protocol) Accept(driverID, requestID string, b *events.Batch) (*models.RideRequest, error) {
	d, req, err := p.pending(driverID, requestID)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DriverAvailable {
		return nil, fmt.Errorf("driver %s is %s: %w", d.ID, d.Status, models.ErrInvalidState)
	}
	now := p.now()
	if err := req.Transition(models.RideAssigned, now); err != nil {
		return nil, err
	}
	if err := d.StartTrip(req.ID); err != nil {
		return nil, err
	}
	req.OfferedToDriverID = ""
	req.AssignedDriverID = d.ID
	observability.OffersTotal.WithLabelValues("accepted").Inc()
	observability.DriversOnTrip.Inc()
	b.Add(events.ForRide(events.RideAssigned, req, d.ID, p.Store.CurrentTick(), now))
	return req, nil
}

// Reject records driverID's refusal and falls back to the next best driver, failing the
// request once MaxRejections drivers have refused or nobody is left.
func (p *Protocol) Reject(driverID, requestID string, b *events.Batch) (*models.RideRequest, error) {
	_, req, err := p.pending(driverID, requestID)
	if err != nil {
		return nil, err
	}
	now := p.now()
	if err := req.Transition(models.RideWaiting, now); err != nil {
		return nil, err
	}
	req.OfferedToDriverID = ""
	req.RejectedBy = append(req.RejectedBy, driverID)
	observability.OffersTotal.WithLabelValues("rejected").Inc()
	b.Add(events.ForRide(events.OfferRejected, req, driverID, p.Store.CurrentTick(), now))

	if len(req.RejectedBy) >= MaxRejections {
		return req, p.fail(req, b)
	}
	if _, err := p.Dispatch(req, b); err != nil {
		return nil, err
	}
	return req, nil
}

func (p *Protocol) pending(driverID, requestID string) (*models.Driver, *models.RideRequest, error) {
	d, ok := p.Store.Driver(driverID)
	if !ok {
		return nil, nil, fmt.Errorf("driver %s: %w", driverID, models.ErrNotFound)
	}
	req, ok := p.Store.RideRequest(requestID)
	if !ok {
		return nil, nil, fmt.Errorf("ride %s: %w", requestID, models.ErrNotFound)
	}
	if req.Status != models.RidePendingAcceptance {
		return nil, nil, fmt.Errorf("ride %s is %s: %w", req.ID, req.Status, models.ErrInvalidState)
	}
	if req.OfferedToDriverID != driverID {
		return nil, nil, fmt.Errorf("ride %s, driver %s: %w", req.ID, driverID, models.ErrNotOffered)
	}
	return d, req, nil
}

func (p *Protocol) fail(req *models.RideRequest, b *events.Batch) error {
	now := p.now()
	if err := req.Transition(models.RideFailed, now); err != nil {
		return err
	}
	observability.RidesFinished.WithLabelValues(string(models.RideFailed)).Inc()
	b.Add(events.ForRide(events.RideFailed, req, "", p.Store.CurrentTick(), now))
	return nil
}

func (p *Protocol) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

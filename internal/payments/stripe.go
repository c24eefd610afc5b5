package payments

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/geo"
)

// Charger holds and captures fare authorizations.
type Charger interface {
	Hold(ctx context.Context, rideID string, amount int64, currency string) (string, error)
	Capture(ctx context.Context, paymentIntentID string) error
}

// StripeClient is a thin wrapper around stripe-go for PaymentIntent hold/capture/cancel flows.
type StripeClient struct{}

func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

// Hold creates a PaymentIntent with capture_method=manual to hold funds.
// The ride id doubles as idempotency key so a redelivered assignment never holds twice.
func (s *StripeClient) Hold(ctx context.Context, rideID string, amount int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.AddMetadata("ride_id", rideID)
	params.SetIdempotencyKey("hold-" + rideID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeClient) Capture(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Capture(paymentIntentID, &stripe.PaymentIntentCaptureParams{Params: stripe.Params{Context: ctx}})
	return err
}

// Fare prices a ride by its grid distance.
type Fare struct {
	Currency     string
	BaseCents    int64
	PerUnitCents int64
}

func (f Fare) Amount(e events.Event) int64 {
	if e.Pickup == nil || e.Dropoff == nil {
		return f.BaseCents
	}
	return f.BaseCents + f.PerUnitCents*int64(geo.Manhattan(*e.Pickup, *e.Dropoff))
}

// Sink turns ride lifecycle events into payment calls: a hold on assignment and a
// capture on completion. Assigned rides always complete, so nothing is released.
type Sink struct {
	Client Charger
	Fare   Fare
	Logger *slog.Logger

	mu    sync.Mutex
	holds map[string]string
}

func NewSink(client Charger, fare Fare, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{Client: client, Fare: fare, Logger: logger, holds: make(map[string]string)}
}

func (s *Sink) Name() string { return "payments" }

func (s *Sink) Publish(ctx context.Context, e events.Event) error {
	switch e.Type {
	case events.RideAssigned:
		amount := s.Fare.Amount(e)
		id, err := s.Client.Hold(ctx, e.RideID, amount, s.Fare.Currency)
		if err != nil {
			return fmt.Errorf("hold fare for ride %s: %w", e.RideID, err)
		}
		s.mu.Lock()
		s.holds[e.RideID] = id
		s.mu.Unlock()
		s.Logger.Info("fare held", "ride_id", e.RideID, "payment_intent", id, "amount", amount)
	case events.RideCompleted:
		id, ok := s.take(e.RideID)
		if !ok {
			return nil
		}
		if err := s.Client.Capture(ctx, id); err != nil {
			return fmt.Errorf("capture fare for ride %s: %w", e.RideID, err)
		}
	}
	return nil
}

// Held reports the payment intent currently held for a ride.
func (s *Sink) Held(rideID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.holds[rideID]
	return id, ok
}

func (s *Sink) take(rideID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.holds[rideID]
	delete(s.holds, rideID)
	return id, ok
}

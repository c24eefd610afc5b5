package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total ride event messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger(cfg.LogLevel, "ride-mirror")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	radapter := &redisAdapter{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		var e events.Event
		if err := json.Unmarshal(m.Value, &e); err != nil || e.Type == "" {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "offset", m.Offset, "error", err)
			continue
		}

		if err := updateRedisWithRetry(ctx, radapter, e, cfg.RedisTTL, 3, 200*time.Millisecond); err != nil {
			redisErrors.Inc()
			logger.Error("redis update failed", "type", e.Type, "ride_id", e.RideID, "driver_id", e.DriverID, "error", err)
			continue
		}
		redisUpdates.Inc()
	}
}

// RedisUpdater defines the small subset of redis operations we need for tests and production.
type RedisUpdater interface {
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return r.c.HSet(ctx, key, values).Err()
}

func (r *redisAdapter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.c.Expire(ctx, key, ttl).Err()
}

type hashUpdate struct {
	key    string
	values map[string]interface{}
}

// stateUpdates maps an event to the ride and driver hashes it changes.
func stateUpdates(e events.Event) []hashUpdate {
	var out []hashUpdate
	if e.RideID != "" && e.Type != events.DriverMoved {
		ride := map[string]interface{}{"status": string(e.Status), "rider_id": e.RiderID, "tick": e.Tick, "last_event": string(e.Type)}
		if e.DriverID != "" {
			ride["driver_id"] = e.DriverID
		}
		out = append(out, hashUpdate{key: "ride:state:" + e.RideID, values: ride})
	}
	if e.DriverID == "" {
		return out
	}
	driver := map[string]interface{}{"tick": e.Tick}
	switch e.Type {
	case events.RideAssigned, events.RiderPickedUp, events.DriverMoved:
		driver["status"] = string(models.DriverOnTrip)
		driver["ride_id"] = e.RideID
	case events.RideCompleted:
		driver["status"] = string(models.DriverAvailable)
		driver["ride_id"] = ""
	case events.RideOffered:
		driver["offered_ride_id"] = e.RideID
	case events.OfferRejected:
		driver["offered_ride_id"] = ""
	default:
		return out
	}
	if e.Location != nil {
		driver["x"] = e.Location.X
		driver["y"] = e.Location.Y
	}
	return append(out, hashUpdate{key: "driver:state:" + e.DriverID, values: driver})
}

// updateRedisWithRetry applies an event's hash updates with retry/backoff.
func updateRedisWithRetry(ctx context.Context, rc RedisUpdater, e events.Event, ttl time.Duration, attempts int, delay time.Duration) error {
	for _, u := range stateUpdates(e) {
		var err error
		for i := 0; i < attempts; i++ {
			if err = apply(ctx, rc, u, ttl); err == nil {
				break
			}
			if i == attempts-1 {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return nil
}

func apply(ctx context.Context, rc RedisUpdater, u hashUpdate, ttl time.Duration) error {
	if err := rc.HSet(ctx, u.key, u.values); err != nil {
		return err
	}
	if ttl > 0 {
		return rc.Expire(ctx, u.key, ttl)
	}
	return nil
}

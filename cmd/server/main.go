package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/engine"
	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/geo"
	httpapi "github.com/example/ride-dispatch/internal/http"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/payments"
	"github.com/example/ride-dispatch/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel, "ride-api")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws := dispatch.NewWSRegistry()
	sinks := []events.Sink{ws}
	var closers []func() error

	if len(cfg.KafkaBrokers) > 0 {
		k := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, k)
		closers = append(closers, k.Close)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.PGDSN != "" {
		j, err := storage.NewPostgresJournal(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("postgres journal disabled", "error", err)
		} else {
			if cfg.RunMigrations {
				migrate(ctx, j, logger)
			}
			sinks = append(sinks, j)
			closers = append(closers, j.Close)
		}
	}
	if cfg.OfferWebhookURL != "" {
		sinks = append(sinks, dispatch.NewWebhookNotifier(cfg.OfferWebhookURL))
	}
	if cfg.StripeAPIKey != "" {
		fare := payments.Fare{
			Currency:     cfg.FareCurrency,
			BaseCents:    int64(cfg.FareBaseCents),
			PerUnitCents: int64(cfg.FarePerUnitCents),
		}
		sinks = append(sinks, payments.NewSink(payments.NewStripeClient(cfg.StripeAPIKey), fare, logger))
	}

	bus := events.NewBus(cfg.EventQueueSize, logger, sinks...)
	bus.Start()

	eng := engine.New(storage.NewMemoryStore(),
		engine.WithPublisher(bus),
		engine.WithLogger(logger),
		engine.WithRecentWindow(cfg.RecentWindow),
	)
	api := httpapi.NewServer(eng, ws, geo.Grid{Size: cfg.GridSize}, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("ride-dispatch listening", "addr", cfg.HTTPAddr, "grid_size", cfg.GridSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := bus.Close(shutdownCtx); err != nil {
		logger.Error("event bus drain", "error", err)
	}
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Error("close sink", "error", err)
		}
	}
}

func migrate(ctx context.Context, j *storage.PostgresJournal, logger *slog.Logger) {
	name := "001_create_ride_events.sql"
	b, err := os.ReadFile(filepath.Join("migrations", name))
	if err != nil {
		logger.Error("read migration", "file", name, "error", err)
		return
	}
	if err := j.Migrate(ctx, string(b)); err != nil {
		logger.Error("migration exec", "file", name, "error", err)
		return
	}
	logger.Info("migration applied", "file", name)
}

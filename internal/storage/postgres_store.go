package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/events"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresJournal appends every ride event to the ride_events table. It is an audit
// trail only; the engine never reads it back.
type PostgresJournal struct {
	db   *sql.DB
	exec execer
}

func NewPostgresJournal(ctx context.Context, dsn string) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresJournal{db: db, exec: db}, nil
}

func (p *PostgresJournal) Name() string { return "postgres" }

const insertEvent = `INSERT INTO ride_events(event_type, ride_id, rider_id, driver_id, status, x, y, tick, occurred_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`

func (p *PostgresJournal) Publish(ctx context.Context, e events.Event) error {
	var x, y sql.NullInt64
	if e.Location != nil {
		x = sql.NullInt64{Int64: int64(e.Location.X), Valid: true}
		y = sql.NullInt64{Int64: int64(e.Location.Y), Valid: true}
	}
	_, err := p.exec.ExecContext(ctx, insertEvent,
		string(e.Type), nullString(e.RideID), nullString(e.RiderID), nullString(e.DriverID),
		nullString(string(e.Status)), x, y, e.Tick, e.At)
	return err
}

// Migrate applies a schema script in a single statement batch.
func (p *PostgresJournal) Migrate(ctx context.Context, script string) error {
	_, err := p.exec.ExecContext(ctx, script)
	return err
}

func (p *PostgresJournal) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ride-dispatch/internal/events"
)

// WSSession represents a connected driver session
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(ctx context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(dl)
	}
	return s.conn.WriteJSON(v)
}

// WSRegistry holds driver sessions and pushes each driver the events that concern it.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[driverID] = &WSSession{conn: conn}
}

// Remove drops the driver's session if it still belongs to conn.
func (r *WSRegistry) Remove(driverID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[driverID]; ok && s.conn == conn {
		delete(r.sessions, driverID)
	}
}

func (r *WSRegistry) Connected(driverID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[driverID]
	return ok
}

// Send writes v to the driver's session.
func (r *WSRegistry) Send(ctx context.Context, driverID string, v any) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.Send(ctx, v)
}

func (r *WSRegistry) Name() string { return "websocket" }

// Publish forwards e to the driver it names. Drivers without a session are skipped.
func (r *WSRegistry) Publish(ctx context.Context, e events.Event) error {
	if e.DriverID == "" || e.Type == events.DriverMoved {
		return nil
	}
	if err := r.Send(ctx, e.DriverID, e); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	return nil
}

var ErrNoSession = errors.New("no ws session")

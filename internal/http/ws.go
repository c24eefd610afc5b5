package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// offerReply is what a connected driver sends to answer an offer.
type offerReply struct {
	RequestID string `json:"request_id"`
	Accept    bool   `json:"accept"`
}

// handleWS registers a driver session. Events for the driver are pushed by the registry;
// replies read from the socket are applied as offer responses.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	if _, err := s.Engine.Driver(id); err != nil {
		writeError(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "driver_id", id, "error", err)
		return
	}
	s.WSReg.Add(id, conn)
	s.logger.Info("driver connected", "driver_id", id)
	defer func() {
		s.WSReg.Remove(id, conn)
		_ = conn.Close()
		s.logger.Info("driver disconnected", "driver_id", id)
	}()

	for {
		var msg offerReply
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		res, err := s.Engine.OfferResponse(id, msg.RequestID, msg.Accept)
		reply := map[string]any{"type": "offer_response", "success": res.Success, "message": res.Message}
		if err != nil {
			reply["error"] = errorCode(err)
		} else {
			reply["ride"] = res.Ride
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err = s.WSReg.Send(ctx, id, reply)
		cancel()
		if err != nil {
			return
		}
	}
}

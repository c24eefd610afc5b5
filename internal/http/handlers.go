package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/engine"
	"github.com/example/ride-dispatch/internal/eta"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
)

type Server struct {
	Engine *engine.Engine
	WSReg  *dispatch.WSRegistry
	Grid   geo.Grid
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(eng *engine.Engine, ws *dispatch.WSRegistry, grid geo.Grid, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if ws == nil {
		ws = dispatch.NewWSRegistry()
	}
	s := &Server{Engine: eng, WSReg: ws, Grid: grid, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/drivers", s.handleCreateDriver).Methods("POST")
	s.mux.HandleFunc("/drivers", s.handleListDrivers).Methods("GET")
	s.mux.HandleFunc("/drivers/{id}", s.handleDeleteDriver).Methods("DELETE")
	s.mux.HandleFunc("/drivers/{id}/online", s.handleDriverOnline(true)).Methods("POST")
	s.mux.HandleFunc("/drivers/{id}/offline", s.handleDriverOnline(false)).Methods("POST")

	s.mux.HandleFunc("/riders", s.handleCreateRider).Methods("POST")
	s.mux.HandleFunc("/riders", s.handleListRiders).Methods("GET")
	s.mux.HandleFunc("/riders/{id}", s.handleDeleteRider).Methods("DELETE")

	s.mux.HandleFunc("/rides/request", s.handleRideRequest).Methods("POST")
	s.mux.HandleFunc("/rides", s.handleListRides).Methods("GET")
	s.mux.HandleFunc("/rides/{id}", s.handleGetRide).Methods("GET")
	s.mux.HandleFunc("/rides/{id}/accept", s.handleOfferResponse(true)).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/reject", s.handleOfferResponse(false)).Methods("POST")

	s.mux.HandleFunc("/tick", s.handleTick).Methods("POST")
	s.mux.HandleFunc("/state", s.handleState).Methods("GET")
	s.mux.HandleFunc("/grid", s.handleState).Methods("GET")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/drivers/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type createDriverRequest struct {
	Name     string          `json:"name"`
	Location models.Location `json:"location"`
}

type createRiderRequest struct {
	Name            string          `json:"name"`
	PickupLocation  models.Location `json:"pickup_location"`
	DropoffLocation models.Location `json:"dropoff_location"`
}

type rideRequestBody struct {
	RiderID string `json:"rider_id"`
}

type driverActionBody struct {
	DriverID string `json:"driver_id"`
}

func (s *Server) handleCreateDriver(w http.ResponseWriter, r *http.Request) {
	var body createDriverRequest
	if !decode(w, r, &body) {
		return
	}
	if err := s.checkBounds("location", body.Location); err != nil {
		writeError(w, err)
		return
	}
	d := s.Engine.AddDriver(body.Name, body.Location)
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"drivers": s.Engine.Drivers()})
}

func (s *Server) handleDeleteDriver(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.RemoveDriver(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "driver removed"})
}

func (s *Server) handleDriverOnline(online bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := s.Engine.SetDriverOnline(mux.Vars(r)["id"], online)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (s *Server) handleCreateRider(w http.ResponseWriter, r *http.Request) {
	var body createRiderRequest
	if !decode(w, r, &body) {
		return
	}
	if err := s.checkBounds("pickup_location", body.PickupLocation); err != nil {
		writeError(w, err)
		return
	}
	if err := s.checkBounds("dropoff_location", body.DropoffLocation); err != nil {
		writeError(w, err)
		return
	}
	rider := s.Engine.AddRider(body.Name, body.PickupLocation, body.DropoffLocation)
	writeJSON(w, http.StatusCreated, rider)
}

func (s *Server) handleListRiders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"riders": s.Engine.Riders()})
}

func (s *Server) handleDeleteRider(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.RemoveRider(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "rider removed"})
}

func (s *Server) handleRideRequest(w http.ResponseWriter, r *http.Request) {
	var body rideRequestBody
	if !decode(w, r, &body) {
		return
	}
	ride, err := s.Engine.RequestRide(body.RiderID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"ride": ride, "message": "ride request processed"}
	if ride.OfferedToDriverID != "" {
		if d, err := s.Engine.Driver(ride.OfferedToDriverID); err == nil {
			resp["estimate"] = eta.ForRide(d.Location, ride.Pickup, ride.Dropoff)
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ride_requests": s.Engine.Rides()})
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Engine.Ride(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleOfferResponse(accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body driverActionBody
		if !decode(w, r, &body) {
			return
		}
		res, err := s.Engine.OfferResponse(body.DriverID, mux.Vars(r)["id"], accept)
		if err != nil {
			writeJSON(w, statusFor(err), map[string]any{"success": false, "message": res.Message, "error": errorCode(err)})
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	res := s.Engine.Tick()
	writeJSON(w, http.StatusOK, map[string]any{
		"current_tick":  res.CurrentTick,
		"moved_drivers": res.MovedDrivers,
		"message":       fmt.Sprintf("advanced to tick %d", res.CurrentTick),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Snapshot())
}

func (s *Server) checkBounds(field string, l models.Location) error {
	if s.Grid.Contains(l) {
		return nil
	}
	return fmt.Errorf("%s (%d,%d) must be within %dx%d grid: %w", field, l.X, l.Y, s.Grid.Size, s.Grid.Size, models.ErrOutOfBounds)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": errorCode(err), "message": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotOffered):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrOutOfBounds):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrNotOffered):
		return "not_offered"
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrInvalidTransition):
		return "invalid_state"
	case errors.Is(err, models.ErrOutOfBounds):
		return "out_of_bounds"
	default:
		return "internal"
	}
}

package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-assist/internal/auth"
	"github.com/example/ride-assist/internal/dispatch"
	"github.com/example/ride-assist/internal/lifecycle"
	"github.com/example/ride-assist/internal/models"
)

// Server is the presentation layer over the lifecycle engine. It never
// touches ledger or registry internals; everything goes through engine
// operations and comes back as a result or a typed error.
type Server struct {
	engine *lifecycle.Engine
	tokens *auth.TokenService
	wsreg  *dispatch.WSRegistry
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(engine *lifecycle.Engine, tokens *auth.TokenService, wsreg *dispatch.WSRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, tokens: tokens, wsreg: wsreg, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/passengers", s.handlePassengerRegister).Methods("POST")
	s.mux.HandleFunc("/api/v1/passengers/login", s.handlePassengerLogin).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers/login", s.handleDriverLogin).Methods("POST")
	s.mux.HandleFunc("/api/v1/admin/login", s.handleAdminLogin).Methods("POST")

	s.mux.HandleFunc("/api/v1/rides", s.authed(auth.RolePassenger, s.handleSubmitRide)).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/status", s.authed(auth.RolePassenger, s.handleRideStatus)).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/rate", s.authed(auth.RolePassenger, s.handleRateRide)).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/pending", s.authed(auth.RoleDriver, s.handlePendingRides)).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/complete", s.authed(auth.RoleDriver, s.handleCompleteRide)).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/history", s.authed(auth.RoleAdmin, s.handleHistory)).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/history/{index}", s.authed(auth.RoleAdmin, s.handleDeleteHistory)).Methods("DELETE")
	s.mux.HandleFunc("/api/v1/rides", s.authed(auth.RoleAdmin, s.handleOpenRides)).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/{id}/accept", s.authed(auth.RoleDriver, s.handleAcceptRide)).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{id}/decline", s.authed(auth.RoleDriver, s.handleDeclineRide)).Methods("POST")

	s.mux.HandleFunc("/api/v1/drivers", s.authed(auth.RoleAdmin, s.handleRegisterDriver)).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers", s.authed(auth.RoleAdmin, s.handleDriverList)).Methods("GET")
	s.mux.HandleFunc("/api/v1/drivers/me", s.authed(auth.RoleDriver, s.handleDriverStats)).Methods("GET")
	s.mux.HandleFunc("/api/v1/drivers/availability", s.authed(auth.RoleDriver, s.handleDriverAvailability)).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers/{id}", s.authed(auth.RoleAdmin, s.handleRemoveDriver)).Methods("DELETE")

	s.mux.HandleFunc("/ws/drivers", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handlePassengerRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName    string `json:"full_name"`
		PhoneNumber string `json:"phone_number"`
		Password    string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	p, err := s.engine.RegisterPassenger(r.Context(), req.FullName, req.PhoneNumber, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token, err := s.tokens.Issue(auth.Claims{UserID: p.ID, Name: p.FullName, Phone: p.PhoneNumber, Role: auth.RolePassenger})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, 201, map[string]any{"passenger": p, "token": token})
}

func (s *Server) handlePassengerLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		Password    string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	p, err := s.engine.AuthenticatePassenger(r.Context(), req.PhoneNumber, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token, err := s.tokens.Issue(auth.Claims{UserID: p.ID, Name: p.FullName, Phone: p.PhoneNumber, Role: auth.RolePassenger})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"passenger": p, "token": token})
}

func (s *Server) handleDriverLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	d, err := s.engine.AuthenticateDriver(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token, err := s.tokens.Issue(auth.Claims{UserID: d.ID, Name: d.Name, Role: auth.RoleDriver})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"driver": d, "token": token})
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	a, err := s.engine.AuthenticateAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token, err := s.tokens.Issue(auth.Claims{UserID: a.ID, Name: a.Username, Role: auth.RoleAdmin})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"token": token})
}

func (s *Server) handleSubmitRide(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	p := &models.Passenger{ID: claims.UserID, FullName: claims.Name, PhoneNumber: claims.Phone}
	ride, err := s.engine.Submit(r.Context(), p, req.Origin, req.Destination)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// nudge connected drivers, best-effort
	if s.wsreg != nil {
		s.wsreg.Broadcast(dispatch.OfferFromRide(ride))
	}
	writeJSON(w, 201, ride)
}

func (s *Server) handleRideStatus(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	writeJSON(w, 200, s.engine.PassengerStatus(claims.Phone))
}

func (s *Server) handleRateRide(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req struct {
		Stars int `json:"stars"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	ride, err := s.engine.Rate(r.Context(), claims.Phone, req.Stars)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, 200, ride)
}

func (s *Server) handlePendingRides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.engine.PendingRequests())
}

func (s *Server) handleAcceptRide(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	rideID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	ride, err := s.engine.Accept(r.Context(), rideID, claims.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, 200, ride)
}

func (s *Server) handleDeclineRide(w http.ResponseWriter, r *http.Request) {
	rideID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := s.engine.Decline(r.Context(), rideID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(204)
}

func (s *Server) handleCompleteRide(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	ride, err := s.engine.Complete(r.Context(), claims.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, 200, ride)
}

func (s *Server) handleOpenRides(w http.ResponseWriter, r *http.Request) {
	pending, active, awaiting := s.engine.OpenRides()
	writeJSON(w, 200, map[string]any{
		"pending":         pending,
		"active":          active,
		"awaiting_rating": awaiting,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.engine.History())
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "invalid index", 400)
		return
	}
	if err := s.engine.DeleteHistory(r.Context(), index); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(204)
}

func (s *Server) handleRegisterDriver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Vehicle    string `json:"vehicle"`
		PriceRange string `json:"price_range"`
		Username   string `json:"username"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	d, err := s.engine.RegisterDriver(r.Context(), req.Name, req.Vehicle, req.PriceRange, req.Username, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, 201, d)
}

func (s *Server) handleRemoveDriver(w http.ResponseWriter, r *http.Request) {
	driverID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := s.engine.RemoveDriver(r.Context(), driverID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(204)
}

func (s *Server) handleDriverList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.engine.DriverList())
}

func (s *Server) handleDriverStats(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	d, err := s.engine.DriverStats(claims.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, 200, d)
}

func (s *Server) handleDriverAvailability(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := s.engine.SetDriverAvailability(r.Context(), claims.UserID, req.Available); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(204)
}

var upgrader = websocket.Upgrader{}

// handleWS upgrades a driver connection; the session token rides in the
// query string because browsers cannot set headers on WS dials.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil || claims.Role != auth.RoleDriver {
		http.Error(w, "unauthorized", 401)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", 400)
		return
	}
	s.wsreg.Add(claims.UserID, conn)
	go func() {
		defer s.wsreg.Remove(claims.UserID)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses; every error becomes a
// human-readable message and the caller stays in business.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *lifecycle.ValidationError
	var serr *lifecycle.StorageError
	var status int
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, lifecycle.ErrNotFound),
		errors.Is(err, lifecycle.ErrNoActiveRide),
		errors.Is(err, lifecycle.ErrNoRideToRate):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidState),
		errors.Is(err, lifecycle.ErrDriverUnavailable),
		errors.Is(err, lifecycle.ErrDuplicateContact),
		errors.Is(err, lifecycle.ErrDuplicateUsername),
		errors.Is(err, lifecycle.ErrUnratedRide),
		errors.Is(err, lifecycle.ErrDriverOnRide):
		status = http.StatusConflict
	case errors.As(err, &serr):
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[key], 10, 64)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }

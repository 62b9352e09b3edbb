package dispatch

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ride-assist/internal/models"
)

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no ws session" }

// Offer is the payload pushed to connected drivers when a new ride
// request enters the pending set.
type Offer struct {
	RideID      int64  `json:"ride_id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Fare        int    `json:"fare"`
}

func OfferFromRide(r *models.RideRequest) Offer {
	return Offer{RideID: r.ID, Origin: r.Origin, Destination: r.Destination, Fare: r.Fare}
}

// WSSession is one connected driver app.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(o Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(o)
}

// WSRegistry holds driver sessions keyed by driver id.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[int64]*WSSession
	log      *slog.Logger
}

func NewWSRegistry(log *slog.Logger) *WSRegistry {
	if log == nil {
		log = slog.Default()
	}
	return &WSRegistry{sessions: make(map[int64]*WSSession), log: log}
}

func (r *WSRegistry) Add(driverID int64, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[driverID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(driverID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, driverID)
}

// Notify pushes an offer to one driver's session.
func (r *WSRegistry) Notify(driverID int64, o Offer) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(o); err != nil {
		r.log.Warn("ws send failed", "driver_id", driverID, "error", err)
		return err
	}
	return nil
}

// Broadcast pushes an offer to every connected driver, best-effort.
func (r *WSRegistry) Broadcast(o Offer) {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		_ = r.Notify(id, o)
	}
}

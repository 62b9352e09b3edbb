package ride

import (
	"sort"

	"github.com/example/ride-assist/internal/models"
)

// Ledger partitions ride requests by status: pending requests, active
// (accepted) rides, rides awaiting their passenger's rating, and the
// append-only history of rated rides. A ride id lives in at most one
// partition at any time. The awaiting partition is keyed by passenger
// phone number and holds at most one ride per passenger.
//
// The ledger carries no lock of its own; the lifecycle engine serializes
// access together with the driver registry so accept/rate stay atomic
// across both aggregates.
type Ledger struct {
	pending  map[int64]*models.RideRequest
	active   map[int64]*models.RideRequest
	awaiting map[string]*models.RideRequest
	history  []models.RideRequest
}

func NewLedger() *Ledger {
	return &Ledger{
		pending:  make(map[int64]*models.RideRequest),
		active:   make(map[int64]*models.RideRequest),
		awaiting: make(map[string]*models.RideRequest),
	}
}

func (l *Ledger) AddPending(r *models.RideRequest) {
	l.pending[r.ID] = r
}

func (l *Ledger) PendingByID(id int64) (*models.RideRequest, bool) {
	r, ok := l.pending[id]
	return r, ok
}

// RemovePending drops a pending request, the decline path. Reports false
// when the id is not in the pending partition.
func (l *Ledger) RemovePending(id int64) bool {
	if _, ok := l.pending[id]; !ok {
		return false
	}
	delete(l.pending, id)
	return true
}

// Activate moves a ride from pending to active. The caller stamps driver
// assignment and status before or after; the ledger only guards partition
// membership.
func (l *Ledger) Activate(id int64) (*models.RideRequest, bool) {
	r, ok := l.pending[id]
	if !ok {
		return nil, false
	}
	delete(l.pending, id)
	l.active[id] = r
	return r, true
}

// AddActive restores an accepted ride at load time.
func (l *Ledger) AddActive(r *models.RideRequest) {
	l.active[r.ID] = r
}

// ActiveByDriver returns the active ride assigned to the given driver id.
func (l *Ledger) ActiveByDriver(driverID int64) (*models.RideRequest, bool) {
	for _, r := range l.active {
		if r.DriverID == driverID {
			return r, true
		}
	}
	return nil, false
}

// Park moves an active ride into the awaiting-rating slot for its
// passenger. Reports false if the ride is not active or the passenger
// already has an unrated ride parked.
func (l *Ledger) Park(id int64) (*models.RideRequest, bool) {
	r, ok := l.active[id]
	if !ok {
		return nil, false
	}
	if _, taken := l.awaiting[r.PassengerPhone]; taken {
		return nil, false
	}
	delete(l.active, id)
	l.awaiting[r.PassengerPhone] = r
	return r, true
}

// AddAwaiting restores an awaiting-rating ride at load time.
func (l *Ledger) AddAwaiting(r *models.RideRequest) {
	l.awaiting[r.PassengerPhone] = r
}

func (l *Ledger) Awaiting(phone string) (*models.RideRequest, bool) {
	r, ok := l.awaiting[phone]
	return r, ok
}

// AwaitingByDriver returns the awaiting-rating ride assigned to the
// given driver id.
func (l *Ledger) AwaitingByDriver(driverID int64) (*models.RideRequest, bool) {
	for _, r := range l.awaiting {
		if r.DriverID == driverID {
			return r, true
		}
	}
	return nil, false
}

// Settle removes the awaiting-rating ride for a passenger and appends it
// to history. The caller sets rating and status first.
func (l *Ledger) Settle(phone string) (*models.RideRequest, bool) {
	r, ok := l.awaiting[phone]
	if !ok {
		return nil, false
	}
	delete(l.awaiting, phone)
	l.history = append(l.history, *r)
	return r, true
}

// AddHistory restores a rated ride at load time.
func (l *Ledger) AddHistory(r models.RideRequest) {
	l.history = append(l.history, r)
}

// RemoveHistory deletes the history entry at the given zero-based index.
func (l *Ledger) RemoveHistory(i int) bool {
	if i < 0 || i >= len(l.history) {
		return false
	}
	l.history = append(l.history[:i], l.history[i+1:]...)
	return true
}

func (l *Ledger) PendingRides() []models.RideRequest  { return sortedByID(l.pending) }
func (l *Ledger) ActiveRides() []models.RideRequest   { return sortedByID(l.active) }
func (l *Ledger) AwaitingRides() []models.RideRequest {
	out := make([]models.RideRequest, 0, len(l.awaiting))
	for _, r := range l.awaiting {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *Ledger) History() []models.RideRequest {
	out := make([]models.RideRequest, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Ledger) Counts() (pending, active, awaiting, history int) {
	return len(l.pending), len(l.active), len(l.awaiting), len(l.history)
}

func sortedByID(m map[int64]*models.RideRequest) []models.RideRequest {
	out := make([]models.RideRequest, 0, len(m))
	for _, r := range m {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

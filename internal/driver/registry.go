package driver

import (
	"errors"
	"sort"

	"github.com/example/ride-assist/internal/models"
)

var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrUnknownDriver     = errors.New("unknown driver")
	ErrAlreadyReserved   = errors.New("driver already reserved")
)

// Registry owns all driver records, indexed by id and by username.
// Availability flips happen only here so the "unavailable iff on an
// accepted ride" invariant has a single owner.
//
// Like the ride ledger, the registry is not safe for concurrent use on
// its own; the lifecycle engine holds the lock.
type Registry struct {
	byID       map[int64]*models.Driver
	byUsername map[string]*models.Driver
}

func NewRegistry() *Registry {
	return &Registry{
		byID:       make(map[int64]*models.Driver),
		byUsername: make(map[string]*models.Driver),
	}
}

// Add registers a driver record. The id must already be assigned by the
// persistence layer.
func (g *Registry) Add(d *models.Driver) error {
	if _, ok := g.byUsername[d.Username]; ok {
		return ErrDuplicateUsername
	}
	g.byID[d.ID] = d
	g.byUsername[d.Username] = d
	return nil
}

func (g *Registry) ByID(id int64) (*models.Driver, bool) {
	d, ok := g.byID[id]
	return d, ok
}

func (g *Registry) ByUsername(username string) (*models.Driver, bool) {
	d, ok := g.byUsername[username]
	return d, ok
}

func (g *Registry) Remove(id int64) bool {
	d, ok := g.byID[id]
	if !ok {
		return false
	}
	delete(g.byID, id)
	delete(g.byUsername, d.Username)
	return true
}

// Reserve flips an available driver to unavailable. Called on accept.
func (g *Registry) Reserve(id int64) error {
	d, ok := g.byID[id]
	if !ok {
		return ErrUnknownDriver
	}
	if !d.Available {
		return ErrAlreadyReserved
	}
	d.Available = false
	return nil
}

// Release flips a driver back to available unconditionally. Called when
// the passenger rates the ride, not when the driver completes it.
func (g *Registry) Release(id int64) error {
	d, ok := g.byID[id]
	if !ok {
		return ErrUnknownDriver
	}
	d.Available = true
	return nil
}

// RecordCompletion applies the earnings and rating update for one rated
// ride. The running average uses the count of previously rated rides, so
// it must run before the ride counter moves. Not idempotent: calling it
// twice for the same ride double-counts.
func (g *Registry) RecordCompletion(id int64, fare int, stars int) error {
	d, ok := g.byID[id]
	if !ok {
		return ErrUnknownDriver
	}
	old := float64(d.TotalRides)
	d.AverageRating = (d.AverageRating*old + float64(stars)) / (old + 1)
	d.TotalEarnings += float64(fare)
	d.TotalRides++
	return nil
}

func (g *Registry) Len() int { return len(g.byID) }

// All returns driver records ordered by id.
func (g *Registry) All() []models.Driver {
	out := make([]models.Driver, 0, len(g.byID))
	for _, d := range g.byID {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

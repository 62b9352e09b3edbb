package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/example/ride-assist/internal/models"
)

// ErrNotFound is returned by lookups when no record matches.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by creates that hit a uniqueness constraint,
// such as a passenger phone number or driver username already on file.
var ErrDuplicate = errors.New("duplicate record")

// Store is the persistence gateway for passengers, drivers, rides and
// admin credentials. Creates return the generated integer id; every
// write may fail and the failure propagates to the caller.
type Store interface {
	CreatePassenger(ctx context.Context, p *models.Passenger) (int64, error)
	PassengerByPhone(ctx context.Context, phone string) (*models.Passenger, error)

	CreateDriver(ctx context.Context, d *models.Driver) (int64, error)
	UpdateDriver(ctx context.Context, d *models.Driver) error
	DeleteDriver(ctx context.Context, id int64) error
	Drivers(ctx context.Context) ([]models.Driver, error)

	CreateRide(ctx context.Context, r *models.RideRequest) (int64, error)
	UpdateRide(ctx context.Context, r *models.RideRequest) error
	DeleteRide(ctx context.Context, id int64) error
	RidesByStatus(ctx context.Context, status models.RideStatus) ([]models.RideRequest, error)

	CreateAdmin(ctx context.Context, a *models.Admin) (int64, error)
	AdminByUsername(ctx context.Context, username string) (*models.Admin, error)
}

// MemoryStore keeps everything in process memory. Used for local runs
// without Postgres and for tests.
type MemoryStore struct {
	mu         sync.RWMutex
	passengers map[int64]models.Passenger
	drivers    map[int64]models.Driver
	rides      map[int64]models.RideRequest
	admins     map[int64]models.Admin
	nextID     map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		passengers: make(map[int64]models.Passenger),
		drivers:    make(map[int64]models.Driver),
		rides:      make(map[int64]models.RideRequest),
		admins:     make(map[int64]models.Admin),
		nextID:     make(map[string]int64),
	}
}

func (m *MemoryStore) next(kind string) int64 {
	m.nextID[kind]++
	return m.nextID[kind]
}

func (m *MemoryStore) CreatePassenger(_ context.Context, p *models.Passenger) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next("passenger")
	cp := *p
	cp.ID = id
	m.passengers[id] = cp
	return id, nil
}

func (m *MemoryStore) PassengerByPhone(_ context.Context, phone string) (*models.Passenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.passengers {
		if p.PhoneNumber == phone {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateDriver(_ context.Context, d *models.Driver) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next("driver")
	cp := *d
	cp.ID = id
	m.drivers[id] = cp
	return id, nil
}

func (m *MemoryStore) UpdateDriver(_ context.Context, d *models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[d.ID]; !ok {
		return ErrNotFound
	}
	m.drivers[d.ID] = *d
	return nil
}

func (m *MemoryStore) DeleteDriver(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[id]; !ok {
		return ErrNotFound
	}
	delete(m.drivers, id)
	return nil
}

func (m *MemoryStore) Drivers(_ context.Context) ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	return out, nil
}

func (m *MemoryStore) CreateRide(_ context.Context, r *models.RideRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next("ride")
	cp := *r
	cp.ID = id
	m.rides[id] = cp
	return id, nil
}

func (m *MemoryStore) UpdateRide(_ context.Context, r *models.RideRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[r.ID]; !ok {
		return ErrNotFound
	}
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) DeleteRide(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[id]; !ok {
		return ErrNotFound
	}
	delete(m.rides, id)
	return nil
}

func (m *MemoryStore) RidesByStatus(_ context.Context, status models.RideStatus) ([]models.RideRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RideRequest
	for _, r := range m.rides {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateAdmin(_ context.Context, a *models.Admin) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next("admin")
	cp := *a
	cp.ID = id
	m.admins[id] = cp
	return id, nil
}

func (m *MemoryStore) AdminByUsername(_ context.Context, username string) (*models.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.admins {
		if a.Username == username {
			cp := a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/ride-assist/internal/auth"
	"github.com/example/ride-assist/internal/driver"
	"github.com/example/ride-assist/internal/models"
	"github.com/example/ride-assist/internal/observability"
	"github.com/example/ride-assist/internal/ride"
	"github.com/example/ride-assist/internal/storage"
)

// Sink receives ride lifecycle events. Publishing is best-effort: a
// failed publish is logged, never surfaced to the caller.
type Sink interface {
	Publish(ev models.RideEvent) error
}

// Engine is the ride lifecycle state machine. It owns one ride ledger
// and one driver registry behind a single mutex, so accept and rate stay
// atomic across both aggregates. Persistence writes happen before the
// in-memory mutation: a storage failure leaves memory exactly as it was.
type Engine struct {
	mu      sync.Mutex
	ledger  *ride.Ledger
	drivers *driver.Registry
	store   storage.Store
	fares   *FareQuoter
	events  Sink
	log     *slog.Logger
}

func New(store storage.Store, fares *FareQuoter, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		ledger:  ride.NewLedger(),
		drivers: driver.NewRegistry(),
		store:   store,
		fares:   fares,
		log:     log,
	}
}

// SetEventSink attaches an optional lifecycle event publisher.
func (e *Engine) SetEventSink(s Sink) { e.events = s }

var seedDrivers = []models.Driver{
	{Name: "Juan Dela Cruz", Vehicle: "Yamaha Mio 125", PriceRange: "45-70", Username: "driver1"},
	{Name: "Ana Marie Campos", Vehicle: "Honda Beat 110", PriceRange: "50-75", Username: "driver2"},
	{Name: "Carlos Reyes", Vehicle: "Suzuki Skydrive", PriceRange: "40-65", Username: "driver3"},
}

const (
	seedDriverPassword = "pass1"
	seedAdminUsername  = "admin"
	seedAdminPassword  = "admin123"
)

// Load restores drivers, open rides and history from the store, seeding
// default drivers and the admin credential on an empty store.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	drs, err := e.store.Drivers(ctx)
	if err != nil {
		return storeErr("load drivers", err)
	}
	if len(drs) == 0 {
		drs, err = e.seedDrivers(ctx)
		if err != nil {
			return err
		}
	}
	for i := range drs {
		d := drs[i]
		if err := e.drivers.Add(&d); err != nil {
			return err
		}
	}

	if _, err := e.store.AdminByUsername(ctx, seedAdminUsername); errors.Is(err, storage.ErrNotFound) {
		hash, err := auth.HashPassword(seedAdminPassword)
		if err != nil {
			return err
		}
		if _, err := e.store.CreateAdmin(ctx, &models.Admin{Username: seedAdminUsername, PasswordHash: hash}); err != nil {
			return storeErr("seed admin", err)
		}
	} else if err != nil {
		return storeErr("load admin", err)
	}

	for status, restore := range map[models.RideStatus]func(*models.RideRequest){
		models.StatusPending:        e.ledger.AddPending,
		models.StatusAccepted:       e.ledger.AddActive,
		models.StatusAwaitingRating: e.ledger.AddAwaiting,
	} {
		rs, err := e.store.RidesByStatus(ctx, status)
		if err != nil {
			return storeErr("load rides", err)
		}
		for i := range rs {
			restore(&rs[i])
			if status == models.StatusAccepted {
				observability.ActiveRides.Inc()
			}
		}
	}
	rated, err := e.store.RidesByStatus(ctx, models.StatusRated)
	if err != nil {
		return storeErr("load history", err)
	}
	for _, r := range rated {
		e.ledger.AddHistory(r)
	}

	p, a, w, h := e.ledger.Counts()
	e.log.Info("state loaded", "drivers", e.drivers.Len(), "pending", p, "active", a, "awaiting_rating", w, "history", h)
	return nil
}

func (e *Engine) seedDrivers(ctx context.Context) ([]models.Driver, error) {
	hash, err := auth.HashPassword(seedDriverPassword)
	if err != nil {
		return nil, err
	}
	out := make([]models.Driver, 0, len(seedDrivers))
	for _, d := range seedDrivers {
		d.PasswordHash = hash
		d.Available = true
		id, err := e.store.CreateDriver(ctx, &d)
		if err != nil {
			return nil, storeErr("seed driver", err)
		}
		d.ID = id
		out = append(out, d)
	}
	e.log.Info("seeded default drivers", "count", len(out))
	return out, nil
}

// Submit creates a PENDING ride request for a passenger. The fare is
// drawn once here; it never changes afterwards.
func (e *Engine) Submit(ctx context.Context, p *models.Passenger, origin, destination string) (*models.RideRequest, error) {
	if err := required("origin", origin); err != nil {
		return nil, err
	}
	if err := required("destination", destination); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := &models.RideRequest{
		PassengerID:    p.ID,
		PassengerName:  p.FullName,
		PassengerPhone: p.PhoneNumber,
		Origin:         strings.TrimSpace(origin),
		Destination:    strings.TrimSpace(destination),
		Fare:           e.fares.Quote(),
		Status:         models.StatusPending,
		DriverID:       models.NoDriver,
		CreatedAt:      time.Now(),
	}
	id, err := e.store.CreateRide(ctx, r)
	if err != nil {
		return nil, storeErr("create ride", err)
	}
	r.ID = id
	e.ledger.AddPending(r)

	observability.RidesSubmitted.Inc()
	e.publish(models.RideEvent{Type: models.EventSubmitted, RideID: r.ID, PassengerID: r.PassengerID, Fare: r.Fare, Status: r.Status})
	e.log.Info("ride submitted", "ride_id", r.ID, "passenger_id", p.ID, "fare", r.Fare)
	cp := *r
	return &cp, nil
}

// Accept assigns a pending ride to an available driver. The availability
// check and the reservation happen under the engine lock, so two accepts
// cannot double-book the same driver.
func (e *Engine) Accept(ctx context.Context, rideID, driverID int64) (*models.RideRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.ledger.PendingByID(rideID)
	if !ok {
		return nil, ErrInvalidState
	}
	d, ok := e.drivers.ByID(driverID)
	if !ok {
		return nil, ErrNotFound
	}
	if !d.Available {
		return nil, ErrDriverUnavailable
	}

	cp := *r
	cp.DriverID = d.ID
	cp.DriverName = d.Name
	cp.Status = models.StatusAccepted
	if err := e.store.UpdateRide(ctx, &cp); err != nil {
		return nil, storeErr("accept ride", err)
	}
	dd := *d
	dd.Available = false
	if err := e.store.UpdateDriver(ctx, &dd); err != nil {
		return nil, storeErr("reserve driver", err)
	}

	e.ledger.Activate(rideID)
	*r = cp
	if err := e.drivers.Reserve(driverID); err != nil {
		return nil, err
	}

	observability.RidesAccepted.Inc()
	observability.ActiveRides.Inc()
	e.publish(models.RideEvent{Type: models.EventAccepted, RideID: r.ID, PassengerID: r.PassengerID, DriverID: d.ID, Fare: r.Fare, Status: r.Status})
	e.log.Info("ride accepted", "ride_id", r.ID, "driver_id", d.ID)
	return &cp, nil
}

// Decline removes a pending ride request entirely.
func (e *Engine) Decline(ctx context.Context, rideID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.ledger.PendingByID(rideID)
	if !ok {
		return ErrNotFound
	}
	if err := e.store.DeleteRide(ctx, rideID); err != nil {
		return storeErr("decline ride", err)
	}
	e.ledger.RemovePending(rideID)

	observability.RidesDeclined.Inc()
	e.publish(models.RideEvent{Type: models.EventDeclined, RideID: r.ID, PassengerID: r.PassengerID, Fare: r.Fare, Status: r.Status})
	e.log.Info("ride declined", "ride_id", rideID)
	return nil
}

// Complete moves the driver's active ride into the passenger's
// awaiting-rating slot. The driver is looked up by id, not display name.
// Earnings and availability do not change here; the ride closes the loop
// only after the passenger rates it.
func (e *Engine) Complete(ctx context.Context, driverID int64) (*models.RideRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.ledger.ActiveByDriver(driverID)
	if !ok {
		return nil, ErrNoActiveRide
	}
	if _, taken := e.ledger.Awaiting(r.PassengerPhone); taken {
		return nil, ErrUnratedRide
	}

	now := time.Now()
	cp := *r
	cp.Status = models.StatusAwaitingRating
	cp.CompletedAt = &now
	if err := e.store.UpdateRide(ctx, &cp); err != nil {
		return nil, storeErr("complete ride", err)
	}

	e.ledger.Park(r.ID)
	*r = cp

	observability.RidesCompleted.Inc()
	observability.ActiveRides.Dec()
	e.publish(models.RideEvent{Type: models.EventCompleted, RideID: r.ID, PassengerID: r.PassengerID, DriverID: driverID, Fare: r.Fare, Status: r.Status})
	e.log.Info("ride completed", "ride_id", r.ID, "driver_id", driverID)
	return &cp, nil
}

// Rate settles the passenger's awaiting ride: the ride becomes RATED and
// moves to history, the driver is credited with the fare and the rating,
// and the driver becomes available again. One compound operation from
// the caller's perspective.
func (e *Engine) Rate(ctx context.Context, passengerPhone string, stars int) (*models.RideRequest, error) {
	if stars < 1 || stars > 5 {
		return nil, &ValidationError{Field: "stars", Reason: "must be between 1 and 5"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.ledger.Awaiting(passengerPhone)
	if !ok {
		return nil, ErrNoRideToRate
	}

	cp := *r
	cp.Rating = stars
	cp.Status = models.StatusRated
	if err := e.store.UpdateRide(ctx, &cp); err != nil {
		return nil, storeErr("rate ride", err)
	}

	d, driverKnown := e.drivers.ByID(r.DriverID)
	var ev models.RideEvent
	if driverKnown {
		old := float64(d.TotalRides)
		dd := *d
		dd.AverageRating = (dd.AverageRating*old + float64(stars)) / (old + 1)
		dd.TotalEarnings += float64(r.Fare)
		dd.TotalRides++
		dd.Available = true
		if err := e.store.UpdateDriver(ctx, &dd); err != nil {
			return nil, storeErr("credit driver", err)
		}
		// d is held under the lock, so neither call can miss the record.
		_ = e.drivers.RecordCompletion(d.ID, r.Fare, stars)
		_ = e.drivers.Release(d.ID)
		ev = models.RideEvent{DriverID: d.ID, DriverName: d.Name, DriverEarnings: d.TotalEarnings, DriverRides: d.TotalRides, DriverRating: d.AverageRating}
	} else {
		// driver was removed while the ride awaited rating; the ride
		// still settles, there is just no one left to credit
		e.log.Warn("rated ride has no driver record", "ride_id", r.ID, "driver_id", r.DriverID)
	}

	*r = cp
	e.ledger.Settle(passengerPhone)

	observability.RidesRated.Inc()
	ev.Type = models.EventRated
	ev.RideID = r.ID
	ev.PassengerID = r.PassengerID
	ev.Fare = r.Fare
	ev.Rating = stars
	ev.Status = r.Status
	e.publish(ev)
	e.log.Info("ride rated", "ride_id", r.ID, "stars", stars)
	return &cp, nil
}

// RegisterPassenger creates a passenger account. Phone numbers are
// unique contacts.
func (e *Engine) RegisterPassenger(ctx context.Context, fullName, phone, password string) (*models.Passenger, error) {
	if err := required("full_name", fullName); err != nil {
		return nil, err
	}
	if err := required("phone_number", phone); err != nil {
		return nil, err
	}
	if err := required("password", password); err != nil {
		return nil, err
	}

	// lock covers check-then-create, same as driver registration
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.store.PassengerByPhone(ctx, phone); err == nil {
		return nil, ErrDuplicateContact
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, storeErr("check passenger", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	p := &models.Passenger{
		FullName:     strings.TrimSpace(fullName),
		PhoneNumber:  strings.TrimSpace(phone),
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	id, err := e.store.CreatePassenger(ctx, p)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, ErrDuplicateContact
	}
	if err != nil {
		return nil, storeErr("create passenger", err)
	}
	p.ID = id
	e.log.Info("passenger registered", "passenger_id", id)
	return p, nil
}

func (e *Engine) AuthenticatePassenger(ctx context.Context, phone, password string) (*models.Passenger, error) {
	p, err := e.store.PassengerByPhone(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeErr("load passenger", err)
	}
	if !auth.CheckPassword(password, p.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// RegisterDriver creates a driver record, available by default.
func (e *Engine) RegisterDriver(ctx context.Context, name, vehicle, priceRange, username, password string) (*models.Driver, error) {
	if err := required("name", name); err != nil {
		return nil, err
	}
	if err := required("username", username); err != nil {
		return nil, err
	}
	if err := required("password", password); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, taken := e.drivers.ByUsername(username); taken {
		return nil, ErrDuplicateUsername
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	d := &models.Driver{
		Name:         strings.TrimSpace(name),
		Vehicle:      strings.TrimSpace(vehicle),
		PriceRange:   strings.TrimSpace(priceRange),
		Username:     strings.TrimSpace(username),
		PasswordHash: hash,
		Available:    true,
	}
	id, err := e.store.CreateDriver(ctx, d)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, ErrDuplicateUsername
	}
	if err != nil {
		return nil, storeErr("create driver", err)
	}
	d.ID = id
	if err := e.drivers.Add(d); err != nil {
		return nil, err
	}
	e.log.Info("driver registered", "driver_id", id, "username", d.Username)
	cp := *d
	return &cp, nil
}

func (e *Engine) AuthenticateDriver(_ context.Context, username, password string) (*models.Driver, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.drivers.ByUsername(username)
	if !ok || !auth.CheckPassword(password, d.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	cp := *d
	return &cp, nil
}

func (e *Engine) AuthenticateAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	a, err := e.store.AdminByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storeErr("load admin", err)
	}
	if !auth.CheckPassword(password, a.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// SetDriverAvailability is the driver's explicit online/offline toggle.
// It is refused while the driver holds an active ride or a completed one
// that still awaits its rating: for that whole window availability is
// owned by the ride lifecycle, and only Rate releases the driver.
func (e *Engine) SetDriverAvailability(ctx context.Context, driverID int64, available bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.drivers.ByID(driverID)
	if !ok {
		return ErrNotFound
	}
	if _, onRide := e.ledger.ActiveByDriver(driverID); onRide {
		return ErrDriverOnRide
	}
	if _, awaiting := e.ledger.AwaitingByDriver(driverID); awaiting {
		return ErrDriverOnRide
	}
	if d.Available == available {
		return nil
	}
	dd := *d
	dd.Available = available
	if err := e.store.UpdateDriver(ctx, &dd); err != nil {
		return storeErr("update driver", err)
	}
	d.Available = available
	e.log.Info("driver availability changed", "driver_id", driverID, "available", available)
	return nil
}

// RemoveDriver deletes a driver record. Refused while the driver holds
// an active ride so that ride keeps a valid assignment.
func (e *Engine) RemoveDriver(ctx context.Context, driverID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.drivers.ByID(driverID); !ok {
		return ErrNotFound
	}
	if _, onRide := e.ledger.ActiveByDriver(driverID); onRide {
		return ErrDriverOnRide
	}
	if err := e.store.DeleteDriver(ctx, driverID); err != nil {
		return storeErr("delete driver", err)
	}
	e.drivers.Remove(driverID)
	e.log.Info("driver removed", "driver_id", driverID)
	return nil
}

// PendingRequests lists all pending ride requests, oldest id first.
func (e *Engine) PendingRequests() []models.RideRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.PendingRides()
}

// StatusView is a passenger's view of their open rides.
type StatusView struct {
	Pending  []models.RideRequest `json:"pending"`
	Active   []models.RideRequest `json:"active"`
	Awaiting *models.RideRequest  `json:"awaiting_rating,omitempty"`
}

func (e *Engine) PassengerStatus(phone string) StatusView {
	e.mu.Lock()
	defer e.mu.Unlock()

	var v StatusView
	for _, r := range e.ledger.PendingRides() {
		if r.PassengerPhone == phone {
			v.Pending = append(v.Pending, r)
		}
	}
	for _, r := range e.ledger.ActiveRides() {
		if r.PassengerPhone == phone {
			v.Active = append(v.Active, r)
		}
	}
	if r, ok := e.ledger.Awaiting(phone); ok {
		cp := *r
		v.Awaiting = &cp
	}
	return v
}

// OpenRides returns all three open partitions, the admin's overview.
func (e *Engine) OpenRides() (pending, active, awaiting []models.RideRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.PendingRides(), e.ledger.ActiveRides(), e.ledger.AwaitingRides()
}

func (e *Engine) History() []models.RideRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.History()
}

// DeleteHistory removes one rated ride, by zero-based history index,
// from both the store and the in-memory list.
func (e *Engine) DeleteHistory(ctx context.Context, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.ledger.History()
	if index < 0 || index >= len(h) {
		return ErrNotFound
	}
	if err := e.store.DeleteRide(ctx, h[index].ID); err != nil {
		return storeErr("delete ride", err)
	}
	e.ledger.RemoveHistory(index)
	return nil
}

func (e *Engine) DriverStats(driverID int64) (*models.Driver, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.drivers.ByID(driverID)
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (e *Engine) DriverList() []models.Driver {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drivers.All()
}

func (e *Engine) publish(ev models.RideEvent) {
	if e.events == nil {
		return
	}
	ev.At = time.Now()
	if err := e.events.Publish(ev); err != nil {
		e.log.Warn("event publish failed", "type", ev.Type, "ride_id", ev.RideID, "error", err)
	}
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field}
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/example/ride-assist/internal/models"
)

// uniqueViolation is the Postgres error code for a broken UNIQUE
// constraint.
const uniqueViolation = "23505"

// mapPQError folds driver-level uniqueness failures into ErrDuplicate so
// callers see the same sentinel the memory store produces.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// PostgresStore persists all records in Postgres. Schema lives under
// migrations/.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) CreatePassenger(ctx context.Context, pass *models.Passenger) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO passengers(full_name, phone_number, password_hash) VALUES($1,$2,$3) RETURNING id`,
		pass.FullName, pass.PhoneNumber, pass.PasswordHash).Scan(&id)
	return id, mapPQError(err)
}

func (p *PostgresStore) PassengerByPhone(ctx context.Context, phone string) (*models.Passenger, error) {
	var pass models.Passenger
	err := p.db.QueryRowContext(ctx,
		`SELECT id, full_name, phone_number, password_hash, created_at FROM passengers WHERE phone_number=$1`,
		phone).Scan(&pass.ID, &pass.FullName, &pass.PhoneNumber, &pass.PasswordHash, &pass.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pass, nil
}

func (p *PostgresStore) CreateDriver(ctx context.Context, d *models.Driver) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO drivers(name, vehicle, price_range, username, password_hash, is_available, total_earnings, total_rides, average_rating)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		d.Name, d.Vehicle, d.PriceRange, d.Username, d.PasswordHash,
		d.Available, d.TotalEarnings, d.TotalRides, d.AverageRating).Scan(&id)
	return id, mapPQError(err)
}

func (p *PostgresStore) UpdateDriver(ctx context.Context, d *models.Driver) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE drivers SET is_available=$1, total_earnings=$2, total_rides=$3, average_rating=$4 WHERE id=$5`,
		d.Available, d.TotalEarnings, d.TotalRides, d.AverageRating, d.ID)
	return err
}

func (p *PostgresStore) DeleteDriver(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM drivers WHERE id=$1`, id)
	return err
}

func (p *PostgresStore) Drivers(ctx context.Context) ([]models.Driver, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, vehicle, price_range, username, password_hash, is_available, total_earnings, total_rides, average_rating FROM drivers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Driver
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Vehicle, &d.PriceRange, &d.Username, &d.PasswordHash,
			&d.Available, &d.TotalEarnings, &d.TotalRides, &d.AverageRating); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.RideRequest) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO rides(passenger_id, from_location, to_location, fare, status) VALUES($1,$2,$3,$4,$5) RETURNING id`,
		r.PassengerID, r.Origin, r.Destination, r.Fare, r.Status).Scan(&id)
	return id, err
}

func (p *PostgresStore) UpdateRide(ctx context.Context, r *models.RideRequest) error {
	driverID := sql.NullInt64{Int64: r.DriverID, Valid: r.DriverID != models.NoDriver}
	var completedAt sql.NullTime
	if r.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *r.CompletedAt, Valid: true}
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE rides SET driver_id=$1, status=$2, rating=$3, completed_at=$4 WHERE id=$5`,
		driverID, r.Status, r.Rating, completedAt, r.ID)
	return err
}

func (p *PostgresStore) DeleteRide(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM rides WHERE id=$1`, id)
	return err
}

func (p *PostgresStore) RidesByStatus(ctx context.Context, status models.RideStatus) ([]models.RideRequest, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT r.id, r.passenger_id, p.full_name, p.phone_number, r.from_location, r.to_location,
		        r.fare, r.status, r.driver_id, COALESCE(d.name, ''), r.rating, r.created_at, r.completed_at
		 FROM rides r
		 JOIN passengers p ON r.passenger_id = p.id
		 LEFT JOIN drivers d ON r.driver_id = d.id
		 WHERE r.status = $1
		 ORDER BY r.id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RideRequest
	for rows.Next() {
		var r models.RideRequest
		var driverID sql.NullInt64
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.PassengerID, &r.PassengerName, &r.PassengerPhone, &r.Origin, &r.Destination,
			&r.Fare, &r.Status, &driverID, &r.DriverName, &r.Rating, &r.CreatedAt, &completedAt); err != nil {
			return nil, err
		}
		r.DriverID = models.NoDriver
		if driverID.Valid {
			r.DriverID = driverID.Int64
		}
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateAdmin(ctx context.Context, a *models.Admin) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO admins(username, password_hash) VALUES($1,$2) RETURNING id`,
		a.Username, a.PasswordHash).Scan(&id)
	return id, mapPQError(err)
}

func (p *PostgresStore) AdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var a models.Admin
	err := p.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM admins WHERE username=$1`,
		username).Scan(&a.ID, &a.Username, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

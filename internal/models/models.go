package models

import "time"

// RideStatus tracks a ride request through its lifecycle.
type RideStatus string

const (
	StatusPending        RideStatus = "PENDING"
	StatusAccepted       RideStatus = "ACCEPTED"
	StatusAwaitingRating RideStatus = "AWAITING_RATING"
	StatusRated          RideStatus = "RATED"
)

// NoDriver marks a ride that has not been accepted yet.
const NoDriver int64 = -1

type Passenger struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	PhoneNumber  string    `json:"phone_number"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Driver struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Vehicle       string  `json:"vehicle"`
	PriceRange    string  `json:"price_range"`
	Username      string  `json:"username"`
	PasswordHash  string  `json:"-"`
	Available     bool    `json:"available"`
	TotalEarnings float64 `json:"total_earnings"`
	TotalRides    int     `json:"total_rides"`
	AverageRating float64 `json:"average_rating"` // 0..5, 0 until first rated ride
}

type RideRequest struct {
	ID             int64      `json:"id"`
	PassengerID    int64      `json:"passenger_id"`
	PassengerName  string     `json:"passenger_name"`
	PassengerPhone string     `json:"passenger_phone"`
	Origin         string     `json:"origin"`
	Destination    string     `json:"destination"`
	Fare           int        `json:"fare"` // fixed at submission, currency units
	Status         RideStatus `json:"status"`
	DriverID       int64      `json:"driver_id"`
	DriverName     string     `json:"driver_name,omitempty"`
	Rating         int        `json:"rating,omitempty"` // 0 = unrated, 1..5 once rated
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

type Admin struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// RideEvent is the message published to the ride event stream on every
// lifecycle transition. Rated events carry a snapshot of the driver's
// aggregates so downstream projections need no extra lookup.
type RideEvent struct {
	Type           string     `json:"type"` // submitted, accepted, declined, completed, rated
	RideID         int64      `json:"ride_id"`
	PassengerID    int64      `json:"passenger_id"`
	DriverID       int64      `json:"driver_id,omitempty"`
	DriverName     string     `json:"driver_name,omitempty"`
	Fare           int        `json:"fare"`
	Rating         int        `json:"rating,omitempty"`
	Status         RideStatus `json:"status"`
	DriverEarnings float64    `json:"driver_earnings,omitempty"`
	DriverRides    int        `json:"driver_rides,omitempty"`
	DriverRating   float64    `json:"driver_rating,omitempty"`
	At             time.Time  `json:"at"`
}

const (
	EventSubmitted = "submitted"
	EventAccepted  = "accepted"
	EventDeclined  = "declined"
	EventCompleted = "completed"
	EventRated     = "rated"
)

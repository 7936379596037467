package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GuestUserID is the sentinel identity of a booking request made without a logged-in user.
const GuestUserID int64 = 0

// Booking is a traveler's seat reservation on one trip. Only Status is mutable,
// and only through the booking lifecycle.
type Booking struct {
	ID               int64           `json:"id" db:"id"`
	TripID           int64           `json:"trip_id" db:"trip_id"`
	UserID           int64           `json:"user_id" db:"user_id"`
	NumberOfPilgrims int             `json:"number_of_pilgrims" db:"number_of_pilgrims"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status           BookingStatus   `json:"status" db:"status"`
	ContactEmail     string          `json:"contact_email" db:"contact_email"`
	ContactPhone     string          `json:"contact_phone" db:"contact_phone"`
	SpecialRequests  string          `json:"special_requests" db:"special_requests"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// CreateBookingInput is the request to book seats. UserID == GuestUserID
// routes through guest identity resolution by ContactEmail.
type CreateBookingInput struct {
	TripID           int64  `json:"trip_id"`
	UserID           int64  `json:"-"`
	NumberOfPilgrims int    `json:"number_of_pilgrims"`
	ContactEmail     string `json:"contact_email"`
	ContactPhone     string `json:"contact_phone"`
	SpecialRequests  string `json:"special_requests"`
}

// BookingFilter selects bookings for read-only listings. Exactly one of the
// ID fields is expected to be set.
type BookingFilter struct {
	TripID      int64
	UserID      int64
	OrganizerID int64
	Status      BookingStatus
	Limit       int
	Offset      int
}

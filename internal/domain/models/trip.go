package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trip is a pilgrimage departure sold by an organizer. CurrentBookings is owned
// by the capacity ledger and is never written directly by other code paths.
type Trip struct {
	ID              int64           `json:"id" db:"id"`
	OrganizerID     int64           `json:"organizer_id" db:"organizer_id"`
	Title           string          `json:"title" db:"title"`
	Destination     string          `json:"destination" db:"destination"`
	StartDate       string          `json:"start_date" db:"start_date"`
	EndDate         string          `json:"end_date" db:"end_date"`
	PricePerPerson  decimal.Decimal `json:"price_per_person" db:"price_per_person"`
	MaxPilgrims     int             `json:"max_pilgrims" db:"max_pilgrims"`
	CurrentBookings int             `json:"current_bookings" db:"current_bookings"`
	IsActive        bool            `json:"is_active" db:"is_active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// AvailableSeats is maxPilgrims - currentBookings, never below zero.
func (t Trip) AvailableSeats() int {
	if n := t.MaxPilgrims - t.CurrentBookings; n > 0 {
		return n
	}
	return 0
}

// TripInput carries organizer-editable trip fields.
type TripInput struct {
	OrganizerID    int64           `json:"organizer_id"`
	Title          string          `json:"title"`
	Destination    string          `json:"destination"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	PricePerPerson decimal.Decimal `json:"price_per_person"`
	MaxPilgrims    int             `json:"max_pilgrims"`
}

// TripFilter narrows trip listings.
type TripFilter struct {
	OrganizerID int64
	ActiveOnly  bool
	Limit       int
	Offset      int
}

// CapacityAudit compares the ledger counter with the seats held by stored bookings.
type CapacityAudit struct {
	TripID          int64 `json:"trip_id"`
	MaxPilgrims     int   `json:"max_pilgrims"`
	CurrentBookings int   `json:"current_bookings"`
	CommittedSeats  int   `json:"committed_seats"`
	Drift           int   `json:"drift"`
}

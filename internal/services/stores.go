package services

import (
	"context"
	"database/sql"

	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/repositories"
	"pilgrimage/internal/repositories/memstore"
)

// CapacityStore is the persistence the ledger needs: a trip read plus the
// atomic counter and ceiling mutations.
type CapacityStore interface {
	GetTrip(ctx context.Context, id int64) (models.Trip, error)
	TryReserve(ctx context.Context, tripID int64, seats int) (bool, error)
	Release(ctx context.Context, tripID int64, seats int) error
	SetCapacity(ctx context.Context, tripID int64, maxPilgrims int) (bool, error)
}

type TripStore interface {
	CapacityStore
	CreateTrip(ctx context.Context, in models.TripInput) (models.Trip, error)
	ListTrips(ctx context.Context, f models.TripFilter) ([]models.Trip, error)
	SetTripActive(ctx context.Context, id int64, active bool) error
}

type BookingStore interface {
	InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error)
	GetBooking(ctx context.Context, id int64) (models.Booking, error)
	CompareAndSetStatus(ctx context.Context, id int64, from, to models.BookingStatus) (bool, error)
	ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error)
	CommittedSeats(ctx context.Context, tripID int64) (int, error)
}

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	CreateUser(ctx context.Context, u models.User) (models.User, error)
}

// Stores bundles one backend for every service.
type Stores struct {
	Trips    TripStore
	Bookings BookingStore
	Users    UserStore
}

// MySQLStores wires the database/sql repositories on db.
func MySQLStores(db *sql.DB) Stores {
	return Stores{
		Trips:    repositories.TripRepo{DB: db},
		Bookings: repositories.BookingRepo{DB: db},
		Users:    repositories.UserRepo{DB: db},
	}
}

// MemoryStores backs every service with one in-process store.
func MemoryStores(s *memstore.Store) Stores {
	return Stores{Trips: s, Bookings: s, Users: s}
}

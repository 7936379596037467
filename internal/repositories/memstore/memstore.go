// Package memstore keeps trips, bookings and users in process memory. It
// implements the same contracts as the MySQL repositories and is used by
// tests and by STORE=memory for local runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"
)

type tripEntry struct {
	mu   sync.Mutex // guards trip; one per trip so reservations on different trips never contend
	trip models.Trip
}

type Store struct {
	mu       sync.RWMutex // guards the maps and id counters, not the trip rows
	trips    map[int64]*tripEntry
	bookings map[int64]models.Booking
	users    map[int64]models.User
	byEmail  map[string]int64

	nextTrip, nextBooking, nextUser int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		trips:    make(map[int64]*tripEntry),
		bookings: make(map[int64]models.Booking),
		users:    make(map[int64]models.User),
		byEmail:  make(map[string]int64),
		now:      time.Now,
	}
}

func (s *Store) tripEntry(id int64) (*tripEntry, error) {
	s.mu.RLock()
	e, ok := s.trips[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NotFoundError{Resource: "trip"}
	}
	return e, nil
}

// Trips

func (s *Store) GetTrip(ctx context.Context, id int64) (models.Trip, error) {
	if err := ctx.Err(); err != nil {
		return models.Trip{}, err
	}
	e, err := s.tripEntry(id)
	if err != nil {
		return models.Trip{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trip, nil
}

func (s *Store) ListTrips(ctx context.Context, f models.TripFilter) ([]models.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := make([]*tripEntry, 0, len(s.trips))
	for _, e := range s.trips {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := []models.Trip{}
	for _, e := range entries {
		e.mu.Lock()
		t := e.trip
		e.mu.Unlock()
		if f.OrganizerID > 0 && t.OrganizerID != f.OrganizerID {
			continue
		}
		if f.ActiveOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate < out[j].StartDate
		}
		return out[i].ID < out[j].ID
	})
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) CreateTrip(ctx context.Context, in models.TripInput) (models.Trip, error) {
	if err := ctx.Err(); err != nil {
		return models.Trip{}, err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTrip++
	t := models.Trip{
		ID:             s.nextTrip,
		OrganizerID:    in.OrganizerID,
		Title:          in.Title,
		Destination:    in.Destination,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		PricePerPerson: in.PricePerPerson,
		MaxPilgrims:    in.MaxPilgrims,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.trips[t.ID] = &tripEntry{trip: t}
	return t, nil
}

func (s *Store) SetTripActive(ctx context.Context, id int64, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := s.tripEntry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trip.IsActive = active
	e.trip.UpdatedAt = s.now()
	return nil
}

// TryReserve checks and increments under the trip's own mutex.
func (s *Store) TryReserve(ctx context.Context, tripID int64, seats int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e, err := s.tripEntry(tripID)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.trip.CurrentBookings+seats > e.trip.MaxPilgrims {
		return false, nil
	}
	e.trip.CurrentBookings += seats
	e.trip.UpdatedAt = s.now()
	return true, nil
}

// SetCapacity changes the ceiling unless more seats are already taken.
func (s *Store) SetCapacity(ctx context.Context, tripID int64, maxPilgrims int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e, err := s.tripEntry(tripID)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.trip.CurrentBookings > maxPilgrims {
		return false, nil
	}
	e.trip.MaxPilgrims = maxPilgrims
	e.trip.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) Release(ctx context.Context, tripID int64, seats int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := s.tripEntry(tripID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trip.CurrentBookings -= seats
	if e.trip.CurrentBookings < 0 {
		e.trip.CurrentBookings = 0
	}
	e.trip.UpdatedAt = s.now()
	return nil
}

// Bookings

func (s *Store) InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return models.Booking{}, err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBooking++
	b.ID = s.nextBooking
	b.CreatedAt = now
	b.UpdatedAt = now
	s.bookings[b.ID] = b
	return b, nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return models.Booking{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	return b, nil
}

func (s *Store) CompareAndSetStatus(ctx context.Context, id int64, from, to models.BookingStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = s.now()
	s.bookings[id] = b
	return true, nil
}

func (s *Store) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var organizerTrips map[int64]bool
	if f.OrganizerID > 0 {
		organizerTrips = map[int64]bool{}
		s.mu.RLock()
		for id, e := range s.trips {
			e.mu.Lock()
			if e.trip.OrganizerID == f.OrganizerID {
				organizerTrips[id] = true
			}
			e.mu.Unlock()
		}
		s.mu.RUnlock()
	}

	s.mu.RLock()
	out := []models.Booking{}
	for _, b := range s.bookings {
		if f.TripID > 0 && b.TripID != f.TripID {
			continue
		}
		if f.UserID > 0 && b.UserID != f.UserID {
			continue
		}
		if organizerTrips != nil && !organizerTrips[b.TripID] {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) CommittedSeats(ctx context.Context, tripID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, b := range s.bookings {
		if b.TripID == tripID && b.Status.HoldsSeats() {
			total += b.NumberOfPilgrims
		}
	}
	return total, nil
}

// Users

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return models.User{}, domain.NotFoundError{Resource: "user"}
	}
	return s.users[id], nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, domain.NotFoundError{Resource: "user"}
	}
	return u, nil
}

// CreateUser enforces unique emails the way the users.email UNIQUE key does.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[u.Email]; taken {
		return models.User{}, domain.ConflictError{Resource: "user", Msg: "email already registered", Err: domain.ErrDuplicate}
	}
	s.nextUser++
	u.ID = s.nextUser
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

// UserCount is used by tests to assert exactly-once creation.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func page[T any](in []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return []T{}
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

package services

import (
	"context"
	"errors"
	"strconv"

	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/metrics"
	"pilgrimage/internal/utils"
)

// maxStatusSwaps bounds how often Transition re-reads after losing a
// compare-and-set to a writer in another process.
const maxStatusSwaps = 5

// BookingLifecycle creates bookings against the capacity ledger and moves them
// through their statuses. Seats are released exactly once: only the writer
// whose compare-and-set moves a booking from a seat-holding status into a
// releasing one calls the ledger.
type BookingLifecycle struct {
	Ledger   *CapacityLedger
	Bookings BookingStore
	Guests   *GuestResolver

	locks utils.KeyedMutex // per booking id
}

func NewBookingLifecycle(ledger *CapacityLedger, bookings BookingStore, guests *GuestResolver) *BookingLifecycle {
	return &BookingLifecycle{Ledger: ledger, Bookings: bookings, Guests: guests}
}

// CreateBooking reserves seats first and only then stores a pending booking.
func (s *BookingLifecycle) CreateBooking(ctx context.Context, in models.CreateBookingInput) (models.Booking, error) {
	if in.NumberOfPilgrims < 1 {
		return models.Booking{}, domain.ValidationError{Field: "number_of_pilgrims", Err: domain.ErrInvalidSeatCount}
	}
	if in.TripID <= 0 {
		return models.Booking{}, domain.ValidationError{Field: "trip_id", Msg: "trip id is required"}
	}
	email := utils.NormalizeEmail(in.ContactEmail)
	if email != "" && !utils.LooksLikeEmail(email) {
		return models.Booking{}, domain.ValidationError{Field: "contact_email", Msg: "invalid email"}
	}

	trip, err := s.Ledger.Trip(ctx, in.TripID)
	if err != nil {
		return models.Booking{}, err
	}
	if !trip.IsActive {
		return models.Booking{}, domain.ValidationError{Field: "trip_id", Msg: "trip is not open for booking"}
	}

	// Guests are resolved only for bookable trips so rejected requests leave no user behind.
	userID := in.UserID
	if userID == models.GuestUserID {
		if s.Guests == nil {
			return models.Booking{}, domain.InternalError{Msg: "guest bookings are not configured"}
		}
		id, err := s.Guests.ResolveOrCreateGuest(ctx, email)
		if err != nil {
			return models.Booking{}, err
		}
		userID = id
	}

	ok, err := s.Ledger.TryReserve(ctx, trip.ID, in.NumberOfPilgrims)
	if err != nil {
		return models.Booking{}, err
	}
	if !ok {
		available := trip.AvailableSeats()
		if fresh, err := s.Ledger.Trip(ctx, trip.ID); err == nil {
			available = fresh.AvailableSeats()
		}
		return models.Booking{}, domain.CapacityError{TripID: trip.ID, Requested: in.NumberOfPilgrims, Available: available}
	}

	// Seats are held from here on; the caller going away must not cut the save short.
	persistCtx, cancel := s.Ledger.withCallTimeout(context.WithoutCancel(ctx))
	defer cancel()
	saved, err := s.Bookings.InsertBooking(persistCtx, models.Booking{
		TripID:           trip.ID,
		UserID:           userID,
		NumberOfPilgrims: in.NumberOfPilgrims,
		TotalAmount:      utils.LineTotal(trip.PricePerPerson, in.NumberOfPilgrims),
		Status:           models.StatusPending,
		ContactEmail:     email,
		ContactPhone:     utils.NormalizePhone(in.ContactPhone),
		SpecialRequests:  utils.TrimOrEmpty(in.SpecialRequests),
	})
	if err != nil {
		if errors.Is(err, domain.ErrWriteUnconfirmed) {
			// The row may exist. Keeping the seats can only under-sell the trip;
			// CapacityAudit shows the drift if it does not.
			utils.LogEventf(ctx, "booking", "persist_unconfirmed", "trip_id=%d seats=%d err=%v", trip.ID, in.NumberOfPilgrims, err)
			return models.Booking{}, domain.UnavailableError{Op: "persist booking", Err: err}
		}
		// Nothing was written; give the seats back.
		if relErr := s.Ledger.Release(ctx, trip.ID, in.NumberOfPilgrims); relErr != nil {
			utils.LogEventf(ctx, "booking", "compensate_failed", "trip_id=%d seats=%d err=%v", trip.ID, in.NumberOfPilgrims, relErr)
		}
		return models.Booking{}, domain.UnavailableError{Op: "persist booking", Err: err}
	}
	utils.LogEventf(ctx, "booking", "created", "booking_id=%d trip_id=%d user_id=%d seats=%d", saved.ID, saved.TripID, saved.UserID, saved.NumberOfPilgrims)
	return saved, nil
}

// Transition moves a booking to status to. Terminal bookings are rejected, a
// transition to the current status is a no-op, and any other pair of
// non-terminal and target statuses is allowed.
func (s *BookingLifecycle) Transition(ctx context.Context, bookingID int64, to models.BookingStatus) (models.Booking, error) {
	if !to.Valid() {
		return models.Booking{}, domain.ValidationError{Field: "status", Msg: "unknown booking status " + strconv.Quote(string(to))}
	}
	unlock := s.locks.Lock(bookingID)
	defer unlock()

	for attempt := 0; ; attempt++ {
		cur, err := s.GetBooking(ctx, bookingID)
		if err != nil {
			return models.Booking{}, err
		}
		if cur.Status.IsTerminal() {
			return cur, domain.TerminalStateError{BookingID: cur.ID, Status: string(cur.Status)}
		}
		if cur.Status == to {
			return cur, nil
		}

		swapped, err := s.Bookings.CompareAndSetStatus(ctx, bookingID, cur.Status, to)
		if err != nil {
			return cur, domain.UnavailableError{Op: "update booking status", Err: err}
		}
		if !swapped {
			if attempt+1 >= maxStatusSwaps {
				return cur, domain.ConflictError{Resource: "booking", Msg: "status keeps changing, try again"}
			}
			continue
		}

		from := cur.Status
		cur.Status = to
		cur.UpdatedAt = utils.NowUTC()
		metrics.RecordTransition(string(from), string(to))
		utils.LogEventf(ctx, "booking", "transition", "booking_id=%d from=%s to=%s", cur.ID, from, to)

		if models.ReleasesSeats(from, to) {
			if err := s.Ledger.Release(ctx, cur.TripID, cur.NumberOfPilgrims); err != nil {
				return cur, err
			}
		}
		return cur, nil
	}
}

// TransitionAs applies the caller's permissions before Transition. Admins may
// move any booking, organizers only bookings on their own trips, and pilgrims
// may only cancel their own booking.
func (s *BookingLifecycle) TransitionAs(ctx context.Context, actor domain.RequestContext, bookingID int64, to models.BookingStatus) (models.Booking, error) {
	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	switch {
	case actor.IsGuest():
		return models.Booking{}, domain.ForbiddenError{Msg: "login required"}
	case actor.IsAdmin():
	case actor.IsOrganizer():
		if err := s.ownsTrip(ctx, actor, b.TripID); err != nil {
			return models.Booking{}, err
		}
	default:
		if int64(actor.UserID) != b.UserID {
			return models.Booking{}, domain.ForbiddenError{Msg: "not your booking"}
		}
		if to != models.StatusCancelledByPilgrim {
			return models.Booking{}, domain.ForbiddenError{Msg: "pilgrims may only cancel their booking"}
		}
	}
	return s.Transition(ctx, bookingID, to)
}

// AvailableSeats reports maxPilgrims - currentBookings for a trip.
func (s *BookingLifecycle) AvailableSeats(ctx context.Context, tripID int64) (int, error) {
	return s.Ledger.AvailableSeats(ctx, tripID)
}

func (s *BookingLifecycle) GetBooking(ctx context.Context, id int64) (models.Booking, error) {
	b, err := s.Bookings.GetBooking(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return b, err
		}
		return b, domain.UnavailableError{Op: "get booking", Err: err}
	}
	return b, nil
}

// GetBookingAs returns a booking the caller is allowed to see.
func (s *BookingLifecycle) GetBookingAs(ctx context.Context, actor domain.RequestContext, id int64) (models.Booking, error) {
	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return b, err
	}
	switch {
	case actor.IsAdmin():
	case actor.IsOrganizer():
		if err := s.ownsTrip(ctx, actor, b.TripID); err != nil {
			return models.Booking{}, err
		}
	case actor.IsGuest() || int64(actor.UserID) != b.UserID:
		return models.Booking{}, domain.ForbiddenError{Msg: "not your booking"}
	}
	return b, nil
}

func (s *BookingLifecycle) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.ValidationError{Field: "status", Msg: "unknown booking status"}
	}
	list, err := s.Bookings.ListBookings(ctx, f)
	if err != nil {
		return nil, domain.UnavailableError{Op: "list bookings", Err: err}
	}
	return list, nil
}

// CapacityAudit compares the ledger counter with the seats of stored
// seat-holding bookings. It only reports; a positive drift usually means a
// reservation whose booking insert never landed.
func (s *BookingLifecycle) CapacityAudit(ctx context.Context, tripID int64) (models.CapacityAudit, error) {
	trip, err := s.Ledger.Trip(ctx, tripID)
	if err != nil {
		return models.CapacityAudit{}, err
	}
	committed, err := s.Bookings.CommittedSeats(ctx, tripID)
	if err != nil {
		return models.CapacityAudit{}, domain.UnavailableError{Op: "sum committed seats", Err: err}
	}
	audit := models.CapacityAudit{
		TripID:          trip.ID,
		MaxPilgrims:     trip.MaxPilgrims,
		CurrentBookings: trip.CurrentBookings,
		CommittedSeats:  committed,
		Drift:           trip.CurrentBookings - committed,
	}
	metrics.RecordDrift(strconv.FormatInt(trip.ID, 10), audit.Drift)
	if audit.Drift != 0 {
		utils.LogEventf(ctx, "ledger", "capacity_drift", "trip_id=%d current=%d committed=%d drift=%d", trip.ID, trip.CurrentBookings, committed, audit.Drift)
	}
	return audit, nil
}

func (s *BookingLifecycle) ownsTrip(ctx context.Context, actor domain.RequestContext, tripID int64) error {
	trip, err := s.Ledger.Trip(ctx, tripID)
	if err != nil {
		return err
	}
	if trip.OrganizerID != int64(actor.UserID) {
		return domain.ForbiddenError{Msg: "booking belongs to another organizer's trip"}
	}
	return nil
}

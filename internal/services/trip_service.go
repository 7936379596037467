package services

import (
	"context"

	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/utils"
)

type TripService struct {
	Trips  TripStore
	Ledger *CapacityLedger
}

// TripView is a trip with its live seat count.
type TripView struct {
	models.Trip
	AvailableSeats int `json:"available_seats"`
}

func (s TripService) CreateTrip(ctx context.Context, actor domain.RequestContext, in models.TripInput) (models.Trip, error) {
	if !actor.IsAdmin() && !actor.IsOrganizer() {
		return models.Trip{}, domain.ForbiddenError{Msg: "only organizers can publish trips"}
	}
	if actor.IsOrganizer() || in.OrganizerID == 0 {
		in.OrganizerID = int64(actor.UserID)
	}
	in.Title = utils.NormalizeSpace(in.Title)
	in.Destination = utils.NormalizeSpace(in.Destination)
	if in.Title == "" {
		return models.Trip{}, domain.ValidationError{Field: "title", Msg: "is required"}
	}
	if in.MaxPilgrims < 1 {
		return models.Trip{}, domain.ValidationError{Field: "max_pilgrims", Msg: "must be at least 1"}
	}
	if in.PricePerPerson.IsNegative() {
		return models.Trip{}, domain.ValidationError{Field: "price_per_person", Msg: "must not be negative"}
	}
	start, err := utils.ParseDate(in.StartDate)
	if err != nil {
		return models.Trip{}, domain.ValidationError{Field: "start_date", Msg: "format YYYY-MM-DD"}
	}
	end, err := utils.ParseDate(in.EndDate)
	if err != nil {
		return models.Trip{}, domain.ValidationError{Field: "end_date", Msg: "format YYYY-MM-DD"}
	}
	if end.Before(start) {
		return models.Trip{}, domain.ValidationError{Field: "end_date", Msg: "must not be before start_date"}
	}

	trip, err := s.Trips.CreateTrip(ctx, in)
	if err != nil {
		return models.Trip{}, domain.UnavailableError{Op: "create trip", Err: err}
	}
	utils.LogEventf(ctx, "trip", "created", "trip_id=%d organizer_id=%d max=%d", trip.ID, trip.OrganizerID, trip.MaxPilgrims)
	return trip, nil
}

func (s TripService) GetTrip(ctx context.Context, id int64) (TripView, error) {
	trip, err := s.Ledger.Trip(ctx, id)
	if err != nil {
		return TripView{}, err
	}
	return TripView{Trip: trip, AvailableSeats: trip.AvailableSeats()}, nil
}

func (s TripService) ListTrips(ctx context.Context, f models.TripFilter) ([]TripView, error) {
	trips, err := s.Trips.ListTrips(ctx, f)
	if err != nil {
		return nil, domain.UnavailableError{Op: "list trips", Err: err}
	}
	out := make([]TripView, 0, len(trips))
	for _, t := range trips {
		out = append(out, TripView{Trip: t, AvailableSeats: t.AvailableSeats()})
	}
	return out, nil
}

// Deactivate closes a trip for new bookings. Existing bookings keep their seats.
func (s TripService) Deactivate(ctx context.Context, actor domain.RequestContext, id int64) error {
	trip, err := s.Ledger.Trip(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && (!actor.IsOrganizer() || trip.OrganizerID != int64(actor.UserID)) {
		return domain.ForbiddenError{Msg: "trip belongs to another organizer"}
	}
	if err := s.Trips.SetTripActive(ctx, id, false); err != nil {
		if domain.IsNotFound(err) {
			return err
		}
		return domain.UnavailableError{Op: "deactivate trip", Err: err}
	}
	utils.LogEventf(ctx, "trip", "deactivated", "trip_id=%d", id)
	return nil
}

// UpdateCapacity lets the trip's organizer (or an admin) change maxPilgrims.
func (s TripService) UpdateCapacity(ctx context.Context, actor domain.RequestContext, id int64, maxPilgrims int) (TripView, error) {
	if err := s.CanManage(ctx, actor, id); err != nil {
		return TripView{}, err
	}
	if err := s.Ledger.Resize(ctx, id, maxPilgrims); err != nil {
		return TripView{}, err
	}
	return s.GetTrip(ctx, id)
}

// CanManage reports whether actor may manage a trip and view its bookings.
func (s TripService) CanManage(ctx context.Context, actor domain.RequestContext, id int64) error {
	if actor.IsAdmin() {
		return nil
	}
	trip, err := s.Ledger.Trip(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsOrganizer() || trip.OrganizerID != int64(actor.UserID) {
		return domain.ForbiddenError{Msg: "trip belongs to another organizer"}
	}
	return nil
}

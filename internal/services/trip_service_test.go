package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"

	"github.com/shopspring/decimal"
)

func newTripService(t *testing.T) (TripService, *faultyStore) {
	t.Helper()
	svc, st := newEngine(t)
	return TripService{Trips: st, Ledger: svc.Ledger}, st
}

func tripInput() models.TripInput {
	return models.TripInput{
		Title:          "  Umrah   Plus Turkey ",
		Destination:    "Makkah",
		StartDate:      "2027-01-10",
		EndDate:        "2027-01-22",
		PricePerPerson: decimal.NewFromInt(3100),
		MaxPilgrims:    45,
	}
}

func TestTripServiceCreate(t *testing.T) {
	svc, _ := newTripService(t)
	org := domain.RequestContext{UserID: 100, Role: domain.RoleOrganizer}

	trip, err := svc.CreateTrip(context.Background(), org, tripInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if trip.OrganizerID != 100 || trip.Title != "Umrah Plus Turkey" || !trip.IsActive || trip.CurrentBookings != 0 {
		t.Fatalf("unexpected trip: %+v", trip)
	}

	pilgrim := domain.RequestContext{UserID: 5, Role: domain.RolePilgrim}
	if _, err := svc.CreateTrip(context.Background(), pilgrim, tripInput()); !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestTripServiceCreateValidation(t *testing.T) {
	svc, _ := newTripService(t)
	org := domain.RequestContext{UserID: 100, Role: domain.RoleOrganizer}

	cases := map[string]func(*models.TripInput){
		"no title":     func(in *models.TripInput) { in.Title = " " },
		"zero seats":   func(in *models.TripInput) { in.MaxPilgrims = 0 },
		"bad date":     func(in *models.TripInput) { in.StartDate = "10/01/2027" },
		"end first":    func(in *models.TripInput) { in.EndDate = "2027-01-01" },
		"negative fee": func(in *models.TripInput) { in.PricePerPerson = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		in := tripInput()
		mutate(&in)
		if _, err := svc.CreateTrip(context.Background(), org, in); !domain.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestTripServiceDeactivateAndList(t *testing.T) {
	svc, st := newTripService(t)
	ctx := context.Background()
	trip := seedTrip(t, st, 10, 4)

	other := domain.RequestContext{UserID: 101, Role: domain.RoleOrganizer}
	if err := svc.Deactivate(ctx, other, trip.ID); !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	owner := domain.RequestContext{UserID: 100, Role: domain.RoleOrganizer}
	if err := svc.Deactivate(ctx, owner, trip.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	active, err := svc.ListTrips(ctx, models.TripFilter{ActiveOnly: true})
	if err != nil || len(active) != 0 {
		t.Fatalf("active list = %+v err=%v", active, err)
	}
	all, _ := svc.ListTrips(ctx, models.TripFilter{OrganizerID: 100})
	if len(all) != 1 || all[0].AvailableSeats != 6 {
		t.Fatalf("organizer list = %+v", all)
	}
	view, err := svc.GetTrip(ctx, trip.ID)
	if err != nil || view.AvailableSeats != 6 || view.IsActive {
		t.Fatalf("view = %+v err=%v", view, err)
	}
	if err := svc.CanManage(ctx, other, trip.ID); !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestTripServiceUpdateCapacity(t *testing.T) {
	svc, st := newTripService(t)
	ctx := context.Background()
	trip := seedTrip(t, st, 10, 6)
	owner := domain.RequestContext{UserID: 100, Role: domain.RoleOrganizer}

	if _, err := svc.UpdateCapacity(ctx, domain.RequestContext{UserID: 101, Role: domain.RoleOrganizer}, trip.ID, 20); !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.UpdateCapacity(ctx, owner, trip.ID, 0); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err := svc.UpdateCapacity(ctx, owner, trip.ID, 5)
	if !domain.IsConflict(err) || !strings.Contains(err.Error(), "6 seats") {
		t.Fatalf("expected conflict naming booked seats, got %v", err)
	}
	view, err := svc.UpdateCapacity(ctx, owner, trip.ID, 8)
	if err != nil || view.MaxPilgrims != 8 || view.AvailableSeats != 2 {
		t.Fatalf("view = %+v err=%v", view, err)
	}
	if ok, _ := svc.Ledger.TryReserve(ctx, trip.ID, 3); ok {
		t.Fatalf("reserved past the lowered ceiling")
	}
	admin := domain.RequestContext{UserID: 1, Role: domain.RoleAdmin}
	if _, err := svc.UpdateCapacity(ctx, admin, 999, 8); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResizeRacingReservesKeepsCeiling(t *testing.T) {
	for round := 0; round < 20; round++ {
		svc, st := newTripService(t)
		trip := seedTrip(t, st, 10, 0)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.Ledger.TryReserve(ctx, trip.ID, 1)
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Ledger.Resize(ctx, trip.ID, 5)
		}()
		wg.Wait()

		got, err := st.GetTrip(ctx, trip.ID)
		if err != nil {
			t.Fatalf("get trip: %v", err)
		}
		if got.CurrentBookings > got.MaxPilgrims {
			t.Fatalf("round %d: current=%d exceeds max=%d", round, got.CurrentBookings, got.MaxPilgrims)
		}
	}
}

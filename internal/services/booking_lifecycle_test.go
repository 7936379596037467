package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/repositories"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCreateBookingConcurrentNeverOverbooks(t *testing.T) {
	for round := 0; round < 50; round++ {
		svc, st := newEngine(t)
		trip := seedTrip(t, st, 10, 8)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.CreateBooking(context.Background(), book(int64(i+1), trip.ID, 2))
			}(i)
		}
		wg.Wait()

		success, rejected := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				success++
			case domain.IsInsufficientCapacity(err):
				rejected++
			default:
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}
		if success != 1 || rejected != 1 {
			t.Fatalf("round %d: success=%d rejected=%d, want 1/1", round, success, rejected)
		}
		if got := currentBookings(t, st, trip.ID); got != 10 {
			t.Fatalf("round %d: current=%d, want 10", round, got)
		}
	}
}

func TestCreateBookingManyConcurrentStaysWithinCeiling(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 40, 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateBooking(context.Background(), book(int64(i+1), trip.ID, 1+i%3))
			if err == nil {
				mu.Lock()
				granted += 1 + i%3
				mu.Unlock()
			} else if !domain.IsInsufficientCapacity(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got := currentBookings(t, st, trip.ID)
	if got > 40 || got != granted {
		t.Fatalf("current=%d granted=%d, want equal and <= 40", got, granted)
	}
	committed, _ := st.CommittedSeats(context.Background(), trip.ID)
	if committed != got {
		t.Fatalf("committed seats %d != ledger %d", committed, got)
	}
}

func TestCreateBookingRejectsInvalidSeatCount(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)

	for _, seats := range []int{0, -2} {
		_, err := svc.CreateBooking(context.Background(), book(1, trip.ID, seats))
		if !domain.IsValidation(err) || !errors.Is(err, domain.ErrInvalidSeatCount) {
			t.Fatalf("seats=%d: expected invalid seat count, got %v", seats, err)
		}
	}
	if got := currentBookings(t, st, trip.ID); got != 0 {
		t.Fatalf("ledger touched on invalid input: %d", got)
	}
}

func TestCreateBookingComputesTotalAndPending(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)

	b, err := svc.CreateBooking(context.Background(), book(7, trip.ID, 3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != models.StatusPending || b.UserID != 7 {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if b.TotalAmount.String() != "7501.5" {
		t.Fatalf("total = %s, want 7501.5", b.TotalAmount)
	}
	if b.ContactPhone != "+966550001111" {
		t.Fatalf("phone not normalized: %q", b.ContactPhone)
	}
}

func TestCreateBookingUnknownAndInactiveTrip(t *testing.T) {
	svc, st := newEngine(t)
	if _, err := svc.CreateBooking(context.Background(), book(1, 999, 1)); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	trip := seedTrip(t, st, 10, 0)
	if err := st.SetTripActive(context.Background(), trip.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.CreateBooking(context.Background(), book(1, trip.ID, 1)); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for inactive trip, got %v", err)
	}
	if got := currentBookings(t, st, trip.ID); got != 0 {
		t.Fatalf("inactive trip reserved seats: %d", got)
	}
}

func TestCreateBookingFailsClosedOnReserveTimeout(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)
	st.blockReserve = true

	_, err := svc.CreateBooking(context.Background(), book(1, trip.ID, 2))
	if !domain.IsUnavailable(err) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	list, _ := st.ListBookings(context.Background(), models.BookingFilter{TripID: trip.ID})
	if len(list) != 0 {
		t.Fatalf("booking persisted after ambiguous reserve: %+v", list)
	}
	if got := currentBookings(t, st, trip.ID); got != 0 {
		t.Fatalf("current=%d, want 0", got)
	}
}

func TestCreateBookingInsertFailureReleasesSeats(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 4)
	st.insertErr = errBadConn

	_, err := svc.CreateBooking(context.Background(), book(1, trip.ID, 3))
	if !domain.IsUnavailable(err) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if got := currentBookings(t, st, trip.ID); got != 4 {
		t.Fatalf("current=%d, want 4 after compensation", got)
	}
}

func TestCreateBookingUnconfirmedInsertKeepsSeats(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 2, 0)
	st.insertLanded = true
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, book(1, trip.ID, 2))
	if !domain.IsUnavailable(err) || !errors.Is(err, domain.ErrWriteUnconfirmed) {
		t.Fatalf("expected unconfirmed store error, got %v", err)
	}
	if got := currentBookings(t, st, trip.ID); got != 2 {
		t.Fatalf("current=%d, want 2 held for the stored booking", got)
	}
	audit, err := svc.CapacityAudit(ctx, trip.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if audit.CommittedSeats != audit.CurrentBookings || audit.Drift != 0 {
		t.Fatalf("ledger and bookings disagree: %+v", audit)
	}

	st.insertLanded = false
	if _, err := svc.CreateBooking(ctx, book(2, trip.ID, 2)); !domain.IsInsufficientCapacity(err) {
		t.Fatalf("expected trip to be full, got %v", err)
	}
}

func TestCreateBookingReloadFailureAfterInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	svc, st := newEngine(t)
	svc.Bookings = repositories.BookingRepo{DB: db}
	trip := seedTrip(t, st, 2, 0)

	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery("FROM bookings b WHERE b.id = \\?").WithArgs(int64(7)).
		WillReturnError(errors.New("read: connection reset by peer"))

	b, err := svc.CreateBooking(context.Background(), book(1, trip.ID, 2))
	if err != nil {
		t.Fatalf("stored booking reported as failure: %v", err)
	}
	if b.ID != 7 || b.Status != models.StatusPending || b.NumberOfPilgrims != 2 {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if got := currentBookings(t, st, trip.ID); got != 2 {
		t.Fatalf("current=%d, want 2", got)
	}
	if _, err := svc.CreateBooking(context.Background(), book(2, trip.ID, 2)); !domain.IsInsufficientCapacity(err) {
		t.Fatalf("expected trip to be full, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateBookingLostInsertIDKeepsSeats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	svc, st := newEngine(t)
	svc.Bookings = repositories.BookingRepo{DB: db}
	trip := seedTrip(t, st, 4, 1)

	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewErrorResult(errors.New("no insert id")))

	_, err = svc.CreateBooking(context.Background(), book(1, trip.ID, 3))
	if !domain.IsUnavailable(err) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if got := currentBookings(t, st, trip.ID); got != 4 {
		t.Fatalf("current=%d, want 4 while the insert outcome is unknown", got)
	}
	if calls, _ := st.counts(); calls != 0 {
		t.Fatalf("release called %d times for a possibly stored booking", calls)
	}
}

func TestCreateBookingSurvivesCallerCancellationAfterReserve(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 5, 0)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Ledger.Store = cancelAfterReserve{faultyStore: st, cancel: cancel}

	b, err := svc.CreateBooking(ctx, book(1, trip.ID, 2))
	if err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
	stored, err := st.GetBooking(context.Background(), b.ID)
	if err != nil || stored.NumberOfPilgrims != 2 {
		t.Fatalf("booking not stored: %+v err=%v", stored, err)
	}
	if got := currentBookings(t, st, trip.ID); got != 2 {
		t.Fatalf("current=%d, want 2", got)
	}
}

func TestGuestNotCreatedForUnbookableTrip(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 5, 0)
	ctx := context.Background()
	if err := st.SetTripActive(ctx, trip.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	in := book(models.GuestUserID, trip.ID, 1)
	if _, err := svc.CreateBooking(ctx, in); !domain.IsValidation(err) {
		t.Fatalf("expected inactive trip error, got %v", err)
	}
	in.TripID = 999
	if _, err := svc.CreateBooking(ctx, in); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := st.GetUserByEmail(ctx, in.ContactEmail); !domain.IsNotFound(err) {
		t.Fatalf("guest user created for a rejected booking: %v", err)
	}
}

func TestTransitionReleasesExactlyOnce(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, book(1, trip.ID, 3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Transition(ctx, b.ID, models.StatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := currentBookings(t, st, trip.ID); got != 3 {
		t.Fatalf("confirm changed ledger: %d", got)
	}
	if _, err := svc.Transition(ctx, b.ID, models.StatusCancelledByOrganizer); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := currentBookings(t, st, trip.ID); got != 0 {
		t.Fatalf("current=%d after cancel, want 0", got)
	}

	_, err = svc.Transition(ctx, b.ID, models.StatusRefunded)
	if !domain.IsTerminalState(err) {
		t.Fatalf("expected terminal state, got %v", err)
	}
	calls, seats := st.counts()
	if calls != 1 || seats != 3 {
		t.Fatalf("release calls=%d seats=%d, want 1/3", calls, seats)
	}
	stored, _ := svc.GetBooking(ctx, b.ID)
	if stored.Status != models.StatusCancelledByOrganizer {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestTransitionConcurrentCancelsReleaseOnce(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)
	ctx := context.Background()
	b, err := svc.CreateBooking(ctx, book(1, trip.ID, 4))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	targets := []models.BookingStatus{
		models.StatusCancelledByPilgrim, models.StatusCancelledByOrganizer,
		models.StatusNoShow, models.StatusRefunded, models.StatusPaid,
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(to models.BookingStatus) {
			defer wg.Done()
			_, err := svc.Transition(ctx, b.ID, to)
			if err != nil && !domain.IsTerminalState(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}(targets[i%len(targets)])
	}
	wg.Wait()

	calls, _ := st.counts()
	stored, _ := svc.GetBooking(ctx, b.ID)
	if !stored.Status.IsTerminal() {
		t.Fatalf("expected terminal status, got %s", stored.Status)
	}
	if calls != 1 {
		t.Fatalf("release calls=%d, want 1", calls)
	}
	if got := currentBookings(t, st, trip.ID); got != 0 {
		t.Fatalf("current=%d, want 0", got)
	}
}

func TestTerminalStatesAbsorb(t *testing.T) {
	terminal := []models.BookingStatus{
		models.StatusCompleted, models.StatusCancelledByPilgrim, models.StatusCancelledByOrganizer,
		models.StatusRefunded, models.StatusNoShow,
	}
	for _, status := range terminal {
		svc, st := newEngine(t)
		trip := seedTrip(t, st, 10, 0)
		ctx := context.Background()
		b, err := svc.CreateBooking(ctx, book(1, trip.ID, 2))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := svc.Transition(ctx, b.ID, status); err != nil {
			t.Fatalf("move to %s: %v", status, err)
		}
		before := currentBookings(t, st, trip.ID)
		for _, next := range models.AllStatuses {
			if _, err := svc.Transition(ctx, b.ID, next); !domain.IsTerminalState(err) {
				t.Fatalf("%s -> %s: expected terminal state, got %v", status, next, err)
			}
		}
		if got := currentBookings(t, st, trip.ID); got != before {
			t.Fatalf("%s: ledger moved after terminal rejections: %d -> %d", status, before, got)
		}
	}
}

func TestCompletedKeepsSeats(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)
	b, _ := svc.CreateBooking(context.Background(), book(1, trip.ID, 2))
	if _, err := svc.Transition(context.Background(), b.ID, models.StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := currentBookings(t, st, trip.ID); got != 2 {
		t.Fatalf("completed booking released seats: current=%d", got)
	}
}

func TestTransitionSameStatusIsNoop(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)
	b, _ := svc.CreateBooking(context.Background(), book(1, trip.ID, 2))

	got, err := svc.Transition(context.Background(), b.ID, models.StatusPending)
	if err != nil || got.Status != models.StatusPending {
		t.Fatalf("same status: %+v err=%v", got, err)
	}
	if calls, _ := st.counts(); calls != 0 {
		t.Fatalf("no-op released seats")
	}
}

func TestTransitionSkippingStatesIsAllowed(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)
	b, _ := svc.CreateBooking(context.Background(), book(1, trip.ID, 2))

	for _, to := range []models.BookingStatus{models.StatusReady, models.StatusDocumentsPending, models.StatusInProgress} {
		if _, err := svc.Transition(context.Background(), b.ID, to); err != nil {
			t.Fatalf("-> %s: %v", to, err)
		}
	}
}

func TestTransitionUnknownBookingAndStatus(t *testing.T) {
	svc, _ := newEngine(t)
	if _, err := svc.Transition(context.Background(), 42, models.StatusConfirmed); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Transition(context.Background(), 42, models.BookingStatus("archived")); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFiveSeatScenario(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 5, 0)
	ctx := context.Background()

	a, err := svc.CreateBooking(ctx, book(1, trip.ID, 3))
	if err != nil {
		t.Fatalf("booking A: %v", err)
	}
	if got := currentBookings(t, st, trip.ID); got != 3 {
		t.Fatalf("after A current=%d, want 3", got)
	}

	_, err = svc.CreateBooking(ctx, book(2, trip.ID, 3))
	var capErr domain.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("booking B: expected insufficient capacity, got %v", err)
	}
	if capErr.Available != 2 || capErr.Requested != 3 {
		t.Fatalf("capacity error = %+v", capErr)
	}
	if got := currentBookings(t, st, trip.ID); got != 3 {
		t.Fatalf("after B rejection current=%d, want 3", got)
	}

	if _, err := svc.Transition(ctx, a.ID, models.StatusCancelledByPilgrim); err != nil {
		t.Fatalf("cancel A: %v", err)
	}
	if got := currentBookings(t, st, trip.ID); got != 0 {
		t.Fatalf("after cancel current=%d, want 0", got)
	}

	if _, err := svc.CreateBooking(ctx, book(2, trip.ID, 3)); err != nil {
		t.Fatalf("booking B retry: %v", err)
	}
	if got := currentBookings(t, st, trip.ID); got != 3 {
		t.Fatalf("after B retry current=%d, want 3", got)
	}
	seats, _ := svc.AvailableSeats(ctx, trip.ID)
	if seats != 2 {
		t.Fatalf("available=%d, want 2", seats)
	}
}

func TestConcurrentGuestBookingsShareIdentity(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)

	emails := []string{"Hajj.Family@Example.com", " hajj.family@example.com "}
	results := make([]models.Booking, len(emails))
	errs := make([]error, len(emails))
	var wg sync.WaitGroup
	for i, email := range emails {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			in := book(models.GuestUserID, trip.ID, 1)
			in.ContactEmail = email
			results[i], errs[i] = svc.CreateBooking(context.Background(), in)
		}(i, email)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("guest booking %d: %v", i, err)
		}
	}
	if results[0].UserID == 0 || results[0].UserID != results[1].UserID {
		t.Fatalf("guest ids differ: %d vs %d", results[0].UserID, results[1].UserID)
	}
	if n := st.UserCount(); n != 1 {
		t.Fatalf("users created = %d, want 1", n)
	}
}

func TestGuestBookingRequiresEmail(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)
	in := book(models.GuestUserID, trip.ID, 1)
	in.ContactEmail = ""
	if _, err := svc.CreateBooking(context.Background(), in); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransitionAsPermissions(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)
	ctx := context.Background()
	b, _ := svc.CreateBooking(ctx, book(5, trip.ID, 1))

	owner := domain.RequestContext{UserID: 5, Role: domain.RolePilgrim}
	stranger := domain.RequestContext{UserID: 6, Role: domain.RolePilgrim}
	otherOrg := domain.RequestContext{UserID: 101, Role: domain.RoleOrganizer}
	org := domain.RequestContext{UserID: 100, Role: domain.RoleOrganizer}

	if _, err := svc.TransitionAs(ctx, stranger, b.ID, models.StatusCancelledByPilgrim); !domain.IsForbidden(err) {
		t.Fatalf("stranger: expected forbidden, got %v", err)
	}
	if _, err := svc.TransitionAs(ctx, owner, b.ID, models.StatusConfirmed); !domain.IsForbidden(err) {
		t.Fatalf("owner confirm: expected forbidden, got %v", err)
	}
	if _, err := svc.TransitionAs(ctx, otherOrg, b.ID, models.StatusConfirmed); !domain.IsForbidden(err) {
		t.Fatalf("other organizer: expected forbidden, got %v", err)
	}
	if _, err := svc.TransitionAs(ctx, domain.RequestContext{}, b.ID, models.StatusConfirmed); !domain.IsForbidden(err) {
		t.Fatalf("anonymous: expected forbidden, got %v", err)
	}
	if _, err := svc.TransitionAs(ctx, org, b.ID, models.StatusConfirmed); err != nil {
		t.Fatalf("organizer confirm: %v", err)
	}
	if _, err := svc.TransitionAs(ctx, owner, b.ID, models.StatusCancelledByPilgrim); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	if _, err := svc.GetBookingAs(ctx, stranger, b.ID); !domain.IsForbidden(err) {
		t.Fatalf("stranger read: expected forbidden, got %v", err)
	}
	if _, err := svc.GetBookingAs(ctx, org, b.ID); err != nil {
		t.Fatalf("organizer read: %v", err)
	}
}

func TestCapacityAuditReportsDrift(t *testing.T) {
	svc, st := newEngine(t)
	trip := seedTrip(t, st, 10, 0)
	ctx := context.Background()
	if _, err := svc.CreateBooking(ctx, book(1, trip.ID, 3)); err != nil {
		t.Fatalf("create: %v", err)
	}

	audit, err := svc.CapacityAudit(ctx, trip.ID)
	if err != nil || audit.Drift != 0 || audit.CommittedSeats != 3 {
		t.Fatalf("clean audit = %+v err=%v", audit, err)
	}

	// A reservation whose booking row never landed.
	_, _ = st.Store.TryReserve(ctx, trip.ID, 2)
	audit, err = svc.CapacityAudit(ctx, trip.ID)
	if err != nil || audit.Drift != 2 || audit.CurrentBookings != 5 {
		t.Fatalf("drift audit = %+v err=%v", audit, err)
	}
}

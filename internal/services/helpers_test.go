package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/repositories/memstore"
	"pilgrimage/internal/utils"

	"github.com/shopspring/decimal"
)

var errBadConn = errors.New("driver: bad connection")

// faultyStore wraps memstore with injectable failures and call counters.
type faultyStore struct {
	*memstore.Store

	mu              sync.Mutex
	releaseFailures int // remaining failing Release calls; -1 fails forever
	releaseCalls    int
	releasedSeats   int
	blockReserve    bool
	insertErr       error
	// insertLanded stores the booking and still reports an unconfirmed write.
	insertLanded bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memstore.New()}
}

func (f *faultyStore) TryReserve(ctx context.Context, tripID int64, seats int) (bool, error) {
	f.mu.Lock()
	block := f.blockReserve
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return f.Store.TryReserve(ctx, tripID, seats)
}

func (f *faultyStore) Release(ctx context.Context, tripID int64, seats int) error {
	f.mu.Lock()
	f.releaseCalls++
	fail := f.releaseFailures != 0
	if f.releaseFailures > 0 {
		f.releaseFailures--
	}
	f.mu.Unlock()
	if fail {
		return errBadConn
	}
	if err := f.Store.Release(ctx, tripID, seats); err != nil {
		return err
	}
	f.mu.Lock()
	f.releasedSeats += seats
	f.mu.Unlock()
	return nil
}

func (f *faultyStore) InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	f.mu.Lock()
	err, landed := f.insertErr, f.insertLanded
	f.mu.Unlock()
	if err != nil {
		return models.Booking{}, err
	}
	if landed {
		if _, err := f.Store.InsertBooking(ctx, b); err != nil {
			return models.Booking{}, err
		}
		return models.Booking{}, fmt.Errorf("insert booking: %w: %w", domain.ErrWriteUnconfirmed, errBadConn)
	}
	return f.Store.InsertBooking(ctx, b)
}

func (f *faultyStore) counts() (calls, seats int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releaseCalls, f.releasedSeats
}

var fastBackoff = utils.Backoff{Initial: time.Millisecond, Max: 4 * time.Millisecond, Factor: 2}

func newEngine(t *testing.T) (*BookingLifecycle, *faultyStore) {
	t.Helper()
	st := newFaultyStore()
	ledger := NewCapacityLedger(st, nil, 200*time.Millisecond, time.Second)
	ledger.Backoff = fastBackoff
	return NewBookingLifecycle(ledger, st, NewGuestResolver(st)), st
}

// seedTrip creates an active trip owned by organizer 100 with current seats already taken.
func seedTrip(t *testing.T, st *faultyStore, maxPilgrims, current int) models.Trip {
	t.Helper()
	ctx := context.Background()
	trip, err := st.CreateTrip(ctx, models.TripInput{
		OrganizerID:    100,
		Title:          "Umrah Ramadan",
		Destination:    "Makkah",
		StartDate:      "2027-03-01",
		EndDate:        "2027-03-12",
		PricePerPerson: decimal.RequireFromString("2500.50"),
		MaxPilgrims:    maxPilgrims,
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if current > 0 {
		if ok, err := st.Store.TryReserve(ctx, trip.ID, current); !ok || err != nil {
			t.Fatalf("seed reserve: ok=%v err=%v", ok, err)
		}
	}
	return trip
}

func currentBookings(t *testing.T, st *faultyStore, tripID int64) int {
	t.Helper()
	trip, err := st.GetTrip(context.Background(), tripID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	return trip.CurrentBookings
}

func book(userID, tripID int64, seats int) models.CreateBookingInput {
	return models.CreateBookingInput{
		TripID:           tripID,
		UserID:           userID,
		NumberOfPilgrims: seats,
		ContactEmail:     "family@example.com",
		ContactPhone:     "+966 55 000 1111",
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// cancelAfterReserve cancels the request right after the seats are taken.
type cancelAfterReserve struct {
	*faultyStore
	cancel context.CancelFunc
}

func (c cancelAfterReserve) TryReserve(ctx context.Context, tripID int64, seats int) (bool, error) {
	ok, err := c.faultyStore.TryReserve(ctx, tripID, seats)
	c.cancel()
	return ok, err
}

package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"pilgrimage/internal/cache"
	intdb "pilgrimage/internal/db"
	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/metrics"
	"pilgrimage/internal/utils"
)

// CapacityLedger owns every change to a trip's current_bookings. Other code
// reads availability through it and never writes the counter directly.
type CapacityLedger struct {
	Store          CapacityStore
	Cache          *cache.Availability
	CallTimeout    time.Duration // bound on a single reserve call
	ReleaseTimeout time.Duration // total budget for acknowledging a release
	Backoff        utils.Backoff

	gens sync.Map // trip id -> *atomic.Uint64, bumped on every counter change
}

func NewCapacityLedger(store CapacityStore, c *cache.Availability, callTimeout, releaseTimeout time.Duration) *CapacityLedger {
	return &CapacityLedger{
		Store:          store,
		Cache:          c,
		CallTimeout:    callTimeout,
		ReleaseTimeout: releaseTimeout,
		Backoff:        utils.DefaultBackoff,
	}
}

// TryReserve atomically adds seats if the trip can still hold them. It returns
// false with a nil error when the ceiling would be crossed. Any store failure,
// including a timeout, is reported as UnavailableError and never as a success.
func (l *CapacityLedger) TryReserve(ctx context.Context, tripID int64, seats int) (bool, error) {
	if seats < 1 {
		return false, domain.ValidationError{Field: "number_of_pilgrims", Err: domain.ErrInvalidSeatCount}
	}
	callCtx, cancel := l.withCallTimeout(ctx)
	defer cancel()

	start := time.Now()
	ok, err := l.Store.TryReserve(callCtx, tripID, seats)
	switch {
	case err != nil && domain.IsNotFound(err):
		return false, err
	case err != nil:
		metrics.RecordReservation(metrics.OutcomeUnavailable, time.Since(start))
		utils.LogEventf(ctx, "ledger", "reserve_unavailable", "trip_id=%d seats=%d transient=%t err=%v", tripID, seats, intdb.IsTransient(err), err)
		return false, domain.UnavailableError{Op: "reserve", Err: err}
	case !ok:
		metrics.RecordReservation(metrics.OutcomeRejected, time.Since(start))
		utils.LogEventf(ctx, "ledger", "reserve_rejected", "trip_id=%d seats=%d", tripID, seats)
		return false, nil
	}
	metrics.RecordReservation(metrics.OutcomeReserved, time.Since(start))
	l.changed(ctx, tripID)
	utils.LogEventf(ctx, "ledger", "reserved", "trip_id=%d seats=%d", tripID, seats)
	return true, nil
}

// Release gives seats back, floored at zero by the store. The call is detached
// from the caller's cancellation and retried with backoff until the store
// acknowledges it or ReleaseTimeout runs out.
func (l *CapacityLedger) Release(ctx context.Context, tripID int64, seats int) error {
	if seats < 1 {
		return nil
	}
	budget := l.ReleaseTimeout
	if budget <= 0 {
		budget = 30 * time.Second
	}
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)
	defer cancel()

	attempts := 0
	err := utils.RetryUntil(relCtx, l.Backoff, func(err error) bool {
		return !domain.IsNotFound(err)
	}, func(c context.Context) error {
		attempts++
		callCtx, cancelCall := l.withCallTimeout(c)
		defer cancelCall()
		return l.Store.Release(callCtx, tripID, seats)
	})
	if err != nil {
		metrics.RecordRelease(metrics.OutcomeFailed)
		utils.LogEventf(ctx, "ledger", "release_failed", "trip_id=%d seats=%d attempts=%d transient=%t err=%v", tripID, seats, attempts, intdb.IsTransient(err), err)
		if domain.IsNotFound(err) {
			return err
		}
		return domain.UnavailableError{Op: "release", Err: err}
	}
	metrics.RecordRelease(metrics.OutcomeReleased)
	l.changed(relCtx, tripID)
	utils.LogEventf(ctx, "ledger", "released", "trip_id=%d seats=%d attempts=%d", tripID, seats, attempts)
	return nil
}

// Resize moves the trip's ceiling. It never goes below the seats already
// taken, so shrinking a busy trip is a ConflictError rather than an overbooking.
func (l *CapacityLedger) Resize(ctx context.Context, tripID int64, maxPilgrims int) error {
	if maxPilgrims < 1 {
		return domain.ValidationError{Field: "max_pilgrims", Msg: "must be at least 1"}
	}
	callCtx, cancel := l.withCallTimeout(ctx)
	defer cancel()
	ok, err := l.Store.SetCapacity(callCtx, tripID, maxPilgrims)
	switch {
	case err != nil && domain.IsNotFound(err):
		return err
	case err != nil:
		utils.LogEventf(ctx, "ledger", "resize_unavailable", "trip_id=%d max=%d err=%v", tripID, maxPilgrims, err)
		return domain.UnavailableError{Op: "resize", Err: err}
	case !ok:
		msg := "capacity is below the seats already booked"
		if trip, err := l.Trip(ctx, tripID); err == nil {
			msg = fmt.Sprintf("capacity %d is below the %d seats already booked", maxPilgrims, trip.CurrentBookings)
		}
		return domain.ConflictError{Resource: "trip", Msg: msg}
	}
	l.changed(ctx, tripID)
	utils.LogEventf(ctx, "ledger", "resized", "trip_id=%d max=%d", tripID, maxPilgrims)
	return nil
}

// AvailableSeats is maxPilgrims - currentBookings. The cached figure is for
// display only. A read that overlaps a reserve or release in this process is
// not written back; one racing another process can linger for the cache TTL,
// which is why the TTL stays short.
func (l *CapacityLedger) AvailableSeats(ctx context.Context, tripID int64) (int, error) {
	if n, ok := l.Cache.Get(ctx, tripID); ok {
		return n, nil
	}
	gen := l.generation(tripID).Load()
	trip, err := l.Trip(ctx, tripID)
	if err != nil {
		return 0, err
	}
	n := trip.AvailableSeats()
	if l.generation(tripID).Load() == gen {
		l.Cache.Set(ctx, tripID, n)
	}
	return n, nil
}

func (l *CapacityLedger) generation(tripID int64) *atomic.Uint64 {
	v, _ := l.gens.LoadOrStore(tripID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

func (l *CapacityLedger) changed(ctx context.Context, tripID int64) {
	l.generation(tripID).Add(1)
	l.Cache.Invalidate(ctx, tripID)
}

// Trip reads the trip row, mapping store faults to UnavailableError.
func (l *CapacityLedger) Trip(ctx context.Context, tripID int64) (models.Trip, error) {
	callCtx, cancel := l.withCallTimeout(ctx)
	defer cancel()
	trip, err := l.Store.GetTrip(callCtx, tripID)
	if err != nil {
		if domain.IsNotFound(err) {
			return trip, err
		}
		return trip, domain.UnavailableError{Op: "get trip " + strconv.FormatInt(tripID, 10), Err: err}
	}
	return trip, nil
}

func (l *CapacityLedger) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.CallTimeout)
}

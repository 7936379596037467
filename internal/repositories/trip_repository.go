package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	intconfig "pilgrimage/internal/config"
	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"

	"github.com/jmoiron/sqlx"
)

const tripColumns = `id, organizer_id, title, destination, start_date, end_date,
	price_per_person, max_pilgrims, current_bookings, is_active, created_at, updated_at`

// TripRepo persists trips. current_bookings is only written by TryReserve and
// Release, each a single conditional UPDATE so the row lock taken by InnoDB
// makes the check-and-write atomic per trip.
type TripRepo struct {
	DB *sql.DB
}

func (r TripRepo) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r TripRepo) x() *sqlx.DB {
	return sqlx.NewDb(r.db(), "mysql")
}

func (r TripRepo) GetTrip(ctx context.Context, id int64) (models.Trip, error) {
	var t models.Trip
	err := r.x().GetContext(ctx, &t, `SELECT `+tripColumns+` FROM trips WHERE id = ? LIMIT 1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, domain.NotFoundError{Resource: "trip", Err: err}
		}
		return t, fmt.Errorf("get trip %d: %w", id, err)
	}
	return t, nil
}

func (r TripRepo) ListTrips(ctx context.Context, f models.TripFilter) ([]models.Trip, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.OrganizerID > 0 {
		where = append(where, "organizer_id = ?")
		args = append(args, f.OrganizerID)
	}
	if f.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	query := `SELECT ` + tripColumns + ` FROM trips WHERE ` + strings.Join(where, " AND ") + ` ORDER BY start_date ASC, id ASC LIMIT ? OFFSET ?`
	out := []models.Trip{}
	if err := r.x().SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	return out, nil
}

func (r TripRepo) CreateTrip(ctx context.Context, in models.TripInput) (models.Trip, error) {
	res, err := r.db().ExecContext(ctx, `
		INSERT INTO trips (organizer_id, title, destination, start_date, end_date, price_per_person, max_pilgrims, current_bookings, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1, NOW(), NOW())
	`, in.OrganizerID, in.Title, in.Destination, in.StartDate, in.EndDate, in.PricePerPerson, in.MaxPilgrims)
	if err != nil {
		return models.Trip{}, fmt.Errorf("insert trip: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Trip{}, fmt.Errorf("insert trip: %w", err)
	}
	return r.GetTrip(ctx, id)
}

func (r TripRepo) SetTripActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db().ExecContext(ctx, `UPDATE trips SET is_active = ?, updated_at = NOW() WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("update trip %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetTrip(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// TryReserve adds seats only if the ceiling still holds. It reports false,
// without mutation, when the trip cannot fit them.
func (r TripRepo) TryReserve(ctx context.Context, tripID int64, seats int) (bool, error) {
	res, err := r.db().ExecContext(ctx, `
		UPDATE trips
		SET current_bookings = current_bookings + ?, updated_at = NOW()
		WHERE id = ? AND current_bookings + ? <= max_pilgrims
	`, seats, tripID, seats)
	if err != nil {
		return false, fmt.Errorf("reserve %d seats on trip %d: %w", seats, tripID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve %d seats on trip %d: %w", seats, tripID, err)
	}
	return n == 1, nil
}

// SetCapacity changes max_pilgrims in the same statement that checks it still
// covers current_bookings. It reports false, without mutation, when it does not.
func (r TripRepo) SetCapacity(ctx context.Context, tripID int64, maxPilgrims int) (bool, error) {
	res, err := r.db().ExecContext(ctx, `
		UPDATE trips
		SET max_pilgrims = ?, updated_at = NOW()
		WHERE id = ? AND current_bookings <= ?
	`, maxPilgrims, tripID, maxPilgrims)
	if err != nil {
		return false, fmt.Errorf("set capacity of trip %d: %w", tripID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set capacity of trip %d: %w", tripID, err)
	}
	if n == 1 {
		return true, nil
	}
	// Zero rows: the trip is missing, too full, or already at this capacity.
	trip, err := r.GetTrip(ctx, tripID)
	if err != nil {
		return false, err
	}
	return trip.MaxPilgrims == maxPilgrims, nil
}

// Release subtracts seats, floored at zero.
func (r TripRepo) Release(ctx context.Context, tripID int64, seats int) error {
	_, err := r.db().ExecContext(ctx, `
		UPDATE trips
		SET current_bookings = GREATEST(current_bookings - ?, 0), updated_at = NOW()
		WHERE id = ?
	`, seats, tripID)
	if err != nil {
		return fmt.Errorf("release %d seats on trip %d: %w", seats, tripID, err)
	}
	return nil
}

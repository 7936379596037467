package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	intconfig "pilgrimage/internal/config"
	intdb "pilgrimage/internal/db"
	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/utils"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

const bookingColumns = `b.id, b.trip_id, b.user_id, b.number_of_pilgrims, b.total_amount, b.status,
	b.contact_email, b.contact_phone, COALESCE(b.special_requests, '') AS special_requests, b.created_at, b.updated_at`

// BookingRepo is the durable record of bookings. The stored status is the
// source of truth for the lifecycle; it only changes via CompareAndSetStatus.
type BookingRepo struct {
	DB *sql.DB
}

func (r BookingRepo) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r BookingRepo) x() *sqlx.DB {
	return sqlx.NewDb(r.db(), "mysql")
}

func (r BookingRepo) InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	res, err := r.db().ExecContext(ctx, `
		INSERT INTO bookings (trip_id, user_id, number_of_pilgrims, total_amount, status, contact_email, contact_phone, special_requests, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`,
		b.TripID,
		b.UserID,
		b.NumberOfPilgrims,
		b.TotalAmount,
		string(b.Status),
		b.ContactEmail,
		b.ContactPhone,
		intdb.NullIfEmpty(b.SpecialRequests),
	)
	if err != nil {
		// A cancelled statement or a connection lost mid-write may have committed.
		if ctx.Err() != nil || errors.Is(err, mysql.ErrInvalidConn) {
			return models.Booking{}, fmt.Errorf("insert booking: %w: %w", domain.ErrWriteUnconfirmed, err)
		}
		return models.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Booking{}, fmt.Errorf("insert booking: %w: %w", domain.ErrWriteUnconfirmed, err)
	}
	saved, err := r.GetBooking(ctx, id)
	if err != nil {
		// The row is stored. Report what was written instead of failing the booking.
		utils.LogEventf(ctx, "booking_repo", "reload_failed", "booking_id=%d err=%v", id, err)
		now := utils.NowUTC()
		b.ID = id
		b.CreatedAt = now
		b.UpdatedAt = now
		return b, nil
	}
	return saved, nil
}

func (r BookingRepo) GetBooking(ctx context.Context, id int64) (models.Booking, error) {
	var b models.Booking
	err := r.x().GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ? LIMIT 1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, domain.NotFoundError{Resource: "booking", Err: err}
		}
		return b, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

// CompareAndSetStatus moves a booking from -> to only if it is still in from.
// It reports false when another writer changed the status first.
func (r BookingRepo) CompareAndSetStatus(ctx context.Context, id int64, from, to models.BookingStatus) (bool, error) {
	res, err := r.db().ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = NOW()
		WHERE id = ? AND status = ?
	`, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("update booking %d status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update booking %d status: %w", id, err)
	}
	return n == 1, nil
}

func (r BookingRepo) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	from := `bookings b`
	where := []string{"1=1"}
	args := []any{}
	if f.TripID > 0 {
		where = append(where, "b.trip_id = ?")
		args = append(args, f.TripID)
	}
	if f.UserID > 0 {
		where = append(where, "b.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.OrganizerID > 0 {
		from = `bookings b JOIN trips t ON t.id = b.trip_id`
		where = append(where, "t.organizer_id = ?")
		args = append(args, f.OrganizerID)
	}
	if f.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	query := `SELECT ` + bookingColumns + ` FROM ` + from + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?`
	out := []models.Booking{}
	if err := r.x().SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return out, nil
}

// CommittedSeats sums the seats of a trip's bookings that are in a seat-holding status.
func (r BookingRepo) CommittedSeats(ctx context.Context, tripID int64) (int, error) {
	query, args, err := sqlx.In(
		`SELECT COALESCE(SUM(number_of_pilgrims), 0) FROM bookings WHERE trip_id = ? AND status IN (?)`,
		tripID, statusStrings(models.SeatCommittedStatuses()),
	)
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.x().GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("sum committed seats for trip %d: %w", tripID, err)
	}
	return total, nil
}

func statusStrings(in []models.BookingStatus) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

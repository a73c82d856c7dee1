package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ledgerdb "ms-gymclass/internal/ledger/db"
	"ms-gymclass/internal/models"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type DB struct {
	Bun *bun.DB
}

// txOptions asks Postgres for serializable isolation so concurrent bookings
// against the same instance cannot both pass the capacity check. The SQLite
// test path keeps its single-writer default.
func (d *DB) txOptions() *sql.TxOptions {
	if d.Bun.Dialect().Name() == dialect.PG {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// retryable reports a serialization or deadlock conflict worth one retry.
func retryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// CreateBooking reserves one seat and debits one credit in a single
// transaction: lock the class row, re-check cancelled/duplicate/capacity,
// consume the credit, insert the booking. Retried once on a serialization
// conflict; the partial unique index on active bookings backstops the
// duplicate check.
func (d *DB) CreateBooking(ctx context.Context, booking *models.Booking, now time.Time) error {
	err := d.createBookingTx(ctx, booking, now)
	if retryable(err) {
		err = d.createBookingTx(ctx, booking, now)
	}
	if isUniqueViolation(err) {
		return models.ErrAlreadyBooked
	}
	return err
}

func (d *DB) createBookingTx(ctx context.Context, booking *models.Booking, now time.Time) error {
	return d.Bun.RunInTx(ctx, d.txOptions(), func(ctx context.Context, tx bun.Tx) error {
		var inst models.ClassInstance
		q := tx.NewSelect().
			Model(&inst).
			Where("id = ?", booking.ClassInstanceID).
			Limit(1)
		if tx.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrClassNotFound
			}
			return err
		}
		if inst.Cancelled {
			return models.ErrClassNotFound
		}

		dup, err := tx.NewSelect().
			Model((*models.Booking)(nil)).
			Where("class_instance_id = ?", booking.ClassInstanceID).
			Where("member_id = ?", booking.MemberID).
			Where("booked_for = ?", booking.BookedFor).
			Where("status <> ?", models.BookingStatusCancelled).
			Count(ctx)
		if err != nil {
			return err
		}
		if dup > 0 {
			return models.ErrAlreadyBooked
		}

		booked, err := tx.NewSelect().
			Model((*models.Booking)(nil)).
			Where("class_instance_id = ?", booking.ClassInstanceID).
			Where("status <> ?", models.BookingStatusCancelled).
			Count(ctx)
		if err != nil {
			return err
		}
		if booked >= inst.Capacity {
			return models.ErrClassFull
		}

		if _, err := ledgerdb.DebitForBooking(ctx, tx, booking.MemberID, booking.ID, now); err != nil {
			return err
		}

		booking.Status = models.BookingStatusConfirmed
		booking.BookedAt = now
		_, err = tx.NewInsert().Model(booking).Exec(ctx)
		return err
	})
}

// CancelBooking releases the seat and returns the credit to the exact
// package entry the booking debited. Refused at or after starts_at minus
// the window.
func (d *DB) CancelBooking(ctx context.Context, memberID, bookingID string, window time.Duration, now time.Time) (*models.Booking, error) {
	booking, err := d.cancelBookingTx(ctx, memberID, bookingID, window, now)
	if retryable(err) {
		booking, err = d.cancelBookingTx(ctx, memberID, bookingID, window, now)
	}
	return booking, err
}

func (d *DB) cancelBookingTx(ctx context.Context, memberID, bookingID string, window time.Duration, now time.Time) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.RunInTx(ctx, d.txOptions(), func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(&booking).
			Where("id = ?", bookingID).
			Limit(1)
		if tx.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrBookingNotFound
			}
			return err
		}
		// Another member's booking is invisible, and only a confirmed
		// booking can be cancelled.
		if booking.MemberID != memberID || booking.Status != models.BookingStatusConfirmed {
			return models.ErrBookingNotFound
		}

		var inst models.ClassInstance
		err := tx.NewSelect().
			Model(&inst).
			Where("id = ?", booking.ClassInstanceID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return err
		}
		// The boundary itself is too late: at exactly starts_at-window
		// the cancellation is refused.
		if !now.Before(inst.StartsAt.Add(-window)) {
			return models.ErrCancellationWindowPassed
		}

		res, err := tx.NewUpdate().
			Model((*models.Booking)(nil)).
			Set("status = ?", models.BookingStatusCancelled).
			Set("cancelled_at = ?", now).
			Where("id = ?", bookingID).
			Where("status = ?", models.BookingStatusConfirmed).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrBookingNotFound
		}

		if _, err := ledgerdb.ReverseForBooking(ctx, tx, bookingID, now); err != nil {
			return err
		}
		booking.Status = models.BookingStatusCancelled
		booking.CancelledAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) GetBookingByID(id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (d *DB) GetInstanceByID(id string) (*models.ClassInstance, error) {
	var inst models.ClassInstance
	err := d.Bun.NewSelect().
		Model(&inst).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrClassNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// ListBookingsByMember returns the member's bookings newest first with
// their class instances merged in.
func (d *DB) ListBookingsByMember(memberID string) ([]models.BookingWithClass, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("member_id = ?", memberID).
		Order("booked_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return []models.BookingWithClass{}, nil
	}

	ids := make([]string, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ClassInstanceID
	}
	var instances []models.ClassInstance
	err = d.Bun.NewSelect().
		Model(&instances).
		Where("id IN (?)", bun.In(ids)).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}

	instByID := make(map[string]*models.ClassInstance, len(instances))
	for i := range instances {
		instByID[instances[i].ID] = &instances[i]
	}

	result := make([]models.BookingWithClass, len(bookings))
	for i, b := range bookings {
		result[i] = models.BookingWithClass{
			Booking: b,
			Class:   instByID[b.ClassInstanceID],
		}
	}
	return result, nil
}

// MarkBookingStatus moves a booking out of confirmed. The conditional
// update is the whole state machine: zero rows means the booking was not
// in confirmed anymore.
func (d *DB) MarkBookingStatus(bookingID, status string, markedAt time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", status).
		Set("attendance_marked_at = ?", markedAt).
		Where("id = ?", bookingID).
		Where("status = ?", models.BookingStatusConfirmed).
		Exec(context.Background())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

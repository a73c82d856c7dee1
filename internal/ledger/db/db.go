package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-gymclass/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- CATALOG ----------------

func (d *DB) GetPackageByID(id string) (*models.SessionPackage, error) {
	var pkg models.SessionPackage
	err := d.Bun.NewSelect().
		Model(&pkg).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

func (d *DB) ListPackages() ([]models.SessionPackage, error) {
	var pkgs []models.SessionPackage
	err := d.Bun.NewSelect().
		Model(&pkgs).
		Where("active = ?", true).
		Order("price ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}

// ---------------- MEMBER ENTRIES ----------------

// GrantPackage inserts the member's entry and its grant transaction
// together.
func (d *DB) GrantPackage(ctx context.Context, mp *models.MemberPackage, grant *models.CreditTransaction) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(mp).Exec(ctx); err != nil {
			return err
		}
		grant.MemberPackageID = mp.ID
		_, err := tx.NewInsert().Model(grant).Exec(ctx)
		return err
	})
}

func (d *DB) ListMemberPackages(memberID string) ([]models.MemberPackage, error) {
	var entries []models.MemberPackage
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("member_id = ?", memberID).
		Order("expiry_date ASC", "purchase_date ASC", "id ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// AvailableCredits sums sessions_remaining over entries still valid at the
// given time. Entries count through their expiry instant inclusive; expired
// entries are inert, not deleted.
func (d *DB) AvailableCredits(memberID string, now time.Time) (int, error) {
	var total int
	err := d.Bun.NewSelect().
		Model((*models.MemberPackage)(nil)).
		ColumnExpr("COALESCE(SUM(sessions_remaining), 0)").
		Where("member_id = ?", memberID).
		Where("expiry_date >= ?", now).
		Scan(context.Background(), &total)
	return total, err
}

func (d *DB) ListTransactions(memberID string) ([]models.CreditTransaction, error) {
	var txs []models.CreditTransaction
	err := d.Bun.NewSelect().
		Model(&txs).
		Where("member_id = ?", memberID).
		Order("id DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// ---------------- TRANSACTIONAL PRIMITIVES ----------------
//
// These run inside a caller-owned transaction (the booking engine's
// serializable tx) or directly on *bun.DB. Consumption order is defined
// here and nowhere else: soonest expiry first, then oldest purchase, then
// id.

// DebitForBooking consumes one session from the eligible entry expiring
// soonest and records the movement, tagged with the booking ID.
func DebitForBooking(ctx context.Context, idb bun.IDB, memberID, bookingID string, now time.Time) (*models.CreditTransaction, error) {
	var entry models.MemberPackage
	q := idb.NewSelect().
		Model(&entry).
		Where("member_id = ?", memberID).
		Where("sessions_remaining > 0").
		Where("expiry_date >= ?", now).
		Order("expiry_date ASC", "purchase_date ASC", "id ASC").
		Limit(1)
	if idb.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrInsufficientCredits
		}
		return nil, err
	}

	res, err := idb.NewUpdate().
		Model((*models.MemberPackage)(nil)).
		Set("sessions_remaining = sessions_remaining - 1").
		Where("id = ?", entry.ID).
		Where("sessions_remaining > 0").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, models.ErrInsufficientCredits
	}

	debit := &models.CreditTransaction{
		MemberID:        memberID,
		MemberPackageID: entry.ID,
		BookingID:       bookingID,
		Delta:           -1,
		Reason:          models.ReasonBookingDebit,
		CreatedAt:       now,
	}
	if _, err := idb.NewInsert().Model(debit).Exec(ctx); err != nil {
		return nil, err
	}
	return debit, nil
}

// ReverseForBooking returns the debited session to the exact entry the
// booking consumed, even if that entry has expired since. The conditional
// update keeps sessions_remaining at or below the snapshot count.
func ReverseForBooking(ctx context.Context, idb bun.IDB, bookingID string, now time.Time) (*models.CreditTransaction, error) {
	var debit models.CreditTransaction
	err := idb.NewSelect().
		Model(&debit).
		Where("booking_id = ?", bookingID).
		Where("reason = ?", models.ReasonBookingDebit).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("no debit recorded for booking " + bookingID)
		}
		return nil, err
	}

	res, err := idb.NewUpdate().
		Model((*models.MemberPackage)(nil)).
		Set("sessions_remaining = sessions_remaining + 1").
		Where("id = ?", debit.MemberPackageID).
		Where("sessions_remaining < session_count").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, models.ErrCreditCeiling
	}

	credit := &models.CreditTransaction{
		MemberID:        debit.MemberID,
		MemberPackageID: debit.MemberPackageID,
		BookingID:       bookingID,
		Delta:           1,
		Reason:          models.ReasonBookingCancelled,
		CreatedAt:       now,
	}
	if _, err := idb.NewInsert().Model(credit).Exec(ctx); err != nil {
		return nil, err
	}
	return credit, nil
}

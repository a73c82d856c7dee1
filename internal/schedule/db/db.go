package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-gymclass/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- TEMPLATES ----------------

func (d *DB) InsertTemplate(tpl *models.ScheduleTemplate) error {
	_, err := d.Bun.NewInsert().Model(tpl).Exec(context.Background())
	return err
}

func (d *DB) GetTemplateByID(id string) (*models.ScheduleTemplate, error) {
	var tpl models.ScheduleTemplate
	err := d.Bun.NewSelect().
		Model(&tpl).
		Where("id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTemplateNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

func (d *DB) ListTemplates(activeOnly bool) ([]models.ScheduleTemplate, error) {
	var tpls []models.ScheduleTemplate
	q := d.Bun.NewSelect().
		Model(&tpls).
		Order("day_of_week ASC", "start_time ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Scan(context.Background()); err != nil {
		return nil, err
	}
	return tpls, nil
}

// DeactivateTemplate stops future generation. Templates are never deleted.
func (d *DB) DeactivateTemplate(id string, now time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.ScheduleTemplate)(nil)).
		Set("active = ?", false).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(context.Background())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrTemplateNotFound
	}
	return nil
}

// ---------------- CLASS INSTANCES ----------------

// InsertInstanceIgnoreDup relies on the (template_id, date) unique
// constraint: a concurrent or repeated run turns into a no-op instead of an
// error. Returns whether a row was actually created.
func (d *DB) InsertInstanceIgnoreDup(inst *models.ClassInstance) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(inst).
		On("CONFLICT (template_id, date) DO NOTHING").
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
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

// CancelInstance flips the cancelled flag; instances are otherwise
// immutable once generated.
func (d *DB) CancelInstance(id string) (*models.ClassInstance, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.ClassInstance)(nil)).
		Set("cancelled = ?", true).
		Where("id = ?", id).
		Exec(context.Background())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, models.ErrClassNotFound
	}
	return d.GetInstanceByID(id)
}

// ListInstancesWithCounts returns instances in [from, to] (dates,
// inclusive) with their active booking counts merged in.
func (d *DB) ListInstancesWithCounts(from, to string) ([]models.ClassWithAvailability, error) {
	var instances []models.ClassInstance
	err := d.Bun.NewSelect().
		Model(&instances).
		Where("date >= ?", from).
		Where("date <= ?", to).
		Order("starts_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return []models.ClassWithAvailability{}, nil
	}

	ids := make([]string, len(instances))
	for i, inst := range instances {
		ids[i] = inst.ID
	}

	type bookedRow struct {
		ClassInstanceID string `bun:"class_instance_id"`
		Booked          int    `bun:"booked"`
	}
	var rows []bookedRow
	err = d.Bun.NewSelect().
		Table("bookings").
		Column("class_instance_id").
		ColumnExpr("COUNT(*) AS booked").
		Where("class_instance_id IN (?)", bun.In(ids)).
		Where("status <> ?", models.BookingStatusCancelled).
		Group("class_instance_id").
		Scan(context.Background(), &rows)
	if err != nil {
		return nil, err
	}

	bookedByInstance := make(map[string]int, len(rows))
	for _, row := range rows {
		bookedByInstance[row.ClassInstanceID] = row.Booked
	}

	result := make([]models.ClassWithAvailability, len(instances))
	for i, inst := range instances {
		booked := bookedByInstance[inst.ID]
		spots := inst.Capacity - booked
		if spots < 0 {
			spots = 0
		}
		result[i] = models.ClassWithAvailability{
			ClassInstance: inst,
			Booked:        booked,
			SpotsLeft:     spots,
		}
	}
	return result, nil
}

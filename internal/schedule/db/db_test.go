package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-gymclass/internal/models"
	"ms-gymclass/internal/schedule/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	// Create a Bun DB instance
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	// Create required tables
	_, err = bunDB.NewCreateTable().Model((*models.ScheduleTemplate)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create schedule_templates table: %v", err)
	}

	_, err = bunDB.NewCreateTable().Model((*models.ClassInstance)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create class_instances table: %v", err)
	}

	_, err = bunDB.NewCreateTable().Model((*models.Booking)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create bookings table: %v", err)
	}

	// Return test DB
	return &db.DB{Bun: bunDB}, bunDB
}

func testInstance(templateID, date string, capacity int) *models.ClassInstance {
	day, _ := time.Parse("2006-01-02", date)
	return &models.ClassInstance{
		ID:              uuid.New().String(),
		TemplateID:      templateID,
		Date:            date,
		StartsAt:        day.Add(18*time.Hour + 30*time.Minute),
		DurationMinutes: 45,
		ClassType:       "hiit",
		CoachID:         "coach002",
		Location:        "Studio B",
		Capacity:        capacity,
		CreatedAt:       time.Now(),
	}
}

func TestTemplateLifecycle(t *testing.T) {
	// Set up test DB
	scheduleDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	tpl := &models.ScheduleTemplate{
		ID:              "tpl_yoga",
		DayOfWeek:       1,
		StartTime:       "07:00",
		DurationMinutes: 60,
		ClassType:       "yoga",
		CoachID:         "coach001",
		Location:        "Studio A",
		Capacity:        12,
		Active:          true,
		CreatedAt:       time.Now(),
	}

	// Test case: Insert and fetch a template
	err := scheduleDB.InsertTemplate(tpl)
	assert.NoError(t, err)

	got, err := scheduleDB.GetTemplateByID("tpl_yoga")
	assert.NoError(t, err)
	assert.Equal(t, "yoga", got.ClassType)
	assert.True(t, got.Active)

	// Test case: Deactivate flips the flag without deleting the row
	err = scheduleDB.DeactivateTemplate("tpl_yoga", time.Now())
	assert.NoError(t, err)

	got, err = scheduleDB.GetTemplateByID("tpl_yoga")
	assert.NoError(t, err)
	assert.False(t, got.Active)
	assert.False(t, got.UpdatedAt.IsZero())

	// Test case: Unknown template
	err = scheduleDB.DeactivateTemplate("nope", time.Now())
	assert.ErrorIs(t, err, models.ErrTemplateNotFound)

	_, err = scheduleDB.GetTemplateByID("nope")
	assert.ErrorIs(t, err, models.ErrTemplateNotFound)
}

func TestListTemplatesFiltersInactive(t *testing.T) {
	// Set up test DB
	scheduleDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	templates := []models.ScheduleTemplate{
		{
			ID: "tpl_spin", DayOfWeek: 5, StartTime: "19:00",
			DurationMinutes: 50, ClassType: "spin", CoachID: "coach001",
			Location: "Spin Room", Capacity: 10, Active: true, CreatedAt: time.Now(),
		},
		{
			ID: "tpl_retired", DayOfWeek: 1, StartTime: "07:00",
			DurationMinutes: 60, ClassType: "yoga", CoachID: "coach001",
			Location: "Studio A", Capacity: 12, Active: false, CreatedAt: time.Now(),
		},
	}
	_, err := bunDB.NewInsert().Model(&templates).Exec(context.Background())
	assert.NoError(t, err)

	// Test case: Active only
	active, err := scheduleDB.ListTemplates(true)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(active))
	assert.Equal(t, "tpl_spin", active[0].ID)

	// Test case: Everything, ordered by day then start time
	all, err := scheduleDB.ListTemplates(false)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(all))
	assert.Equal(t, "tpl_retired", all[0].ID)
}

func TestInsertInstanceIgnoreDup(t *testing.T) {
	// Set up test DB
	scheduleDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	// Test case: First insert creates the row
	created, err := scheduleDB.InsertInstanceIgnoreDup(testInstance("tpl_hiit", "2025-03-12", 16))
	assert.NoError(t, err)
	assert.True(t, created)

	// Test case: Same (template, date) with a fresh ID is silently skipped
	created, err = scheduleDB.InsertInstanceIgnoreDup(testInstance("tpl_hiit", "2025-03-12", 16))
	assert.NoError(t, err)
	assert.False(t, created)

	// Test case: Same template on another date is a new row
	created, err = scheduleDB.InsertInstanceIgnoreDup(testInstance("tpl_hiit", "2025-03-19", 16))
	assert.NoError(t, err)
	assert.True(t, created)

	count, err := bunDB.NewSelect().
		Model((*models.ClassInstance)(nil)).
		Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCancelInstance(t *testing.T) {
	// Set up test DB
	scheduleDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	inst := testInstance("tpl_hiit", "2025-03-12", 16)
	_, err := bunDB.NewInsert().Model(inst).Exec(context.Background())
	assert.NoError(t, err)

	// Test case: Cancel an existing instance
	cancelled, err := scheduleDB.CancelInstance(inst.ID)
	assert.NoError(t, err)
	assert.True(t, cancelled.Cancelled)

	// Test case: Cancel a non-existent instance
	_, err = scheduleDB.CancelInstance("nope")
	assert.ErrorIs(t, err, models.ErrClassNotFound)
}

func TestListInstancesWithCounts(t *testing.T) {
	// Set up test DB
	scheduleDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	busy := testInstance("tpl_hiit", "2025-03-12", 16)
	quiet := testInstance("tpl_hiit", "2025-03-19", 16)
	outside := testInstance("tpl_hiit", "2025-06-01", 16)
	for _, inst := range []*models.ClassInstance{busy, quiet, outside} {
		_, err := bunDB.NewInsert().Model(inst).Exec(context.Background())
		assert.NoError(t, err)
	}

	// Two live bookings and one cancelled on the busy class
	bookings := []models.Booking{
		{
			ID: uuid.New().String(), ClassInstanceID: busy.ID, MemberID: "member001",
			BookedFor: models.BookedForSelf, Status: models.BookingStatusConfirmed, BookedAt: time.Now(),
		},
		{
			ID: uuid.New().String(), ClassInstanceID: busy.ID, MemberID: "member002",
			BookedFor: models.BookedForSelf, Status: models.BookingStatusAttended, BookedAt: time.Now(),
		},
		{
			ID: uuid.New().String(), ClassInstanceID: busy.ID, MemberID: "member003",
			BookedFor: models.BookedForSelf, Status: models.BookingStatusCancelled, BookedAt: time.Now(),
		},
	}
	_, err := bunDB.NewInsert().Model(&bookings).Exec(context.Background())
	assert.NoError(t, err)

	// Test case: Counts merged in, cancelled bookings don't hold seats
	classes, err := scheduleDB.ListInstancesWithCounts("2025-03-01", "2025-03-31")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(classes))

	assert.Equal(t, busy.ID, classes[0].ID)
	assert.Equal(t, 2, classes[0].Booked)
	assert.Equal(t, 14, classes[0].SpotsLeft)

	assert.Equal(t, quiet.ID, classes[1].ID)
	assert.Equal(t, 0, classes[1].Booked)
	assert.Equal(t, 16, classes[1].SpotsLeft)

	// Test case: Empty range
	classes, err = scheduleDB.ListInstancesWithCounts("2024-01-01", "2024-01-31")
	assert.NoError(t, err)
	assert.Empty(t, classes)
}

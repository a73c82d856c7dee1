package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ScheduleTemplate is a weekly recurring class slot. Templates are never
// deleted; deactivation stops future generation without touching instances
// already on the calendar.
type ScheduleTemplate struct {
	bun.BaseModel `bun:"table:schedule_templates"`

	ID              string    `bun:"id,pk" json:"id"`
	DayOfWeek       int       `bun:"day_of_week,notnull" json:"day_of_week"` // 0=Sunday .. 6=Saturday
	StartTime       string    `bun:"start_time,notnull" json:"start_time"`  // wall clock "HH:MM"
	DurationMinutes int       `bun:"duration_minutes,notnull" json:"duration_minutes"`
	ClassType       string    `bun:"class_type,notnull" json:"class_type"`
	CoachID         string    `bun:"coach_id,notnull" json:"coach_id"`
	Location        string    `bun:"location,notnull" json:"location"`
	Capacity        int       `bun:"capacity,notnull" json:"capacity"`
	Active          bool      `bun:"active,notnull,default:true" json:"active"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// ClassInstance is a concrete dated occurrence of a template. Template fields
// are snapshotted at generation time so later template edits don't rewrite
// the calendar. The (template_id, date) pair is unique.
type ClassInstance struct {
	bun.BaseModel `bun:"table:class_instances"`

	ID              string    `bun:"id,pk" json:"id"`
	TemplateID      string    `bun:"template_id,notnull,unique:uq_class_instances_template_date" json:"template_id"`
	Date            string    `bun:"date,notnull,unique:uq_class_instances_template_date" json:"date"` // "YYYY-MM-DD"
	StartsAt        time.Time `bun:"starts_at,notnull" json:"starts_at"`
	DurationMinutes int       `bun:"duration_minutes,notnull" json:"duration_minutes"`
	ClassType       string    `bun:"class_type,notnull" json:"class_type"`
	CoachID         string    `bun:"coach_id,notnull" json:"coach_id"`
	Location        string    `bun:"location,notnull" json:"location"`
	Capacity        int       `bun:"capacity,notnull" json:"capacity"`
	Cancelled       bool      `bun:"cancelled,notnull,default:false" json:"cancelled"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type TemplateRequest struct {
	DayOfWeek       int    `json:"day_of_week"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	ClassType       string `json:"class_type"`
	CoachID         string `json:"coach_id"`
	Location        string `json:"location"`
	Capacity        int    `json:"capacity"`
}

type GenerationRequest struct {
	MonthsAhead int `json:"months_ahead"`
}

// GenerationReport summarises one generator run. A failed (template, date)
// pair lands in Errors and never aborts the rest of the run.
type GenerationReport struct {
	RunID       string            `json:"run_id"`
	MonthsAhead int               `json:"months_ahead"`
	WindowStart string            `json:"window_start"`
	WindowEnd   string            `json:"window_end"`
	Created     int               `json:"created"`
	Skipped     int               `json:"skipped"`
	Errors      []GenerationError `json:"errors"`
}

type GenerationError struct {
	TemplateID string `json:"template_id"`
	Date       string `json:"date"`
	Reason     string `json:"reason"`
}

// ClassWithAvailability is the member-facing browse shape.
type ClassWithAvailability struct {
	ClassInstance
	Booked    int `json:"booked"`
	SpotsLeft int `json:"spots_left"`
}

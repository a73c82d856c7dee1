package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	"ms-gymclass/internal/clock"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"
	"ms-gymclass/internal/utils"

	"github.com/google/uuid"
)

// DefaultMonthsAhead is how far the generator looks when no explicit
// window is requested.
const DefaultMonthsAhead = 2

type DBLayer interface {
	InsertTemplate(tpl *models.ScheduleTemplate) error
	GetTemplateByID(id string) (*models.ScheduleTemplate, error)
	ListTemplates(activeOnly bool) ([]models.ScheduleTemplate, error)
	DeactivateTemplate(id string, now time.Time) error
	InsertInstanceIgnoreDup(inst *models.ClassInstance) (bool, error)
	GetInstanceByID(id string) (*models.ClassInstance, error)
	CancelInstance(id string) (*models.ClassInstance, error)
	ListInstancesWithCounts(from, to string) ([]models.ClassWithAvailability, error)
}

type KafkaPublisher interface {
	Publish(topic string, key string, value []byte) error
}

type ScheduleService struct {
	DB     DBLayer
	Kafka  KafkaPublisher
	Clock  clock.Clock
	Logger *logger.Logger

	monthsAhead int
	loc         *time.Location
}

func NewScheduleService(db DBLayer, kafka KafkaPublisher, clk clock.Clock, log *logger.Logger, monthsAhead int, loc *time.Location) *ScheduleService {
	if monthsAhead <= 0 {
		monthsAhead = DefaultMonthsAhead
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleService{
		DB:          db,
		Kafka:       kafka,
		Clock:       clk,
		Logger:      log,
		monthsAhead: monthsAhead,
		loc:         loc,
	}
}

// ---------------- TEMPLATES ----------------

func (s *ScheduleService) CreateTemplate(req models.TemplateRequest) (*models.ScheduleTemplate, error) {
	if err := validateTemplate(req); err != nil {
		return nil, err
	}

	tpl := &models.ScheduleTemplate{
		ID:              uuid.NewString(),
		DayOfWeek:       req.DayOfWeek,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		ClassType:       req.ClassType,
		CoachID:         req.CoachID,
		Location:        req.Location,
		Capacity:        req.Capacity,
		Active:          true,
		CreatedAt:       s.Clock.Now(),
	}
	if err := s.DB.InsertTemplate(tpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.Logger.LogSchedule("TEMPLATE_CREATED",
		fmt.Sprintf("template %s: %s %s on day %d at %s", tpl.ID, tpl.ClassType, tpl.Location, tpl.DayOfWeek, tpl.StartTime))
	return tpl, nil
}

func (s *ScheduleService) ListTemplates(activeOnly bool) ([]models.ScheduleTemplate, error) {
	return s.DB.ListTemplates(activeOnly)
}

// DeactivateTemplate retires a template from future generation runs.
// Instances already generated from it stay on the calendar untouched.
func (s *ScheduleService) DeactivateTemplate(id string) error {
	if err := s.DB.DeactivateTemplate(id, s.Clock.Now()); err != nil {
		return err
	}
	s.Logger.LogSchedule("TEMPLATE_DEACTIVATED", fmt.Sprintf("template %s deactivated", id))
	return nil
}

// ---------------- GENERATION ----------------

// GenerateInstances materializes dated class instances for every active
// template over the forward window. Safe to re-run: existing
// (template, date) pairs are skipped. A failure on one candidate is
// collected into the report and never aborts the rest of the run.
func (s *ScheduleService) GenerateInstances(monthsAhead int) (*models.GenerationReport, error) {
	if monthsAhead <= 0 {
		monthsAhead = s.monthsAhead
	}

	now := s.Clock.Now().In(s.loc)
	windowStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	windowEnd := windowStart.AddDate(0, monthsAhead, 0) // exclusive

	templates, err := s.DB.ListTemplates(true)
	if err != nil {
		return nil, fmt.Errorf("failed to list active templates: %w", err)
	}

	report := &models.GenerationReport{
		RunID:       utils.GenerateRunID(),
		MonthsAhead: monthsAhead,
		WindowStart: windowStart.Format("2006-01-02"),
		WindowEnd:   windowEnd.AddDate(0, 0, -1).Format("2006-01-02"),
		Errors:      []models.GenerationError{},
	}

	for _, tpl := range templates {
		hour, minute, err := parseStartTime(tpl.StartTime)
		if err != nil {
			report.Errors = append(report.Errors, models.GenerationError{
				TemplateID: tpl.ID,
				Reason:     fmt.Sprintf("bad start_time %q: %v", tpl.StartTime, err),
			})
			continue
		}

		for day := windowStart; day.Before(windowEnd); day = day.AddDate(0, 0, 1) {
			if int(day.Weekday()) != tpl.DayOfWeek {
				continue
			}

			inst := &models.ClassInstance{
				ID:              uuid.NewString(),
				TemplateID:      tpl.ID,
				Date:            day.Format("2006-01-02"),
				StartsAt:        time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, s.loc),
				DurationMinutes: tpl.DurationMinutes,
				ClassType:       tpl.ClassType,
				CoachID:         tpl.CoachID,
				Location:        tpl.Location,
				Capacity:        tpl.Capacity,
				CreatedAt:       s.Clock.Now(),
			}

			created, err := s.DB.InsertInstanceIgnoreDup(inst)
			if err != nil {
				report.Errors = append(report.Errors, models.GenerationError{
					TemplateID: tpl.ID,
					Date:       inst.Date,
					Reason:     err.Error(),
				})
				continue
			}
			if created {
				report.Created++
			} else {
				report.Skipped++
			}
		}
	}

	s.Logger.LogSchedule("GENERATED",
		fmt.Sprintf("run %s: window %s..%s, created=%d skipped=%d errors=%d",
			report.RunID, report.WindowStart, report.WindowEnd, report.Created, report.Skipped, len(report.Errors)))
	return report, nil
}

// ---------------- CLASS INSTANCES ----------------

// CancelClass marks an instance cancelled. The booking engine treats a
// cancelled instance as not bookable; existing bookings are handled through
// the published event by the notifier.
func (s *ScheduleService) CancelClass(id string) (*models.ClassInstance, error) {
	inst, err := s.DB.CancelInstance(id)
	if err != nil {
		return nil, err
	}

	s.Logger.LogSchedule("CLASS_CANCELLED",
		fmt.Sprintf("class %s (%s %s) cancelled", inst.ID, inst.ClassType, inst.Date))
	s.publish(models.TopicClassCancelled, inst.ID, inst)
	return inst, nil
}

// ListClasses returns the browsable calendar between two dates inclusive,
// with live availability counts. Defaults to the generator window starting
// today.
func (s *ScheduleService) ListClasses(from, to string) ([]models.ClassWithAvailability, error) {
	now := s.Clock.Now().In(s.loc)
	if from == "" {
		from = now.Format("2006-01-02")
	}
	if to == "" {
		start, _ := time.ParseInLocation("2006-01-02", from, s.loc)
		to = start.AddDate(0, s.monthsAhead, -1).Format("2006-01-02")
	}
	for _, d := range []string{from, to} {
		if _, err := time.ParseInLocation("2006-01-02", d, s.loc); err != nil {
			return nil, fmt.Errorf("bad date %q: %w", d, models.ErrValidation)
		}
	}
	return s.DB.ListInstancesWithCounts(from, to)
}

func (s *ScheduleService) GetClass(id string) (*models.ClassInstance, error) {
	return s.DB.GetInstanceByID(id)
}

func (s *ScheduleService) publish(topic, key string, payload interface{}) {
	value, err := json.Marshal(payload)
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("marshal %s payload: %v", topic, err))
		return
	}
	if err := s.Kafka.Publish(topic, key, value); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish to %s failed: %v", topic, err))
	}
}

func validateTemplate(req models.TemplateRequest) error {
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be 0 (Sunday) through 6: %w", models.ErrValidation)
	}
	if _, _, err := parseStartTime(req.StartTime); err != nil {
		return fmt.Errorf("start_time must be HH:MM: %w", models.ErrValidation)
	}
	if req.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive: %w", models.ErrValidation)
	}
	if req.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive: %w", models.ErrValidation)
	}
	if req.ClassType == "" || req.CoachID == "" || req.Location == "" {
		return fmt.Errorf("class_type, coach_id and location are required: %w", models.ErrValidation)
	}
	return nil
}

func parseStartTime(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

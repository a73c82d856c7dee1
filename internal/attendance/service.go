package attendance

import (
	"encoding/json"
	"fmt"
	"time"

	"ms-gymclass/internal/clock"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"
)

type DBLayer interface {
	GetBookingByID(id string) (*models.Booking, error)
	GetInstanceByID(id string) (*models.ClassInstance, error)
	MarkBookingStatus(bookingID, status string, markedAt time.Time) error
}

type KafkaPublisher interface {
	Publish(topic string, key string, value []byte) error
}

// PassReader decrypts a scanned check-in pass back into its payload.
type PassReader interface {
	DecodePass(encoded string) (*models.CheckinPass, error)
}

type AttendanceService struct {
	DB     DBLayer
	Kafka  KafkaPublisher
	QR     PassReader
	Clock  clock.Clock
	Logger *logger.Logger

	loc *time.Location
}

func NewAttendanceService(db DBLayer, kafka KafkaPublisher, qr PassReader, clk clock.Clock, log *logger.Logger, loc *time.Location) *AttendanceService {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceService{DB: db, Kafka: kafka, QR: qr, Clock: clk, Logger: log, loc: loc}
}

// MarkAttendance moves a confirmed booking to attended or no_show. Only the
// coach who runs the class (or an admin) may mark, and only on the class
// day itself. A no_show keeps the debited credit.
func (s *AttendanceService) MarkAttendance(actorID, actorRole, bookingID, status string) (*models.Booking, error) {
	if status != models.BookingStatusAttended && status != models.BookingStatusNoShow {
		return nil, fmt.Errorf("status must be %q or %q: %w",
			models.BookingStatusAttended, models.BookingStatusNoShow, models.ErrValidation)
	}

	booking, err := s.DB.GetBookingByID(bookingID)
	if err != nil {
		return nil, err
	}
	inst, err := s.DB.GetInstanceByID(booking.ClassInstanceID)
	if err != nil {
		return nil, err
	}

	if actorRole != models.RoleAdmin && !(actorRole == models.RoleCoach && inst.CoachID == actorID) {
		return nil, models.ErrForbidden
	}

	now := s.Clock.Now().In(s.loc)
	if now.Format("2006-01-02") != inst.Date {
		return nil, models.ErrNotSameDay
	}

	if err := s.DB.MarkBookingStatus(bookingID, status, now); err != nil {
		return nil, err
	}
	booking.Status = status
	booking.AttendanceMarkedAt = now

	s.Logger.LogBooking("ATTENDANCE", bookingID,
		fmt.Sprintf("marked %s by %s (%s) for class %s", status, actorID, actorRole, inst.ID))
	s.publish(models.TopicAttendanceMarked, bookingID, booking)
	return booking, nil
}

// CheckinByPass resolves a scanned QR pass and marks the booking attended
// through the same path as a manual mark.
func (s *AttendanceService) CheckinByPass(actorID, actorRole, encryptedQR string) (*models.Booking, error) {
	pass, err := s.QR.DecodePass(encryptedQR)
	if err != nil {
		s.Logger.Warn("SECURITY", fmt.Sprintf("check-in pass rejected: %v", err))
		return nil, fmt.Errorf("invalid check-in pass: %w", models.ErrValidation)
	}
	return s.MarkAttendance(actorID, actorRole, pass.BookingID, models.BookingStatusAttended)
}

func (s *AttendanceService) publish(topic, key string, payload interface{}) {
	value, err := json.Marshal(payload)
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("marshal %s payload: %v", topic, err))
		return
	}
	if err := s.Kafka.Publish(topic, key, value); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish to %s failed: %v", topic, err))
	}
}

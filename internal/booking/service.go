package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-gymclass/internal/clock"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	CreateBooking(ctx context.Context, booking *models.Booking, now time.Time) error
	CancelBooking(ctx context.Context, memberID, bookingID string, window time.Duration, now time.Time) (*models.Booking, error)
	GetBookingByID(id string) (*models.Booking, error)
	ListBookingsByMember(memberID string) ([]models.BookingWithClass, error)
}

type RedisLock interface {
	LockClass(classInstanceID, owner string) (bool, error)
	UnlockClass(classInstanceID, owner string) error
}

type KafkaPublisher interface {
	Publish(topic string, key string, value []byte) error
}

// PassIssuer produces the encrypted QR check-in pass stored on a booking.
type PassIssuer interface {
	GeneratePass(pass models.CheckinPass) ([]byte, error)
}

type BookingService struct {
	DB     DBLayer
	Redis  RedisLock
	Kafka  KafkaPublisher
	QR     PassIssuer
	Clock  clock.Clock
	Logger *logger.Logger

	cancelWindow time.Duration
}

func NewBookingService(db DBLayer, redis RedisLock, kafka KafkaPublisher, qr PassIssuer, clk clock.Clock, log *logger.Logger, cancelWindow time.Duration) *BookingService {
	if cancelWindow <= 0 {
		cancelWindow = time.Hour
	}
	return &BookingService{
		DB:           db,
		Redis:        redis,
		Kafka:        kafka,
		QR:           qr,
		Clock:        clk,
		Logger:       log,
		cancelWindow: cancelWindow,
	}
}

// CreateBooking reserves a seat for the member (or a named dependant) on a
// class instance and spends one credit. The Redis class lock serializes
// stampedes on the same instance across processes; the database transaction
// underneath remains the correctness backstop.
func (s *BookingService) CreateBooking(ctx context.Context, memberID string, req models.BookingRequest) (*models.Booking, error) {
	if req.ClassInstanceID == "" {
		return nil, fmt.Errorf("class_instance_id is required: %w", models.ErrValidation)
	}
	bookedFor := req.BookedFor
	if bookedFor == "" {
		bookedFor = models.BookedForSelf
	}

	bookingID := uuid.NewString()
	now := s.Clock.Now()

	ok, err := s.Redis.LockClass(req.ClassInstanceID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("redis lock error: %w", err)
	}
	if !ok {
		return nil, models.ErrClassBusy
	}
	defer func() {
		if err := s.Redis.UnlockClass(req.ClassInstanceID, bookingID); err != nil {
			s.Logger.Warn("BOOKING", fmt.Sprintf("failed to unlock class %s: %v", req.ClassInstanceID, err))
		}
	}()

	qrPNG, err := s.QR.GeneratePass(models.CheckinPass{
		BookingID:       bookingID,
		ClassInstanceID: req.ClassInstanceID,
		MemberID:        memberID,
		IssuedAt:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate check-in pass: %w", err)
	}

	booking := &models.Booking{
		ID:              bookingID,
		ClassInstanceID: req.ClassInstanceID,
		MemberID:        memberID,
		BookedFor:       bookedFor,
		QRCode:          qrPNG,
	}
	if err := s.DB.CreateBooking(ctx, booking, now); err != nil {
		return nil, err
	}

	s.Logger.LogBooking("CREATED", bookingID,
		fmt.Sprintf("member %s booked class %s for %s", memberID, req.ClassInstanceID, bookedFor))
	s.publish(models.TopicBookingCreated, bookingID, booking)
	return booking, nil
}

// CancelBooking releases the member's seat and refunds the credit to the
// package entry it came from, as long as the class is still more than the
// cancellation window away.
func (s *BookingService) CancelBooking(ctx context.Context, memberID, bookingID string) (*models.Booking, error) {
	booking, err := s.DB.CancelBooking(ctx, memberID, bookingID, s.cancelWindow, s.Clock.Now())
	if err != nil {
		return nil, err
	}

	s.Logger.LogBooking("CANCELLED", bookingID,
		fmt.Sprintf("member %s cancelled class %s, credit returned", memberID, booking.ClassInstanceID))
	s.publish(models.TopicBookingCancelled, bookingID, booking)
	return booking, nil
}

func (s *BookingService) GetBooking(id string) (*models.Booking, error) {
	return s.DB.GetBookingByID(id)
}

func (s *BookingService) ListMemberBookings(memberID string) ([]models.BookingWithClass, error) {
	return s.DB.ListBookingsByMember(memberID)
}

func (s *BookingService) publish(topic, key string, payload interface{}) {
	value, err := json.Marshal(payload)
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("marshal %s payload: %v", topic, err))
		return
	}
	if err := s.Kafka.Publish(topic, key, value); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish to %s failed: %v", topic, err))
	}
}

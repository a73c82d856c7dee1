package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ms-gymclass/internal/booking"
	"ms-gymclass/internal/clock"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateBooking(ctx context.Context, b *models.Booking, now time.Time) error {
	args := m.Called(ctx, b, now)
	return args.Error(0)
}

func (m *MockDBLayer) CancelBooking(ctx context.Context, memberID, bookingID string, window time.Duration, now time.Time) (*models.Booking, error) {
	args := m.Called(ctx, memberID, bookingID, window, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockDBLayer) GetBookingByID(id string) (*models.Booking, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockDBLayer) ListBookingsByMember(memberID string) ([]models.BookingWithClass, error) {
	args := m.Called(memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookingWithClass), args.Error(1)
}

type MockRedisLock struct {
	mock.Mock
}

func (m *MockRedisLock) LockClass(classInstanceID, owner string) (bool, error) {
	args := m.Called(classInstanceID, owner)
	return args.Bool(0), args.Error(1)
}

func (m *MockRedisLock) UnlockClass(classInstanceID, owner string) error {
	args := m.Called(classInstanceID, owner)
	return args.Error(0)
}

type MockKafkaProducer struct {
	mock.Mock
}

func (m *MockKafkaProducer) Publish(topic string, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

type MockPassIssuer struct {
	mock.Mock
}

func (m *MockPassIssuer) GeneratePass(pass models.CheckinPass) ([]byte, error) {
	args := m.Called(pass)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func newTestService(clk clock.Clock, mockDB *MockDBLayer, mockRedis *MockRedisLock, mockKafka *MockKafkaProducer, mockQR *MockPassIssuer) *booking.BookingService {
	return booking.NewBookingService(mockDB, mockRedis, mockKafka, mockQR, clk, logger.NewLogger(), time.Hour)
}

// Tests start here
func TestCreateBooking(t *testing.T) {
	// Set up mocks
	mockDB := new(MockDBLayer)
	mockRedis := new(MockRedisLock)
	mockKafka := new(MockKafkaProducer)
	mockQR := new(MockPassIssuer)
	clk := &clock.Fixed{Time: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(clk, mockDB, mockRedis, mockKafka, mockQR)

	qrPNG := []byte("png-bytes")
	mockRedis.On("LockClass", "class1", mock.Anything).Return(true, nil)
	mockRedis.On("UnlockClass", "class1", mock.Anything).Return(nil)
	mockQR.On("GeneratePass", mock.MatchedBy(func(p models.CheckinPass) bool {
		return p.ClassInstanceID == "class1" && p.MemberID == "member001" && p.BookingID != ""
	})).Return(qrPNG, nil)
	mockDB.On("CreateBooking", mock.Anything, mock.MatchedBy(func(b *models.Booking) bool {
		// The pass is attached before the insert so it lands in the same row
		return b.ClassInstanceID == "class1" &&
			b.MemberID == "member001" &&
			b.BookedFor == models.BookedForSelf &&
			string(b.QRCode) == "png-bytes"
	}), clk.Time).Return(nil)
	mockKafka.On("Publish", models.TopicBookingCreated, mock.Anything, mock.Anything).Return(nil)

	got, err := svc.CreateBooking(context.Background(), "member001", models.BookingRequest{ClassInstanceID: "class1"})

	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "class1", got.ClassInstanceID)

	mockDB.AssertExpectations(t)
	mockRedis.AssertExpectations(t)
	mockKafka.AssertExpectations(t)
	mockQR.AssertExpectations(t)
}

func TestCreateBookingValidation(t *testing.T) {
	// Set up mocks
	mockDB := new(MockDBLayer)
	mockRedis := new(MockRedisLock)
	mockKafka := new(MockKafkaProducer)
	mockQR := new(MockPassIssuer)
	clk := &clock.Fixed{Time: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(clk, mockDB, mockRedis, mockKafka, mockQR)

	got, err := svc.CreateBooking(context.Background(), "member001", models.BookingRequest{})

	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Nil(t, got)
	mockRedis.AssertNotCalled(t, "LockClass", mock.Anything, mock.Anything)
}

func TestCreateBookingClassBusy(t *testing.T) {
	// Set up mocks
	mockDB := new(MockDBLayer)
	mockRedis := new(MockRedisLock)
	mockKafka := new(MockKafkaProducer)
	mockQR := new(MockPassIssuer)
	clk := &clock.Fixed{Time: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(clk, mockDB, mockRedis, mockKafka, mockQR)

	// Test case 1: Lock held by someone else
	mockRedis.On("LockClass", "class1", mock.Anything).Return(false, nil).Once()

	got, err := svc.CreateBooking(context.Background(), "member001", models.BookingRequest{ClassInstanceID: "class1"})
	assert.ErrorIs(t, err, models.ErrClassBusy)
	assert.Nil(t, got)

	// Test case 2: Redis down
	mockRedis.On("LockClass", "class1", mock.Anything).Return(false, errors.New("connection refused")).Once()

	got, err = svc.CreateBooking(context.Background(), "member001", models.BookingRequest{ClassInstanceID: "class1"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrClassBusy)
	assert.Nil(t, got)

	mockDB.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBookingUnlocksOnDBError(t *testing.T) {
	// Set up mocks
	mockDB := new(MockDBLayer)
	mockRedis := new(MockRedisLock)
	mockKafka := new(MockKafkaProducer)
	mockQR := new(MockPassIssuer)
	clk := &clock.Fixed{Time: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(clk, mockDB, mockRedis, mockKafka, mockQR)

	mockRedis.On("LockClass", "class1", mock.Anything).Return(true, nil)
	mockRedis.On("UnlockClass", "class1", mock.Anything).Return(nil)
	mockQR.On("GeneratePass", mock.Anything).Return([]byte("png"), nil)
	mockDB.On("CreateBooking", mock.Anything, mock.Anything, mock.Anything).Return(models.ErrClassFull)

	got, err := svc.CreateBooking(context.Background(), "member001", models.BookingRequest{ClassInstanceID: "class1"})

	assert.ErrorIs(t, err, models.ErrClassFull)
	assert.Nil(t, got)

	// The class lock is released even when the booking fails
	mockRedis.AssertCalled(t, "UnlockClass", "class1", mock.Anything)
	mockKafka.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBookingForDependant(t *testing.T) {
	// Set up mocks
	mockDB := new(MockDBLayer)
	mockRedis := new(MockRedisLock)
	mockKafka := new(MockKafkaProducer)
	mockQR := new(MockPassIssuer)
	clk := &clock.Fixed{Time: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(clk, mockDB, mockRedis, mockKafka, mockQR)

	mockRedis.On("LockClass", "class1", mock.Anything).Return(true, nil)
	mockRedis.On("UnlockClass", "class1", mock.Anything).Return(nil)
	mockQR.On("GeneratePass", mock.Anything).Return([]byte("png"), nil)
	mockDB.On("CreateBooking", mock.Anything, mock.MatchedBy(func(b *models.Booking) bool {
		return b.BookedFor == "kid"
	}), mock.Anything).Return(nil)
	mockKafka.On("Publish", models.TopicBookingCreated, mock.Anything, mock.Anything).Return(nil)

	got, err := svc.CreateBooking(context.Background(), "member001", models.BookingRequest{
		ClassInstanceID: "class1",
		BookedFor:       "kid",
	})

	assert.NoError(t, err)
	assert.Equal(t, "kid", got.BookedFor)
	mockDB.AssertExpectations(t)
}

func TestCreateBookingSurvivesKafkaFailure(t *testing.T) {
	// Set up mocks
	mockDB := new(MockDBLayer)
	mockRedis := new(MockRedisLock)
	mockKafka := new(MockKafkaProducer)
	mockQR := new(MockPassIssuer)
	clk := &clock.Fixed{Time: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(clk, mockDB, mockRedis, mockKafka, mockQR)

	mockRedis.On("LockClass", "class1", mock.Anything).Return(true, nil)
	mockRedis.On("UnlockClass", "class1", mock.Anything).Return(nil)
	mockQR.On("GeneratePass", mock.Anything).Return([]byte("png"), nil)
	mockDB.On("CreateBooking", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockKafka.On("Publish", models.TopicBookingCreated, mock.Anything, mock.Anything).
		Return(errors.New("broker unreachable"))

	// The booking is committed; a dead broker only costs the event
	got, err := svc.CreateBooking(context.Background(), "member001", models.BookingRequest{ClassInstanceID: "class1"})

	assert.NoError(t, err)
	assert.NotNil(t, got)
	mockKafka.AssertExpectations(t)
}

func TestCancelBooking(t *testing.T) {
	// Set up mocks
	mockDB := new(MockDBLayer)
	mockRedis := new(MockRedisLock)
	mockKafka := new(MockKafkaProducer)
	mockQR := new(MockPassIssuer)
	clk := &clock.Fixed{Time: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(clk, mockDB, mockRedis, mockKafka, mockQR)

	cancelled := &models.Booking{
		ID:              "booking1",
		ClassInstanceID: "class1",
		MemberID:        "member001",
		Status:          models.BookingStatusCancelled,
		CancelledAt:     clk.Time,
	}
	mockDB.On("CancelBooking", mock.Anything, "member001", "booking1", time.Hour, clk.Time).
		Return(cancelled, nil)
	mockKafka.On("Publish", models.TopicBookingCancelled, "booking1", mock.Anything).Return(nil)

	got, err := svc.CancelBooking(context.Background(), "member001", "booking1")

	assert.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, got.Status)

	mockDB.AssertExpectations(t)
	mockKafka.AssertExpectations(t)
}

func TestCancelBookingPassesErrorsThrough(t *testing.T) {
	// Set up mocks
	mockDB := new(MockDBLayer)
	mockRedis := new(MockRedisLock)
	mockKafka := new(MockKafkaProducer)
	mockQR := new(MockPassIssuer)
	clk := &clock.Fixed{Time: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(clk, mockDB, mockRedis, mockKafka, mockQR)

	mockDB.On("CancelBooking", mock.Anything, "member001", "booking1", time.Hour, clk.Time).
		Return(nil, models.ErrCancellationWindowPassed)

	got, err := svc.CancelBooking(context.Background(), "member001", "booking1")

	assert.ErrorIs(t, err, models.ErrCancellationWindowPassed)
	assert.Nil(t, got)
	mockKafka.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

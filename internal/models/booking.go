package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Booking status machine: confirmed -> attended | no_show | cancelled.
// The three end states are terminal.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusAttended  = "attended"
	BookingStatusNoShow    = "no_show"
	BookingStatusCancelled = "cancelled"
)

// BookedForSelf is the default beneficiary. A member may also book for a
// named dependant, which counts as a separate seat.
const BookedForSelf = "self"

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID                 string    `bun:"id,pk" json:"id"`
	ClassInstanceID    string    `bun:"class_instance_id,notnull" json:"class_instance_id"`
	MemberID           string    `bun:"member_id,notnull" json:"member_id"`
	BookedFor          string    `bun:"booked_for,notnull,default:'self'" json:"booked_for"`
	Status             string    `bun:"status,notnull" json:"status"`
	BookedAt           time.Time `bun:"booked_at,notnull" json:"booked_at"`
	CancelledAt        time.Time `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`
	AttendanceMarkedAt time.Time `bun:"attendance_marked_at,nullzero" json:"attendance_marked_at,omitempty"`
	QRCode             []byte    `bun:"qr_code" json:"qr_code,omitempty"`
}

// Active reports whether the booking still holds a seat and a credit.
func (b *Booking) Active() bool {
	return b.Status != BookingStatusCancelled
}

type BookingRequest struct {
	ClassInstanceID string `json:"class_instance_id"`
	BookedFor       string `json:"booked_for"`
}

type BookingWithClass struct {
	Booking
	Class *ClassInstance `json:"class,omitempty"`
}

type AttendanceRequest struct {
	Status string `json:"status"`
}

type CheckinRequest struct {
	EncryptedQR string `json:"encrypted_qr"`
}

// CheckinPass is the payload embedded in a booking's QR code.
type CheckinPass struct {
	BookingID       string    `json:"booking_id"`
	ClassInstanceID string    `json:"class_instance_id"`
	MemberID        string    `json:"member_id"`
	IssuedAt        time.Time `json:"issued_at"`
}

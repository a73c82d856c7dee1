package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Credit transaction reasons. The ledger is append-only: balances are held
// on member_packages, transactions record every movement.
const (
	ReasonPackageGranted   = "package_granted"
	ReasonBookingDebit     = "booking_debit"
	ReasonBookingCancelled = "booking_cancelled"
)

// SessionPackage is catalog data: what the gym sells.
type SessionPackage struct {
	bun.BaseModel `bun:"table:session_packages"`

	ID           string    `bun:"id,pk" json:"id"`
	Name         string    `bun:"name,notnull" json:"name"`
	SessionCount int       `bun:"session_count,notnull" json:"session_count"`
	Price        float64   `bun:"price,notnull" json:"price"`
	ExpiryDays   int       `bun:"expiry_days,notnull" json:"expiry_days"`
	Active       bool      `bun:"active,notnull,default:true" json:"active"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// MemberPackage is a granted package entry. SessionCount is snapshotted at
// grant time; SessionsRemaining stays within [0, SessionCount] always.
type MemberPackage struct {
	bun.BaseModel `bun:"table:member_packages"`

	ID                string    `bun:"id,pk" json:"id"`
	MemberID          string    `bun:"member_id,notnull" json:"member_id"`
	PackageID         string    `bun:"package_id,notnull" json:"package_id"`
	SessionCount      int       `bun:"session_count,notnull" json:"session_count"`
	SessionsRemaining int       `bun:"sessions_remaining,notnull" json:"sessions_remaining"`
	PurchaseDate      time.Time `bun:"purchase_date,notnull" json:"purchase_date"`
	ExpiryDate        time.Time `bun:"expiry_date,notnull" json:"expiry_date"`
	PaymentRef        string    `bun:"payment_ref,nullzero" json:"payment_ref,omitempty"`
}

// Expired reports whether the entry contributes nothing at the given time.
// An entry is usable through its expiry instant inclusive.
func (mp *MemberPackage) Expired(now time.Time) bool {
	return now.After(mp.ExpiryDate)
}

// CreditTransaction is one ledger movement. A booking debit carries the
// booking ID so cancellation can reverse onto the exact entry it consumed.
type CreditTransaction struct {
	bun.BaseModel `bun:"table:credit_transactions"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	MemberID        string    `bun:"member_id,notnull" json:"member_id"`
	MemberPackageID string    `bun:"member_package_id,notnull" json:"member_package_id"`
	BookingID       string    `bun:"booking_id,nullzero" json:"booking_id,omitempty"`
	Delta           int       `bun:"delta,notnull" json:"delta"`
	Reason          string    `bun:"reason,notnull" json:"reason"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
}

type GrantRequest struct {
	MemberID   string `json:"member_id"`
	PaymentRef string `json:"payment_ref"`
}

type CreditBalance struct {
	MemberID  string        `json:"member_id"`
	Available int           `json:"available"`
	Entries   []CreditEntry `json:"entries"`
}

type CreditEntry struct {
	MemberPackageID string    `json:"member_package_id"`
	PackageID       string    `json:"package_id"`
	SessionCount    int       `json:"session_count"`
	Remaining       int       `json:"remaining"`
	PurchaseDate    time.Time `json:"purchase_date"`
	ExpiryDate      time.Time `json:"expiry_date"`
	Expired         bool      `json:"expired"`
}

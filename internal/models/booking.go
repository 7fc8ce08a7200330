package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking status enum. pending and paid_held may cancel; completed and
// cancelled are terminal.
const (
	BookingStatusPending     = "pending"
	BookingStatusPaidHeld    = "paid_held"
	BookingStatusOTPVerified = "otp_verified"
	BookingStatusCompleted   = "completed"
	BookingStatusCancelled   = "cancelled"
)

const (
	PaymentStatusPending     = "pending"
	PaymentStatusPaidHeld    = "paid_held"
	PaymentStatusTransferred = "transferred"
)

const (
	PrivacyStandard = "standard"
	PrivacyHigh     = "high"
	PrivacyMaximum  = "maximum"
)

// Booking never carries the raw location; only the derived locality token
// is persisted. The OTP code is write-only towards clients: it is returned
// exactly once from creation and otherwise excluded from JSON.
type Booking struct {
	ID            uuid.UUID  `json:"id"`
	ServiceID     uuid.UUID  `json:"service_id"`
	ClientID      uuid.UUID  `json:"client_id"`
	ProviderID    uuid.UUID  `json:"provider_id"`
	BookingDate   time.Time  `json:"booking_date"`
	BookingTime   string     `json:"booking_time"`
	LocalityToken string     `json:"-"`
	PrivacyLevel  string     `json:"privacy_level"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	AmountCents   int64      `json:"amount_cents"`
	OTPCode       *string    `json:"-"`
	OTPIssuedAt   *time.Time `json:"-"`
	OTPVerified   bool       `json:"otp_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Terminal reports whether no further state transitions are allowed.
func (b *Booking) Terminal() bool {
	return b.Status == BookingStatusCompleted || b.Status == BookingStatusCancelled
}

func ValidPrivacyLevel(p string) bool {
	return p == PrivacyStandard || p == PrivacyHigh || p == PrivacyMaximum
}

package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EscrowStatusHeld     = "HELD"
	EscrowStatusReleased = "RELEASED"
	EscrowStatusRefunded = "REFUNDED"
)

// EscrowHold is 1:1 with a booking. platform_fee + provider_payout must
// equal amount at all times; any rounding remainder goes to the fee.
type EscrowHold struct {
	BookingID           uuid.UUID `json:"booking_id"`
	AmountCents         int64     `json:"amount_cents"`
	PlatformFeeCents    int64     `json:"platform_fee_cents"`
	ProviderPayoutCents int64     `json:"provider_payout_cents"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covidsafe/services-backend/internal/models"
)

// Platform commission in percent, applied to the booking amount snapshot.
const platformFeePercent = 5

var (
	// ErrNotHeld is returned when releasing or refunding a booking with
	// no active hold.
	ErrNotHeld = errors.New("no escrow hold for booking")
	// ErrAlreadyTransferred is returned on a second release of one hold.
	ErrAlreadyTransferred = errors.New("escrow already transferred")
	// ErrInvariantViolation signals a fee/payout sum mismatch in stored
	// ledger state. It is fatal for the operation and never retried.
	ErrInvariantViolation = errors.New("escrow invariant violation")
)

// Repo is the minimal escrow storage interface. GetForUpdate must lock the
// hold row for the duration of the caller's transaction.
type Repo interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*models.EscrowHold, error)
	Create(ctx context.Context, tx pgx.Tx, h *models.EscrowHold) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, status string) error
}

// Ledger tracks the price / platform-fee / payout triple per booking and
// enforces conservation: fee + payout == amount, remainder to the fee.
type Ledger struct {
	repo Repo
}

func NewLedger(repo Repo) *Ledger {
	return &Ledger{repo: repo}
}

// SplitAmount computes the platform fee (5%, rounded half-up to whole
// cents) and the provider payout for an amount in cents.
func SplitAmount(amountCents int64) (feeCents, payoutCents int64) {
	feeCents = (amountCents*platformFeePercent + 50) / 100
	payoutCents = amountCents - feeCents
	return feeCents, payoutCents
}

// Hold records the escrow triple for a booking. Idempotent: a second call
// for the same booking returns the existing record unchanged, so the fee
// is never recomputed or reapplied.
func (l *Ledger) Hold(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, amountCents int64) (*models.EscrowHold, error) {
	existing, err := l.repo.GetForUpdate(ctx, tx, bookingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	fee, payout := SplitAmount(amountCents)
	h := &models.EscrowHold{
		BookingID:           bookingID,
		AmountCents:         amountCents,
		PlatformFeeCents:    fee,
		ProviderPayoutCents: payout,
		Status:              models.EscrowStatusHeld,
	}
	if err := checkConservation(h); err != nil {
		return nil, err
	}
	if err := l.repo.Create(ctx, tx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Release transfers the payout to the provider. Only one release per hold
// can succeed; the row lock taken by GetForUpdate serializes racers.
func (l *Ledger) Release(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (payoutCents int64, err error) {
	h, err := l.repo.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotHeld
		}
		return 0, err
	}
	switch h.Status {
	case models.EscrowStatusReleased:
		return 0, ErrAlreadyTransferred
	case models.EscrowStatusRefunded:
		return 0, ErrNotHeld
	}
	if err := checkConservation(h); err != nil {
		return 0, err
	}
	if err := l.repo.UpdateStatus(ctx, tx, bookingID, models.EscrowStatusReleased); err != nil {
		return 0, err
	}
	return h.ProviderPayoutCents, nil
}

// Refund reverses an active hold (booking cancelled before completion).
func (l *Ledger) Refund(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) error {
	h, err := l.repo.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotHeld
		}
		return err
	}
	switch h.Status {
	case models.EscrowStatusReleased:
		return ErrAlreadyTransferred
	case models.EscrowStatusRefunded:
		return ErrNotHeld
	}
	return l.repo.UpdateStatus(ctx, tx, bookingID, models.EscrowStatusRefunded)
}

func checkConservation(h *models.EscrowHold) error {
	if h.PlatformFeeCents+h.ProviderPayoutCents != h.AmountCents {
		return fmt.Errorf("%w: fee %d + payout %d != amount %d (booking %s)",
			ErrInvariantViolation, h.PlatformFeeCents, h.ProviderPayoutCents, h.AmountCents, h.BookingID)
	}
	return nil
}

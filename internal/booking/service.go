package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covidsafe/services-backend/internal/models"
	"github.com/covidsafe/services-backend/internal/otp"
)

var (
	ErrNotFound         = errors.New("booking not found")
	ErrServiceNotFound  = errors.New("service not found")
	ErrForbidden        = errors.New("actor is not a party to this booking")
	ErrNotVerified      = errors.New("booking is not otp-verified")
	ErrAlreadyCompleted = errors.New("booking already completed")
	ErrStateConflict    = errors.New("booking state does not allow this transition")
)

// Repo is the booking storage interface. GetByIDForUpdate must hold a
// per-booking lock until the transaction ends.
type Repo interface {
	Create(ctx context.Context, tx pgx.Tx, b *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Booking, error)
	Update(ctx context.Context, tx pgx.Tx, b *models.Booking) error
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Booking, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*models.Booking, error)
}

// ServiceLookup resolves the booked service for the amount snapshot.
type ServiceLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
}

// EscrowLedger is the subset of the escrow ledger the state machine drives.
type EscrowLedger interface {
	Hold(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, amountCents int64) (*models.EscrowHold, error)
	Release(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (int64, error)
	Refund(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) error
}

// LocalityHasher derives the persisted token; the raw location never
// leaves Create.
type LocalityHasher interface {
	Hash(raw, privacyLevel string) (string, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the booking state machine:
//
//	pending -> paid_held -> otp_verified -> completed
//	pending|paid_held -> cancelled
//
// Every mutation runs in a transaction opened here, with the booking row
// locked first. Escrow transitions commit atomically with the state they
// belong to.
type Service struct {
	pool    TxBeginner
	repo    Repo
	catalog ServiceLookup
	ledger  EscrowLedger
	otp     *otp.Service
	hasher  LocalityHasher
	now     func() time.Time
}

func NewService(pool TxBeginner, repo Repo, catalog ServiceLookup, ledger EscrowLedger, otpSvc *otp.Service, hasher LocalityHasher) *Service {
	return &Service{
		pool:    pool,
		repo:    repo,
		catalog: catalog,
		ledger:  ledger,
		otp:     otpSvc,
		hasher:  hasher,
		now:     time.Now,
	}
}

type CreateInput struct {
	ServiceID    uuid.UUID
	BookingDate  string
	BookingTime  string
	Location     string
	PrivacyLevel string
	CardNumber   string
	CardName     string
	CardExpiry   string
	CardCVV      string
}

// Create validates input, snapshots the price, derives the locality token,
// persists the booking, places the escrow hold and issues the OTP — all in
// one transaction. The returned code is the only time the OTP crosses the
// boundary; it goes to the client channel and is never readable again.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.Booking, string, error) {
	if actor.Role != models.RoleClient {
		return nil, "", ErrForbidden
	}

	date, err := s.validateDate(in.BookingDate)
	if err != nil {
		return nil, "", err
	}
	if _, err := time.Parse("15:04", in.BookingTime); err != nil {
		return nil, "", &models.ValidationError{Field: "booking_time", Reason: "must be HH:MM"}
	}
	if in.PrivacyLevel == "" {
		in.PrivacyLevel = models.PrivacyStandard
	}
	if !models.ValidPrivacyLevel(in.PrivacyLevel) {
		return nil, "", &models.ValidationError{Field: "privacy_level", Reason: "must be standard, high or maximum"}
	}
	if strings.TrimSpace(in.Location) == "" {
		return nil, "", &models.ValidationError{Field: "location", Reason: "is required"}
	}
	if err := s.validateCard(in); err != nil {
		return nil, "", err
	}

	svc, err := s.catalog.GetByID(ctx, in.ServiceID)
	if err != nil {
		return nil, "", ErrServiceNotFound
	}

	token, err := s.hasher.Hash(in.Location, in.PrivacyLevel)
	if err != nil {
		return nil, "", &models.ValidationError{Field: "privacy_level", Reason: err.Error()}
	}

	b := &models.Booking{
		ID:            uuid.New(),
		ServiceID:     svc.ID,
		ClientID:      actor.UserID,
		ProviderID:    svc.ProviderID,
		BookingDate:   date,
		BookingTime:   in.BookingTime,
		LocalityToken: token,
		PrivacyLevel:  in.PrivacyLevel,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		// Price snapshot: immune to later service price edits.
		AmountCents: svc.PriceCents,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Create(ctx, tx, b); err != nil {
		return nil, "", err
	}

	// Card fields passed the format check; the dummy payment is accepted
	// and held immediately.
	if _, err := s.ledger.Hold(ctx, tx, b.ID, b.AmountCents); err != nil {
		return nil, "", err
	}
	b.Status = models.BookingStatusPaidHeld
	b.PaymentStatus = models.PaymentStatusPaidHeld

	code, err := s.otp.Issue(b)
	if err != nil {
		return nil, "", err
	}
	if err := s.repo.Update(ctx, tx, b); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return b, code, nil
}

// VerifyOTP consumes the client's code, presented by the provider. Only
// the booking's provider may call it.
func (s *Service) VerifyOTP(ctx context.Context, actor models.Actor, bookingID uuid.UUID, code string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	b, err := s.repo.GetByIDForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if b.ProviderID != actor.UserID {
		return ErrForbidden
	}
	if b.Terminal() {
		return ErrStateConflict
	}
	if err := s.otp.Verify(b, code); err != nil {
		return err
	}
	b.Status = models.BookingStatusOTPVerified
	if err := s.repo.Update(ctx, tx, b); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Complete finishes an otp-verified booking and releases escrow. Exactly
// one of two concurrent calls succeeds; the row lock makes the loser
// observe the committed completed state and fail with ErrAlreadyCompleted.
func (s *Service) Complete(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (payoutCents int64, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	b, err := s.repo.GetByIDForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if b.ProviderID != actor.UserID {
		return 0, ErrForbidden
	}
	if b.Status == models.BookingStatusCompleted {
		return 0, ErrAlreadyCompleted
	}
	if b.Status == models.BookingStatusCancelled {
		return 0, ErrStateConflict
	}
	if !b.OTPVerified {
		return 0, ErrNotVerified
	}

	payout, err := s.ledger.Release(ctx, tx, b.ID)
	if err != nil {
		return 0, err
	}
	b.Status = models.BookingStatusCompleted
	b.PaymentStatus = models.PaymentStatusTransferred
	if err := s.repo.Update(ctx, tx, b); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return payout, nil
}

// Cancel aborts a pending or paid_held booking. Reversing the escrow hold
// and the state transition commit together or not at all.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, bookingID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	b, err := s.repo.GetByIDForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if b.ClientID != actor.UserID && b.ProviderID != actor.UserID {
		return ErrForbidden
	}
	switch b.Status {
	case models.BookingStatusPending:
		// No hold was placed yet; nothing to reverse.
	case models.BookingStatusPaidHeld:
		if err := s.ledger.Refund(ctx, tx, b.ID); err != nil {
			return err
		}
		b.PaymentStatus = models.PaymentStatusPending
	default:
		return ErrStateConflict
	}
	b.Status = models.BookingStatusCancelled
	if err := s.repo.Update(ctx, tx, b); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get returns a booking to one of its parties.
func (s *Service) Get(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if b.ClientID != actor.UserID && b.ProviderID != actor.UserID {
		return nil, ErrForbidden
	}
	return b, nil
}

// List returns the actor's bookings: own bookings for a client, bookings
// of own services for a provider.
func (s *Service) List(ctx context.Context, actor models.Actor) ([]*models.Booking, error) {
	if actor.Role == models.RoleProvider {
		return s.repo.ListByProvider(ctx, actor.UserID)
	}
	return s.repo.ListByClient(ctx, actor.UserID)
}

func (s *Service) validateDate(raw string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, &models.ValidationError{Field: "booking_date", Reason: "must be YYYY-MM-DD"}
	}
	// Compare against the wall-clock date, not a UTC day boundary: a
	// server in a non-UTC zone must not reject a same-day booking.
	y, m, d := s.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return time.Time{}, &models.ValidationError{Field: "booking_date", Reason: "must not be in the past"}
	}
	return date, nil
}

// validateCard is a format-only check (digit lengths, plausible expiry).
// There is no payment network behind it and never will be.
func (s *Service) validateCard(in CreateInput) error {
	number := strings.ReplaceAll(in.CardNumber, " ", "")
	if !allDigits(number) || len(number) < 13 || len(number) > 16 {
		return &models.ValidationError{Field: "card_number", Reason: "must be 13-16 digits"}
	}
	if strings.TrimSpace(in.CardName) == "" {
		return &models.ValidationError{Field: "card_name", Reason: "is required"}
	}
	if !allDigits(in.CardCVV) || len(in.CardCVV) < 3 || len(in.CardCVV) > 4 {
		return &models.ValidationError{Field: "card_cvv", Reason: "must be 3-4 digits"}
	}
	exp, err := time.Parse("01/06", in.CardExpiry)
	if err != nil {
		return &models.ValidationError{Field: "card_expiry", Reason: "must be MM/YY"}
	}
	now := s.now()
	if exp.Year() < now.Year() || (exp.Year() == now.Year() && exp.Month() < now.Month()) {
		return &models.ValidationError{Field: "card_expiry", Reason: "card is expired"}
	}
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/covidsafe/services-backend/internal/models"
)

var (
	// ErrAlreadyVerified is returned when verifying a booking whose OTP
	// was already consumed.
	ErrAlreadyVerified = errors.New("otp already verified")
	// ErrExpired is returned when the code's lifetime has elapsed.
	ErrExpired = errors.New("otp expired")
	// ErrCodeMismatch is returned on a wrong code. It carries no
	// information about which digits differed.
	ErrCodeMismatch = errors.New("invalid otp code")
	// ErrNoCode is returned when verifying a booking with no issued code.
	ErrNoCode = errors.New("no otp issued for booking")
)

var codeSpace = big.NewInt(1000000)

// Service issues and verifies one-time codes bound to a booking. State
// lives on the booking row; callers persist the mutated booking inside the
// same per-booking transaction that loaded it, which serializes issue
// against verify.
type Service struct {
	ttl  time.Duration
	now  func() time.Time
	rand io.Reader
}

func NewService(ttl time.Duration) *Service {
	return &Service{ttl: ttl, now: time.Now, rand: rand.Reader}
}

// Issue generates a uniformly random zero-padded 6-digit code and binds it
// to the booking, invalidating any prior code.
func (s *Service) Issue(b *models.Booking) (string, error) {
	n, err := rand.Int(s.rand, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	issued := s.now()
	b.OTPCode = &code
	b.OTPIssuedAt = &issued
	return code, nil
}

// Verify compares submitted against the stored code in constant time.
// On success it marks the booking verified and clears the code (single
// use). On any failure the booking is left untouched.
func (s *Service) Verify(b *models.Booking, submitted string) error {
	if b.OTPVerified {
		return ErrAlreadyVerified
	}
	if b.OTPCode == nil || b.OTPIssuedAt == nil {
		return ErrNoCode
	}
	if s.now().Sub(*b.OTPIssuedAt) > s.ttl {
		return ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(*b.OTPCode), []byte(submitted)) != 1 {
		return ErrCodeMismatch
	}
	b.OTPVerified = true
	b.OTPCode = nil
	b.OTPIssuedAt = nil
	return nil
}

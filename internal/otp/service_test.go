package otp

import (
	"testing"
	"time"

	"github.com/covidsafe/services-backend/internal/models"
)

func TestIssueFormat(t *testing.T) {
	svc := NewService(15 * time.Minute)
	b := &models.Booking{}

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := svc.Issue(b)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q is not 6 digits", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("code %q contains non-digit", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("50 issues produced a single code; generator is not random")
	}
}

func TestIssueInvalidatesPriorCode(t *testing.T) {
	svc := NewService(15 * time.Minute)
	b := &models.Booking{}

	first, err := svc.Issue(b)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := svc.Issue(b)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first == second {
		// Equal codes are possible but the stored one must be the latest.
		t.Logf("re-issue produced identical code %q (allowed)", first)
	}
	if *b.OTPCode != second {
		t.Errorf("stored code %q, want latest issue %q", *b.OTPCode, second)
	}
}

func TestVerifySuccessIsSingleUse(t *testing.T) {
	svc := NewService(15 * time.Minute)
	b := &models.Booking{}
	code, _ := svc.Issue(b)

	if err := svc.Verify(b, code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !b.OTPVerified {
		t.Error("otp_verified should be set after a correct code")
	}
	if b.OTPCode != nil || b.OTPIssuedAt != nil {
		t.Error("code must be cleared on success (single use)")
	}
	if err := svc.Verify(b, code); err != ErrAlreadyVerified {
		t.Errorf("second verify: got %v, want ErrAlreadyVerified", err)
	}
}

func TestVerifyWrongCodeLeavesStateUnchanged(t *testing.T) {
	svc := NewService(15 * time.Minute)
	b := &models.Booking{}
	code, _ := svc.Issue(b)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	// Three consecutive wrong attempts must not burn the code.
	for i := 0; i < 3; i++ {
		if err := svc.Verify(b, wrong); err != ErrCodeMismatch {
			t.Fatalf("attempt %d: got %v, want ErrCodeMismatch", i+1, err)
		}
		if b.OTPVerified {
			t.Fatal("wrong code flipped otp_verified")
		}
	}
	if err := svc.Verify(b, code); err != nil {
		t.Errorf("correct code after wrong attempts: %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	svc := NewService(15 * time.Minute)
	b := &models.Booking{}
	code, _ := svc.Issue(b)

	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	if err := svc.Verify(b, code); err != ErrExpired {
		t.Errorf("got %v, want ErrExpired", err)
	}
	if b.OTPVerified {
		t.Error("expired verify must not flip otp_verified")
	}

	// Exactly at the boundary the code is still valid.
	issued := *b.OTPIssuedAt
	svc.now = func() time.Time { return issued.Add(15 * time.Minute) }
	if err := svc.Verify(b, code); err != nil {
		t.Errorf("verify at ttl boundary: %v", err)
	}
}

func TestVerifyWithoutIssue(t *testing.T) {
	svc := NewService(15 * time.Minute)
	b := &models.Booking{}
	if err := svc.Verify(b, "123456"); err != ErrNoCode {
		t.Errorf("got %v, want ErrNoCode", err)
	}
}

package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/covidsafe/services-backend/internal/location"
	"github.com/covidsafe/services-backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockRepo struct {
	created []*models.HealthDeclaration
}

func (m *mockRepo) Create(_ context.Context, d *models.HealthDeclaration) error {
	cp := *d
	m.created = append(m.created, &cp)
	d.CreatedAt = time.Now()
	return nil
}

type mockBookings struct {
	bookings []*models.Booking
}

func (m *mockBookings) ListByParticipantBetween(_ context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Booking, error) {
	var out []*models.Booking
	for _, b := range m.bookings {
		if b.ClientID != userID && b.ProviderID != userID {
			continue
		}
		if b.BookingDate.Before(from) || b.BookingDate.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

type mockTracer struct {
	count  int
	err    error
	traced []*models.HealthDeclaration
}

func (m *mockTracer) Trace(_ context.Context, decl *models.HealthDeclaration) (int, error) {
	m.traced = append(m.traced, decl)
	return m.count, m.err
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestService(bookings *mockBookings, tracer *mockTracer) (*Service, *mockRepo) {
	repo := &mockRepo{}
	svc := NewService(repo, bookings, tracer, 14, 14, nil)
	svc.now = func() time.Time { return day("2026-08-20") }
	return svc, repo
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRecordRejectsFutureDate(t *testing.T) {
	svc, _ := newTestService(&mockBookings{}, &mockTracer{})
	actor := models.Actor{UserID: uuid.New(), Role: models.RoleClient}

	_, _, err := svc.Record(context.Background(), actor, Input{
		DeclarationDate: "2026-08-21",
		TestResult:      models.TestResultNegative,
	})
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != "declaration_date" {
		t.Fatalf("expected declaration_date validation error, got %v", err)
	}
}

func TestRecordFutureDateRejectedInWesternZone(t *testing.T) {
	svc, _ := newTestService(&mockBookings{}, &mockTracer{})
	// Late evening in UTC-10: the UTC clock already reads the 21st, but
	// the server's calendar date is still the 20th.
	hst := time.FixedZone("HST", -10*3600)
	svc.now = func() time.Time { return time.Date(2026, 8, 20, 20, 0, 0, 0, hst) }
	actor := models.Actor{UserID: uuid.New(), Role: models.RoleClient}

	_, _, err := svc.Record(context.Background(), actor, Input{
		DeclarationDate: "2026-08-21",
		TestResult:      models.TestResultNegative,
	})
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != "declaration_date" {
		t.Fatalf("tomorrow accepted near midnight UTC: %v", err)
	}

	if _, _, err := svc.Record(context.Background(), actor, Input{
		DeclarationDate: "2026-08-20",
		TestResult:      models.TestResultNegative,
	}); err != nil {
		t.Fatalf("same-day declaration rejected: %v", err)
	}
}

func TestRecordRejectsImplausibleTemperature(t *testing.T) {
	svc, _ := newTestService(&mockBookings{}, &mockTracer{})
	actor := models.Actor{UserID: uuid.New(), Role: models.RoleClient}

	for _, temp := range []float64{34.9, 42.1} {
		tt := temp
		_, _, err := svc.Record(context.Background(), actor, Input{
			DeclarationDate: "2026-08-20",
			Temperature:     &tt,
			TestResult:      models.TestResultNegative,
		})
		var ve *models.ValidationError
		if !errors.As(err, &ve) || ve.Field != "temperature" {
			t.Fatalf("temperature %.1f: expected temperature validation error, got %v", temp, err)
		}
	}

	edge := 42.0
	if _, _, err := svc.Record(context.Background(), actor, Input{
		DeclarationDate: "2026-08-20",
		Temperature:     &edge,
		TestResult:      models.TestResultNegative,
	}); err != nil {
		t.Fatalf("boundary temperature should be accepted: %v", err)
	}
}

func TestRecordRejectsUnknownTestResult(t *testing.T) {
	svc, _ := newTestService(&mockBookings{}, &mockTracer{})
	actor := models.Actor{UserID: uuid.New(), Role: models.RoleClient}

	_, _, err := svc.Record(context.Background(), actor, Input{
		DeclarationDate: "2026-08-20",
		TestResult:      "maybe",
	})
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != "covid_test_result" {
		t.Fatalf("expected covid_test_result validation error, got %v", err)
	}
}

func TestRecordDerivesTokenFromMostRecentBooking(t *testing.T) {
	user := uuid.New()
	bookings := &mockBookings{bookings: []*models.Booking{
		// Most recent first, matching repository ordering.
		{ClientID: user, ProviderID: uuid.New(), LocalityToken: "newtoken", BookingDate: day("2026-08-18")},
		{ClientID: user, ProviderID: uuid.New(), LocalityToken: "oldtoken", BookingDate: day("2026-08-10")},
	}}
	svc, repo := newTestService(bookings, &mockTracer{})

	decl, _, err := svc.Record(context.Background(), models.Actor{UserID: user, Role: models.RoleClient}, Input{
		DeclarationDate: "2026-08-20",
		TestResult:      models.TestResultNegative,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if decl.LocalityToken != "newtoken" {
		t.Fatalf("expected token of most recent booking, got %q", decl.LocalityToken)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one appended declaration, got %d", len(repo.created))
	}
	if decl.WindowEnd != day("2026-08-20") || decl.WindowStart != day("2026-08-06") {
		t.Fatalf("unexpected window: %s .. %s", decl.WindowStart, decl.WindowEnd)
	}
}

func TestRecordSentinelTokenWhenNoBookingsInWindow(t *testing.T) {
	user := uuid.New()
	bookings := &mockBookings{bookings: []*models.Booking{
		// Outside the 14-day lookback.
		{ClientID: user, ProviderID: uuid.New(), LocalityToken: "stale", BookingDate: day("2026-07-01")},
	}}
	tracer := &mockTracer{count: 99}
	svc, _ := newTestService(bookings, tracer)

	decl, contacts, err := svc.Record(context.Background(), models.Actor{UserID: user, Role: models.RoleClient}, Input{
		DeclarationDate: "2026-08-20",
		TestResult:      models.TestResultPositive,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if decl.LocalityToken != location.NoLocality {
		t.Fatalf("expected sentinel token, got %q", decl.LocalityToken)
	}
	// The engine itself short-circuits sentinels; here we only assert the
	// declaration reached it with the sentinel intact.
	if len(tracer.traced) != 1 || tracer.traced[0].LocalityToken != location.NoLocality {
		t.Fatalf("tracer should see the sentinel declaration, got %+v", tracer.traced)
	}
	_ = contacts
}

func TestRecordTracesOnlyPositiveResults(t *testing.T) {
	user := uuid.New()
	tracer := &mockTracer{count: 3}
	svc, _ := newTestService(&mockBookings{}, tracer)
	actor := models.Actor{UserID: user, Role: models.RoleClient}

	for _, result := range []string{models.TestResultNegative, models.TestResultPending, models.TestResultNotTested} {
		_, contacts, err := svc.Record(context.Background(), actor, Input{
			DeclarationDate: "2026-08-20",
			TestResult:      result,
		})
		if err != nil {
			t.Fatalf("record %s: %v", result, err)
		}
		if contacts != 0 {
			t.Fatalf("%s result must not trace, got count %d", result, contacts)
		}
	}
	if len(tracer.traced) != 0 {
		t.Fatalf("tracer invoked for non-positive results: %d calls", len(tracer.traced))
	}

	_, contacts, err := svc.Record(context.Background(), actor, Input{
		DeclarationDate: "2026-08-20",
		TestResult:      models.TestResultPositive,
	})
	if err != nil {
		t.Fatalf("record positive: %v", err)
	}
	if contacts != 3 {
		t.Fatalf("expected traced count from engine, got %d", contacts)
	}
}

func TestRecordSurvivesTraceFailure(t *testing.T) {
	tracer := &mockTracer{err: errors.New("scan timed out")}
	svc, repo := newTestService(&mockBookings{}, tracer)
	actor := models.Actor{UserID: uuid.New(), Role: models.RoleClient}

	// The declaration is durable before tracing runs; a trace failure must
	// not surface as an error, or a retry would append a duplicate.
	decl, contacts, err := svc.Record(context.Background(), actor, Input{
		DeclarationDate: "2026-08-20",
		TestResult:      models.TestResultPositive,
	})
	if err != nil {
		t.Fatalf("trace failure leaked as record error: %v", err)
	}
	if decl == nil {
		t.Fatal("committed declaration not returned")
	}
	if contacts != 0 {
		t.Fatalf("expected zero count when tracing fails, got %d", contacts)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected exactly one appended declaration, got %d", len(repo.created))
	}
}

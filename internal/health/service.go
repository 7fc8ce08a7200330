package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/covidsafe/services-backend/internal/location"
	"github.com/covidsafe/services-backend/internal/models"
)

// Repo is the declaration store interface.
type Repo interface {
	Create(ctx context.Context, d *models.HealthDeclaration) error
}

// BookingSource yields a user's bookings inside the lookback window,
// most recent first.
type BookingSource interface {
	ListByParticipantBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Booking, error)
}

// Tracer runs contact tracing for a committed positive declaration.
type Tracer interface {
	Trace(ctx context.Context, decl *models.HealthDeclaration) (int, error)
}

type Service struct {
	repo                 Repo
	bookings             BookingSource
	tracer               Tracer
	lookbackDays         int
	infectiousWindowDays int
	now                  func() time.Time
	log                  *slog.Logger
}

func NewService(repo Repo, bookings BookingSource, tracer Tracer, lookbackDays, infectiousWindowDays int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:                 repo,
		bookings:             bookings,
		tracer:               tracer,
		lookbackDays:         lookbackDays,
		infectiousWindowDays: infectiousWindowDays,
		now:                  time.Now,
		log:                  log,
	}
}

type Input struct {
	DeclarationDate string
	Symptoms        string
	Temperature     *float64
	TestResult      string
}

// Record appends a declaration. Raw locations are never stored, so the
// locality token is carried over from the user's most recent
// non-cancelled booking inside the lookback window; with no booking in
// range the token is the no-locality sentinel and the declaration can
// never match.
//
// A positive test result triggers tracing synchronously, after the
// declaration row is durable. The returned count is zero for any other
// test result.
func (s *Service) Record(ctx context.Context, actor models.Actor, in Input) (*models.HealthDeclaration, int, error) {
	date, err := time.Parse("2006-01-02", in.DeclarationDate)
	if err != nil {
		return nil, 0, &models.ValidationError{Field: "declaration_date", Reason: "must be YYYY-MM-DD"}
	}
	// Wall-clock date of the server, not a UTC day boundary; the parsed
	// date is UTC midnight and must compare against the same calendar day.
	y, m, d := s.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if date.After(today) {
		return nil, 0, &models.ValidationError{Field: "declaration_date", Reason: "cannot be in the future"}
	}
	if in.Temperature != nil && (*in.Temperature < models.TemperatureMin || *in.Temperature > models.TemperatureMax) {
		return nil, 0, &models.ValidationError{Field: "temperature", Reason: "outside plausible range"}
	}
	if !models.ValidTestResult(in.TestResult) {
		return nil, 0, &models.ValidationError{Field: "covid_test_result", Reason: "unknown test result"}
	}

	token, err := s.localityToken(ctx, actor.UserID, date)
	if err != nil {
		return nil, 0, fmt.Errorf("deriving locality token: %w", err)
	}

	decl := &models.HealthDeclaration{
		ID:              uuid.New(),
		UserID:          actor.UserID,
		DeclarationDate: date,
		Symptoms:        in.Symptoms,
		Temperature:     in.Temperature,
		TestResult:      in.TestResult,
		LocalityToken:   token,
		WindowStart:     date.AddDate(0, 0, -s.infectiousWindowDays),
		WindowEnd:       date,
	}
	if err := s.repo.Create(ctx, decl); err != nil {
		return nil, 0, fmt.Errorf("persisting declaration: %w", err)
	}

	if decl.TestResult != models.TestResultPositive {
		return decl, 0, nil
	}
	// The declaration row is already durable. Failing here would make the
	// caller retry and append a duplicate, so a trace failure is logged
	// and the declaration returned without a count.
	contacts, err := s.tracer.Trace(ctx, decl)
	if err != nil {
		s.log.Error("contact tracing failed after declaration commit",
			"declaration_id", decl.ID, "error", err)
		return decl, 0, nil
	}
	return decl, contacts, nil
}

func (s *Service) localityToken(ctx context.Context, userID uuid.UUID, date time.Time) (string, error) {
	from := date.AddDate(0, 0, -s.lookbackDays)
	bookings, err := s.bookings.ListByParticipantBetween(ctx, userID, from, date)
	if err != nil {
		return "", err
	}
	for _, b := range bookings {
		if b.LocalityToken != location.NoLocality {
			return b.LocalityToken, nil
		}
	}
	return location.NoLocality, nil
}

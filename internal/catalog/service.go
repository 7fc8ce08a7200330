package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covidsafe/services-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("service not found")
	ErrForbidden = errors.New("actor does not own this service")
	// ErrActiveBookings blocks deletion while a non-terminal booking
	// still references the service.
	ErrActiveBookings = errors.New("service has active bookings")
)

// Repo is the catalog storage interface.
type Repo interface {
	Create(ctx context.Context, s *models.Service) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	Update(ctx context.Context, s *models.Service) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, serviceType string) ([]*models.Service, error)
}

// BookingCounter reports non-terminal bookings per service.
type BookingCounter interface {
	CountActiveByService(ctx context.Context, serviceID uuid.UUID) (int, error)
}

type Service struct {
	repo     Repo
	bookings BookingCounter
}

func NewService(repo Repo, bookings BookingCounter) *Service {
	return &Service{repo: repo, bookings: bookings}
}

type Input struct {
	ServiceType   string
	Title         string
	Description   string
	PriceCents    int64
	LocationArea  string
	MaxDistanceKm int
	CovidSafe     bool
}

func (s *Service) Create(ctx context.Context, actor models.Actor, in Input) (*models.Service, error) {
	if actor.Role != models.RoleProvider {
		return nil, ErrForbidden
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	svc := &models.Service{
		ID:            uuid.New(),
		ProviderID:    actor.UserID,
		ServiceType:   in.ServiceType,
		Title:         in.Title,
		Description:   in.Description,
		PriceCents:    in.PriceCents,
		LocationArea:  in.LocationArea,
		MaxDistanceKm: in.MaxDistanceKm,
		CovidSafe:     in.CovidSafe,
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// Update is the explicit provider edit; existing bookings keep their
// amount snapshot regardless.
func (s *Service) Update(ctx context.Context, actor models.Actor, id uuid.UUID, in Input) (*models.Service, error) {
	svc, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	svc.ServiceType = in.ServiceType
	svc.Title = in.Title
	svc.Description = in.Description
	svc.PriceCents = in.PriceCents
	svc.LocationArea = in.LocationArea
	svc.MaxDistanceKm = in.MaxDistanceKm
	svc.CovidSafe = in.CovidSafe
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	if _, err := s.getOwned(ctx, actor, id); err != nil {
		return err
	}
	n, err := s.bookings.CountActiveByService(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrActiveBookings
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return svc, nil
}

func (s *Service) List(ctx context.Context, serviceType string) ([]*models.Service, error) {
	return s.repo.List(ctx, serviceType)
}

func (s *Service) getOwned(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Service, error) {
	svc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.ProviderID != actor.UserID {
		return nil, ErrForbidden
	}
	return svc, nil
}

func validateInput(in Input) error {
	if !models.ValidServiceType(in.ServiceType) {
		return &models.ValidationError{Field: "service_type", Reason: "unknown service type"}
	}
	if strings.TrimSpace(in.Title) == "" {
		return &models.ValidationError{Field: "title", Reason: "is required"}
	}
	if in.PriceCents <= 0 {
		return &models.ValidationError{Field: "price", Reason: "must be positive"}
	}
	return nil
}

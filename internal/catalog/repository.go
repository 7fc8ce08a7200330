package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covidsafe/services-backend/internal/models"
)

const serviceColumns = `id, provider_id, service_type, title, description, price_cents,
	location_area, max_distance_km, covid_safe, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanService(row pgx.Row) (*models.Service, error) {
	var s models.Service
	err := row.Scan(&s.ID, &s.ProviderID, &s.ServiceType, &s.Title, &s.Description, &s.PriceCents,
		&s.LocationArea, &s.MaxDistanceKm, &s.CovidSafe, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) Create(ctx context.Context, s *models.Service) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO services (id, provider_id, service_type, title, description, price_cents,
			location_area, max_distance_km, covid_safe)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, s.ID, s.ProviderID, s.ServiceType, s.Title, s.Description, s.PriceCents,
		s.LocationArea, s.MaxDistanceKm, s.CovidSafe).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	return scanService(r.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+` FROM services WHERE id = $1
	`, id))
}

func (r *Repository) Update(ctx context.Context, s *models.Service) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE services SET service_type = $2, title = $3, description = $4, price_cents = $5,
			location_area = $6, max_distance_km = $7, covid_safe = $8, updated_at = now()
		WHERE id = $1
	`, s.ID, s.ServiceType, s.Title, s.Description, s.PriceCents,
		s.LocationArea, s.MaxDistanceKm, s.CovidSafe)
	return err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	return err
}

// CountByProvider feeds the dashboard stats.
func (r *Repository) CountByProvider(ctx context.Context, providerID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM services WHERE provider_id = $1
	`, providerID).Scan(&n)
	return n, err
}

// List returns all services, optionally filtered by service_type.
func (r *Repository) List(ctx context.Context, serviceType string) ([]*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services ORDER BY created_at DESC`
	args := []any{}
	if serviceType != "" {
		query = `SELECT ` + serviceColumns + ` FROM services WHERE service_type = $1 ORDER BY created_at DESC`
		args = append(args, serviceType)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

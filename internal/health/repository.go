package health

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covidsafe/services-backend/internal/models"
)

const declarationColumns = `id, user_id, declaration_date, symptoms, temperature,
	covid_test_result, locality_token, window_start, window_end, created_at`

// Repository persists health declarations. The table is append-only:
// there is no update or delete path.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanDeclaration(row pgx.Row) (*models.HealthDeclaration, error) {
	var d models.HealthDeclaration
	err := row.Scan(&d.ID, &d.UserID, &d.DeclarationDate, &d.Symptoms, &d.Temperature,
		&d.TestResult, &d.LocalityToken, &d.WindowStart, &d.WindowEnd, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) Create(ctx context.Context, d *models.HealthDeclaration) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO health_declarations (id, user_id, declaration_date, symptoms, temperature,
			covid_test_result, locality_token, window_start, window_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, d.ID, d.UserID, d.DeclarationDate, d.Symptoms, d.Temperature,
		d.TestResult, d.LocalityToken, d.WindowStart, d.WindowEnd).Scan(&d.CreatedAt)
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.HealthDeclaration, error) {
	return r.list(ctx, `
		SELECT `+declarationColumns+` FROM health_declarations
		WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
}

// ListByLocalityTokenOverlapping returns declarations sharing a token
// whose stored window intersects [start, end]. Sentinel tokens are the
// empty string and are excluded at the call site before this runs.
func (r *Repository) ListByLocalityTokenOverlapping(ctx context.Context, token string, start, end time.Time) ([]*models.HealthDeclaration, error) {
	return r.list(ctx, `
		SELECT `+declarationColumns+` FROM health_declarations
		WHERE locality_token = $1
		  AND window_start <= $3 AND window_end >= $2
	`, token, start, end)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*models.HealthDeclaration, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.HealthDeclaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

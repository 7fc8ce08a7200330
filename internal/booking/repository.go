package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covidsafe/services-backend/internal/models"
)

const bookingColumns = `id, service_id, client_id, provider_id, booking_date, booking_time,
	locality_token, privacy_level, status, payment_status, amount_cents,
	otp_code, otp_issued_at, otp_verified, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.ServiceID, &b.ClientID, &b.ProviderID, &b.BookingDate, &b.BookingTime,
		&b.LocalityToken, &b.PrivacyLevel, &b.Status, &b.PaymentStatus, &b.AmountCents,
		&b.OTPCode, &b.OTPIssuedAt, &b.OTPVerified, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) Create(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	return tx.QueryRow(ctx, `
		INSERT INTO bookings (id, service_id, client_id, provider_id, booking_date, booking_time,
			locality_token, privacy_level, status, payment_status, amount_cents,
			otp_code, otp_issued_at, otp_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`, b.ID, b.ServiceID, b.ClientID, b.ProviderID, b.BookingDate, b.BookingTime,
		b.LocalityToken, b.PrivacyLevel, b.Status, b.PaymentStatus, b.AmountCents,
		b.OTPCode, b.OTPIssuedAt, b.OTPVerified).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE id = $1
	`, id))
}

// GetByIDForUpdate locks the booking row for the duration of tx. Every
// mutation path loads through here, which serializes hold / verify /
// complete / cancel per booking.
func (r *Repository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE id = $1
		FOR UPDATE
	`, id))
}

func (r *Repository) Update(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	_, err := tx.Exec(ctx, `
		UPDATE bookings SET status = $2, payment_status = $3,
			otp_code = $4, otp_issued_at = $5, otp_verified = $6, updated_at = now()
		WHERE id = $1
	`, b.ID, b.Status, b.PaymentStatus, b.OTPCode, b.OTPIssuedAt, b.OTPVerified)
	return err
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE client_id = $1 ORDER BY created_at DESC
	`, clientID)
}

func (r *Repository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*models.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE provider_id = $1 ORDER BY created_at DESC
	`, providerID)
}

// ListByParticipantBetween returns bookings where the user took part on
// either side, dated inside [from, to]. Used to derive declaration
// locality tokens.
func (r *Repository) ListByParticipantBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE (client_id = $1 OR provider_id = $1)
		  AND booking_date >= $2 AND booking_date <= $3
		  AND status <> 'cancelled'
		ORDER BY booking_date DESC, created_at DESC
	`, userID, from, to)
}

// ListByLocalityTokenBetween returns bookings sharing a locality token
// inside a date window. Fed to the contact-tracing engine.
func (r *Repository) ListByLocalityTokenBetween(ctx context.Context, token string, from, to time.Time) ([]*models.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE locality_token = $1
		  AND booking_date >= $2 AND booking_date <= $3
		  AND status <> 'cancelled'
	`, token, from, to)
}

// CountActiveByService counts non-terminal bookings referencing a service.
// Service deletion is blocked while this is non-zero.
func (r *Repository) CountActiveByService(ctx context.Context, serviceID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE service_id = $1 AND status NOT IN ('completed', 'cancelled')
	`, serviceID).Scan(&n)
	return n, err
}

package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/covidsafe/services-backend/internal/models"
)

// Repository is the pgx-backed escrow store. All methods run inside the
// caller's transaction; GetForUpdate takes the row lock that serializes
// concurrent release/refund attempts for one booking.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*models.EscrowHold, error) {
	var h models.EscrowHold
	err := tx.QueryRow(ctx, `
		SELECT booking_id, amount_cents, platform_fee_cents, provider_payout_cents, status, created_at, updated_at
		FROM escrow_holds WHERE booking_id = $1
		FOR UPDATE
	`, bookingID).Scan(&h.BookingID, &h.AmountCents, &h.PlatformFeeCents, &h.ProviderPayoutCents, &h.Status, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *Repository) Create(ctx context.Context, tx pgx.Tx, h *models.EscrowHold) error {
	return tx.QueryRow(ctx, `
		INSERT INTO escrow_holds (booking_id, amount_cents, platform_fee_cents, provider_payout_cents, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, h.BookingID, h.AmountCents, h.PlatformFeeCents, h.ProviderPayoutCents, h.Status).Scan(&h.CreatedAt, &h.UpdatedAt)
}

func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, status string) error {
	_, err := tx.Exec(ctx, `
		UPDATE escrow_holds SET status = $2, updated_at = now() WHERE booking_id = $1
	`, bookingID, status)
	return err
}

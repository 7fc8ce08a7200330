package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/covidsafe/services-backend/internal/location"
	"github.com/covidsafe/services-backend/internal/models"
)

// BookingSource yields bookings sharing a locality token inside a date
// window. Cancelled bookings are already filtered out by the source.
type BookingSource interface {
	ListByLocalityTokenBetween(ctx context.Context, token string, from, to time.Time) ([]*models.Booking, error)
}

// DeclarationSource yields prior declarations whose stored window
// overlaps the given interval on a shared token.
type DeclarationSource interface {
	ListByLocalityTokenOverlapping(ctx context.Context, token string, start, end time.Time) ([]*models.HealthDeclaration, error)
}

// Notifier delivers one anonymized exposure notice per counterpart.
// Implementations enqueue; delivery itself happens out of band.
type Notifier interface {
	NotifyExposure(ctx context.Context, userID uuid.UUID, windowStart, windowEnd time.Time) error
}

// Engine performs the locality/time intersection for a positive
// declaration. Matching is pure set work over tokens and intervals:
// the token already encodes the privacy-adjusted granularity, so no
// distance computation happens here.
type Engine struct {
	bookings     BookingSource
	declarations DeclarationSource
	notifier     Notifier
	log          *slog.Logger
}

func NewEngine(bookings BookingSource, declarations DeclarationSource, notifier Notifier, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{bookings: bookings, declarations: declarations, notifier: notifier, log: log}
}

// Trace returns the number of distinct counterpart users whose locality
// token matches the declarant's and whose time window overlaps the
// declaration window by at least one day. The declarant is excluded,
// and a counterpart appearing in several bookings or declarations is
// counted once. Sentinel tokens never match anything.
//
// Notifications are enqueued best-effort after the count is settled; an
// enqueue failure is logged but does not fail the trace. Callers invoke
// Trace only after the declaration itself has committed.
func (e *Engine) Trace(ctx context.Context, decl *models.HealthDeclaration) (int, error) {
	if decl.LocalityToken == location.NoLocality {
		return 0, nil
	}

	var counterparts []uuid.UUID

	prior, err := e.declarations.ListByLocalityTokenOverlapping(ctx, decl.LocalityToken, decl.WindowStart, decl.WindowEnd)
	if err != nil {
		return 0, fmt.Errorf("scanning declarations: %w", err)
	}
	for _, d := range prior {
		if d.UserID != decl.UserID {
			counterparts = append(counterparts, d.UserID)
		}
	}

	matched, err := e.bookings.ListByLocalityTokenBetween(ctx, decl.LocalityToken, decl.WindowStart, decl.WindowEnd)
	if err != nil {
		return 0, fmt.Errorf("scanning bookings: %w", err)
	}
	for _, b := range matched {
		if b.ClientID != decl.UserID {
			counterparts = append(counterparts, b.ClientID)
		}
		if b.ProviderID != decl.UserID {
			counterparts = append(counterparts, b.ProviderID)
		}
	}

	counterparts = lo.Uniq(counterparts)

	for _, userID := range counterparts {
		if err := e.notifier.NotifyExposure(ctx, userID, decl.WindowStart, decl.WindowEnd); err != nil {
			e.log.Error("exposure notification enqueue failed", "error", err)
		}
	}

	return len(counterparts), nil
}

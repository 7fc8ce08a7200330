package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/covidsafe/services-backend/internal/escrow"
	"github.com/covidsafe/services-backend/internal/middleware"
	"github.com/covidsafe/services-backend/internal/models"
)

// BookingSource lists the actor's bookings, role-scoped.
type BookingSource interface {
	List(ctx context.Context, actor models.Actor) ([]*models.Booking, error)
}

// ServiceCounter counts a provider's listed services.
type ServiceCounter interface {
	CountByProvider(ctx context.Context, providerID uuid.UUID) (int, error)
}

// Handler serves GET /api/stats/dashboard: pure read-side aggregation,
// no core logic.
type Handler struct {
	bookings BookingSource
	services ServiceCounter
	log      *slog.Logger
}

func NewHandler(bookings BookingSource, services ServiceCounter, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{bookings: bookings, services: services, log: log}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	bookings, err := h.bookings.List(r.Context(), *actor)
	if err != nil {
		h.log.Error("dashboard booking aggregation failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	completed := lo.Filter(bookings, func(b *models.Booking, _ int) bool {
		return b.Status == models.BookingStatusCompleted
	})
	stats := map[string]any{
		"total_bookings":     len(bookings),
		"completed_bookings": len(completed),
	}

	switch actor.Role {
	case models.RoleProvider:
		n, err := h.services.CountByProvider(r.Context(), actor.UserID)
		if err != nil {
			h.log.Error("dashboard service count failed", "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		earnings := lo.SumBy(completed, func(b *models.Booking) int64 {
			_, payout := escrow.SplitAmount(b.AmountCents)
			return payout
		})
		stats["total_services"] = n
		stats["total_earnings"] = float64(earnings) / 100
	default:
		spent := lo.SumBy(completed, func(b *models.Booking) int64 {
			return b.AmountCents
		})
		stats["total_spent"] = float64(spent) / 100
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(stats)
}

package booking

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/covidsafe/services-backend/internal/escrow"
	"github.com/covidsafe/services-backend/internal/middleware"
	"github.com/covidsafe/services-backend/internal/models"
	"github.com/covidsafe/services-backend/internal/otp"
	"github.com/covidsafe/services-backend/internal/validate"
)

// Handler serves /api/bookings.
type Handler struct {
	svc       *Service
	validator *validate.Validator
	log       *slog.Logger
}

func NewHandler(svc *Service, validator *validate.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, validator: validator, log: log}
}

type createRequest struct {
	ServiceID    string `json:"service_id"`
	BookingDate  string `json:"booking_date"`
	BookingTime  string `json:"booking_time"`
	Location     string `json:"location"`
	PrivacyLevel string `json:"privacy_level"`
	CardNumber   string `json:"card_number"`
	CardName     string `json:"card_name"`
	CardExpiry   string `json:"card_expiry"`
	CardCVV      string `json:"card_cvv"`
}

// Create handles POST /api/bookings. The response carries otp_code — the
// single time the code is ever readable.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	if err := h.validator.Validate(validate.SchemaBookingCreate, body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req createRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service_id"})
		return
	}

	b, code, err := h.svc.Create(r.Context(), *actor, CreateInput{
		ServiceID:    serviceID,
		BookingDate:  req.BookingDate,
		BookingTime:  req.BookingTime,
		Location:     req.Location,
		PrivacyLevel: req.PrivacyLevel,
		CardNumber:   req.CardNumber,
		CardName:     req.CardName,
		CardExpiry:   req.CardExpiry,
		CardCVV:      req.CardCVV,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":             b.ID,
		"service_id":     b.ServiceID,
		"booking_date":   b.BookingDate.Format("2006-01-02"),
		"booking_time":   b.BookingTime,
		"privacy_level":  b.PrivacyLevel,
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
		"amount":         centsToDollars(b.AmountCents),
		"otp_code":       code,
	})
}

type verifyOTPRequest struct {
	OTPCode string `json:"otp_code"`
}

// VerifyOTP handles POST /api/bookings/{id}/verify-otp (provider only).
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid booking id"}`, http.StatusBadRequest)
		return
	}
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.VerifyOTP(r.Context(), *actor, id, req.OTPCode); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.BookingStatusOTPVerified})
}

// Complete handles POST /api/bookings/{id}/complete (provider only).
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid booking id"}`, http.StatusBadRequest)
		return
	}
	payout, err := h.svc.Complete(r.Context(), *actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              models.BookingStatusCompleted,
		"payment_transferred": centsToDollars(payout),
	})
}

// Cancel handles POST /api/bookings/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid booking id"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.Cancel(r.Context(), *actor, id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.BookingStatusCancelled})
}

// Get handles GET /api/bookings/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid booking id"}`, http.StatusBadRequest)
		return
	}
	b, err := h.svc.Get(r.Context(), *actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// List handles GET /api/bookings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.List(r.Context(), *actor)
	if err != nil {
		h.log.Error("list bookings", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, list)
}

// writeError maps core errors onto the HTTP taxonomy. Authorization
// failures deliberately leak nothing about booking state.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Reason, "field": ve.Field})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrServiceNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, otp.ErrCodeMismatch):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_otp"})
	case errors.Is(err, otp.ErrExpired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "otp_expired"})
	case errors.Is(err, otp.ErrAlreadyVerified), errors.Is(err, otp.ErrNoCode),
		errors.Is(err, ErrNotVerified), errors.Is(err, ErrAlreadyCompleted),
		errors.Is(err, ErrStateConflict),
		errors.Is(err, escrow.ErrNotHeld), errors.Is(err, escrow.ErrAlreadyTransferred):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, escrow.ErrInvariantViolation):
		// Fatal: inconsistent ledger state must never persist silently.
		h.log.Error("ESCROW INVARIANT VIOLATION", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		h.log.Error("booking operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func centsToDollars(c int64) float64 {
	return float64(c) / 100
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

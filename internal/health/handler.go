package health

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/covidsafe/services-backend/internal/middleware"
	"github.com/covidsafe/services-backend/internal/models"
	"github.com/covidsafe/services-backend/internal/validate"
)

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

type declarationRequest struct {
	DeclarationDate string   `json:"declaration_date"`
	Symptoms        string   `json:"symptoms"`
	Temperature     *float64 `json:"temperature"`
	TestResult      string   `json:"covid_test_result"`
}

// Record handles POST /api/health-declarations. The response never
// carries counterpart identities, only contacts_traced.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
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
	if err := h.validator.Validate(validate.SchemaHealthDeclaration, body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req declarationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	decl, contacts, err := h.svc.Record(r.Context(), *actor, Input{
		DeclarationDate: req.DeclarationDate,
		Symptoms:        req.Symptoms,
		Temperature:     req.Temperature,
		TestResult:      req.TestResult,
	})
	if err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Reason, "field": ve.Field})
			return
		}
		h.log.Error("recording declaration failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	resp := map[string]any{
		"id":                decl.ID,
		"declaration_date":  decl.DeclarationDate.Format("2006-01-02"),
		"covid_test_result": decl.TestResult,
	}
	if decl.TestResult == models.TestResultPositive {
		resp["contacts_traced"] = contacts
	}
	writeJSON(w, http.StatusCreated, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

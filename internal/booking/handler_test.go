package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/covidsafe/services-backend/internal/middleware"
	"github.com/covidsafe/services-backend/internal/models"
	"github.com/covidsafe/services-backend/internal/validate"
)

func newTestHandler(t *testing.T) (*Handler, *fixture) {
	t.Helper()
	f := newFixture(t, 10000)
	validator, err := validate.New("../../schemas")
	if err != nil {
		t.Fatalf("loading schemas: %v", err)
	}
	return NewHandler(f.svc, validator, nil), f
}

func doJSON(h http.HandlerFunc, actor *models.Actor, method, target string, body any, pathID string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}
	if actor != nil {
		req = req.WithContext(middleware.WithActor(context.Background(), actor))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandlerCreateReturnsOTPOnce(t *testing.T) {
	h, f := newTestHandler(t)

	body := map[string]any{
		"service_id":   f.serviceID.String(),
		"booking_date": "2026-08-25",
		"booking_time": "14:30",
		"location":     "12 Smith St, Fitzroy, Melbourne",
		"card_number":  "4111111111111111",
		"card_name":    "Jane Citizen",
		"card_expiry":  "12/27",
		"card_cvv":     "123",
	}
	rec := doJSON(h.Create, &f.client, http.MethodPost, "/api/bookings", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	code, _ := resp["otp_code"].(string)
	if len(code) != 6 {
		t.Fatalf("otp_code: got %q", code)
	}
	if resp["amount"] != 100.0 {
		t.Errorf("amount: got %v, want 100", resp["amount"])
	}

	// The persisted record never exposes the code again.
	id, _ := resp["id"].(string)
	getRec := doJSON(h.Get, &f.client, http.MethodGet, "/api/bookings/"+id, nil, id)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: %d", getRec.Code)
	}
	if bytes.Contains(getRec.Body.Bytes(), []byte("otp_code")) {
		t.Fatal("otp_code field serialized on booking read")
	}
}

func TestHandlerCreateRejectsUnknownFields(t *testing.T) {
	h, f := newTestHandler(t)

	body := map[string]any{
		"service_id":   f.serviceID.String(),
		"booking_date": "2026-08-25",
		"booking_time": "14:30",
		"location":     "12 Smith St, Fitzroy, Melbourne",
		"card_number":  "4111111111111111",
		"card_name":    "Jane Citizen",
		"card_expiry":  "12/27",
		"card_cvv":     "123",
		"is_admin":     true,
	}
	rec := doJSON(h.Create, &f.client, http.MethodPost, "/api/bookings", body, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field accepted: status %d", rec.Code)
	}
}

func TestHandlerVerifyOTPErrors(t *testing.T) {
	h, f := newTestHandler(t)
	b, code, err := f.svc.Create(context.Background(), f.client, validCreateInput(f.serviceID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := b.ID.String()

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	rec := doJSON(h.VerifyOTP, &f.provider, http.MethodPost, "/api/bookings/"+id+"/verify-otp",
		map[string]string{"otp_code": wrong}, id)
	if rec.Code != http.StatusBadRequest || !bytes.Contains(rec.Body.Bytes(), []byte("invalid_otp")) {
		t.Fatalf("wrong code: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(h.VerifyOTP, &f.client, http.MethodPost, "/api/bookings/"+id+"/verify-otp",
		map[string]string{"otp_code": code}, id)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("client verify: status %d, want 403", rec.Code)
	}

	rec = doJSON(h.VerifyOTP, &f.provider, http.MethodPost, "/api/bookings/"+id+"/verify-otp",
		map[string]string{"otp_code": code}, id)
	if rec.Code != http.StatusOK {
		t.Fatalf("correct verify: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerCompleteConflicts(t *testing.T) {
	h, f := newTestHandler(t)
	b, code, err := f.svc.Create(context.Background(), f.client, validCreateInput(f.serviceID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := b.ID.String()

	// Not yet verified.
	rec := doJSON(h.Complete, &f.provider, http.MethodPost, "/api/bookings/"+id+"/complete", nil, id)
	if rec.Code != http.StatusConflict {
		t.Fatalf("unverified complete: status %d, want 409", rec.Code)
	}

	if err := f.svc.VerifyOTP(context.Background(), f.provider, b.ID, code); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	rec = doJSON(h.Complete, &f.provider, http.MethodPost, "/api/bookings/"+id+"/complete", nil, id)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["payment_transferred"] != 95.0 {
		t.Errorf("payment_transferred: got %v, want 95", resp["payment_transferred"])
	}

	rec = doJSON(h.Complete, &f.provider, http.MethodPost, "/api/bookings/"+id+"/complete", nil, id)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double complete: status %d, want 409", rec.Code)
	}
}

func TestHandlerUnauthenticated(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(h.List, nil, http.MethodGet, "/api/bookings", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

package validate

import (
	"errors"
	"testing"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New("../../schemas")
	if err != nil {
		t.Fatalf("loading schemas: %v", err)
	}
	return v
}

func TestValidateAcceptsWellFormedBooking(t *testing.T) {
	v := newTestValidator(t)
	body := []byte(`{
		"service_id": "b3b9f8a0-0000-4000-8000-000000000000",
		"booking_date": "2026-08-25",
		"booking_time": "14:30",
		"location": "12 Smith St, Fitzroy",
		"privacy_level": "high",
		"card_number": "4111111111111111",
		"card_name": "Jane Citizen",
		"card_expiry": "12/27",
		"card_cvv": "123"
	}`)
	if err := v.Validate(SchemaBookingCreate, body); err != nil {
		t.Fatalf("valid body rejected: %v", err)
	}
}

func TestValidateRejectsUnknownField(t *testing.T) {
	v := newTestValidator(t)
	body := []byte(`{
		"service_id": "b3b9f8a0-0000-4000-8000-000000000000",
		"booking_date": "2026-08-25",
		"booking_time": "14:30",
		"location": "12 Smith St, Fitzroy",
		"card_number": "4111111111111111",
		"card_name": "Jane Citizen",
		"card_expiry": "12/27",
		"card_cvv": "123",
		"role": "provider"
	}`)
	err := v.Validate(SchemaBookingCreate, body)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown field passed through: %v", err)
	}
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	v := newTestValidator(t)
	if err := v.Validate(SchemaBookingCreate, []byte(`{"booking_date": "2026-08-25"}`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing fields passed through: %v", err)
	}
}

func TestValidateRejectsMalformedJSON(t *testing.T) {
	v := newTestValidator(t)
	if err := v.Validate(SchemaBookingCreate, []byte(`{"booking_date"`)); !errors.Is(err, ErrValidation) {
		t.Fatalf("malformed JSON passed through: %v", err)
	}
}

func TestValidateHealthDeclarationRanges(t *testing.T) {
	v := newTestValidator(t)

	ok := []byte(`{"declaration_date": "2026-08-20", "temperature": 37.5, "covid_test_result": "negative"}`)
	if err := v.Validate(SchemaHealthDeclaration, ok); err != nil {
		t.Fatalf("valid declaration rejected: %v", err)
	}

	cases := map[string][]byte{
		"temperature too low":  []byte(`{"declaration_date": "2026-08-20", "temperature": 20, "covid_test_result": "negative"}`),
		"temperature too high": []byte(`{"declaration_date": "2026-08-20", "temperature": 45, "covid_test_result": "negative"}`),
		"bad test result":      []byte(`{"declaration_date": "2026-08-20", "covid_test_result": "maybe"}`),
		"bad date shape":       []byte(`{"declaration_date": "20/08/2026", "covid_test_result": "negative"}`),
	}
	for name, body := range cases {
		if err := v.Validate(SchemaHealthDeclaration, body); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: passed through (%v)", name, err)
		}
	}
}

func TestValidateUnknownSchemaName(t *testing.T) {
	v := newTestValidator(t)
	if err := v.Validate("no_such_schema", []byte(`{}`)); err == nil {
		t.Fatal("unknown schema name accepted")
	}
}

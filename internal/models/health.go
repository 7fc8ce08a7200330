package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TestResultNegative  = "negative"
	TestResultPositive  = "positive"
	TestResultPending   = "pending"
	TestResultNotTested = "not_tested"
)

// Temperature bounds accepted on a declaration, degrees Celsius.
const (
	TemperatureMin = 35.0
	TemperatureMax = 42.0
)

// HealthDeclaration is append-only; corrections are new declarations.
// LocalityToken is the sentinel empty string when the declarant had no
// bookings inside the lookback window; sentinel tokens never match.
type HealthDeclaration struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	DeclarationDate time.Time `json:"declaration_date"`
	Symptoms        string    `json:"symptoms,omitempty"`
	Temperature     *float64  `json:"temperature,omitempty"`
	TestResult      string    `json:"covid_test_result"`
	LocalityToken   string    `json:"-"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	CreatedAt       time.Time `json:"created_at"`
}

func ValidTestResult(r string) bool {
	switch r {
	case TestResultNegative, TestResultPositive, TestResultPending, TestResultNotTested:
		return true
	}
	return false
}

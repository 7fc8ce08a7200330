package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleClient   = "client"
	RoleProvider = "provider"
)

const (
	VaccinationUnvaccinated = "unvaccinated"
	VaccinationPartial      = "partially_vaccinated"
	VaccinationFull         = "fully_vaccinated"
	VaccinationBoosted      = "boosted"
)

type User struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	Role              string    `json:"role"`
	VaccinationStatus string    `json:"vaccination_status"`
	Phone             *string   `json:"phone,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Actor is the request-scoped identity passed into every core operation.
// There is no ambient session state below the HTTP layer.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func ValidRole(r string) bool {
	return r == RoleClient || r == RoleProvider
}

func ValidVaccinationStatus(v string) bool {
	switch v {
	case VaccinationUnvaccinated, VaccinationPartial, VaccinationFull, VaccinationBoosted:
		return true
	}
	return false
}

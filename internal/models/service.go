package models

import (
	"time"

	"github.com/google/uuid"
)

// Service types offered on the marketplace.
var ServiceTypes = []string{
	"Cleaning", "Plumbing", "Electrical", "Gardening",
	"Moving", "Painting", "Renovation", "Other",
}

type Service struct {
	ID            uuid.UUID `json:"id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	ServiceType   string    `json:"service_type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	PriceCents    int64     `json:"price_cents"`
	LocationArea  string    `json:"location_area"`
	MaxDistanceKm int       `json:"max_distance"`
	CovidSafe     bool      `json:"covid_safe"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func ValidServiceType(t string) bool {
	for _, s := range ServiceTypes {
		if s == t {
			return true
		}
	}
	return false
}

package geo

import (
	"context"

	"taxi/internal/domain"
)

// DisabledProvider is used when no geocoding API key is configured. Every
// lookup reports no result.
type DisabledProvider struct{}

// Geocode always fails with ErrNoResult.
func (DisabledProvider) Geocode(context.Context, string) (domain.Coordinates, error) {
	return domain.Coordinates{}, ErrNoResult
}

// Search always returns no places.
func (DisabledProvider) Search(context.Context, string, int) ([]domain.Place, error) {
	return nil, nil
}

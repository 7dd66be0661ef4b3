package shipping

import (
	"context"

	"github.com/google/uuid"
)

// Store captures the database methods required by the shipping service.
type Store interface {
	GetShippingSettings(ctx context.Context, storeID uuid.UUID) (Settings, error)
	UpsertShippingSettings(ctx context.Context, storeID uuid.UUID, s Settings) error
}

// Service manages per-store shipping configuration and quoting.
type Service struct {
	Q Store
}

// Settings returns the store's shipping configuration. Stores that never
// configured shipping get a disabled zero value rather than an error.
func (s *Service) Settings(ctx context.Context, storeID uuid.UUID) (Settings, error) {
	return s.Q.GetShippingSettings(ctx, storeID)
}

// SaveSettings validates and persists the store's shipping configuration.
func (s *Service) SaveSettings(ctx context.Context, storeID uuid.UUID, settings Settings) error {
	if err := ValidateSettings(settings); err != nil {
		return err
	}
	return s.Q.UpsertShippingSettings(ctx, storeID, settings)
}

// Quote computes the ranked shipping options for a cart against the store's
// persisted settings.
func (s *Service) Quote(ctx context.Context, storeID uuid.UUID, subtotal int64, region *string, totalWeight *int64) ([]Option, error) {
	settings, err := s.Settings(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return Calculate(settings, subtotal, region, totalWeight)
}

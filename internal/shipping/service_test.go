package shipping_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/storefront-api/internal/shipping"
)

type fakeSettingsStore struct {
	rows map[uuid.UUID]shipping.Settings
}

func (f *fakeSettingsStore) GetShippingSettings(_ context.Context, storeID uuid.UUID) (shipping.Settings, error) {
	return f.rows[storeID], nil
}

func (f *fakeSettingsStore) UpsertShippingSettings(_ context.Context, storeID uuid.UUID, s shipping.Settings) error {
	if f.rows == nil {
		f.rows = map[uuid.UUID]shipping.Settings{}
	}
	f.rows[storeID] = s
	return nil
}

func TestSettingsDefaultsToDisabled(t *testing.T) {
	svc := &shipping.Service{Q: &fakeSettingsStore{}}

	settings, err := svc.Settings(context.Background(), uuid.New())
	require.NoError(t, err)
	require.False(t, settings.Enabled)
}

func TestSaveSettingsRejectsOverlappingBands(t *testing.T) {
	svc := &shipping.Service{Q: &fakeSettingsStore{}}

	err := svc.SaveSettings(context.Background(), uuid.New(), shipping.Settings{
		Enabled:           true,
		CalculationMethod: shipping.MethodWeightBased,
		WeightRates: []shipping.WeightRate{
			{ID: "a", MinWeight: 0, MaxWeight: 1000, Price: 1500},
			{ID: "b", MinWeight: 500, MaxWeight: 2000, Price: 2500},
		},
	})
	require.Error(t, err)
}

func TestQuoteUsesPersistedSettings(t *testing.T) {
	storeID := uuid.New()
	fake := &fakeSettingsStore{}
	svc := &shipping.Service{Q: fake}
	threshold := int64(15000)
	require.NoError(t, svc.SaveSettings(context.Background(), storeID, shipping.Settings{
		Enabled:               true,
		CalculationMethod:     shipping.MethodFixed,
		FixedPrice:            1200,
		FreeShippingThreshold: &threshold,
	}))

	options, err := svc.Quote(context.Background(), storeID, 20000, nil, nil)
	require.NoError(t, err)
	require.Len(t, options, 2)
	require.Equal(t, shipping.OptionFree, options[0].ID)
	require.Zero(t, options[0].Price)
	require.Equal(t, shipping.OptionFixed, options[1].ID)
	require.Equal(t, int64(1200), options[1].Price)
}

func TestQuoteUnconfiguredStoreIsUnavailable(t *testing.T) {
	svc := &shipping.Service{Q: &fakeSettingsStore{}}

	_, err := svc.Quote(context.Background(), uuid.New(), 5000, nil, nil)
	require.ErrorIs(t, err, shipping.ErrUnavailable)
}

package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/storefront-api/internal/cart"
	"github.com/lojinha-dev/storefront-api/internal/coupon"
	"github.com/lojinha-dev/storefront-api/internal/shipping"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

type fakeCatalog struct {
	options map[uuid.UUID]store.VariantOption
}

func (f *fakeCatalog) GetVariantOption(_ context.Context, storeID, optionID uuid.UUID) (store.VariantOption, error) {
	opt, ok := f.options[optionID]
	if !ok || opt.StoreID != storeID {
		return store.VariantOption{}, store.ErrNotFound
	}
	return opt, nil
}

type fakeShippingStore struct {
	settings shipping.Settings
}

func (f *fakeShippingStore) GetShippingSettings(_ context.Context, _ uuid.UUID) (shipping.Settings, error) {
	return f.settings, nil
}

func (f *fakeShippingStore) UpsertShippingSettings(_ context.Context, _ uuid.UUID, s shipping.Settings) error {
	f.settings = s
	return nil
}

type fakeCouponStore struct {
	coupons map[string]store.Coupon
}

func (f *fakeCouponStore) InsertCoupon(_ context.Context, c store.Coupon) error { return nil }

func (f *fakeCouponStore) GetCouponByCode(_ context.Context, storeID uuid.UUID, code string) (store.Coupon, error) {
	c, ok := f.coupons[code]
	if !ok || c.StoreID != storeID {
		return store.Coupon{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeCouponStore) ListCoupons(_ context.Context, _ uuid.UUID, _, _ int32) ([]store.Coupon, error) {
	return nil, nil
}

func (f *fakeCouponStore) DeactivateCoupon(_ context.Context, _, _ uuid.UUID) error { return nil }

func TestQuoteBreakdownIdentity(t *testing.T) {
	storeID := uuid.New()
	optionID := uuid.New()
	promo := int64(8000)
	svc := &cart.Service{
		Q: &fakeCatalog{options: map[uuid.UUID]store.VariantOption{
			optionID: {
				ID:           optionID,
				StoreID:      storeID,
				Name:         "Camiseta P",
				RegularPrice: 10000,
				PromotionalPrice: &promo,
				Stock:        10,
				WeightGrams:  200,
				IsActive:     true,
			},
		}},
		Shipping: &shipping.Service{Q: &fakeShippingStore{settings: shipping.Settings{
			Enabled:           true,
			CalculationMethod: shipping.MethodFixed,
			FixedPrice:        1500,
		}}},
		Coupons: &coupon.Service{
			Q: &fakeCouponStore{coupons: map[string]store.Coupon{
				"SAVE10": {
					ID:            uuid.New(),
					StoreID:       storeID,
					Code:          "SAVE10",
					DiscountType:  coupon.TypePercentage,
					DiscountValue: 10,
					ValidFrom:     time.Now().Add(-time.Hour),
					ValidUntil:    time.Now().Add(time.Hour),
					IsActive:      true,
				},
			}},
		},
	}

	shippingID := shipping.OptionFixed
	code := "SAVE10"
	quote, err := svc.Quote(context.Background(), storeID, cart.QuoteInput{
		Items:            []cart.QuoteItem{{VariantOptionID: optionID, Quantity: 2}},
		ShippingOptionID: &shippingID,
		CouponCode:       &code,
	})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 1)
	require.Equal(t, int64(8000), quote.Lines[0].UnitPrice)
	require.True(t, quote.Lines[0].InStock)
	require.Equal(t, int64(16000), quote.Breakdown.Subtotal)
	require.Equal(t, int64(1500), quote.Breakdown.ShippingCost)
	require.Equal(t, int64(1600), quote.Breakdown.DiscountAmount)
	require.Equal(t,
		quote.Breakdown.Subtotal+quote.Breakdown.ShippingCost-quote.Breakdown.DiscountAmount,
		quote.Breakdown.Total)
}

func TestQuoteRejectsUnknownShippingOption(t *testing.T) {
	storeID := uuid.New()
	optionID := uuid.New()
	svc := &cart.Service{
		Q: &fakeCatalog{options: map[uuid.UUID]store.VariantOption{
			optionID: {ID: optionID, StoreID: storeID, RegularPrice: 5000, Stock: 1, IsActive: true},
		}},
		Shipping: &shipping.Service{Q: &fakeShippingStore{settings: shipping.Settings{
			Enabled:           true,
			CalculationMethod: shipping.MethodFixed,
			FixedPrice:        1000,
		}}},
	}

	bogus := "sedex-10"
	_, err := svc.Quote(context.Background(), storeID, cart.QuoteInput{
		Items:            []cart.QuoteItem{{VariantOptionID: optionID, Quantity: 1}},
		ShippingOptionID: &bogus,
	})
	require.ErrorIs(t, err, shipping.ErrUnavailable)
}

func TestQuoteInactiveOption(t *testing.T) {
	storeID := uuid.New()
	optionID := uuid.New()
	svc := &cart.Service{
		Q: &fakeCatalog{options: map[uuid.UUID]store.VariantOption{
			optionID: {ID: optionID, StoreID: storeID, RegularPrice: 5000, IsActive: false},
		}},
	}

	_, err := svc.Quote(context.Background(), storeID, cart.QuoteInput{
		Items: []cart.QuoteItem{{VariantOptionID: optionID, Quantity: 1}},
	})
	require.ErrorIs(t, err, cart.ErrOptionUnavailable)
}

func TestQuoteInvalidCouponStillQuotes(t *testing.T) {
	storeID := uuid.New()
	optionID := uuid.New()
	svc := &cart.Service{
		Q: &fakeCatalog{options: map[uuid.UUID]store.VariantOption{
			optionID: {ID: optionID, StoreID: storeID, RegularPrice: 5000, Stock: 3, IsActive: true},
		}},
		Coupons: &coupon.Service{Q: &fakeCouponStore{coupons: map[string]store.Coupon{}}},
	}

	code := "GHOST"
	quote, err := svc.Quote(context.Background(), storeID, cart.QuoteInput{
		Items:      []cart.QuoteItem{{VariantOptionID: optionID, Quantity: 1}},
		CouponCode: &code,
	})
	require.NoError(t, err)
	require.NotNil(t, quote.Coupon)
	require.False(t, quote.Coupon.Valid)
	require.Equal(t, int64(5000), quote.Breakdown.Total)
}

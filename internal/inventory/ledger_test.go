package inventory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/storefront-api/internal/inventory"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

type fakeQuerier struct {
	options   map[uuid.UUID]store.VariantOption
	movements []store.StockMovement
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{options: map[uuid.UUID]store.VariantOption{}}
}

func (f *fakeQuerier) GetVariantOption(_ context.Context, storeID, optionID uuid.UUID) (store.VariantOption, error) {
	opt, ok := f.options[optionID]
	if !ok || opt.StoreID != storeID {
		return store.VariantOption{}, store.ErrNotFound
	}
	return opt, nil
}

func (f *fakeQuerier) DecrementStock(_ context.Context, optionID uuid.UUID, qty int32) (int32, bool, error) {
	opt, ok := f.options[optionID]
	if !ok {
		return 0, false, store.ErrNotFound
	}
	if opt.Stock < qty {
		return opt.Stock, false, nil
	}
	opt.Stock -= qty
	f.options[optionID] = opt
	return opt.Stock, true, nil
}

func (f *fakeQuerier) IncrementStock(_ context.Context, optionID uuid.UUID, qty int32) (int32, error) {
	opt, ok := f.options[optionID]
	if !ok {
		return 0, store.ErrNotFound
	}
	opt.Stock += qty
	f.options[optionID] = opt
	return opt.Stock, nil
}

func (f *fakeQuerier) InsertStockMovement(_ context.Context, m store.StockMovement) error {
	f.movements = append(f.movements, m)
	return nil
}

func seed(f *fakeQuerier, storeID uuid.UUID, stock int32) store.VariantOption {
	opt := store.VariantOption{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		StoreID:   storeID,
		Stock:     stock,
		IsActive:  true,
	}
	f.options[opt.ID] = opt
	return opt
}

func TestDecrementAppendsOutMovement(t *testing.T) {
	storeID := uuid.New()
	q := newFakeQuerier()
	opt := seed(q, storeID, 5)

	err := inventory.Decrement(context.Background(), q, storeID, []inventory.Movement{{
		ProductID:       opt.ProductID,
		VariantOptionID: opt.ID,
		Quantity:        3,
		Reason:          "sale",
		CreatedBy:       "checkout",
	}})
	require.NoError(t, err)

	require.Equal(t, int32(2), q.options[opt.ID].Stock)
	require.Len(t, q.movements, 1)
	require.Equal(t, store.MovementOut, q.movements[0].Type)
	require.Equal(t, int32(3), q.movements[0].Quantity)
	require.Equal(t, "sale", q.movements[0].Reason)
}

func TestDecrementGuardReportsAvailability(t *testing.T) {
	storeID := uuid.New()
	q := newFakeQuerier()
	opt := seed(q, storeID, 1)

	err := inventory.Decrement(context.Background(), q, storeID, []inventory.Movement{{
		ProductID:       opt.ProductID,
		VariantOptionID: opt.ID,
		Quantity:        2,
	}})

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.Equal(t, int32(2), stockErr.Requested)
	require.Equal(t, int32(1), stockErr.Available)
	require.Equal(t, int32(1), q.options[opt.ID].Stock)
	require.Empty(t, q.movements)
}

func TestDecrementRejectsNonPositiveQuantity(t *testing.T) {
	storeID := uuid.New()
	q := newFakeQuerier()
	opt := seed(q, storeID, 5)

	err := inventory.Decrement(context.Background(), q, storeID, []inventory.Movement{{
		ProductID:       opt.ProductID,
		VariantOptionID: opt.ID,
		Quantity:        0,
	}})
	require.Error(t, err)
	require.Empty(t, q.movements)
}

func TestRestoreAppendsInMovement(t *testing.T) {
	storeID := uuid.New()
	q := newFakeQuerier()
	opt := seed(q, storeID, 2)

	err := inventory.Restore(context.Background(), q, storeID, []inventory.Movement{{
		ProductID:       opt.ProductID,
		VariantOptionID: opt.ID,
		Quantity:        3,
		Reason:          "order cancelled",
	}})
	require.NoError(t, err)

	require.Equal(t, int32(5), q.options[opt.ID].Stock)
	require.Len(t, q.movements, 1)
	require.Equal(t, store.MovementIn, q.movements[0].Type)
}

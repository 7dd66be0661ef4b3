package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/storefront-api/internal/catalog"
	"github.com/lojinha-dev/storefront-api/internal/store"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

type fakeCatalogStore struct {
	products map[uuid.UUID]store.Product
	inserted int
	listed   int
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{products: map[uuid.UUID]store.Product{}}
}

func (f *fakeCatalogStore) InsertProduct(_ context.Context, p store.Product) error {
	f.inserted++
	f.products[p.ID] = p
	return nil
}

func (f *fakeCatalogStore) GetProduct(_ context.Context, storeID, productID uuid.UUID) (store.Product, error) {
	p, ok := f.products[productID]
	if !ok || p.StoreID != storeID {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalogStore) ListProducts(_ context.Context, storeID uuid.UUID, _, _ int32) ([]store.Product, error) {
	f.listed++
	out := []store.Product{}
	for _, p := range f.products {
		if p.StoreID == storeID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalogStore) CountProducts(_ context.Context, storeID uuid.UUID) (int64, error) {
	var n int64
	for _, p := range f.products {
		if p.StoreID == storeID && p.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeCatalogStore) DeactivateProduct(_ context.Context, storeID, productID uuid.UUID) error {
	p, ok := f.products[productID]
	if !ok || p.StoreID != storeID {
		return store.ErrNotFound
	}
	p.IsActive = false
	f.products[productID] = p
	return nil
}

func newCatalogService(t *testing.T, q catalog.Store) *catalog.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &catalog.Service{
		Q:      q,
		Cache:  catalog.NewCache(client, time.Minute),
		Logger: zerolog.Nop(),
	}
}

func TestCreateNormalizesLegacyPrices(t *testing.T) {
	storeID := uuid.New()
	db := newFakeCatalogStore()
	svc := newCatalogService(t, db)

	created, err := svc.Create(context.Background(), storeID, catalog.CreateInput{
		Name: "Camiseta",
		Variants: []catalog.VariantInput{{
			Name: "Tamanho",
			Options: []catalog.OptionInput{
				// inverted legacy pair: price higher than comparePrice
				{Name: "P", SKU: "CAM-P", Price: 10000, ComparePrice: 8000, Stock: 3},
			},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, db.inserted)

	opt := created.Variants[0].Options[0]
	require.Equal(t, int64(10000), opt.RegularPrice)
	require.NotNil(t, opt.PromotionalPrice)
	require.Equal(t, int64(8000), *opt.PromotionalPrice)
}

func TestCreateRejectsExplicitPromotionNotBelowRegular(t *testing.T) {
	storeID := uuid.New()
	db := newFakeCatalogStore()
	svc := newCatalogService(t, db)

	bad := int64(12000)
	created, err := svc.Create(context.Background(), storeID, catalog.CreateInput{
		Name: "Caneca",
		Variants: []catalog.VariantInput{{
			Options: []catalog.OptionInput{
				{Name: "Única", RegularPrice: 10000, PromotionalPrice: &bad, Stock: 1},
			},
		}},
	})
	require.NoError(t, err)
	// a promotion that is not lower than the regular price is discarded
	require.Nil(t, created.Variants[0].Options[0].PromotionalPrice)
}

func TestGetResolvesDiscountedPrices(t *testing.T) {
	storeID := uuid.New()
	db := newFakeCatalogStore()
	svc := newCatalogService(t, db)

	created, err := svc.Create(context.Background(), storeID, catalog.CreateInput{
		Name: "Camiseta",
		Variants: []catalog.VariantInput{{
			Options: []catalog.OptionInput{
				{Name: "P", RegularPrice: 10000, PromotionalPrice: ptr(int64(8000)), Stock: 3},
			},
		}},
	})
	require.NoError(t, err)

	d, err := svc.Get(context.Background(), storeID, created.ID)
	require.NoError(t, err)
	opt := d.Variants[0].Options[0]
	require.Equal(t, int64(8000), opt.CurrentPrice)
	require.Equal(t, int64(10000), opt.OriginalPrice)
	require.True(t, opt.HasDiscount)
	require.Equal(t, 20, opt.DiscountPercent)
}

func TestListServedFromCacheOnSecondRead(t *testing.T) {
	storeID := uuid.New()
	db := newFakeCatalogStore()
	svc := newCatalogService(t, db)
	ctx := tenant.WithStore(context.Background(), storeID)

	_, err := svc.Create(ctx, storeID, catalog.CreateInput{
		Name: "Camiseta",
		Variants: []catalog.VariantInput{{
			Options: []catalog.OptionInput{{Name: "P", RegularPrice: 10000, Stock: 3}},
		}},
	})
	require.NoError(t, err)

	first, err := svc.List(ctx, storeID, 1, 20)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	require.Equal(t, int64(10000), first.Items[0].MinPrice)
	require.True(t, first.Items[0].InStock)

	second, err := svc.List(ctx, storeID, 1, 20)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, db.listed)
}

func TestDeactivateHidesFromList(t *testing.T) {
	storeID := uuid.New()
	db := newFakeCatalogStore()
	svc := newCatalogService(t, db)

	created, err := svc.Create(context.Background(), storeID, catalog.CreateInput{
		Name: "Caneca",
		Variants: []catalog.VariantInput{{
			Options: []catalog.OptionInput{{Name: "Única", RegularPrice: 3000, Stock: 5}},
		}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), storeID, created.ID))
	page, err := svc.List(context.Background(), storeID, 1, 20)
	require.NoError(t, err)
	require.Empty(t, page.Items)
}

func ptr[T any](v T) *T { return &v }

package cache

import (
	"context"

	"github.com/google/uuid"

	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

// KeyCatalogList returns a per-store cache key for catalog list pages.
func KeyCatalogList(ctx context.Context, base string) string {
	id, ok := tenant.FromContext(ctx)
	if !ok {
		return base
	}
	return tenant.PrefixKey(id, base)
}

// KeyProduct returns a per-store key for a given product id.
func KeyProduct(ctx context.Context, productID uuid.UUID) string {
	key := "product:" + productID.String()
	id, ok := tenant.FromContext(ctx)
	if !ok {
		return key
	}
	return tenant.PrefixKey(id, key)
}

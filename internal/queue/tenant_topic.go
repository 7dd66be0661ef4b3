package queue

import (
	"context"

	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

// Topic returns a store-scoped queue topic, e.g. "<store-id>:low-stock-scan".
func Topic(ctx context.Context, kind string) string {
	if storeID, ok := tenant.FromContext(ctx); ok {
		return storeID.String() + ":" + kind
	}
	return kind
}

package tenant

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const storeContextKey contextKey = "tenant.store_id"

// WithStore stores the store identifier inside the context.
func WithStore(ctx context.Context, storeID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, storeContextKey, storeID)
}

// FromContext extracts the store identifier from the context if available.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	storeID, ok := ctx.Value(storeContextKey).(uuid.UUID)
	if !ok || storeID == uuid.Nil {
		return uuid.Nil, false
	}
	return storeID, true
}

// MustFromContext returns the store identifier or uuid.Nil when absent.
// Handlers behind the resolver middleware can rely on a non-nil value.
func MustFromContext(ctx context.Context) uuid.UUID {
	storeID, _ := FromContext(ctx)
	return storeID
}

// PrefixKey creates a store-namespaced cache/queue key.
func PrefixKey(storeID uuid.UUID, key string) string {
	if storeID == uuid.Nil {
		return key
	}
	return storeID.String() + ":" + key
}

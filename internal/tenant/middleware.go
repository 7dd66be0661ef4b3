package tenant

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lojinha-dev/storefront-api/internal/common"
)

// Resolver resolves store identifiers from HTTP request headers.
type Resolver struct {
	HeaderName   string
	DefaultStore uuid.UUID
}

// NewResolver returns a resolver configured with the provided header name and
// optional default store. If headerName is empty, "X-Store-ID" is used.
func NewResolver(headerName string, defaultStore uuid.UUID) *Resolver {
	if strings.TrimSpace(headerName) == "" {
		headerName = "X-Store-ID"
	}
	return &Resolver{HeaderName: headerName, DefaultStore: defaultStore}
}

// Middleware resolves the store from the request and injects it into the
// context passed downstream. Requests without a resolvable store are rejected
// so no handler ever runs unscoped.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		raw := strings.TrimSpace(req.Header.Get(r.HeaderName))
		if raw == "" {
			if r.DefaultStore != uuid.Nil {
				next.ServeHTTP(w, req.WithContext(WithStore(req.Context(), r.DefaultStore)))
				return
			}
			common.JSONError(w, http.StatusBadRequest, "STORE_REQUIRED", "missing "+r.HeaderName+" header", nil)
			return
		}
		storeID, err := uuid.Parse(raw)
		if err != nil || storeID == uuid.Nil {
			common.JSONError(w, http.StatusBadRequest, "STORE_INVALID", "invalid "+r.HeaderName+" header", nil)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithStore(req.Context(), storeID)))
	})
}

package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

func TestMiddlewareInjectsStoreID(t *testing.T) {
	storeID := uuid.New()
	var seen uuid.UUID
	handler := tenant.NewResolver("", uuid.Nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = tenant.MustFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
	req.Header.Set("X-Store-ID", storeID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, storeID, seen)
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	handler := tenant.NewResolver("", uuid.Nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/products", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "STORE_REQUIRED")
}

func TestMiddlewareRejectsMalformedHeader(t *testing.T) {
	handler := tenant.NewResolver("", uuid.Nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
	req.Header.Set("X-Store-ID", "not-a-uuid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "STORE_INVALID")
}

func TestMiddlewareFallsBackToDefaultStore(t *testing.T) {
	def := uuid.New()
	var seen uuid.UUID
	handler := tenant.NewResolver("X-Store-ID", def).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = tenant.MustFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/products", nil))

	require.Equal(t, def, seen)
}

func TestPrefixKey(t *testing.T) {
	id := uuid.New()
	require.Equal(t, id.String()+":catalog:list", tenant.PrefixKey(id, "catalog:list"))
	require.Equal(t, "catalog:list", tenant.PrefixKey(uuid.Nil, "catalog:list"))
}

package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lojinha-dev/storefront-api/internal/notify"
	"github.com/lojinha-dev/storefront-api/internal/store"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

type fakeAdminStore struct {
	inserted []store.WebhookEndpoint
}

func (f *fakeAdminStore) InsertWebhookEndpoint(_ context.Context, ep store.WebhookEndpoint) error {
	f.inserted = append(f.inserted, ep)
	return nil
}

func (f *fakeAdminStore) ListWebhookEndpoints(context.Context, uuid.UUID) ([]store.WebhookEndpoint, error) {
	return nil, nil
}

func (f *fakeAdminStore) DeleteWebhookEndpoint(context.Context, uuid.UUID, uuid.UUID) error {
	return store.ErrNotFound
}

func adminRequest(t *testing.T, storeID uuid.UUID, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/admin/webhooks", bytes.NewReader(raw))
	return req.WithContext(tenant.WithStore(req.Context(), storeID))
}

func TestCreateEndpointGeneratesSecret(t *testing.T) {
	fs := &fakeAdminStore{}
	h := &notify.Handler{Q: fs}
	rr := httptest.NewRecorder()
	h.Create(rr, adminRequest(t, uuid.New(), map[string]any{
		"url":    "https://merchant.example.com/hooks",
		"topics": []string{"order.created", "order.cancelled"},
	}))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, fs.inserted, 1)
	require.NotEmpty(t, fs.inserted[0].Secret)
	require.Equal(t, []string{"order.created", "order.cancelled"}, fs.inserted[0].Topics)
}

func TestCreateEndpointRejectsUnknownTopic(t *testing.T) {
	fs := &fakeAdminStore{}
	h := &notify.Handler{Q: fs}
	rr := httptest.NewRecorder()
	h.Create(rr, adminRequest(t, uuid.New(), map[string]any{
		"url":    "https://merchant.example.com/hooks",
		"topics": []string{"order.everything"},
	}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, fs.inserted)
}

func TestCreateEndpointRejectsPlainHTTP(t *testing.T) {
	fs := &fakeAdminStore{}
	h := &notify.Handler{Q: fs}
	rr := httptest.NewRecorder()
	h.Create(rr, adminRequest(t, uuid.New(), map[string]any{
		"url": "http://merchant.example.com/hooks",
	}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

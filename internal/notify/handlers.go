package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lojinha-dev/storefront-api/internal/common"
	"github.com/lojinha-dev/storefront-api/internal/events"
	"github.com/lojinha-dev/storefront-api/internal/store"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

// AdminStore covers the endpoint management queries.
type AdminStore interface {
	InsertWebhookEndpoint(ctx context.Context, ep store.WebhookEndpoint) error
	ListWebhookEndpoints(ctx context.Context, storeID uuid.UUID) ([]store.WebhookEndpoint, error)
	DeleteWebhookEndpoint(ctx context.Context, storeID, id uuid.UUID) error
}

// Handler exposes webhook endpoint management for a store.
type Handler struct {
	Q AdminStore
}

type createEndpointRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Topics []string `json:"topics"`
}

// Create registers a webhook endpoint. When no secret is supplied one is
// generated and returned once in the response.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	var req createEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := validateURL(req.URL); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	topics, err := normalizeTopics(req.Topics)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	secret := strings.TrimSpace(req.Secret)
	if secret == "" {
		secret, err = generateSecret()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to generate secret", nil)
			return
		}
	}
	ep := store.WebhookEndpoint{
		ID:       uuid.New(),
		StoreID:  storeID,
		URL:      strings.TrimSpace(req.URL),
		Secret:   secret,
		Topics:   topics,
		IsActive: true,
	}
	if err := h.Q.InsertWebhookEndpoint(r.Context(), ep); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create endpoint", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"id":     ep.ID,
		"url":    ep.URL,
		"secret": ep.Secret,
		"topics": ep.Topics,
	}})
}

// List returns the store's registered endpoints. Secrets are never echoed back.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	endpoints, err := h.Q.ListWebhookEndpoints(r.Context(), storeID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list endpoints", nil)
		return
	}
	views := make([]map[string]any, 0, len(endpoints))
	for _, ep := range endpoints {
		views = append(views, map[string]any{
			"id":        ep.ID,
			"url":       ep.URL,
			"topics":    ep.Topics,
			"isActive":  ep.IsActive,
			"createdAt": ep.CreatedAt,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// Delete removes an endpoint of the current store.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid endpoint id", nil)
		return
	}
	if err := h.Q.DeleteWebhookEndpoint(r.Context(), storeID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete endpoint", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func normalizeTopics(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return events.DefaultTopics(), nil
	}
	known := make(map[string]struct{}, len(events.DefaultTopics()))
	for _, t := range events.DefaultTopics() {
		known[t] = struct{}{}
	}
	seen := make(map[string]struct{}, len(raw))
	topics := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := known[t]; !ok {
			return nil, errors.New("unknown topic: " + t)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	return topics, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

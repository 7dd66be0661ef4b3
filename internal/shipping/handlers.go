package shipping

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lojinha-dev/storefront-api/internal/common"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

// Handler exposes shipping settings management and cart quoting endpoints.
type Handler struct {
	Svc *Service
}

type quoteRequest struct {
	Subtotal    int64   `json:"subtotal"`
	Region      *string `json:"region"`
	TotalWeight *int64  `json:"totalWeight"`
}

// GetSettings returns the store's shipping configuration.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	settings, err := h.Svc.Settings(r.Context(), storeID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load shipping settings", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": settings})
}

// PutSettings replaces the store's shipping configuration.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.SaveSettings(r.Context(), storeID, settings); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": settings})
}

// Quote returns the ranked shipping options for the supplied cart totals.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if req.Subtotal < 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "subtotal must not be negative", nil)
		return
	}
	options, err := h.Svc.Quote(r.Context(), storeID, req.Subtotal, req.Region, req.TotalWeight)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			common.JSONError(w, http.StatusUnprocessableEntity, "SHIPPING_UNAVAILABLE", "no shipping options for this cart", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to quote shipping", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": options})
}

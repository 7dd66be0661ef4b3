package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lojinha-dev/storefront-api/internal/common"
	"github.com/lojinha-dev/storefront-api/internal/shipping"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

// Handler exposes the cart breakdown quote endpoint.
type Handler struct {
	Svc *Service
}

// Breakdown quotes a cart without reserving stock or consuming coupons.
func (h *Handler) Breakdown(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	var in QuoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	quote, err := h.Svc.Quote(r.Context(), storeID, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrOptionUnavailable):
			common.JSONError(w, http.StatusUnprocessableEntity, "OPTION_UNAVAILABLE", err.Error(), nil)
		case errors.Is(err, shipping.ErrUnavailable):
			common.JSONError(w, http.StatusUnprocessableEntity, "SHIPPING_UNAVAILABLE", "selected shipping option is not available", nil)
		default:
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		}
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

package inventory

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lojinha-dev/storefront-api/internal/common"
	"github.com/lojinha-dev/storefront-api/internal/store"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

// Handler exposes operator-facing inventory endpoints.
type Handler struct {
	Svc *Service
}

type adjustRequest struct {
	VariantOptionID uuid.UUID `json:"variantOptionId"`
	Delta           int32     `json:"delta"`
	Reason          string    `json:"reason"`
	Operator        string    `json:"operator"`
}

// Adjust applies a manual stock correction.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if req.VariantOptionID == uuid.Nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "variantOptionId is required", nil)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "reason is required", nil)
		return
	}
	err := h.Svc.Adjust(r.Context(), storeID, req.VariantOptionID, req.Delta, req.Reason, req.Operator)
	if err != nil {
		var stockErr *InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			common.JSONError(w, http.StatusUnprocessableEntity, "STOCK_INSUFFICIENT", "insufficient stock", map[string]any{
				"variantOptionId": stockErr.VariantOptionID,
				"requested":       stockErr.Requested,
				"available":       stockErr.Available,
			})
		case errors.Is(err, store.ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "variant option not found", nil)
		default:
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LowStock returns the active options at or below the alert threshold.
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	rows, err := h.Svc.LowStock(r.Context(), storeID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load low-stock report", nil)
		return
	}
	views := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		views = append(views, map[string]any{
			"variantOptionId": row.VariantOptionID,
			"productId":       row.ProductID,
			"productName":     row.ProductName,
			"optionName":      row.OptionName,
			"sku":             row.SKU,
			"stock":           row.Stock,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// Movements lists ledger entries, optionally filtered to one option.
func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	page, perPage := common.ParsePagination(r, 50)
	var optionID *uuid.UUID
	if raw := strings.TrimSpace(r.URL.Query().Get("variantOptionId")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid variantOptionId filter", nil)
			return
		}
		optionID = &parsed
	}
	movements, err := h.Svc.Movements(r.Context(), storeID, optionID, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list stock movements", nil)
		return
	}
	views := make([]map[string]any, 0, len(movements))
	for _, m := range movements {
		views = append(views, map[string]any{
			"id":              m.ID,
			"productId":       m.ProductID,
			"variantOptionId": m.VariantOptionID,
			"type":            m.Type,
			"quantity":        m.Quantity,
			"reason":          m.Reason,
			"orderId":         m.OrderID,
			"createdBy":       m.CreatedBy,
			"createdAt":       m.CreatedAt,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

package coupon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lojinha-dev/storefront-api/internal/common"
	"github.com/lojinha-dev/storefront-api/internal/store"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

// Handler exposes coupon management and validation endpoints.
type Handler struct {
	Svc *Service
}

type validateRequest struct {
	Code         string `json:"code"`
	Subtotal     int64  `json:"subtotal"`
	ShippingCost int64  `json:"shippingCost"`
}

// Create inserts a new coupon for the current store.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	created, err := h.Svc.Create(r.Context(), storeID, in)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": couponView(created)})
}

// List returns the store's coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	page, perPage := common.ParsePagination(r, 50)
	coupons, err := h.Svc.List(r.Context(), storeID, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list coupons", nil)
		return
	}
	views := make([]map[string]any, 0, len(coupons))
	for _, c := range coupons {
		views = append(views, couponView(c))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// Deactivate retires a coupon by id.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	couponID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid coupon id", nil)
		return
	}
	if err := h.Svc.Deactivate(r.Context(), storeID, couponID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to deactivate coupon", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Validate evaluates a code against cart totals without consuming usage.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if req.Subtotal < 0 || req.ShippingCost < 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "amounts must not be negative", nil)
		return
	}
	result, err := h.Svc.Preview(r.Context(), storeID, req.Code, req.Subtotal, req.ShippingCost)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to validate coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func couponView(c store.Coupon) map[string]any {
	return map[string]any{
		"id":            c.ID,
		"code":          c.Code,
		"description":   c.Description,
		"discountType":  c.DiscountType,
		"discountValue": c.DiscountValue,
		"minOrderValue": c.MinOrderValue,
		"maxDiscount":   c.MaxDiscount,
		"usageLimit":    c.UsageLimit,
		"usedCount":     c.UsedCount,
		"validFrom":     c.ValidFrom,
		"validUntil":    c.ValidUntil,
		"isActive":      c.IsActive,
	}
}

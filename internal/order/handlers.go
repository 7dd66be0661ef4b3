package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lojinha-dev/storefront-api/internal/common"
	"github.com/lojinha-dev/storefront-api/internal/coupon"
	"github.com/lojinha-dev/storefront-api/internal/inventory"
	"github.com/lojinha-dev/storefront-api/internal/shipping"
	"github.com/lojinha-dev/storefront-api/internal/store"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

// Handler exposes the order lifecycle endpoints.
type Handler struct {
	Svc *Service
}

type statusRequest struct {
	Status string `json:"status"`
}

// Create places a new order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	created, err := h.Svc.Create(r.Context(), storeID, in)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": orderView(created)})
}

// Get returns one order.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	orderID, ok := parseID(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.Get(r.Context(), storeID, orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(o)})
}

// List returns a page of the store's orders, optionally filtered by status.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	page, perPage := common.ParsePagination(r, 20)
	var status *string
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		if !ValidStatus(Status(raw)) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status filter", nil)
			return
		}
		status = &raw
	}
	orders, err := h.Svc.List(r.Context(), storeID, status, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	views := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views, "pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(views)}})
}

// Cancel cancels an order and restores its stock.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	orderID, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Cancel(r.Context(), storeID, orderID); err != nil {
		writeOrderError(w, err)
		return
	}
	o, err := h.Svc.Get(r.Context(), storeID, orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(o)})
}

// UpdateStatus advances fulfilment one step forward.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	orderID, ok := parseID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.Advance(r.Context(), storeID, orderID, Status(req.Status)); err != nil {
		writeOrderError(w, err)
		return
	}
	o, err := h.Svc.Get(r.Context(), storeID, orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(o)})
}

// ConfirmPayment marks the order as paid.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	orderID, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.ConfirmPayment(r.Context(), storeID, orderID); err != nil {
		writeOrderError(w, err)
		return
	}
	o, err := h.Svc.Get(r.Context(), storeID, orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(o)})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return uuid.Nil, false
	}
	return orderID, true
}

func writeOrderError(w http.ResponseWriter, err error) {
	var stockErr *inventory.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		common.JSONError(w, http.StatusUnprocessableEntity, "STOCK_INSUFFICIENT", "insufficient stock", map[string]any{
			"variantOptionId": stockErr.VariantOptionID,
			"requested":       stockErr.Requested,
			"available":       stockErr.Available,
		})
	case errors.Is(err, inventory.ErrInsufficientStock):
		common.JSONError(w, http.StatusUnprocessableEntity, "STOCK_INSUFFICIENT", "insufficient stock", nil)
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrInvalidCustomer):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrOptionUnavailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "OPTION_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, ErrShippingRequired):
		common.JSONError(w, http.StatusUnprocessableEntity, "SHIPPING_REQUIRED", err.Error(), nil)
	case errors.Is(err, shipping.ErrUnavailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "SHIPPING_UNAVAILABLE", "selected shipping option is not available", nil)
	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrNotYetValid),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageExceeded),
		errors.Is(err, coupon.ErrBelowMinimum):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_"+coupon.ReasonCode(err), err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order operation failed", nil)
	}
}

func orderView(o store.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"id":              it.ID,
			"productId":       it.ProductID,
			"variantOptionId": it.VariantOptionID,
			"name":            it.Name,
			"sku":             it.SKU,
			"quantity":        it.Quantity,
			"unitPrice":       it.UnitPrice,
			"lineTotal":       it.LineTotal,
		})
	}
	return map[string]any{
		"id":             o.ID,
		"customer":       o.Customer,
		"items":          items,
		"status":         o.Status,
		"paymentStatus":  o.PaymentStatus,
		"shipping":       o.Shipping,
		"couponCode":     o.CouponCode,
		"subtotal":       o.Subtotal,
		"shippingCost":   o.ShippingCost,
		"discountAmount": o.DiscountAmount,
		"total":          o.Total,
		"createdAt":      o.CreatedAt,
		"updatedAt":      o.UpdatedAt,
	}
}

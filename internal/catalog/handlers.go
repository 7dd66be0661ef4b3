package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lojinha-dev/storefront-api/internal/common"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

// Handler exposes the catalog endpoints.
type Handler struct {
	Svc *Service
}

// Create registers a new product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	created, err := h.Svc.Create(r.Context(), storeID, in)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": detail(created)})
}

// List returns one storefront page of products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	page, perPage := common.ParsePagination(r, 20)
	result, err := h.Svc.List(r.Context(), storeID, page, perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list products", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Get returns one product detail.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	productID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	d, err := h.Svc.Get(r.Context(), storeID, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load product", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

// Delete soft-deletes a product.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	productID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.Svc.Deactivate(r.Context(), storeID, productID); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete product", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

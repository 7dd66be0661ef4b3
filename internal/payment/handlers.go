package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lojinha-dev/storefront-api/internal/common"
	"github.com/lojinha-dev/storefront-api/internal/order"
	"github.com/lojinha-dev/storefront-api/internal/store"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

// Handler exposes PIX settings, charge and webhook endpoints.
type Handler struct {
	Svc *Service
	// WebhookSecret, when set, must match the sha256 the PSP sends in
	// X-Webhook-Signature over the raw body.
	WebhookSecret string
}

type settingsPayload struct {
	Enabled      bool   `json:"enabled"`
	KeyType      string `json:"keyType"`
	KeyValue     string `json:"keyValue"`
	MerchantName string `json:"merchantName"`
	MerchantCity string `json:"merchantCity"`
}

type webhookPayload struct {
	TxID   string `json:"txid"`
	Status string `json:"status"`
}

// GetSettings returns the store's PIX configuration with the key masked.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	settings, err := h.Svc.Settings(r.Context(), storeID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load pix settings", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"enabled":      settings.Enabled,
		"keyType":      settings.KeyType,
		"keyValue":     maskKey(settings.KeyValue),
		"merchantName": settings.MerchantName,
		"merchantCity": settings.MerchantCity,
	}})
}

// PutSettings replaces the store's PIX configuration.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	err := h.Svc.SaveSettings(r.Context(), store.PixSettings{
		StoreID:      storeID,
		Enabled:      payload.Enabled,
		KeyType:      payload.KeyType,
		KeyValue:     payload.KeyValue,
		MerchantName: payload.MerchantName,
		MerchantCity: payload.MerchantCity,
	})
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateCharge generates a BR Code charge for the order.
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	orderID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	charge, err := h.Svc.CreateCharge(r.Context(), storeID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		case errors.Is(err, ErrOrderNotPayable):
			common.JSONError(w, http.StatusConflict, "ORDER_NOT_PAYABLE", "order is not awaiting payment", nil)
		case errors.Is(err, ErrPixNotConfigured):
			common.JSONError(w, http.StatusUnprocessableEntity, "PIX_NOT_CONFIGURED", "store has no pix key configured", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create pix charge", nil)
		}
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"txid":    charge.TxID,
		"amount":  charge.Amount,
		"payload": charge.Payload,
		"status":  charge.Status,
	}})
}

// QRCode streams the charge's QR code as PNG.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	storeID := tenant.MustFromContext(r.Context())
	txid := strings.TrimSpace(chi.URLParam(r, "txid"))
	size := common.AtoiDefault(r.URL.Query().Get("size"), 256)
	png, err := h.Svc.QRCode(r.Context(), storeID, txid, size)
	if err != nil {
		if errors.Is(err, ErrChargeNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "charge not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to render qr code", nil)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Webhook receives PSP settlement notifications. Unknown charges return 404
// so the PSP retries; replays are acknowledged idempotently.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unreadable body", nil)
		return
	}
	if h.WebhookSecret != "" {
		signature := strings.TrimSpace(r.Header.Get("X-Webhook-Signature"))
		if signature != common.Sha256Hex(h.WebhookSecret+string(body)) {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid webhook signature", nil)
			return
		}
	}
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !strings.EqualFold(payload.Status, "paid") && !strings.EqualFold(payload.Status, "concluida") {
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"ignored": true}})
		return
	}
	charge, err := h.Svc.ConfirmByTxID(r.Context(), payload.TxID)
	if err != nil {
		if errors.Is(err, ErrChargeNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "charge not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to settle charge", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"txid":   charge.TxID,
		"status": charge.Status,
	}})
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

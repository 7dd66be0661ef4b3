package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lojinha-dev/storefront-api/internal/events"
	"github.com/lojinha-dev/storefront-api/internal/obs"
	"github.com/lojinha-dev/storefront-api/internal/order"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

var (
	// ErrChargeNotFound is returned when no charge matches the txid.
	ErrChargeNotFound = errors.New("pix charge not found")
	// ErrOrderNotPayable is returned when the order cannot receive a charge.
	ErrOrderNotPayable = errors.New("order is not awaiting payment")
)

// Store captures the database methods required by the payment service.
type Store interface {
	GetPixSettings(ctx context.Context, storeID uuid.UUID) (store.PixSettings, error)
	UpsertPixSettings(ctx context.Context, s store.PixSettings) error
	InsertPixCharge(ctx context.Context, c store.PixCharge) error
	GetPixChargeByTxID(ctx context.Context, txid string) (store.PixCharge, error)
	MarkPixChargePaid(ctx context.Context, chargeID uuid.UUID) (bool, error)
	GetOrder(ctx context.Context, storeID, orderID uuid.UUID) (store.Order, error)
}

// OrderConfirmer settles the order once the charge is paid.
type OrderConfirmer interface {
	ConfirmPayment(ctx context.Context, storeID, orderID uuid.UUID) error
}

// Service manages PIX configuration, charge creation and webhook settlement.
type Service struct {
	Q      Store
	Orders OrderConfirmer
	Events *events.Bus
	Logger zerolog.Logger
}

// Settings returns the store's PIX configuration, key value masked.
func (s *Service) Settings(ctx context.Context, storeID uuid.UUID) (store.PixSettings, error) {
	settings, err := s.Q.GetPixSettings(ctx, storeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.PixSettings{StoreID: storeID}, nil
		}
		return store.PixSettings{}, err
	}
	return settings, nil
}

// SaveSettings validates and persists the store's PIX configuration.
func (s *Service) SaveSettings(ctx context.Context, settings store.PixSettings) error {
	if settings.Enabled {
		switch settings.KeyType {
		case "cpf", "cnpj", "email", "phone", "random":
		default:
			return fmt.Errorf("unknown pix key type %q", settings.KeyType)
		}
		if strings.TrimSpace(settings.KeyValue) == "" {
			return errors.New("pix key value is required")
		}
	}
	return s.Q.UpsertPixSettings(ctx, settings)
}

// CreateCharge generates a BR Code charge for a pending order.
func (s *Service) CreateCharge(ctx context.Context, storeID, orderID uuid.UUID) (store.PixCharge, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreateCharge")
	defer span.End()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("order.id", orderID.String()),
			attribute.String("pix.charge.result", result),
		)
		if obs.PixChargesTotal != nil {
			obs.PixChargesTotal.WithLabelValues(result).Inc()
		}
	}()

	o, err := s.Q.GetOrder(ctx, storeID, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.PixCharge{}, order.ErrNotFound
		}
		return store.PixCharge{}, err
	}
	if o.PaymentStatus != string(order.PaymentPending) {
		return store.PixCharge{}, ErrOrderNotPayable
	}
	settings, err := s.Q.GetPixSettings(ctx, storeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.PixCharge{}, ErrPixNotConfigured
		}
		return store.PixCharge{}, err
	}

	txid := strings.ReplaceAll(uuid.New().String(), "-", "")[:25]
	payload, err := BuildPayload(settings, txid, o.Total)
	if err != nil {
		return store.PixCharge{}, err
	}
	charge := store.PixCharge{
		ID:      uuid.New(),
		StoreID: storeID,
		OrderID: orderID,
		TxID:    txid,
		Amount:  o.Total,
		Payload: payload,
		Status:  store.PixChargePending,
	}
	if err := s.Q.InsertPixCharge(ctx, charge); err != nil {
		return store.PixCharge{}, err
	}
	result = "created"
	s.emit(ctx, storeID, events.TopicPixChargeCreated, orderID, map[string]any{
		"txid":   txid,
		"amount": o.Total,
	})
	return charge, nil
}

// QRCode renders the charge payload as a PNG.
func (s *Service) QRCode(ctx context.Context, storeID uuid.UUID, txid string, size int) ([]byte, error) {
	charge, err := s.Q.GetPixChargeByTxID(ctx, txid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChargeNotFound
		}
		return nil, err
	}
	if charge.StoreID != storeID {
		return nil, ErrChargeNotFound
	}
	return QRCodePNG(charge.Payload, size)
}

// ConfirmByTxID settles the charge referenced by a PSP webhook. Replayed
// webhooks are absorbed by the conditional paid transition.
func (s *Service) ConfirmByTxID(ctx context.Context, txid string) (store.PixCharge, error) {
	charge, err := s.Q.GetPixChargeByTxID(ctx, strings.TrimSpace(txid))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.PixCharge{}, ErrChargeNotFound
		}
		return store.PixCharge{}, err
	}
	paid, err := s.Q.MarkPixChargePaid(ctx, charge.ID)
	if err != nil {
		return store.PixCharge{}, err
	}
	if !paid {
		// already settled; webhook replay
		return charge, nil
	}
	if obs.PixChargesTotal != nil {
		obs.PixChargesTotal.WithLabelValues("paid").Inc()
	}
	if s.Orders != nil {
		if err := s.Orders.ConfirmPayment(ctx, charge.StoreID, charge.OrderID); err != nil {
			s.Logger.Error().Err(err).
				Str("txid", charge.TxID).
				Str("order_id", charge.OrderID.String()).
				Msg("confirm order after pix settlement")
		}
	}
	now := time.Now()
	charge.Status = store.PixChargePaid
	charge.PaidAt = &now
	return charge, nil
}

func (s *Service) emit(ctx context.Context, storeID uuid.UUID, topic string, aggregateID uuid.UUID, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, storeID, topic, aggregateID, payload); err != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Msg("emit payment event")
	}
}

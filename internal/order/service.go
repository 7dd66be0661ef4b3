package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lojinha-dev/storefront-api/internal/cart"
	"github.com/lojinha-dev/storefront-api/internal/coupon"
	"github.com/lojinha-dev/storefront-api/internal/events"
	"github.com/lojinha-dev/storefront-api/internal/inventory"
	"github.com/lojinha-dev/storefront-api/internal/obs"
	"github.com/lojinha-dev/storefront-api/internal/pricing"
	"github.com/lojinha-dev/storefront-api/internal/shipping"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

var (
	// ErrEmptyCart is returned when an order has no purchasable lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidCustomer wraps customer-info validation failures.
	ErrInvalidCustomer = errors.New("customer info incomplete")
	// ErrOptionUnavailable is returned when a requested option is inactive.
	ErrOptionUnavailable = errors.New("variant option unavailable")
	// ErrShippingRequired is returned when a shipping-enabled store receives
	// an order without a shipping selection.
	ErrShippingRequired = errors.New("shipping option is required")
	// ErrNotFound is returned when the order does not exist for the store.
	ErrNotFound = errors.New("order not found")
)

// Store captures every query the lifecycle manager touches. *store.Queries
// satisfies it; tests provide fakes.
type Store interface {
	inventory.Querier
	GetCouponByCode(ctx context.Context, storeID uuid.UUID, code string) (store.Coupon, error)
	RedeemCoupon(ctx context.Context, couponID uuid.UUID) (bool, error)
	GetShippingSettings(ctx context.Context, storeID uuid.UUID) (shipping.Settings, error)
	InsertOrder(ctx context.Context, o store.Order) error
	InsertOrderItem(ctx context.Context, it store.OrderItem) error
	GetOrder(ctx context.Context, storeID, orderID uuid.UUID) (store.Order, error)
	ListOrders(ctx context.Context, storeID uuid.UUID, status *string, limit, offset int32) ([]store.Order, error)
	UpdateOrderStatusIfCurrent(ctx context.Context, orderID uuid.UUID, expected, next string) (bool, error)
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status string) error
}

// TxRunner executes fn against transaction-bound queries.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID       uuid.UUID `json:"productId"`
	VariantOptionID uuid.UUID `json:"variantOptionId"`
	Quantity        int32     `json:"quantity"`
}

// CreateInput is the full order-creation request.
type CreateInput struct {
	Customer          store.CustomerInfo `json:"customer"`
	Items             []ItemInput        `json:"items"`
	ShippingOptionID  *string            `json:"shippingOptionId,omitempty"`
	DestinationRegion *string            `json:"destinationRegion,omitempty"`
	CouponCode        *string            `json:"couponCode,omitempty"`
}

// Service orchestrates order creation, cancellation and status transitions.
type Service struct {
	Q        Store
	Tx       TxRunner
	Validate *validator.Validate
	Events   *events.Bus
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create runs the whole creation protocol inside one transaction: validate,
// resolve frozen prices, quote shipping, redeem the coupon, persist the order
// and decrement stock. Any failure rolls the entire unit back, so there is no
// partially persisted order to reconcile.
func (s *Service) Create(ctx context.Context, storeID uuid.UUID, in CreateInput) (store.Order, error) {
	if len(in.Items) == 0 {
		return store.Order{}, ErrEmptyCart
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return store.Order{}, fmt.Errorf("quantity must be positive: %w", ErrEmptyCart)
		}
	}
	if s.Validate != nil {
		if err := s.Validate.Struct(in.Customer); err != nil {
			return store.Order{}, fmt.Errorf("%w: %v", ErrInvalidCustomer, err)
		}
	}

	var created store.Order
	err := s.Tx.InTx(ctx, func(q Store) error {
		orderID := uuid.New()
		var (
			items       []store.OrderItem
			cartItems   []cart.Item
			movements   []inventory.Movement
			totalWeight int64
		)
		for _, it := range in.Items {
			opt, err := q.GetVariantOption(ctx, storeID, it.VariantOptionID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("option %s: %w", it.VariantOptionID, ErrOptionUnavailable)
				}
				return err
			}
			if !opt.IsActive || opt.ProductID != it.ProductID {
				return fmt.Errorf("option %s: %w", it.VariantOptionID, ErrOptionUnavailable)
			}
			quote := pricing.Resolve(opt.RegularPrice, opt.PromotionalPrice)
			if quote.CurrentPrice <= 0 {
				return fmt.Errorf("option %s has no price: %w", it.VariantOptionID, ErrOptionUnavailable)
			}
			items = append(items, store.OrderItem{
				ID:              uuid.New(),
				OrderID:         orderID,
				ProductID:       opt.ProductID,
				VariantOptionID: opt.ID,
				Name:            opt.Name,
				SKU:             opt.SKU,
				Quantity:        it.Quantity,
				UnitPrice:       quote.CurrentPrice,
				LineTotal:       quote.CurrentPrice * int64(it.Quantity),
			})
			cartItems = append(cartItems, cart.Item{Qty: int(it.Quantity), UnitPrice: quote.CurrentPrice})
			totalWeight += opt.WeightGrams * int64(it.Quantity)
			movements = append(movements, inventory.Movement{
				ProductID:       opt.ProductID,
				VariantOptionID: opt.ID,
				Quantity:        it.Quantity,
				Reason:          "sale",
				OrderID:         &orderID,
				CreatedBy:       "checkout",
			})
		}

		subtotal := cart.Compute(cartItems, 0, 0).Subtotal

		settings, err := q.GetShippingSettings(ctx, storeID)
		if err != nil {
			return err
		}
		if settings.Enabled && in.ShippingOptionID == nil {
			return ErrShippingRequired
		}
		var selection *store.ShippingSelection
		if in.ShippingOptionID != nil {
			options, err := shipping.Calculate(settings, subtotal, in.DestinationRegion, &totalWeight)
			if err != nil {
				return err
			}
			for i := range options {
				if options[i].ID == *in.ShippingOptionID {
					selection = &store.ShippingSelection{
						OptionID:         options[i].ID,
						Name:             options[i].Name,
						Price:            options[i].Price,
						DeliveryEstimate: options[i].DeliveryEstimate,
					}
					if in.DestinationRegion != nil {
						selection.Region = *in.DestinationRegion
					}
					break
				}
			}
			if selection == nil {
				return shipping.ErrUnavailable
			}
		}
		var shippingCost int64
		if selection != nil {
			shippingCost = selection.Price
		}

		var (
			discount   int64
			couponCode *string
		)
		if in.CouponCode != nil && strings.TrimSpace(*in.CouponCode) != "" {
			c, err := q.GetCouponByCode(ctx, storeID, *in.CouponCode)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return coupon.ErrNotFound
				}
				return err
			}
			rule := coupon.RuleFromModel(c)
			if err := rule.Validate(s.now(), subtotal); err != nil {
				return err
			}
			discount = coupon.Compute(rule, subtotal, shippingCost)
			ok, err := q.RedeemCoupon(ctx, c.ID)
			if err != nil {
				return err
			}
			if !ok {
				return coupon.ErrUsageExceeded
			}
			couponCode = &c.Code
		}

		breakdown := cart.Compute(cartItems, shippingCost, discount)
		created = store.Order{
			ID:             orderID,
			StoreID:        storeID,
			Customer:       in.Customer,
			Items:          items,
			Status:         string(StatusPending),
			PaymentStatus:  string(PaymentPending),
			Shipping:       selection,
			CouponCode:     couponCode,
			Subtotal:       breakdown.Subtotal,
			ShippingCost:   breakdown.ShippingCost,
			DiscountAmount: breakdown.DiscountAmount,
			Total:          breakdown.Total,
		}
		if err := q.InsertOrder(ctx, created); err != nil {
			return err
		}
		for _, it := range items {
			if err := q.InsertOrderItem(ctx, it); err != nil {
				return err
			}
		}
		// Stock moves last so a failed guard aborts the whole unit.
		return inventory.Decrement(ctx, q, storeID, movements)
	})
	if err != nil {
		return store.Order{}, err
	}

	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.Inc()
	}
	s.emit(ctx, storeID, events.TopicOrderCreated, created.ID, map[string]any{
		"total":    created.Total,
		"subtotal": created.Subtotal,
		"items":    len(created.Items),
	})
	return created, nil
}

// Cancel transitions the order to cancelled and restores stock for every
// item. Cancelling a cancelled order is a no-op, not a double restore.
func (s *Service) Cancel(ctx context.Context, storeID, orderID uuid.UUID) error {
	var cancelled bool
	err := s.Tx.InTx(ctx, func(q Store) error {
		o, err := q.GetOrder(ctx, storeID, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		current := Status(o.Status)
		if current == StatusCancelled {
			return nil
		}
		if !CanCancel(current) {
			return fmt.Errorf("cannot cancel order in state %s: %w", current, ErrInvalidTransition)
		}
		ok, err := q.UpdateOrderStatusIfCurrent(ctx, orderID, string(current), string(StatusCancelled))
		if err != nil {
			return err
		}
		if !ok {
			// Lost a concurrent transition; the retried read decides.
			return fmt.Errorf("order state changed concurrently: %w", ErrInvalidTransition)
		}
		movements := make([]inventory.Movement, 0, len(o.Items))
		for _, it := range o.Items {
			movements = append(movements, inventory.Movement{
				ProductID:       it.ProductID,
				VariantOptionID: it.VariantOptionID,
				Quantity:        it.Quantity,
				Reason:          "order cancelled",
				OrderID:         &orderID,
				CreatedBy:       "lifecycle",
			})
		}
		cancelled = true
		return inventory.Restore(ctx, q, storeID, movements)
	})
	if err != nil {
		return err
	}
	if cancelled {
		if obs.OrdersCancelledTotal != nil {
			obs.OrdersCancelledTotal.Inc()
		}
		s.emit(ctx, storeID, events.TopicOrderCancelled, orderID, nil)
	}
	return nil
}

// ConfirmPayment flips the payment axis to confirmed and advances a pending
// order to confirmed. Stock was already reserved at creation, so there is no
// inventory effect.
func (s *Service) ConfirmPayment(ctx context.Context, storeID, orderID uuid.UUID) error {
	err := s.Tx.InTx(ctx, func(q Store) error {
		o, err := q.GetOrder(ctx, storeID, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if pay := PaymentStatus(o.PaymentStatus); pay != PaymentConfirmed {
			if !CanTransitionPayment(pay, PaymentConfirmed) {
				return fmt.Errorf("payment status %s: %w", pay, ErrInvalidTransition)
			}
			if err := q.UpdatePaymentStatus(ctx, orderID, string(PaymentConfirmed)); err != nil {
				return err
			}
		}
		if Status(o.Status) == StatusPending {
			if _, err := q.UpdateOrderStatusIfCurrent(ctx, orderID, string(StatusPending), string(StatusConfirmed)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, storeID, events.TopicPaymentConfirmed, orderID, nil)
	return nil
}

// Advance moves the fulfilment state one step forward. Out-of-order requests
// are rejected, not clamped.
func (s *Service) Advance(ctx context.Context, storeID, orderID uuid.UUID, next Status) error {
	if !ValidStatus(next) {
		return fmt.Errorf("unknown status %q: %w", next, ErrInvalidTransition)
	}
	if next == StatusCancelled {
		return fmt.Errorf("use cancel for cancellation: %w", ErrInvalidTransition)
	}
	err := s.Tx.InTx(ctx, func(q Store) error {
		o, err := q.GetOrder(ctx, storeID, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		current := Status(o.Status)
		if !CanAdvance(current, next) {
			return fmt.Errorf("%s -> %s: %w", current, next, ErrInvalidTransition)
		}
		ok, err := q.UpdateOrderStatusIfCurrent(ctx, orderID, string(current), string(next))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("order state changed concurrently: %w", ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, storeID, events.TopicOrderStatusChanged, orderID, map[string]any{"status": string(next)})
	return nil
}

// Get loads one order, store scoped.
func (s *Service) Get(ctx context.Context, storeID, orderID uuid.UUID) (store.Order, error) {
	o, err := s.Q.GetOrder(ctx, storeID, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, ErrNotFound
		}
		return store.Order{}, err
	}
	return o, nil
}

// List returns a page of the store's orders.
func (s *Service) List(ctx context.Context, storeID uuid.UUID, status *string, limit, offset int32) ([]store.Order, error) {
	return s.Q.ListOrders(ctx, storeID, status, limit, offset)
}

func (s *Service) emit(ctx context.Context, storeID uuid.UUID, topic string, orderID uuid.UUID, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, storeID, topic, orderID, payload); err != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Msg("emit order event")
	}
}

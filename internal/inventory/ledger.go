package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lojinha-dev/storefront-api/internal/obs"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

// ErrInsufficientStock is the sentinel wrapped by InsufficientStockError.
var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError reports the option whose conditional decrement failed.
type InsufficientStockError struct {
	VariantOptionID uuid.UUID
	Requested       int32
	Available       int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for option %s: requested %d, available %d",
		e.VariantOptionID, e.Requested, e.Available)
}

// Unwrap lets errors.Is match the sentinel.
func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Querier captures the store methods the ledger needs. It is satisfied by
// *store.Queries, transaction-bound or not.
type Querier interface {
	GetVariantOption(ctx context.Context, storeID, optionID uuid.UUID) (store.VariantOption, error)
	DecrementStock(ctx context.Context, optionID uuid.UUID, qty int32) (int32, bool, error)
	IncrementStock(ctx context.Context, optionID uuid.UUID, qty int32) (int32, error)
	InsertStockMovement(ctx context.Context, m store.StockMovement) error
}

// Movement describes one requested stock change for an order line.
type Movement struct {
	ProductID       uuid.UUID
	VariantOptionID uuid.UUID
	Quantity        int32
	Reason          string
	OrderID         *uuid.UUID
	CreatedBy       string
}

// Decrement applies all movements as sales. The caller supplies a
// transaction-bound querier so either every option is decremented and
// journaled or, on the first failed guard, the whole transaction rolls back.
func Decrement(ctx context.Context, q Querier, storeID uuid.UUID, movements []Movement) error {
	for _, mv := range movements {
		if mv.Quantity <= 0 {
			return fmt.Errorf("movement quantity must be positive for option %s", mv.VariantOptionID)
		}
		_, ok, err := q.DecrementStock(ctx, mv.VariantOptionID, mv.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			available := int32(0)
			if opt, optErr := q.GetVariantOption(ctx, storeID, mv.VariantOptionID); optErr == nil {
				available = opt.Stock
			}
			return &InsufficientStockError{
				VariantOptionID: mv.VariantOptionID,
				Requested:       mv.Quantity,
				Available:       available,
			}
		}
		if err := appendMovement(ctx, q, storeID, mv, store.MovementOut); err != nil {
			return err
		}
	}
	return nil
}

// Restore applies the inverse of Decrement for the same per-item quantities.
func Restore(ctx context.Context, q Querier, storeID uuid.UUID, movements []Movement) error {
	for _, mv := range movements {
		if mv.Quantity <= 0 {
			return fmt.Errorf("movement quantity must be positive for option %s", mv.VariantOptionID)
		}
		if _, err := q.IncrementStock(ctx, mv.VariantOptionID, mv.Quantity); err != nil {
			return err
		}
		if err := appendMovement(ctx, q, storeID, mv, store.MovementIn); err != nil {
			return err
		}
	}
	return nil
}

func appendMovement(ctx context.Context, q Querier, storeID uuid.UUID, mv Movement, direction string) error {
	if obs.StockMovementsTotal != nil {
		obs.StockMovementsTotal.WithLabelValues(direction).Inc()
	}
	return q.InsertStockMovement(ctx, store.StockMovement{
		ID:              uuid.New(),
		StoreID:         storeID,
		ProductID:       mv.ProductID,
		VariantOptionID: mv.VariantOptionID,
		Type:            direction,
		Quantity:        mv.Quantity,
		Reason:          mv.Reason,
		OrderID:         mv.OrderID,
		CreatedBy:       mv.CreatedBy,
	})
}

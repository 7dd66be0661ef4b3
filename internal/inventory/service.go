package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lojinha-dev/storefront-api/internal/events"
	"github.com/lojinha-dev/storefront-api/internal/obs"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

// DefaultLowStockThreshold applies when a store has not configured its own.
const DefaultLowStockThreshold = 5

// Store widens Querier with the reporting reads used outside transactions.
type Store interface {
	Querier
	ListLowStock(ctx context.Context, storeID uuid.UUID, threshold int32) ([]store.LowStockRow, error)
	ListStockMovements(ctx context.Context, storeID uuid.UUID, optionID *uuid.UUID, limit, offset int32) ([]store.StockMovement, error)
	StockTotals(ctx context.Context, storeID uuid.UUID) ([]store.StockTotal, error)
	ListStoreIDs(ctx context.Context) ([]uuid.UUID, error)
}

// TxRunner executes fn inside one database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// Locker serializes manual adjustments on one option.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service exposes the operator-facing inventory operations and the
// reconciliation audit. The transactional order path uses Decrement/Restore
// directly inside the order transaction.
type Service struct {
	Q                 Store
	Tx                TxRunner
	Lock              Locker
	Events            *events.Bus
	Logger            zerolog.Logger
	LowStockThreshold int32
	LockTTL           time.Duration
}

func (s *Service) threshold() int32 {
	if s.LowStockThreshold > 0 {
		return s.LowStockThreshold
	}
	return DefaultLowStockThreshold
}

// Adjust applies a manual stock correction. Positive delta receives stock,
// negative delta removes it subject to the non-negative guard. The redis lock
// keeps two operators from racing on the same option.
func (s *Service) Adjust(ctx context.Context, storeID, optionID uuid.UUID, delta int32, reason, operator string) error {
	if delta == 0 {
		return errors.New("adjustment delta must not be zero")
	}
	apply := func(ctx context.Context) error {
		return s.Tx.InTx(ctx, func(q Store) error {
			opt, err := q.GetVariantOption(ctx, storeID, optionID)
			if err != nil {
				return err
			}
			mv := Movement{
				ProductID:       opt.ProductID,
				VariantOptionID: optionID,
				Quantity:        delta,
				Reason:          reason,
				CreatedBy:       operator,
			}
			if delta > 0 {
				return Restore(ctx, q, storeID, []Movement{mv})
			}
			mv.Quantity = -delta
			return Decrement(ctx, q, storeID, []Movement{mv})
		})
	}
	if s.Lock == nil {
		return apply(ctx)
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return s.Lock.WithLock(ctx, "inventory:adjust:"+optionID.String(), ttl, apply)
}

// LowStock returns the active options at or below the alert threshold.
func (s *Service) LowStock(ctx context.Context, storeID uuid.UUID) ([]store.LowStockRow, error) {
	return s.Q.ListLowStock(ctx, storeID, s.threshold())
}

// Movements lists ledger entries for operator review.
func (s *Service) Movements(ctx context.Context, storeID uuid.UUID, optionID *uuid.UUID, limit, offset int32) ([]store.StockMovement, error) {
	return s.Q.ListStockMovements(ctx, storeID, optionID, limit, offset)
}

// AuditReport summarizes one reconciliation pass.
type AuditReport struct {
	StoresChecked  int
	OptionsChecked int
	Mismatches     []store.StockTotal
}

// Audit verifies that every option's materialized stock equals the signed sum
// of its ledger entries. Mismatches are surfaced as operator-facing events and
// counted, never silently repaired.
func (s *Service) Audit(ctx context.Context) (AuditReport, error) {
	storeIDs, err := s.Q.ListStoreIDs(ctx)
	if err != nil {
		return AuditReport{}, err
	}
	report := AuditReport{StoresChecked: len(storeIDs)}
	for _, storeID := range storeIDs {
		totals, err := s.Q.StockTotals(ctx, storeID)
		if err != nil {
			return report, err
		}
		report.OptionsChecked += len(totals)
		for _, t := range totals {
			if int64(t.Stock) == t.MovementSum {
				continue
			}
			report.Mismatches = append(report.Mismatches, t)
			if obs.InventoryAuditMismatchTotal != nil {
				obs.InventoryAuditMismatchTotal.Inc()
			}
			s.Logger.Error().
				Str("store_id", storeID.String()).
				Str("variant_option_id", t.VariantOptionID.String()).
				Int32("stock", t.Stock).
				Int64("movement_sum", t.MovementSum).
				Msg("inventory projection mismatch")
			if s.Events != nil {
				payload := map[string]any{
					"variantOptionId": t.VariantOptionID.String(),
					"stock":           t.Stock,
					"movementSum":     t.MovementSum,
				}
				if _, err := s.Events.Emit(ctx, storeID, events.TopicInventoryInconsistency, t.VariantOptionID, payload); err != nil {
					s.Logger.Error().Err(err).Msg("emit inconsistency event")
				}
			}
		}
	}
	return report, nil
}

// CheckLowStock emits a low-stock event per store it finds options below the
// threshold for. The worker runs it periodically.
func (s *Service) CheckLowStock(ctx context.Context) error {
	storeIDs, err := s.Q.ListStoreIDs(ctx)
	if err != nil {
		return err
	}
	var joined error
	for _, storeID := range storeIDs {
		rows, err := s.Q.ListLowStock(ctx, storeID, s.threshold())
		if err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		for _, row := range rows {
			if s.Events == nil {
				continue
			}
			payload := map[string]any{
				"productId":       row.ProductID.String(),
				"variantOptionId": row.VariantOptionID.String(),
				"sku":             row.SKU,
				"stock":           row.Stock,
				"threshold":       s.threshold(),
			}
			if _, err := s.Events.Emit(ctx, storeID, events.TopicInventoryLowStock, row.VariantOptionID, payload); err != nil {
				joined = errors.Join(joined, fmt.Errorf("low stock event: %w", err))
			}
		}
	}
	return joined
}

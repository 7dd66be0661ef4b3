package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertStockMovement appends one ledger entry. The table is append-only;
// there is no update or delete path.
func (q *Queries) InsertStockMovement(ctx context.Context, m StockMovement) error {
	const sql = `
		INSERT INTO stock_movements
			(id, store_id, product_id, variant_option_id, type, quantity, reason, order_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := q.db.Exec(ctx, sql,
		pgUUID(m.ID), pgUUID(m.StoreID), pgUUID(m.ProductID), pgUUID(m.VariantOptionID),
		m.Type, m.Quantity, m.Reason, pgUUIDPtr(m.OrderID), m.CreatedBy,
	)
	return err
}

// ListStockMovements returns ledger entries for a store, newest first,
// optionally narrowed to one option.
func (q *Queries) ListStockMovements(ctx context.Context, storeID uuid.UUID, optionID *uuid.UUID, limit, offset int32) ([]StockMovement, error) {
	const sql = `
		SELECT id, store_id, product_id, variant_option_id, type, quantity, reason, order_id, created_by, created_at
		FROM stock_movements
		WHERE store_id = $1 AND ($2::uuid IS NULL OR variant_option_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := q.db.Query(ctx, sql, pgUUID(storeID), pgUUIDPtr(optionID), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []StockMovement
	for rows.Next() {
		var (
			m   StockMovement
			id  pgtype.UUID
			sid pgtype.UUID
			pid pgtype.UUID
			vid pgtype.UUID
			oid pgtype.UUID
		)
		if err := rows.Scan(&id, &sid, &pid, &vid, &m.Type, &m.Quantity, &m.Reason, &oid, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ID = fromPGUUID(id)
		m.StoreID = fromPGUUID(sid)
		m.ProductID = fromPGUUID(pid)
		m.VariantOptionID = fromPGUUID(vid)
		m.OrderID = fromPGUUIDPtr(oid)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListLowStock surfaces active options with 0 < stock <= threshold. Read-only
// reporting, not part of the transactional path.
func (q *Queries) ListLowStock(ctx context.Context, storeID uuid.UUID, threshold int32) ([]LowStockRow, error) {
	const sql = `
		SELECT vo.id, vo.product_id, p.name, vo.name, vo.sku, vo.stock
		FROM variant_options vo
		JOIN products p ON p.id = vo.product_id
		WHERE vo.store_id = $1 AND vo.is_active AND p.is_active
		  AND vo.stock > 0 AND vo.stock <= $2
		ORDER BY vo.stock ASC, p.name`
	rows, err := q.db.Query(ctx, sql, pgUUID(storeID), threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var report []LowStockRow
	for rows.Next() {
		var (
			r   LowStockRow
			id  pgtype.UUID
			pid pgtype.UUID
		)
		if err := rows.Scan(&id, &pid, &r.ProductName, &r.OptionName, &r.SKU, &r.Stock); err != nil {
			return nil, err
		}
		r.VariantOptionID = fromPGUUID(id)
		r.ProductID = fromPGUUID(pid)
		report = append(report, r)
	}
	return report, rows.Err()
}

// StockTotals pairs each option's materialized stock with the signed sum of
// its ledger entries. The audit job flags any row where the two disagree.
func (q *Queries) StockTotals(ctx context.Context, storeID uuid.UUID) ([]StockTotal, error) {
	const sql = `
		SELECT vo.id, vo.product_id, vo.stock,
		       COALESCE(SUM(CASE WHEN sm.type = 'in' THEN sm.quantity ELSE -sm.quantity END), 0)
		FROM variant_options vo
		LEFT JOIN stock_movements sm ON sm.variant_option_id = vo.id
		WHERE vo.store_id = $1
		GROUP BY vo.id, vo.product_id, vo.stock`
	rows, err := q.db.Query(ctx, sql, pgUUID(storeID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var totals []StockTotal
	for rows.Next() {
		var (
			t   StockTotal
			id  pgtype.UUID
			pid pgtype.UUID
		)
		if err := rows.Scan(&id, &pid, &t.Stock, &t.MovementSum); err != nil {
			return nil, err
		}
		t.VariantOptionID = fromPGUUID(id)
		t.ProductID = fromPGUUID(pid)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// ListStoreIDs returns every store that has at least one option; the audit
// worker iterates over it.
func (q *Queries) ListStoreIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `SELECT DISTINCT store_id FROM variant_options`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, fromPGUUID(id))
	}
	return ids, rows.Err()
}

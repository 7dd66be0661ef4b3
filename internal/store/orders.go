package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertOrder persists the order header. Items are inserted separately inside
// the same transaction.
func (q *Queries) InsertOrder(ctx context.Context, o Order) error {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return err
	}
	var shippingJSON []byte
	if o.Shipping != nil {
		shippingJSON, err = json.Marshal(o.Shipping)
		if err != nil {
			return err
		}
	}
	const sql = `
		INSERT INTO orders
			(id, store_id, customer, status, payment_status, shipping_option, coupon_code,
			 subtotal, shipping_cost, discount_amount, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = q.db.Exec(ctx, sql,
		pgUUID(o.ID), pgUUID(o.StoreID), customer, o.Status, o.PaymentStatus,
		shippingJSON, pgTextPtr(o.CouponCode),
		o.Subtotal, o.ShippingCost, o.DiscountAmount, o.Total,
	)
	return err
}

// InsertOrderItem persists one frozen order line.
func (q *Queries) InsertOrderItem(ctx context.Context, it OrderItem) error {
	const sql = `
		INSERT INTO order_items
			(id, order_id, product_id, variant_option_id, name, sku, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := q.db.Exec(ctx, sql,
		pgUUID(it.ID), pgUUID(it.OrderID), pgUUID(it.ProductID), pgUUID(it.VariantOptionID),
		it.Name, it.SKU, it.Quantity, it.UnitPrice, it.LineTotal,
	)
	return err
}

// GetOrder loads one order with its items, store scoped.
func (q *Queries) GetOrder(ctx context.Context, storeID, orderID uuid.UUID) (Order, error) {
	const sql = `
		SELECT id, store_id, customer, status, payment_status, shipping_option, coupon_code,
		       subtotal, shipping_cost, discount_amount, total, created_at, updated_at
		FROM orders
		WHERE store_id = $1 AND id = $2`
	o, err := q.scanOrder(q.db.QueryRow(ctx, sql, pgUUID(storeID), pgUUID(orderID)))
	if err != nil {
		return Order{}, err
	}
	items, err := q.ListOrderItems(ctx, o.ID)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	return o, nil
}

// ListOrders returns a page of a store's orders, optionally filtered by status.
func (q *Queries) ListOrders(ctx context.Context, storeID uuid.UUID, status *string, limit, offset int32) ([]Order, error) {
	const sql = `
		SELECT id, store_id, customer, status, payment_status, shipping_option, coupon_code,
		       subtotal, shipping_cost, discount_amount, total, created_at, updated_at
		FROM orders
		WHERE store_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := q.db.Query(ctx, sql, pgUUID(storeID), status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := q.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListOrderItems returns the frozen lines of one order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	const sql = `
		SELECT id, order_id, product_id, variant_option_id, name, sku, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY name`
	rows, err := q.db.Query(ctx, sql, pgUUID(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var (
			it  OrderItem
			id  pgtype.UUID
			oid pgtype.UUID
			pid pgtype.UUID
			vid pgtype.UUID
		)
		if err := rows.Scan(&id, &oid, &pid, &vid, &it.Name, &it.SKU, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		it.ID = fromPGUUID(id)
		it.OrderID = fromPGUUID(oid)
		it.ProductID = fromPGUUID(pid)
		it.VariantOptionID = fromPGUUID(vid)
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateOrderStatusIfCurrent transitions the status only when the stored
// value still matches expected, so concurrent transitions cannot clobber each
// other. ok is false when the precondition failed.
func (q *Queries) UpdateOrderStatusIfCurrent(ctx context.Context, orderID uuid.UUID, expected, next string) (ok bool, err error) {
	const sql = `
		UPDATE orders
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`
	tag, err := q.db.Exec(ctx, sql, pgUUID(orderID), expected, next)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdatePaymentStatus sets the independent payment axis.
func (q *Queries) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`,
		pgUUID(orderID), status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) scanOrder(row rowScanner) (Order, error) {
	var (
		o            Order
		id           pgtype.UUID
		sid          pgtype.UUID
		customer     []byte
		shippingJSON []byte
		couponCode   pgtype.Text
	)
	if err := row.Scan(&id, &sid, &customer, &o.Status, &o.PaymentStatus, &shippingJSON, &couponCode,
		&o.Subtotal, &o.ShippingCost, &o.DiscountAmount, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, notFound(err)
	}
	o.ID = fromPGUUID(id)
	o.StoreID = fromPGUUID(sid)
	o.CouponCode = fromPGTextPtr(couponCode)
	if len(customer) > 0 {
		if err := json.Unmarshal(customer, &o.Customer); err != nil {
			return Order{}, err
		}
	}
	if len(shippingJSON) > 0 {
		var sel ShippingSelection
		if err := json.Unmarshal(shippingJSON, &sel); err != nil {
			return Order{}, err
		}
		o.Shipping = &sel
	}
	return o, nil
}

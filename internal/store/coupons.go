package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertCoupon persists a coupon. Codes are uppercased so lookups stay
// case-insensitive.
func (q *Queries) InsertCoupon(ctx context.Context, c Coupon) error {
	const sql = `
		INSERT INTO coupons
			(id, store_id, code, description, discount_type, discount_value,
			 min_order_value, max_discount, usage_limit, used_count,
			 valid_from, valid_until, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := q.db.Exec(ctx, sql,
		pgUUID(c.ID), pgUUID(c.StoreID), strings.ToUpper(strings.TrimSpace(c.Code)),
		c.Description, c.DiscountType, c.DiscountValue,
		pgInt8Ptr(c.MinOrderValue), pgInt8Ptr(c.MaxDiscount), pgInt4Ptr(c.UsageLimit), c.UsedCount,
		c.ValidFrom, c.ValidUntil, c.IsActive,
	)
	return err
}

// GetCouponByCode resolves a coupon by its case-insensitive code.
func (q *Queries) GetCouponByCode(ctx context.Context, storeID uuid.UUID, code string) (Coupon, error) {
	const sql = `
		SELECT id, store_id, code, description, discount_type, discount_value,
		       min_order_value, max_discount, usage_limit, used_count,
		       valid_from, valid_until, is_active, created_at
		FROM coupons
		WHERE store_id = $1 AND code = upper($2)`
	return q.scanCoupon(q.db.QueryRow(ctx, sql, pgUUID(storeID), strings.TrimSpace(code)))
}

// ListCoupons returns all coupons of a store, newest first.
func (q *Queries) ListCoupons(ctx context.Context, storeID uuid.UUID, limit, offset int32) ([]Coupon, error) {
	const sql = `
		SELECT id, store_id, code, description, discount_type, discount_value,
		       min_order_value, max_discount, usage_limit, used_count,
		       valid_from, valid_until, is_active, created_at
		FROM coupons
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, sql, pgUUID(storeID), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var coupons []Coupon
	for rows.Next() {
		c, err := q.scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

// DeactivateCoupon disables a coupon without deleting historical usage.
func (q *Queries) DeactivateCoupon(ctx context.Context, storeID, couponID uuid.UUID) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE coupons SET is_active = FALSE WHERE store_id = $1 AND id = $2`,
		pgUUID(storeID), pgUUID(couponID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RedeemCoupon increments used_count only while the usage limit holds. The
// conditional update makes redemption safe under concurrent checkouts; ok is
// false when the quota is exhausted.
func (q *Queries) RedeemCoupon(ctx context.Context, couponID uuid.UUID) (ok bool, err error) {
	const sql = `
		UPDATE coupons
		SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`
	tag, err := q.db.Exec(ctx, sql, pgUUID(couponID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (q *Queries) scanCoupon(row rowScanner) (Coupon, error) {
	var (
		c        Coupon
		id       pgtype.UUID
		sid      pgtype.UUID
		minOrder pgtype.Int8
		maxDisc  pgtype.Int8
		limit    pgtype.Int4
	)
	if err := row.Scan(&id, &sid, &c.Code, &c.Description, &c.DiscountType, &c.DiscountValue,
		&minOrder, &maxDisc, &limit, &c.UsedCount,
		&c.ValidFrom, &c.ValidUntil, &c.IsActive, &c.CreatedAt); err != nil {
		return Coupon{}, notFound(err)
	}
	c.ID = fromPGUUID(id)
	c.StoreID = fromPGUUID(sid)
	c.MinOrderValue = fromPGInt8Ptr(minOrder)
	c.MaxDiscount = fromPGInt8Ptr(maxDisc)
	c.UsageLimit = fromPGInt4Ptr(limit)
	return c, nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lojinha-dev/storefront-api/internal/shipping"
)

// GetShippingSettings loads a store's shipping configuration. Stores that
// never configured shipping get a disabled zero value rather than an error.
func (q *Queries) GetShippingSettings(ctx context.Context, storeID uuid.UUID) (shipping.Settings, error) {
	const sql = `
		SELECT enabled, pickup_enabled, pickup_message, free_shipping_threshold,
		       calculation_method, fixed_price, regions, weight_rates
		FROM shipping_settings
		WHERE store_id = $1`
	var (
		out       shipping.Settings
		threshold pgtype.Int8
		regions   []byte
		rates     []byte
	)
	row := q.db.QueryRow(ctx, sql, pgUUID(storeID))
	if err := row.Scan(&out.Enabled, &out.PickupEnabled, &out.PickupMessage,
		&threshold, &out.CalculationMethod, &out.FixedPrice,
		&regions, &rates); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shipping.Settings{}, nil
		}
		return shipping.Settings{}, err
	}
	out.FreeShippingThreshold = fromPGInt8Ptr(threshold)
	if len(regions) > 0 {
		if err := json.Unmarshal(regions, &out.Regions); err != nil {
			return shipping.Settings{}, err
		}
	}
	if len(rates) > 0 {
		if err := json.Unmarshal(rates, &out.WeightRates); err != nil {
			return shipping.Settings{}, err
		}
	}
	return out, nil
}

// UpsertShippingSettings stores the full configuration for a store.
func (q *Queries) UpsertShippingSettings(ctx context.Context, storeID uuid.UUID, s shipping.Settings) error {
	regions, err := json.Marshal(s.Regions)
	if err != nil {
		return err
	}
	rates, err := json.Marshal(s.WeightRates)
	if err != nil {
		return err
	}
	const sql = `
		INSERT INTO shipping_settings
			(store_id, enabled, pickup_enabled, pickup_message, free_shipping_threshold,
			 calculation_method, fixed_price, regions, weight_rates, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (store_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			pickup_enabled = EXCLUDED.pickup_enabled,
			pickup_message = EXCLUDED.pickup_message,
			free_shipping_threshold = EXCLUDED.free_shipping_threshold,
			calculation_method = EXCLUDED.calculation_method,
			fixed_price = EXCLUDED.fixed_price,
			regions = EXCLUDED.regions,
			weight_rates = EXCLUDED.weight_rates,
			updated_at = now()`
	_, err = q.db.Exec(ctx, sql,
		pgUUID(storeID), s.Enabled, s.PickupEnabled, s.PickupMessage,
		pgInt8Ptr(s.FreeShippingThreshold), s.CalculationMethod, s.FixedPrice,
		regions, rates,
	)
	return err
}

// GetPixSettings loads a store's PIX receiving configuration.
func (q *Queries) GetPixSettings(ctx context.Context, storeID uuid.UUID) (PixSettings, error) {
	const sql = `
		SELECT store_id, enabled, key_type, key_value, merchant_name, merchant_city
		FROM pix_settings
		WHERE store_id = $1`
	var (
		out PixSettings
		sid pgtype.UUID
	)
	row := q.db.QueryRow(ctx, sql, pgUUID(storeID))
	if err := row.Scan(&sid, &out.Enabled, &out.KeyType, &out.KeyValue, &out.MerchantName, &out.MerchantCity); err != nil {
		return PixSettings{}, notFound(err)
	}
	out.StoreID = fromPGUUID(sid)
	return out, nil
}

// UpsertPixSettings stores the PIX configuration for a store.
func (q *Queries) UpsertPixSettings(ctx context.Context, s PixSettings) error {
	const sql = `
		INSERT INTO pix_settings (store_id, enabled, key_type, key_value, merchant_name, merchant_city)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (store_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			key_type = EXCLUDED.key_type,
			key_value = EXCLUDED.key_value,
			merchant_name = EXCLUDED.merchant_name,
			merchant_city = EXCLUDED.merchant_city`
	_, err := q.db.Exec(ctx, sql,
		pgUUID(s.StoreID), s.Enabled, s.KeyType, s.KeyValue, s.MerchantName, s.MerchantCity)
	return err
}

// InsertPixCharge persists one generated charge.
func (q *Queries) InsertPixCharge(ctx context.Context, c PixCharge) error {
	const sql = `
		INSERT INTO pix_charges (id, store_id, order_id, txid, amount, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := q.db.Exec(ctx, sql,
		pgUUID(c.ID), pgUUID(c.StoreID), pgUUID(c.OrderID), c.TxID, c.Amount, c.Payload, c.Status)
	return err
}

// GetPixChargeByTxID resolves a charge from the webhook transaction id.
func (q *Queries) GetPixChargeByTxID(ctx context.Context, txid string) (PixCharge, error) {
	const sql = `
		SELECT id, store_id, order_id, txid, amount, payload, status, created_at, paid_at
		FROM pix_charges
		WHERE txid = $1`
	var (
		c      PixCharge
		id     pgtype.UUID
		sid    pgtype.UUID
		oid    pgtype.UUID
		paidAt pgtype.Timestamptz
	)
	row := q.db.QueryRow(ctx, sql, txid)
	if err := row.Scan(&id, &sid, &oid, &c.TxID, &c.Amount, &c.Payload, &c.Status, &c.CreatedAt, &paidAt); err != nil {
		return PixCharge{}, notFound(err)
	}
	c.ID = fromPGUUID(id)
	c.StoreID = fromPGUUID(sid)
	c.OrderID = fromPGUUID(oid)
	if paidAt.Valid {
		t := paidAt.Time
		c.PaidAt = &t
	}
	return c, nil
}

// MarkPixChargePaid settles a charge exactly once; ok is false when it was
// already settled or expired.
func (q *Queries) MarkPixChargePaid(ctx context.Context, chargeID uuid.UUID) (ok bool, err error) {
	const sql = `
		UPDATE pix_charges
		SET status = 'paid', paid_at = now()
		WHERE id = $1 AND status = 'pending'`
	tag, err := q.db.Exec(ctx, sql, pgUUID(chargeID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertProduct persists a product together with its variants and options.
// Callers run it inside InTx when seeding multi-row products.
func (q *Queries) InsertProduct(ctx context.Context, p Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return err
	}
	const sql = `
		INSERT INTO products (id, store_id, name, category, description, images, has_variants, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := q.db.Exec(ctx, sql,
		pgUUID(p.ID), pgUUID(p.StoreID), p.Name, p.Category, p.Description, images, p.HasVariants, p.IsActive,
	); err != nil {
		return err
	}
	for _, v := range p.Variants {
		const variantSQL = `
			INSERT INTO variants (id, product_id, name, position)
			VALUES ($1, $2, $3, $4)`
		if _, err := q.db.Exec(ctx, variantSQL, pgUUID(v.ID), pgUUID(p.ID), v.Name, v.Position); err != nil {
			return err
		}
		for _, opt := range v.Options {
			if err := q.InsertVariantOption(ctx, opt); err != nil {
				return err
			}
		}
	}
	return nil
}

// InsertVariantOption persists a single option row.
func (q *Queries) InsertVariantOption(ctx context.Context, opt VariantOption) error {
	const sql = `
		INSERT INTO variant_options
			(id, variant_id, product_id, store_id, name, sku, regular_price, promotional_price, stock, weight_grams, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := q.db.Exec(ctx, sql,
		pgUUID(opt.ID), pgUUID(opt.VariantID), pgUUID(opt.ProductID), pgUUID(opt.StoreID),
		opt.Name, opt.SKU, opt.RegularPrice, pgInt8Ptr(opt.PromotionalPrice),
		opt.Stock, opt.WeightGrams, opt.IsActive,
	)
	return err
}

// GetProduct loads one product with its variants and options, store scoped.
func (q *Queries) GetProduct(ctx context.Context, storeID, productID uuid.UUID) (Product, error) {
	const sql = `
		SELECT id, store_id, name, category, description, images, has_variants, is_active, created_at, updated_at
		FROM products
		WHERE store_id = $1 AND id = $2`
	var (
		p      Product
		id     pgtype.UUID
		sid    pgtype.UUID
		images []byte
	)
	row := q.db.QueryRow(ctx, sql, pgUUID(storeID), pgUUID(productID))
	if err := row.Scan(&id, &sid, &p.Name, &p.Category, &p.Description, &images, &p.HasVariants, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, notFound(err)
	}
	p.ID = fromPGUUID(id)
	p.StoreID = fromPGUUID(sid)
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return Product{}, err
		}
	}
	variants, err := q.listVariants(ctx, p.ID)
	if err != nil {
		return Product{}, err
	}
	p.Variants = variants
	return p, nil
}

// ListProducts returns a page of active products for a store, options included.
func (q *Queries) ListProducts(ctx context.Context, storeID uuid.UUID, limit, offset int32) ([]Product, error) {
	const sql = `
		SELECT id, store_id, name, category, description, images, has_variants, is_active, created_at, updated_at
		FROM products
		WHERE store_id = $1 AND is_active
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, sql, pgUUID(storeID), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var (
			p      Product
			id     pgtype.UUID
			sid    pgtype.UUID
			images []byte
		)
		if err := rows.Scan(&id, &sid, &p.Name, &p.Category, &p.Description, &images, &p.HasVariants, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.ID = fromPGUUID(id)
		p.StoreID = fromPGUUID(sid)
		if len(images) > 0 {
			if err := json.Unmarshal(images, &p.Images); err != nil {
				return nil, err
			}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range products {
		variants, err := q.listVariants(ctx, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Variants = variants
	}
	return products, nil
}

// CountProducts reports the number of active products for pagination headers.
func (q *Queries) CountProducts(ctx context.Context, storeID uuid.UUID) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE store_id = $1 AND is_active`, pgUUID(storeID)).Scan(&total)
	return total, err
}

// DeactivateProduct soft-deletes a product. Historical orders keep their
// references; nothing is hard-deleted.
func (q *Queries) DeactivateProduct(ctx context.Context, storeID, productID uuid.UUID) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = now() WHERE store_id = $1 AND id = $2`,
		pgUUID(storeID), pgUUID(productID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) listVariants(ctx context.Context, productID uuid.UUID) ([]Variant, error) {
	const sql = `
		SELECT id, product_id, name, position
		FROM variants
		WHERE product_id = $1
		ORDER BY position`
	rows, err := q.db.Query(ctx, sql, pgUUID(productID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var variants []Variant
	for rows.Next() {
		var (
			v   Variant
			id  pgtype.UUID
			pid pgtype.UUID
		)
		if err := rows.Scan(&id, &pid, &v.Name, &v.Position); err != nil {
			return nil, err
		}
		v.ID = fromPGUUID(id)
		v.ProductID = fromPGUUID(pid)
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range variants {
		options, err := q.listOptions(ctx, variants[i].ID)
		if err != nil {
			return nil, err
		}
		variants[i].Options = options
	}
	return variants, nil
}

func (q *Queries) listOptions(ctx context.Context, variantID uuid.UUID) ([]VariantOption, error) {
	const sql = `
		SELECT id, variant_id, product_id, store_id, name, sku, regular_price, promotional_price, stock, weight_grams, is_active
		FROM variant_options
		WHERE variant_id = $1
		ORDER BY name`
	rows, err := q.db.Query(ctx, sql, pgUUID(variantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var options []VariantOption
	for rows.Next() {
		opt, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

// GetVariantOption loads one option, store scoped.
func (q *Queries) GetVariantOption(ctx context.Context, storeID, optionID uuid.UUID) (VariantOption, error) {
	const sql = `
		SELECT id, variant_id, product_id, store_id, name, sku, regular_price, promotional_price, stock, weight_grams, is_active
		FROM variant_options
		WHERE store_id = $1 AND id = $2`
	opt, err := scanOption(q.db.QueryRow(ctx, sql, pgUUID(storeID), pgUUID(optionID)))
	if err != nil {
		return VariantOption{}, notFound(err)
	}
	return opt, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOption(row rowScanner) (VariantOption, error) {
	var (
		opt   VariantOption
		id    pgtype.UUID
		vid   pgtype.UUID
		pid   pgtype.UUID
		sid   pgtype.UUID
		promo pgtype.Int8
	)
	if err := row.Scan(&id, &vid, &pid, &sid, &opt.Name, &opt.SKU, &opt.RegularPrice, &promo, &opt.Stock, &opt.WeightGrams, &opt.IsActive); err != nil {
		return VariantOption{}, err
	}
	opt.ID = fromPGUUID(id)
	opt.VariantID = fromPGUUID(vid)
	opt.ProductID = fromPGUUID(pid)
	opt.StoreID = fromPGUUID(sid)
	opt.PromotionalPrice = fromPGInt8Ptr(promo)
	return opt, nil
}

// DecrementStock applies a conditional decrement: the write only succeeds
// when enough stock remains, which removes the read-then-write race between
// concurrent checkouts. ok reports whether the guard held.
func (q *Queries) DecrementStock(ctx context.Context, optionID uuid.UUID, qty int32) (newStock int32, ok bool, err error) {
	const sql = `
		UPDATE variant_options
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING stock`
	err = q.db.QueryRow(ctx, sql, pgUUID(optionID), qty).Scan(&newStock)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return newStock, true, nil
}

// IncrementStock restores stock; the inverse of DecrementStock.
func (q *Queries) IncrementStock(ctx context.Context, optionID uuid.UUID, qty int32) (newStock int32, err error) {
	const sql = `
		UPDATE variant_options
		SET stock = stock + $2
		WHERE id = $1
		RETURNING stock`
	err = q.db.QueryRow(ctx, sql, pgUUID(optionID), qty).Scan(&newStock)
	return newStock, notFound(err)
}

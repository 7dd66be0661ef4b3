package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lojinha-dev/storefront-api/internal/cache"
	"github.com/lojinha-dev/storefront-api/internal/pricing"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

// ErrNotFound is returned when the product does not exist for the store.
var ErrNotFound = errors.New("product not found")

// Store captures the database methods required by the catalog service.
type Store interface {
	InsertProduct(ctx context.Context, p store.Product) error
	GetProduct(ctx context.Context, storeID, productID uuid.UUID) (store.Product, error)
	ListProducts(ctx context.Context, storeID uuid.UUID, limit, offset int32) ([]store.Product, error)
	CountProducts(ctx context.Context, storeID uuid.UUID) (int64, error)
	DeactivateProduct(ctx context.Context, storeID, productID uuid.UUID) error
}

// OptionInput describes one purchasable option of a new product.
type OptionInput struct {
	Name             string `json:"name"`
	SKU              string `json:"sku"`
	Price            int64  `json:"price"`
	ComparePrice     int64  `json:"comparePrice,omitempty"`
	RegularPrice     int64  `json:"regularPrice,omitempty"`
	PromotionalPrice *int64 `json:"promotionalPrice,omitempty"`
	Stock            int32  `json:"stock"`
	WeightGrams      int64  `json:"weightGrams"`
}

// VariantInput groups options under a named dimension.
type VariantInput struct {
	Name    string        `json:"name"`
	Options []OptionInput `json:"options"`
}

// CreateInput describes a new catalog entry. Plain products without explicit
// variants get a single default variant with one option.
type CreateInput struct {
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Images      []string       `json:"images"`
	Variants    []VariantInput `json:"variants"`
}

// ListItem is the storefront list projection of a product.
type ListItem struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	MinPrice    int64     `json:"minPrice"`
	MaxPrice    int64     `json:"maxPrice"`
	InStock     bool      `json:"inStock"`
	HasVariants bool      `json:"hasVariants"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
}

// OptionView is the storefront projection of one option with resolved pricing.
type OptionView struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	SKU              string    `json:"sku"`
	CurrentPrice     int64     `json:"currentPrice"`
	OriginalPrice    int64     `json:"originalPrice,omitempty"`
	HasDiscount      bool      `json:"hasDiscount"`
	DiscountPercent  int       `json:"discountPercent,omitempty"`
	Stock            int32     `json:"stock"`
	WeightGrams      int64     `json:"weightGrams"`
	IsActive         bool      `json:"isActive"`
}

// VariantView groups option views under their dimension.
type VariantView struct {
	ID      uuid.UUID    `json:"id"`
	Name    string       `json:"name"`
	Options []OptionView `json:"options"`
}

// Detail is the storefront detail projection of a product.
type Detail struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	Images      []string      `json:"images"`
	HasVariants bool          `json:"hasVariants"`
	Variants    []VariantView `json:"variants"`
	IsActive    bool          `json:"isActive"`
}

// Page is one page of the product list.
type Page struct {
	Items      []ListItem `json:"items"`
	Page       int        `json:"page"`
	PerPage    int        `json:"perPage"`
	TotalItems int64      `json:"totalItems"`
}

// Service assembles the storefront product read model on top of the catalog
// tables, with a per-store redis cache in front of list pages and details.
type Service struct {
	Q      Store
	Cache  *Cache
	Logger zerolog.Logger
}

// Create registers a product. Legacy price/comparePrice pairs are normalized
// into the explicit regular/promotional schema on the way in.
func (s *Service) Create(ctx context.Context, storeID uuid.UUID, in CreateInput) (store.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Product{}, errors.New("name is required")
	}
	if len(in.Variants) == 0 {
		return store.Product{}, errors.New("at least one variant with one option is required")
	}
	p := store.Product{
		ID:          uuid.New(),
		StoreID:     storeID,
		Name:        name,
		Category:    strings.TrimSpace(in.Category),
		Description: in.Description,
		Images:      in.Images,
		HasVariants: len(in.Variants) > 1 || len(in.Variants[0].Options) > 1,
		IsActive:    true,
	}
	for vi, v := range in.Variants {
		if len(v.Options) == 0 {
			return store.Product{}, fmt.Errorf("variant %q has no options", v.Name)
		}
		variant := store.Variant{
			ID:        uuid.New(),
			ProductID: p.ID,
			Name:      strings.TrimSpace(v.Name),
			Position:  int32(vi),
		}
		if variant.Name == "" {
			variant.Name = "Padrão"
		}
		for _, o := range v.Options {
			regular, promotional := normalizePrices(o)
			if regular <= 0 {
				return store.Product{}, fmt.Errorf("option %q needs a positive price", o.Name)
			}
			if o.Stock < 0 {
				return store.Product{}, fmt.Errorf("option %q stock must not be negative", o.Name)
			}
			variant.Options = append(variant.Options, store.VariantOption{
				ID:               uuid.New(),
				VariantID:        variant.ID,
				ProductID:        p.ID,
				StoreID:          storeID,
				Name:             strings.TrimSpace(o.Name),
				SKU:              strings.TrimSpace(o.SKU),
				RegularPrice:     regular,
				PromotionalPrice: promotional,
				Stock:            o.Stock,
				WeightGrams:      o.WeightGrams,
				IsActive:         true,
			})
		}
		p.Variants = append(p.Variants, variant)
	}
	if err := s.Q.InsertProduct(ctx, p); err != nil {
		return store.Product{}, err
	}
	return p, nil
}

// List returns one storefront page, served from cache when warm.
func (s *Service) List(ctx context.Context, storeID uuid.UUID, page, perPage int) (Page, error) {
	key := cache.KeyCatalogList(ctx, fmt.Sprintf("catalog:list:%d:%d", page, perPage))
	var cached Page
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	} else if err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache read")
	}

	products, err := s.Q.ListProducts(ctx, storeID, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		return Page{}, err
	}
	total, err := s.Q.CountProducts(ctx, storeID)
	if err != nil {
		return Page{}, err
	}
	out := Page{Page: page, PerPage: perPage, TotalItems: total, Items: make([]ListItem, 0, len(products))}
	for _, p := range products {
		out.Items = append(out.Items, listItem(p))
	}
	if err := s.Cache.SetJSON(ctx, key, out); err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache write")
	}
	return out, nil
}

// Get returns the detail projection for one product.
func (s *Service) Get(ctx context.Context, storeID, productID uuid.UUID) (Detail, error) {
	key := cache.KeyProduct(ctx, productID)
	var cached Detail
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	} else if err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache read")
	}

	p, err := s.Q.GetProduct(ctx, storeID, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Detail{}, ErrNotFound
		}
		return Detail{}, err
	}
	d := detail(p)
	if err := s.Cache.SetJSON(ctx, key, d); err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache write")
	}
	return d, nil
}

// Deactivate soft-deletes a product so existing orders keep resolving.
func (s *Service) Deactivate(ctx context.Context, storeID, productID uuid.UUID) error {
	if err := s.Q.DeactivateProduct(ctx, storeID, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func normalizePrices(o OptionInput) (int64, *int64) {
	if o.RegularPrice > 0 {
		promotional := o.PromotionalPrice
		if promotional != nil && (*promotional <= 0 || *promotional >= o.RegularPrice) {
			promotional = nil
		}
		return o.RegularPrice, promotional
	}
	return pricing.Normalize(o.Price, o.ComparePrice)
}

func listItem(p store.Product) ListItem {
	item := ListItem{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		HasVariants: p.HasVariants,
	}
	if len(p.Images) > 0 {
		item.Thumbnail = p.Images[0]
	}
	var options []pricing.Option
	for _, v := range p.Variants {
		for _, o := range v.Options {
			options = append(options, pricing.Option{
				RegularPrice:     o.RegularPrice,
				PromotionalPrice: o.PromotionalPrice,
				Stock:            o.Stock,
				IsActive:         o.IsActive,
			})
		}
	}
	if min, max, ok := pricing.Range(options); ok {
		item.MinPrice = min
		item.MaxPrice = max
		item.InStock = true
	}
	return item
}

func detail(p store.Product) Detail {
	d := Detail{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		Images:      p.Images,
		HasVariants: p.HasVariants,
		IsActive:    p.IsActive,
	}
	for _, v := range p.Variants {
		view := VariantView{ID: v.ID, Name: v.Name}
		for _, o := range v.Options {
			quote := pricing.Resolve(o.RegularPrice, o.PromotionalPrice)
			view.Options = append(view.Options, OptionView{
				ID:              o.ID,
				Name:            o.Name,
				SKU:             o.SKU,
				CurrentPrice:    quote.CurrentPrice,
				OriginalPrice:   quote.OriginalPrice,
				HasDiscount:     quote.HasDiscount,
				DiscountPercent: quote.DiscountPercent,
				Stock:           o.Stock,
				WeightGrams:     o.WeightGrams,
				IsActive:        o.IsActive,
			})
		}
		d.Variants = append(d.Variants, view)
	}
	return d
}

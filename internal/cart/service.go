package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lojinha-dev/storefront-api/internal/coupon"
	"github.com/lojinha-dev/storefront-api/internal/pricing"
	"github.com/lojinha-dev/storefront-api/internal/shipping"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

// ErrOptionUnavailable is returned when a quoted option is missing or inactive.
var ErrOptionUnavailable = errors.New("variant option unavailable")

// Store captures the database methods required for quoting.
type Store interface {
	GetVariantOption(ctx context.Context, storeID, optionID uuid.UUID) (store.VariantOption, error)
}

// QuoteItem is one requested cart line.
type QuoteItem struct {
	VariantOptionID uuid.UUID `json:"variantOptionId"`
	Quantity        int32     `json:"quantity"`
}

// QuoteInput is the full breakdown request.
type QuoteInput struct {
	Items             []QuoteItem `json:"items"`
	ShippingOptionID  *string     `json:"shippingOptionId,omitempty"`
	DestinationRegion *string     `json:"destinationRegion,omitempty"`
	CouponCode        *string     `json:"couponCode,omitempty"`
}

// QuoteLine echoes one cart line with its resolved unit price.
type QuoteLine struct {
	VariantOptionID uuid.UUID     `json:"variantOptionId"`
	Name            string        `json:"name"`
	Quantity        int32         `json:"quantity"`
	UnitPrice       pricing.Money `json:"unitPrice"`
	LineTotal       pricing.Money `json:"lineTotal"`
	InStock         bool          `json:"inStock"`
}

// Quote is the read-only preview of what an order would cost right now.
type Quote struct {
	Lines           []QuoteLine           `json:"lines"`
	ShippingOptions []shipping.Option     `json:"shippingOptions,omitempty"`
	Coupon          *coupon.PreviewResult `json:"coupon,omitempty"`
	Breakdown       Breakdown             `json:"breakdown"`
}

// Service assembles breakdown quotes from live catalog, shipping and coupon
// state. It never mutates anything; order creation re-resolves everything
// transactionally.
type Service struct {
	Q        Store
	Shipping *shipping.Service
	Coupons  *coupon.Service
}

// Quote resolves current prices for every line, quotes shipping, previews the
// coupon and folds everything into a breakdown.
func (s *Service) Quote(ctx context.Context, storeID uuid.UUID, in QuoteInput) (Quote, error) {
	if len(in.Items) == 0 {
		return Quote{}, errors.New("items are required")
	}
	var (
		out         Quote
		items       []Item
		totalWeight int64
	)
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return Quote{}, fmt.Errorf("quantity must be positive for option %s", it.VariantOptionID)
		}
		opt, err := s.Q.GetVariantOption(ctx, storeID, it.VariantOptionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Quote{}, fmt.Errorf("option %s: %w", it.VariantOptionID, ErrOptionUnavailable)
			}
			return Quote{}, err
		}
		if !opt.IsActive {
			return Quote{}, fmt.Errorf("option %s: %w", it.VariantOptionID, ErrOptionUnavailable)
		}
		quote := pricing.Resolve(opt.RegularPrice, opt.PromotionalPrice)
		out.Lines = append(out.Lines, QuoteLine{
			VariantOptionID: opt.ID,
			Name:            opt.Name,
			Quantity:        it.Quantity,
			UnitPrice:       quote.CurrentPrice,
			LineTotal:       pricing.Money(it.Quantity) * quote.CurrentPrice,
			InStock:         opt.Stock >= it.Quantity,
		})
		items = append(items, Item{Qty: int(it.Quantity), UnitPrice: quote.CurrentPrice})
		totalWeight += opt.WeightGrams * int64(it.Quantity)
	}

	var subtotal pricing.Money
	for _, it := range items {
		subtotal += pricing.Money(it.Qty) * it.UnitPrice
	}

	var shippingCost pricing.Money
	if s.Shipping != nil {
		options, err := s.Shipping.Quote(ctx, storeID, subtotal, in.DestinationRegion, &totalWeight)
		if err != nil && !errors.Is(err, shipping.ErrUnavailable) {
			return Quote{}, err
		}
		out.ShippingOptions = options
		if in.ShippingOptionID != nil {
			selected := false
			for _, opt := range options {
				if opt.ID == *in.ShippingOptionID {
					shippingCost = opt.Price
					selected = true
					break
				}
			}
			if !selected {
				return Quote{}, shipping.ErrUnavailable
			}
		}
	}

	var discount pricing.Money
	if s.Coupons != nil && in.CouponCode != nil {
		preview, err := s.Coupons.Preview(ctx, storeID, *in.CouponCode, subtotal, shippingCost)
		if err != nil {
			return Quote{}, err
		}
		out.Coupon = &preview
		if preview.Valid {
			discount = preview.DiscountAmount
		}
	}

	out.Breakdown = Compute(items, shippingCost, discount)
	return out, nil
}

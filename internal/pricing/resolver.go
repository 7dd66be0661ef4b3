package pricing

import "math"

// Money represents a monetary value stored in minor units.
type Money = int64

// Quote is the authoritative price of a single variant option.
type Quote struct {
	CurrentPrice    Money `json:"currentPrice"`
	OriginalPrice   Money `json:"originalPrice,omitempty"`
	HasDiscount     bool  `json:"hasDiscount"`
	DiscountPercent int   `json:"discountPercentage"`
}

// Option is the minimal view of a variant option needed for pricing.
type Option struct {
	RegularPrice     Money
	PromotionalPrice *Money
	Stock            int32
	IsActive         bool
}

// Resolve computes the current price for an option whose promotional price,
// when present, is contractually lower than the regular price.
func Resolve(regular Money, promotional *Money) Quote {
	if promotional == nil || *promotional == regular {
		if regular <= 0 {
			return Quote{}
		}
		return Quote{CurrentPrice: regular}
	}
	return ResolveLegacy(regular, *promotional)
}

// ResolveLegacy accepts the historical two-field price pair where ordering is
// not guaranteed: the lower value is always the current price and the higher
// the original one, so inverted records price the same as well-formed ones.
func ResolveLegacy(price, comparePrice Money) Quote {
	if price <= 0 && comparePrice <= 0 {
		return Quote{}
	}
	if comparePrice <= 0 || price == comparePrice {
		return Quote{CurrentPrice: price}
	}
	if price <= 0 {
		return Quote{CurrentPrice: comparePrice}
	}
	current, original := price, comparePrice
	if current > original {
		current, original = original, current
	}
	pct := int(math.Round(float64(original-current) / float64(original) * 100))
	return Quote{
		CurrentPrice:    current,
		OriginalPrice:   original,
		HasDiscount:     true,
		DiscountPercent: pct,
	}
}

// Range returns the post-discount price range across active, in-stock options.
// ok is false when no option qualifies.
func Range(options []Option) (min, max Money, ok bool) {
	for _, opt := range options {
		if !opt.IsActive || opt.Stock <= 0 {
			continue
		}
		q := Resolve(opt.RegularPrice, opt.PromotionalPrice)
		if q.CurrentPrice <= 0 {
			continue
		}
		if !ok || q.CurrentPrice < min {
			min = q.CurrentPrice
		}
		if q.CurrentPrice > max {
			max = q.CurrentPrice
		}
		ok = true
	}
	return min, max, ok
}

// Normalize maps a legacy price pair onto the explicit schema: the lower value
// becomes the promotional price and the higher the regular one. comparePrice
// of zero means no promotion.
func Normalize(price, comparePrice Money) (regular Money, promotional *Money) {
	if comparePrice <= 0 || comparePrice == price {
		return price, nil
	}
	lo, hi := price, comparePrice
	if lo > hi {
		lo, hi = hi, lo
	}
	return hi, &lo
}

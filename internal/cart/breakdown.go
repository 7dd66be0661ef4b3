package cart

import "github.com/lojinha-dev/storefront-api/internal/pricing"

// Item is one cart line with its resolved unit price.
type Item struct {
	Qty       int
	UnitPrice pricing.Money
}

// Breakdown is the itemized decomposition of an order total. It is the single
// source of truth consumed both by the quote endpoint and order persistence.
type Breakdown struct {
	Subtotal       pricing.Money `json:"subtotal"`
	ShippingCost   pricing.Money `json:"shippingCost"`
	DiscountAmount pricing.Money `json:"discountAmount"`
	Total          pricing.Money `json:"total"`
}

// Compute aggregates the cart lines with the selected shipping cost and an
// already-validated discount. The total is floored at zero and the identity
// total == subtotal + shipping - discount holds after clamping.
func Compute(items []Item, shippingCost, discount pricing.Money) Breakdown {
	var subtotal pricing.Money
	for _, it := range items {
		if it.Qty <= 0 || it.UnitPrice <= 0 {
			continue
		}
		subtotal += pricing.Money(it.Qty) * it.UnitPrice
	}
	if shippingCost < 0 {
		shippingCost = 0
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal+shippingCost {
		discount = subtotal + shippingCost
	}
	return Breakdown{
		Subtotal:       subtotal,
		ShippingCost:   shippingCost,
		DiscountAmount: discount,
		Total:          subtotal + shippingCost - discount,
	}
}

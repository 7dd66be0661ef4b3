package coupon

import (
	"errors"
	"time"
)

// Discount types supported by a store's coupon catalog.
const (
	TypePercentage = "percentage"
	TypeFixed      = "fixed"
	TypeShipping   = "shipping"
)

var (
	// ErrNotFound is returned when the code does not exist for the store or is inactive.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotYetValid is returned before the coupon's validity window opens.
	ErrNotYetValid = errors.New("coupon not yet valid")
	// ErrExpired is returned after the coupon's validity window closes.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageExceeded indicates the usage quota has been exhausted.
	ErrUsageExceeded = errors.New("coupon usage limit reached")
	// ErrBelowMinimum indicates the cart subtotal does not meet the coupon requirement.
	ErrBelowMinimum = errors.New("coupon minimum order value not met")
)

// Rule captures the runtime constraints of a coupon.
type Rule struct {
	Code          string
	DiscountType  string
	DiscountValue int64
	MinOrderValue *int64
	MaxDiscount   *int64
	UsageLimit    *int32
	UsedCount     int32
	ValidFrom     time.Time
	ValidUntil    time.Time
	IsActive      bool
}

// Validate applies the eligibility checks in order, first failure wins.
func (r Rule) Validate(now time.Time, subtotal int64) error {
	if !r.IsActive {
		return ErrNotFound
	}
	if now.Before(r.ValidFrom) {
		return ErrNotYetValid
	}
	if now.After(r.ValidUntil) {
		return ErrExpired
	}
	if r.UsageLimit != nil && r.UsedCount >= *r.UsageLimit {
		return ErrUsageExceeded
	}
	if r.MinOrderValue != nil && subtotal < *r.MinOrderValue {
		return ErrBelowMinimum
	}
	return nil
}

// Compute determines the discount amount for an eligible coupon. A discount
// never exceeds the subtotal; shipping coupons zero out the selected shipping
// cost instead.
func Compute(r Rule, subtotal, shippingCost int64) int64 {
	if subtotal <= 0 && r.DiscountType != TypeShipping {
		return 0
	}
	var discount int64
	switch r.DiscountType {
	case TypePercentage:
		discount = subtotal * r.DiscountValue / 100
		if r.MaxDiscount != nil && discount > *r.MaxDiscount {
			discount = *r.MaxDiscount
		}
	case TypeFixed:
		discount = r.DiscountValue
	case TypeShipping:
		discount = shippingCost
	default:
		return 0
	}
	if r.DiscountType != TypeShipping && discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// ReasonCode maps validation errors to the wire-level reason identifiers.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrNotYetValid):
		return "NOT_YET_VALID"
	case errors.Is(err, ErrExpired):
		return "EXPIRED"
	case errors.Is(err, ErrUsageExceeded):
		return "USAGE_EXCEEDED"
	case errors.Is(err, ErrBelowMinimum):
		return "BELOW_MINIMUM"
	default:
		return "INVALID"
	}
}

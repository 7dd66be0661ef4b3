package coupon

import (
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func activeRule() Rule {
	now := time.Now()
	return Rule{
		Code:         "SAVE10",
		DiscountType: TypePercentage,
		ValidFrom:    now.Add(-time.Hour),
		ValidUntil:   now.Add(time.Hour),
		IsActive:     true,
	}
}

func TestValidateOrder(t *testing.T) {
	now := time.Now()

	inactive := activeRule()
	inactive.IsActive = false
	if err := inactive.Validate(now, 10_000); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	early := activeRule()
	early.ValidFrom = now.Add(time.Hour)
	early.ValidUntil = now.Add(2 * time.Hour)
	if err := early.Validate(now, 10_000); err != ErrNotYetValid {
		t.Fatalf("expected ErrNotYetValid, got %v", err)
	}

	late := activeRule()
	late.ValidFrom = now.Add(-2 * time.Hour)
	late.ValidUntil = now.Add(-time.Hour)
	if err := late.Validate(now, 10_000); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestValidateUsageExceededWithinDateRange(t *testing.T) {
	rule := activeRule()
	rule.UsageLimit = ptr(int32(5))
	rule.UsedCount = 5
	if err := rule.Validate(time.Now(), 10_000); err != ErrUsageExceeded {
		t.Fatalf("expected ErrUsageExceeded, got %v", err)
	}
}

func TestValidateBelowMinimum(t *testing.T) {
	rule := activeRule()
	rule.MinOrderValue = ptr(int64(20_000))
	if err := rule.Validate(time.Now(), 10_000); err != ErrBelowMinimum {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
}

func TestComputePercentageCapped(t *testing.T) {
	rule := activeRule()
	rule.DiscountValue = 10
	rule.MaxDiscount = ptr(int64(2_000))
	if got := Compute(rule, 50_000, 0); got != 2_000 {
		t.Fatalf("expected capped discount 2000, got %d", got)
	}
	rule.MaxDiscount = nil
	if got := Compute(rule, 50_000, 0); got != 5_000 {
		t.Fatalf("expected discount 5000, got %d", got)
	}
}

func TestComputeFixedClampedToSubtotal(t *testing.T) {
	rule := activeRule()
	rule.DiscountType = TypeFixed
	rule.DiscountValue = 8_000
	if got := Compute(rule, 5_000, 0); got != 5_000 {
		t.Fatalf("fixed discount must not exceed subtotal, got %d", got)
	}
}

func TestComputeShippingEqualsSelectedCost(t *testing.T) {
	rule := activeRule()
	rule.DiscountType = TypeShipping
	if got := Compute(rule, 5_000, 1_800); got != 1_800 {
		t.Fatalf("expected shipping discount 1800, got %d", got)
	}
}

func TestReasonCodes(t *testing.T) {
	cases := map[error]string{
		ErrNotFound:      "NOT_FOUND",
		ErrNotYetValid:   "NOT_YET_VALID",
		ErrExpired:       "EXPIRED",
		ErrUsageExceeded: "USAGE_EXCEEDED",
		ErrBelowMinimum:  "BELOW_MINIMUM",
	}
	for err, want := range cases {
		if got := ReasonCode(err); got != want {
			t.Fatalf("reason for %v: expected %s, got %s", err, want, got)
		}
	}
}

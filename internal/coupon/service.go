package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lojinha-dev/storefront-api/internal/obs"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

// Store captures the database methods required by the coupon service.
type Store interface {
	InsertCoupon(ctx context.Context, c store.Coupon) error
	GetCouponByCode(ctx context.Context, storeID uuid.UUID, code string) (store.Coupon, error)
	ListCoupons(ctx context.Context, storeID uuid.UUID, limit, offset int32) ([]store.Coupon, error)
	DeactivateCoupon(ctx context.Context, storeID, couponID uuid.UUID) error
}

// CreateInput describes a new coupon to register for a store.
type CreateInput struct {
	Code          string     `json:"code"`
	Description   string     `json:"description"`
	DiscountType  string     `json:"discountType"`
	DiscountValue int64      `json:"discountValue"`
	MinOrderValue *int64     `json:"minOrderValue"`
	MaxDiscount   *int64     `json:"maxDiscount"`
	UsageLimit    *int32     `json:"usageLimit"`
	ValidFrom     *time.Time `json:"validFrom"`
	ValidUntil    *time.Time `json:"validUntil"`
}

// PreviewResult describes the outcome of evaluating a coupon without mutating state.
type PreviewResult struct {
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason,omitempty"`
	Code           string `json:"code"`
	DiscountType   string `json:"discountType,omitempty"`
	DiscountAmount int64  `json:"discountAmount"`
}

// Service encapsulates coupon management and dry-run evaluation.
type Service struct {
	Q   Store
	Now func() time.Time
}

// Create registers a coupon after validating its shape. Codes are stored
// case-insensitively; lookups upper-case on the way in.
func (s *Service) Create(ctx context.Context, storeID uuid.UUID, in CreateInput) (store.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code == "" {
		return store.Coupon{}, errors.New("code is required")
	}
	switch in.DiscountType {
	case TypePercentage:
		if in.DiscountValue <= 0 || in.DiscountValue > 100 {
			return store.Coupon{}, errors.New("percentage value must be between 1 and 100")
		}
	case TypeFixed:
		if in.DiscountValue <= 0 {
			return store.Coupon{}, errors.New("fixed value must be positive")
		}
	case TypeShipping:
	default:
		return store.Coupon{}, errors.New("invalid discount type")
	}
	now := s.now()
	validFrom := now
	if in.ValidFrom != nil {
		validFrom = *in.ValidFrom
	}
	validUntil := now.AddDate(1, 0, 0)
	if in.ValidUntil != nil {
		validUntil = *in.ValidUntil
	}
	if !validUntil.After(validFrom) {
		return store.Coupon{}, errors.New("validUntil must be after validFrom")
	}
	c := store.Coupon{
		ID:            uuid.New(),
		StoreID:       storeID,
		Code:          code,
		Description:   strings.TrimSpace(in.Description),
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		MinOrderValue: in.MinOrderValue,
		MaxDiscount:   in.MaxDiscount,
		UsageLimit:    in.UsageLimit,
		ValidFrom:     validFrom,
		ValidUntil:    validUntil,
		IsActive:      true,
		CreatedAt:     now,
	}
	if err := s.Q.InsertCoupon(ctx, c); err != nil {
		return store.Coupon{}, err
	}
	return c, nil
}

// List returns the store's coupons, newest first.
func (s *Service) List(ctx context.Context, storeID uuid.UUID, limit, offset int32) ([]store.Coupon, error) {
	return s.Q.ListCoupons(ctx, storeID, limit, offset)
}

// Deactivate retires a coupon without deleting its redemption history.
func (s *Service) Deactivate(ctx context.Context, storeID, couponID uuid.UUID) error {
	return s.Q.DeactivateCoupon(ctx, storeID, couponID)
}

// Preview performs a dry-run evaluation for the given cart totals. It never
// consumes usage; redemption happens inside order creation.
func (s *Service) Preview(ctx context.Context, storeID uuid.UUID, code string, subtotal, shippingCost int64) (PreviewResult, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return PreviewResult{Reason: ReasonCode(ErrNotFound)}, nil
	}
	c, err := s.Q.GetCouponByCode(ctx, storeID, trimmed)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.countRedemption("not_found")
			return PreviewResult{Code: strings.ToUpper(trimmed), Reason: ReasonCode(ErrNotFound)}, nil
		}
		return PreviewResult{}, err
	}
	rule := RuleFromModel(c)
	if err := rule.Validate(s.now(), subtotal); err != nil {
		s.countRedemption("rejected")
		return PreviewResult{Code: c.Code, Reason: ReasonCode(err)}, nil
	}
	s.countRedemption("eligible")
	return PreviewResult{
		Valid:          true,
		Code:           c.Code,
		DiscountType:   c.DiscountType,
		DiscountAmount: Compute(rule, subtotal, shippingCost),
	}, nil
}

func (s *Service) countRedemption(result string) {
	if obs.CouponRedemptionsTotal != nil {
		obs.CouponRedemptionsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RuleFromModel converts the persisted coupon into an evaluation rule.
func RuleFromModel(c store.Coupon) Rule {
	return Rule{
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		MinOrderValue: c.MinOrderValue,
		MaxDiscount:   c.MaxDiscount,
		UsageLimit:    c.UsageLimit,
		UsedCount:     c.UsedCount,
		ValidFrom:     c.ValidFrom,
		ValidUntil:    c.ValidUntil,
		IsActive:      c.IsActive,
	}
}

package store

import (
	"time"

	"github.com/google/uuid"
)

// Product is a store's catalog entry. Identity is immutable; mutable fields
// are edited by the owning store's operator. Products are soft-deleted so
// historical orders keep resolving.
type Product struct {
	ID          uuid.UUID
	StoreID     uuid.UUID
	Name        string
	Category    string
	Description string
	Images      []string
	HasVariants bool
	Variants    []Variant
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Variant is a selectable product dimension (e.g. "Size"). Every product has
// at least one variant with one option; that option is the unit of price and
// stock.
type Variant struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Name      string
	Position  int32
	Options   []VariantOption
}

// VariantOption is one concrete choice inside a variant. PromotionalPrice,
// when present, is contractually lower than RegularPrice; legacy records with
// inverted price pairs are normalized at the boundary.
type VariantOption struct {
	ID               uuid.UUID
	VariantID        uuid.UUID
	ProductID        uuid.UUID
	StoreID          uuid.UUID
	Name             string
	SKU              string
	RegularPrice     int64
	PromotionalPrice *int64
	Stock            int32
	WeightGrams      int64
	IsActive         bool
}

// Coupon is a store-issued discount code.
type Coupon struct {
	ID            uuid.UUID
	StoreID       uuid.UUID
	Code          string
	Description   string
	DiscountType  string
	DiscountValue int64
	MinOrderValue *int64
	MaxDiscount   *int64
	UsageLimit    *int32
	UsedCount     int32
	ValidFrom     time.Time
	ValidUntil    time.Time
	IsActive      bool
	CreatedAt     time.Time
}

// CustomerInfo is the buyer snapshot frozen into an order.
type CustomerInfo struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
}

// ShippingSelection is the delivery option snapshot frozen into an order.
type ShippingSelection struct {
	OptionID         string `json:"optionId"`
	Name             string `json:"name"`
	Price            int64  `json:"price"`
	DeliveryEstimate string `json:"deliveryEstimate,omitempty"`
	Region           string `json:"region,omitempty"`
}

// OrderItem is one frozen order line. Unit prices are resolved at creation
// time and never recomputed from current product prices.
type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ProductID       uuid.UUID
	VariantOptionID uuid.UUID
	Name            string
	SKU             string
	Quantity        int32
	UnitPrice       int64
	LineTotal       int64
}

// Order is an immutable transaction record except for status, payment status
// and timestamps.
type Order struct {
	ID             uuid.UUID
	StoreID        uuid.UUID
	Customer       CustomerInfo
	Items          []OrderItem
	Status         string
	PaymentStatus  string
	Shipping       *ShippingSelection
	CouponCode     *string
	Subtotal       int64
	ShippingCost   int64
	DiscountAmount int64
	Total          int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Stock movement directions.
const (
	MovementIn  = "in"
	MovementOut = "out"
)

// StockMovement is one append-only audit entry for an option's stock.
type StockMovement struct {
	ID              uuid.UUID
	StoreID         uuid.UUID
	ProductID       uuid.UUID
	VariantOptionID uuid.UUID
	Type            string
	Quantity        int32
	Reason          string
	OrderID         *uuid.UUID
	CreatedBy       string
	CreatedAt       time.Time
}

// PixSettings holds a store's PIX receiving configuration.
type PixSettings struct {
	StoreID      uuid.UUID
	Enabled      bool
	KeyType      string
	KeyValue     string
	MerchantName string
	MerchantCity string
}

// PIX charge states.
const (
	PixChargePending = "pending"
	PixChargePaid    = "paid"
	PixChargeExpired = "expired"
)

// PixCharge is one generated PIX charge for a pending order.
type PixCharge struct {
	ID        uuid.UUID
	StoreID   uuid.UUID
	OrderID   uuid.UUID
	TxID      string
	Amount    int64
	Payload   string
	Status    string
	CreatedAt time.Time
	PaidAt    *time.Time
}

// StockTotal pairs the materialized stock projection with the ledger sum for
// one option; used by the reconciliation audit.
type StockTotal struct {
	VariantOptionID uuid.UUID
	ProductID       uuid.UUID
	Stock           int32
	MovementSum     int64
}

// LowStockRow is one entry of the low-stock report.
type LowStockRow struct {
	VariantOptionID uuid.UUID
	ProductID       uuid.UUID
	ProductName     string
	OptionName      string
	SKU             string
	Stock           int32
}

// DomainEvent is one persisted domain event row.
type DomainEvent struct {
	ID          uuid.UUID
	StoreID     uuid.UUID
	Topic       string
	AggregateID uuid.UUID
	Payload     []byte
	OccurredAt  time.Time
}

// WebhookEndpoint is a merchant-configured destination for domain events.
type WebhookEndpoint struct {
	ID        uuid.UUID
	StoreID   uuid.UUID
	URL       string
	Secret    string
	Topics    []string
	IsActive  bool
	CreatedAt time.Time
}

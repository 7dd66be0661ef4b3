package order

import "errors"

// Status is the fulfilment state of an order.
type Status string

// Fulfilment states, in their fixed forward ordering.
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus is the independent payment axis.
type PaymentStatus string

// Payment states.
const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// ErrInvalidTransition is returned for out-of-order status changes.
var ErrInvalidTransition = errors.New("invalid order status transition")

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusPreparing: 2,
	StatusShipped:   3,
	StatusDelivered: 4,
}

// ValidStatus reports whether s is a known fulfilment state.
func ValidStatus(s Status) bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanCancel reports whether an order in the given state may be cancelled.
// Shipped and delivered orders cannot; cancellation of a cancelled order is
// handled as an idempotent no-op by the service.
func CanCancel(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing:
		return true
	default:
		return false
	}
}

// CanAdvance reports whether next is the immediate forward successor of
// current. Skipping states or moving backwards is rejected, never clamped.
func CanAdvance(current, next Status) bool {
	cr, ok := statusRank[current]
	if !ok {
		return false
	}
	nr, ok := statusRank[next]
	if !ok {
		return false
	}
	return nr == cr+1
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentConfirmed, PaymentFailed},
	PaymentConfirmed: {PaymentRefunded},
	PaymentFailed:    {},
	PaymentRefunded:  {},
}

// CanTransitionPayment validates the payment axis independently of fulfilment.
func CanTransitionPayment(current, next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

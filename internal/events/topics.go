package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated           = "order.created"
	TopicOrderConfirmed         = "order.confirmed"
	TopicOrderCancelled         = "order.cancelled"
	TopicOrderStatusChanged     = "order.status_changed"
	TopicPaymentConfirmed       = "payment.confirmed"
	TopicPixChargeCreated       = "payment.pix_charge_created"
	TopicInventoryLowStock      = "inventory.low_stock"
	TopicInventoryInconsistency = "inventory.inconsistency"
)

// DefaultTopics returns the canonical list of topics downstream consumers can
// subscribe to.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderConfirmed,
		TopicOrderCancelled,
		TopicOrderStatusChanged,
		TopicPaymentConfirmed,
		TopicPixChargeCreated,
		TopicInventoryLowStock,
		TopicInventoryInconsistency,
	}
}

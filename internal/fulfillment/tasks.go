// Package fulfillment implements the order payment workflow and its
// downstream side effects: inventory decrement, seller commission
// calculation and notification fan-out, each running as an independent
// queued task after payment confirmation.
package fulfillment

import "github.com/google/uuid"

// Named queues consumed by the worker pool.
const (
	QueueOrders        = "orders"
	QueueInventory     = "inventory"
	QueueCommissions   = "commissions"
	QueueNotifications = "notifications"
	QueueEmails        = "emails"
)

// Task types dispatched by the orchestrator.
const (
	TypeProcessPayment        = "order.process_payment"
	TypeUpdateInventory       = "order.update_inventory"
	TypeCalculateCommissions  = "order.calculate_commissions"
	TypeGenerateNotifications = "order.generate_notifications"
	TypeSendConfirmationEmail = "order.send_confirmation_email"
	TypeSendLowStockAlert     = "product.low_stock_alert"
)

// Queues lists every queue the fulfillment worker consumes.
func Queues() []string {
	return []string{QueueOrders, QueueInventory, QueueCommissions, QueueNotifications, QueueEmails}
}

// PaymentConfirmation is the payload of a payment-processing task.
type PaymentConfirmation struct {
	OrderID          uuid.UUID `json:"order_id"`
	PaymentReference string    `json:"payment_reference"`
}

// OrderRef addresses a downstream task at a confirmed order.
type OrderRef struct {
	OrderID uuid.UUID `json:"order_id"`
}

// LowStockAlert addresses a low-stock notification at a product.
type LowStockAlert struct {
	ProductID uuid.UUID `json:"product_id"`
}

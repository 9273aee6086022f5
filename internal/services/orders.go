package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/models"
)

// Lifecycle errors reported to handlers.
var (
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrTrackingRequired  = errors.New("tracking number is required")
)

// validTransitions maps each order status to the statuses reachable
// from it. Cancelled and refunded are side exits from every non-terminal
// state; confirm is additionally idempotent from confirmed.
var validTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusConfirmed, models.OrderStatusCancelled, models.OrderStatusRefunded},
	models.OrderStatusConfirmed:  {models.OrderStatusConfirmed, models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusCancelled, models.OrderStatusRefunded},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled, models.OrderStatusRefunded},
	models.OrderStatusShipped:    {models.OrderStatusDelivered, models.OrderStatusCancelled, models.OrderStatusRefunded},
	models.OrderStatusDelivered:  {models.OrderStatusRefunded},
}

// CanTransition reports whether an order may move between two statuses.
func CanTransition(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderService owns the named lifecycle transitions of an order. Every
// transition validates the source state; invalid attempts are rejected
// with ErrInvalidTransition.
type OrderService struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB, clk clock.Clock) *OrderService {
	return &OrderService{db: db, clock: clk}
}

// Get loads an order with items and user.
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").Preload("User").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Confirm moves an order to confirmed, stamping confirmed_at once.
func (s *OrderService) Confirm(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, models.OrderStatusConfirmed) {
		return nil, fmt.Errorf("%w: %s -> confirmed", ErrInvalidTransition, order.Status)
	}

	updates := map[string]interface{}{"status": models.OrderStatusConfirmed}
	if order.ConfirmedAt == nil {
		updates["confirmed_at"] = s.clock.Now()
	}
	return s.apply(ctx, order, updates)
}

// Ship marks the order shipped. A non-empty tracking number is required.
func (s *OrderService) Ship(ctx context.Context, id uuid.UUID, trackingNumber, shippingMethod string) (*models.Order, error) {
	if trackingNumber == "" {
		return nil, ErrTrackingRequired
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, models.OrderStatusShipped) {
		return nil, fmt.Errorf("%w: %s -> shipped", ErrInvalidTransition, order.Status)
	}

	return s.apply(ctx, order, map[string]interface{}{
		"status":          models.OrderStatusShipped,
		"tracking_number": trackingNumber,
		"shipping_method": shippingMethod,
		"shipped_at":      s.clock.Now(),
	})
}

// ShipItem marks one seller's line item shipped with its own tracking
// number.
func (s *OrderService) ShipItem(ctx context.Context, itemID uuid.UUID, trackingNumber string) (*models.OrderItem, error) {
	if trackingNumber == "" {
		return nil, ErrTrackingRequired
	}

	var item models.OrderItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	if !CanTransition(item.Status, models.OrderStatusShipped) {
		return nil, fmt.Errorf("%w: item %s -> shipped", ErrInvalidTransition, item.Status)
	}

	now := s.clock.Now()
	if err := s.db.WithContext(ctx).Model(&item).Updates(map[string]interface{}{
		"status":          models.OrderStatusShipped,
		"tracking_number": trackingNumber,
		"shipped_at":      now,
	}).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Deliver marks a shipped order delivered.
func (s *OrderService) Deliver(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, models.OrderStatusDelivered) {
		return nil, fmt.Errorf("%w: %s -> delivered", ErrInvalidTransition, order.Status)
	}

	return s.apply(ctx, order, map[string]interface{}{
		"status":       models.OrderStatusDelivered,
		"delivered_at": s.clock.Now(),
	})
}

// Cancel moves any non-terminal order to cancelled and records the
// reason in admin notes. Inventory already decremented and commissions
// already created are NOT reversed here; reconciliation of those is a
// manual operator task.
func (s *OrderService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, models.OrderStatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, order.Status)
	}

	updates := map[string]interface{}{
		"status":       models.OrderStatusCancelled,
		"cancelled_at": s.clock.Now(),
	}
	if reason != "" {
		updates["admin_notes"] = appendNote(order.AdminNotes, "Cancelled: "+reason)
	}
	return s.apply(ctx, order, updates)
}

// Refund refunds an order; amount defaults to the full total.
func (s *OrderService) Refund(ctx context.Context, id uuid.UUID, amount *decimal.Decimal, reason string) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, models.OrderStatusRefunded) {
		return nil, fmt.Errorf("%w: %s -> refunded", ErrInvalidTransition, order.Status)
	}

	refund := order.TotalAmount
	if amount != nil {
		refund = *amount
	}

	return s.apply(ctx, order, map[string]interface{}{
		"status":         models.OrderStatusRefunded,
		"payment_status": models.PaymentStatusRefunded,
		"refund_amount":  refund,
		"refund_reason":  reason,
		"refunded_at":    s.clock.Now(),
	})
}

// UpdateStatus performs an admin-driven transition to an arbitrary
// allowed status.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status, notes string) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}

	updates := map[string]interface{}{"status": status}
	if notes != "" {
		updates["admin_notes"] = appendNote(order.AdminNotes, notes)
	}
	return s.apply(ctx, order, updates)
}

// MarkPaymentFailed handles the failed branch of the payment webhook:
// the order is cancelled and the payment marked failed without the
// fulfillment pipeline ever running.
func (s *OrderService) MarkPaymentFailed(ctx context.Context, id uuid.UUID, paymentReference string) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentStatusPaid || order.IsTerminal() {
		return nil, fmt.Errorf("%w: %s/%s -> payment failed", ErrInvalidTransition, order.Status, order.PaymentStatus)
	}

	return s.apply(ctx, order, map[string]interface{}{
		"status":            models.OrderStatusCancelled,
		"payment_status":    models.PaymentStatusFailed,
		"payment_reference": paymentReference,
		"cancelled_at":      s.clock.Now(),
	})
}

// Invoice is the rendered invoice summary for an order.
type Invoice struct {
	InvoiceNumber string          `json:"invoice_number"`
	Order         *models.Order   `json:"order"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// GenerateInvoice builds an invoice for the order.
func (s *OrderService) GenerateInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Invoice{
		InvoiceNumber: "INV-" + order.OrderNumber,
		Order:         order,
		TotalAmount:   order.TotalAmount,
		GeneratedAt:   s.clock.Now(),
	}, nil
}

func (s *OrderService) apply(ctx context.Context, order *models.Order, updates map[string]interface{}) (*models.Order, error) {
	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, order.ID)
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

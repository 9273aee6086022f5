package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/queue"
)

// ErrScheduleFailed wraps enqueue errors so callers can tell a failed
// dispatch apart from the task's own eventual failure.
var ErrScheduleFailed = errors.New("fulfillment: task scheduling failed")

// Orchestrator sequences payment confirmation and the downstream
// pipeline. The payment state transition commits in one transaction;
// only after a successful commit are the inventory, commission and
// notification tasks scheduled.
type Orchestrator struct {
	db     *gorm.DB
	broker queue.Broker
	clock  clock.Clock
	cfg    config.Fulfillment
	hooks  []func(order *models.Order)
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(db *gorm.DB, broker queue.Broker, clk clock.Clock, cfg config.Fulfillment) *Orchestrator {
	return &Orchestrator{db: db, broker: broker, clock: clk, cfg: cfg}
}

// AfterPaymentCommit registers a hook invoked after the payment
// transaction commits, before downstream tasks are scheduled. Hooks run
// synchronously and must not assume the downstream steps have executed.
func (o *Orchestrator) AfterPaymentCommit(hook func(order *models.Order)) {
	o.hooks = append(o.hooks, hook)
}

// SchedulePayment enqueues the payment-processing task for an order.
func (o *Orchestrator) SchedulePayment(ctx context.Context, orderID uuid.UUID, paymentReference string) error {
	t, err := queue.NewTask(QueueOrders, TypeProcessPayment, PaymentConfirmation{
		OrderID:          orderID,
		PaymentReference: paymentReference,
	})
	if err != nil {
		return err
	}
	t.MaxRetries = o.cfg.PaymentRetries
	t.Timeout = o.cfg.PaymentTimeout
	t.RunAt = o.clock.Now().Add(o.cfg.PaymentDelay)

	if err := o.broker.Enqueue(ctx, t); err != nil {
		return fmt.Errorf("%w: %v", ErrScheduleFailed, err)
	}
	return nil
}

// ProcessPayment marks the order paid and confirmed in one transaction,
// cascades line item statuses, then schedules the downstream tasks.
// A second delivery for an already paid order is a no-op, even when the
// order has since advanced past confirmed, so the monetary and status
// changes never double-apply and the pipeline is scheduled once.
func (o *Orchestrator) ProcessPayment(ctx context.Context, pc PaymentConfirmation) error {
	var order models.Order
	if err := o.db.WithContext(ctx).Preload("Items").
		First(&order, "id = ?", pc.OrderID).Error; err != nil {
		return fmt.Errorf("load order %s: %w", pc.OrderID, err)
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		log.Printf("[Fulfillment] order %s already paid, skipping", order.OrderNumber)
		return nil
	}

	now := o.clock.Now()
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":            models.OrderStatusConfirmed,
			"payment_status":    models.PaymentStatusPaid,
			"payment_reference": pc.PaymentReference,
		}
		if order.PaidAt == nil {
			updates["paid_at"] = now
		}
		if order.ConfirmedAt == nil {
			updates["confirmed_at"] = now
		}

		if err := tx.Model(&models.Order{}).
			Where("id = ?", order.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		return tx.Model(&models.OrderItem{}).
			Where("order_id = ?", order.ID).
			Update("status", models.OrderStatusConfirmed).Error
	})
	if err != nil {
		return fmt.Errorf("process payment for order %s: %w", order.OrderNumber, err)
	}

	log.Printf("[Fulfillment] order %s payment processed", order.OrderNumber)

	for _, hook := range o.hooks {
		hook(&order)
	}

	return o.scheduleDownstream(ctx, order.ID)
}

// scheduleDownstream enqueues the confirmation email and the three
// independent pipeline steps with staggered delays. No ordering is
// guaranteed among them.
func (o *Orchestrator) scheduleDownstream(ctx context.Context, orderID uuid.UUID) error {
	now := o.clock.Now()
	ref := OrderRef{OrderID: orderID}

	steps := []struct {
		queueName string
		taskType  string
		delay     time.Duration
		retries   int
	}{
		{QueueEmails, TypeSendConfirmationEmail, o.cfg.EmailDelay, o.cfg.EmailRetries},
		{QueueInventory, TypeUpdateInventory, o.cfg.InventoryDelay, o.cfg.StepRetries},
		{QueueCommissions, TypeCalculateCommissions, o.cfg.CommissionDelay, o.cfg.StepRetries},
		{QueueNotifications, TypeGenerateNotifications, o.cfg.NotificationDelay, o.cfg.StepRetries},
	}

	var errs []error
	for _, step := range steps {
		t, err := queue.NewTask(step.queueName, step.taskType, ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t.MaxRetries = step.retries
		t.Timeout = o.cfg.StepTimeout
		t.RunAt = now.Add(step.delay)

		if err := o.broker.Enqueue(ctx, t); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.taskType, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrScheduleFailed, errors.Join(errs...))
	}
	return nil
}

// HandleProcessPayment adapts ProcessPayment to the queue handler shape.
func (o *Orchestrator) HandleProcessPayment(ctx context.Context, t *queue.Task) error {
	var pc PaymentConfirmation
	if err := t.Bind(&pc); err != nil {
		return err
	}
	return o.ProcessPayment(ctx, pc)
}

// HandlePaymentFailure is the terminal-failure hook for the payment
// task: it cancels the order and records the failure for an operator.
// An order that did reach the paid state is left untouched; in that case
// the retries were burnt on downstream scheduling, which is safe to
// replay manually.
func (o *Orchestrator) HandlePaymentFailure(ctx context.Context, t *queue.Task) error {
	var pc PaymentConfirmation
	if err := t.Bind(&pc); err != nil {
		return err
	}

	var order models.Order
	if err := o.db.WithContext(ctx).First(&order, "id = ?", pc.OrderID).Error; err != nil {
		return fmt.Errorf("load order %s: %w", pc.OrderID, err)
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		log.Printf("[Fulfillment] payment task for paid order %s exhausted retries, not cancelling", order.OrderNumber)
		return nil
	}

	now := o.clock.Now()
	err := o.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":         models.OrderStatusCancelled,
			"payment_status": models.PaymentStatusFailed,
			"cancelled_at":   now,
			"admin_notes":    "Payment processing failed: " + t.LastError,
		}).Error
	if err != nil {
		return fmt.Errorf("mark order %s failed: %w", order.OrderNumber, err)
	}

	log.Printf("[Fulfillment] order %s cancelled after payment failure: %s", order.OrderNumber, t.LastError)
	return nil
}

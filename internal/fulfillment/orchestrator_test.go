package fulfillment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/queue"
)

func TestSchedulePayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	buyer := e.createBuyer(t, "Ada", "ada@example.com")
	seller := e.createSeller(t, "Ada Shop", "shop@example.com", "10.00")
	product := e.createProduct(t, seller, "SKU-1", "10.00", 10, 2, true)
	order := e.createOrder(t, buyer, orderLine{product, 1})

	require.NoError(t, e.pipeline.Orchestrator.SchedulePayment(ctx, order.ID, "PAY-TEST123"))

	pending := e.broker.Pending(QueueOrders)
	require.Len(t, pending, 1)
	task := pending[0]
	assert.Equal(t, TypeProcessPayment, task.Type)
	assert.Equal(t, 3, task.MaxRetries)
	assert.Equal(t, e.clk.Now().Add(testConfig().PaymentDelay), task.RunAt)

	var pc PaymentConfirmation
	require.NoError(t, task.Bind(&pc))
	assert.Equal(t, order.ID, pc.OrderID)
	assert.Equal(t, "PAY-TEST123", pc.PaymentReference)
}

func TestProcessPaymentConfirmsOrderAndSchedulesDownstream(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	buyer := e.createBuyer(t, "Ada", "ada@example.com")
	seller := e.createSeller(t, "Ada Shop", "shop@example.com", "10.00")
	product := e.createProduct(t, seller, "SKU-1", "10.00", 10, 2, true)
	order := e.createOrder(t, buyer, orderLine{product, 2})

	require.NoError(t, e.pipeline.Orchestrator.ProcessPayment(ctx, PaymentConfirmation{
		OrderID:          order.ID,
		PaymentReference: "PAY-ABC",
	}))

	fresh := e.reloadOrder(t, order)
	assert.Equal(t, models.OrderStatusConfirmed, fresh.Status)
	assert.Equal(t, models.PaymentStatusPaid, fresh.PaymentStatus)
	assert.Equal(t, "PAY-ABC", fresh.PaymentReference)
	require.NotNil(t, fresh.PaidAt)
	require.NotNil(t, fresh.ConfirmedAt)
	assert.True(t, fresh.PaidAt.Equal(e.clk.Now()))
	for _, item := range fresh.Items {
		assert.Equal(t, models.OrderStatusConfirmed, item.Status)
	}

	cfg := testConfig()
	now := e.clk.Now()

	email := taskOfType(e.broker.Pending(QueueEmails), TypeSendConfirmationEmail)
	require.NotNil(t, email)
	assert.Equal(t, now.Add(cfg.EmailDelay), email.RunAt)

	inventory := taskOfType(e.broker.Pending(QueueInventory), TypeUpdateInventory)
	require.NotNil(t, inventory)
	assert.Equal(t, now.Add(cfg.InventoryDelay), inventory.RunAt)

	commissions := taskOfType(e.broker.Pending(QueueCommissions), TypeCalculateCommissions)
	require.NotNil(t, commissions)
	assert.Equal(t, now.Add(cfg.CommissionDelay), commissions.RunAt)

	notifications := taskOfType(e.broker.Pending(QueueNotifications), TypeGenerateNotifications)
	require.NotNil(t, notifications)
	assert.Equal(t, now.Add(cfg.NotificationDelay), notifications.RunAt)
}

func TestProcessPaymentIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	buyer := e.createBuyer(t, "Ada", "ada@example.com")
	seller := e.createSeller(t, "Ada Shop", "shop@example.com", "10.00")
	product := e.createProduct(t, seller, "SKU-1", "10.00", 10, 2, true)
	order := e.createOrder(t, buyer, orderLine{product, 1})

	pc := PaymentConfirmation{OrderID: order.ID, PaymentReference: "PAY-ABC"}
	require.NoError(t, e.pipeline.Orchestrator.ProcessPayment(ctx, pc))

	first := e.reloadOrder(t, order)
	require.NotNil(t, first.PaidAt)

	// Second delivery of the same confirmation.
	e.clk.Advance(testConfig().PaymentDelay)
	require.NoError(t, e.pipeline.Orchestrator.ProcessPayment(ctx, pc))

	second := e.reloadOrder(t, order)
	assert.True(t, first.PaidAt.Equal(*second.PaidAt))

	// No extra downstream tasks were scheduled.
	assert.Len(t, e.broker.Pending(QueueEmails), 1)
	assert.Len(t, e.broker.Pending(QueueInventory), 1)
	assert.Len(t, e.broker.Pending(QueueCommissions), 1)
	assert.Len(t, e.broker.Pending(QueueNotifications), 1)
}

func TestProcessPaymentIgnoresDuplicateAfterOrderAdvances(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	buyer := e.createBuyer(t, "Ada", "ada@example.com")
	seller := e.createSeller(t, "Ada Shop", "shop@example.com", "10.00")
	product := e.createProduct(t, seller, "SKU-1", "10.00", 10, 2, true)
	order := e.createOrder(t, buyer, orderLine{product, 1})

	pc := PaymentConfirmation{OrderID: order.ID, PaymentReference: "PAY-ABC"}
	require.NoError(t, e.pipeline.Orchestrator.ProcessPayment(ctx, pc))

	// The order moves on before the gateway replays the confirmation.
	require.NoError(t, e.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", models.OrderStatusProcessing).Error)

	require.NoError(t, e.pipeline.Orchestrator.ProcessPayment(ctx, pc))

	fresh := e.reloadOrder(t, order)
	assert.Equal(t, models.OrderStatusProcessing, fresh.Status)
	assert.Equal(t, models.PaymentStatusPaid, fresh.PaymentStatus)
	assert.Len(t, e.broker.Pending(QueueInventory), 1)
	assert.Len(t, e.broker.Pending(QueueNotifications), 1)
}

func TestProcessPaymentRunsHooksAfterCommit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	buyer := e.createBuyer(t, "Ada", "ada@example.com")
	seller := e.createSeller(t, "Ada Shop", "shop@example.com", "10.00")
	product := e.createProduct(t, seller, "SKU-1", "10.00", 10, 2, true)
	order := e.createOrder(t, buyer, orderLine{product, 1})

	var hookOrderNumber string
	e.pipeline.Orchestrator.AfterPaymentCommit(func(o *models.Order) {
		hookOrderNumber = o.OrderNumber
	})

	require.NoError(t, e.pipeline.Orchestrator.ProcessPayment(ctx, PaymentConfirmation{
		OrderID:          order.ID,
		PaymentReference: "PAY-ABC",
	}))
	assert.Equal(t, order.OrderNumber, hookOrderNumber)
}

func TestHandlePaymentFailureCancelsUnpaidOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	buyer := e.createBuyer(t, "Ada", "ada@example.com")
	seller := e.createSeller(t, "Ada Shop", "shop@example.com", "10.00")
	product := e.createProduct(t, seller, "SKU-1", "10.00", 10, 2, true)
	order := e.createOrder(t, buyer, orderLine{product, 1})

	task, err := queue.NewTask(QueueOrders, TypeProcessPayment, PaymentConfirmation{
		OrderID:          order.ID,
		PaymentReference: "PAY-ABC",
	})
	require.NoError(t, err)
	task.LastError = "gateway timeout"

	require.NoError(t, e.pipeline.Orchestrator.HandlePaymentFailure(ctx, task))

	fresh := e.reloadOrder(t, order)
	assert.Equal(t, models.OrderStatusCancelled, fresh.Status)
	assert.Equal(t, models.PaymentStatusFailed, fresh.PaymentStatus)
	require.NotNil(t, fresh.CancelledAt)
	assert.Contains(t, fresh.AdminNotes, "gateway timeout")
}

func TestHandlePaymentFailureLeavesPaidOrderAlone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	buyer := e.createBuyer(t, "Ada", "ada@example.com")
	seller := e.createSeller(t, "Ada Shop", "shop@example.com", "10.00")
	product := e.createProduct(t, seller, "SKU-1", "10.00", 10, 2, true)
	order := e.createOrder(t, buyer, orderLine{product, 1})

	require.NoError(t, e.pipeline.Orchestrator.ProcessPayment(ctx, PaymentConfirmation{
		OrderID:          order.ID,
		PaymentReference: "PAY-ABC",
	}))

	task, err := queue.NewTask(QueueOrders, TypeProcessPayment, PaymentConfirmation{
		OrderID:          order.ID,
		PaymentReference: "PAY-ABC",
	})
	require.NoError(t, err)
	task.LastError = "enqueue blip"

	require.NoError(t, e.pipeline.Orchestrator.HandlePaymentFailure(ctx, task))

	fresh := e.reloadOrder(t, order)
	assert.Equal(t, models.OrderStatusConfirmed, fresh.Status)
	assert.Equal(t, models.PaymentStatusPaid, fresh.PaymentStatus)
}

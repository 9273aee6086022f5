package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bazaar/internal/models"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{models.OrderStatusPending, models.OrderStatusConfirmed},
		{models.OrderStatusPending, models.OrderStatusCancelled},
		{models.OrderStatusConfirmed, models.OrderStatusConfirmed},
		{models.OrderStatusConfirmed, models.OrderStatusProcessing},
		{models.OrderStatusConfirmed, models.OrderStatusShipped},
		{models.OrderStatusProcessing, models.OrderStatusShipped},
		{models.OrderStatusShipped, models.OrderStatusDelivered},
		{models.OrderStatusDelivered, models.OrderStatusRefunded},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}

	rejected := []struct{ from, to string }{
		{models.OrderStatusPending, models.OrderStatusShipped},
		{models.OrderStatusPending, models.OrderStatusDelivered},
		{models.OrderStatusShipped, models.OrderStatusConfirmed},
		{models.OrderStatusDelivered, models.OrderStatusCancelled},
		{models.OrderStatusCancelled, models.OrderStatusConfirmed},
		{models.OrderStatusRefunded, models.OrderStatusConfirmed},
	}
	for _, tr := range rejected {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestConfirmStampsConfirmedAtOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusPending)

	confirmed, err := f.orders.Confirm(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, confirmed.ConfirmedAt)
	firstStamp := *confirmed.ConfirmedAt

	// A repeat confirm keeps the original timestamp.
	f.clk.Advance(time.Hour)
	again, err := f.orders.Confirm(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, again.ConfirmedAt)
	assert.True(t, firstStamp.Equal(*again.ConfirmedAt))
}

func TestShipRequiresTrackingNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusConfirmed)

	_, err := f.orders.Ship(ctx, order.ID, "", "courier")
	require.ErrorIs(t, err, ErrTrackingRequired)

	shipped, err := f.orders.Ship(ctx, order.ID, "TRK-42", "courier")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, shipped.Status)
	assert.Equal(t, "TRK-42", shipped.TrackingNumber)
	assert.Equal(t, "courier", shipped.ShippingMethod)
	require.NotNil(t, shipped.ShippedAt)
}

func TestShipRejectsPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusPending)

	_, err := f.orders.Ship(ctx, order.ID, "TRK-42", "courier")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestShipItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusConfirmed)

	item, err := f.orders.ShipItem(ctx, order.Items[0].ID, "TRK-ITEM")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, item.Status)

	_, err = f.orders.ShipItem(ctx, order.Items[0].ID, "")
	require.ErrorIs(t, err, ErrTrackingRequired)
}

func TestDeliverOnlyFromShipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusShipped)

	delivered, err := f.orders.Deliver(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)

	_, err = f.orders.Deliver(ctx, delivered.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelRecordsReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusConfirmed)

	cancelled, err := f.orders.Cancel(ctx, order.ID, "customer request")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Contains(t, cancelled.AdminNotes, "Cancelled: customer request")
}

func TestCancelRejectsDeliveredOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusDelivered)

	_, err := f.orders.Cancel(ctx, order.ID, "too late")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRefundDefaultsToFullTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusDelivered)

	refunded, err := f.orders.Refund(ctx, order.ID, nil, "damaged in transit")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, refunded.Status)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.PaymentStatus)
	require.NotNil(t, refunded.RefundAmount)
	assert.True(t, refunded.RefundAmount.Equal(order.TotalAmount))
	assert.Equal(t, "damaged in transit", refunded.RefundReason)
}

func TestPartialRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusDelivered)

	partial := decimal.RequireFromString("10.00")
	refunded, err := f.orders.Refund(ctx, order.ID, &partial, "one item returned")
	require.NoError(t, err)
	require.NotNil(t, refunded.RefundAmount)
	assert.True(t, refunded.RefundAmount.Equal(partial))
}

func TestMarkPaymentFailedCancelsPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusPending)

	failed, err := f.orders.MarkPaymentFailed(ctx, order.ID, "PAY-FAILED")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, failed.Status)
	assert.Equal(t, models.PaymentStatusFailed, failed.PaymentStatus)
	assert.Equal(t, "PAY-FAILED", failed.PaymentReference)
	require.NotNil(t, failed.CancelledAt)

	// The failed branch never touches the fulfillment pipeline.
	assert.Empty(t, f.broker.Pending("orders"))
	assert.Empty(t, f.broker.Pending("inventory"))
}

func TestMarkPaymentFailedRejectsPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusConfirmed)
	require.NoError(t, f.db.Model(order).Update("payment_status", models.PaymentStatusPaid).Error)

	_, err := f.orders.MarkPaymentFailed(ctx, order.ID, "PAY-LATE")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGenerateInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusConfirmed)

	invoice, err := f.orders.GenerateInvoice(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-"+order.OrderNumber, invoice.InvoiceNumber)
	assert.True(t, invoice.TotalAmount.Equal(order.TotalAmount))
	assert.True(t, invoice.GeneratedAt.Equal(f.clk.Now()))
}

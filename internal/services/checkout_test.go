package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bazaar/internal/fulfillment"
	"github.com/example/bazaar/internal/models"
)

func TestCreateOrderFromExplicitItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cheap := f.createProduct(t, "SKU-A", "10.00", 20)
	pricey := f.createProduct(t, "SKU-B", "20.00", 20)

	order, err := f.checkout.CreateOrder(ctx, f.buyer.ID, CheckoutInput{
		Items: []CheckoutItem{
			{ProductID: cheap.ID, Quantity: 2},
			{ProductID: pricey.ID, Quantity: 3},
		},
		ShippingAddress: f.defaultAddress(),
		TaxAmount:       decimal.RequireFromString("4.00"),
		ShippingAmount:  decimal.RequireFromString("5.00"),
		DiscountAmount:  decimal.RequireFromString("9.00"),
		PaymentMethod:   "card",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.OrderNumber)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "80.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "80.00", order.TotalAmount.StringFixed(2))
	assert.True(t, order.TotalsConsistent())

	require.Len(t, order.Items, 2)
	item := order.Items[0]
	assert.Equal(t, cheap.Name, item.ProductName)
	assert.Equal(t, "SKU-A", item.ProductSKU)
	assert.True(t, item.UnitPrice.Equal(cheap.Price))
	assert.Equal(t, "10.00", item.CommissionRate.StringFixed(2))

	var shipping models.OrderAddress
	require.NoError(t, json.Unmarshal(order.ShippingAddress, &shipping))
	assert.Equal(t, "Ada Lovelace", shipping.Name)

	// Billing defaults to the shipping address.
	var billing models.OrderAddress
	require.NoError(t, json.Unmarshal(order.BillingAddress, &billing))
	assert.Equal(t, shipping, billing)
}

func TestCreateOrderSchedulesPaymentTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.createProduct(t, "SKU-A", "10.00", 20)

	order, err := f.checkout.CreateOrder(ctx, f.buyer.ID, CheckoutInput{
		Items:           []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: f.defaultAddress(),
	})
	require.NoError(t, err)

	pending := f.broker.Pending("orders")
	require.Len(t, pending, 1)
	assert.Equal(t, "order.process_payment", pending[0].Type)

	var pc fulfillment.PaymentConfirmation
	require.NoError(t, pending[0].Bind(&pc))
	assert.Equal(t, order.ID, pc.OrderID)
	assert.NotEmpty(t, pc.PaymentReference)
}

func TestCreateOrderFromCartDrainsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.createProduct(t, "SKU-A", "10.00", 20)

	cart := models.Cart{UserID: f.buyer.ID}
	require.NoError(t, f.db.Create(&cart).Error)
	require.NoError(t, f.db.Create(&models.CartItem{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  3,
	}).Error)

	order, err := f.checkout.CreateOrder(ctx, f.buyer.ID, CheckoutInput{
		FromCart:        true,
		ShippingAddress: f.defaultAddress(),
	})
	require.NoError(t, err)
	assert.Equal(t, "30.00", order.TotalAmount.StringFixed(2))

	var remaining int64
	require.NoError(t, f.db.Model(&models.CartItem{}).
		Where("cart_id = ?", cart.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.checkout.CreateOrder(ctx, f.buyer.ID, CheckoutInput{
		FromCart:        true,
		ShippingAddress: f.defaultAddress(),
	})
	require.ErrorIs(t, err, ErrEmptyOrder)
}

func TestCreateOrderRequiresAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.createProduct(t, "SKU-A", "10.00", 20)

	_, err := f.checkout.CreateOrder(ctx, f.buyer.ID, CheckoutInput{
		Items: []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrAddressRequired)
}

func TestCreateOrderUsesSavedAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.createProduct(t, "SKU-A", "10.00", 20)

	saved := models.UserAddress{
		UserID:      f.buyer.ID,
		Name:        "Ada Lovelace",
		AddressLine: "12 Analytical Way",
		City:        "London",
		PostalCode:  "N1 7EU",
		Country:     "GB",
	}
	require.NoError(t, f.db.Create(&saved).Error)

	order, err := f.checkout.CreateOrder(ctx, f.buyer.ID, CheckoutInput{
		Items:             []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
		ShippingAddressID: &saved.ID,
	})
	require.NoError(t, err)

	var shipping models.OrderAddress
	require.NoError(t, json.Unmarshal(order.ShippingAddress, &shipping))
	assert.Equal(t, "12 Analytical Way", shipping.AddressLine)
}

func TestCreateOrderRejectsInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.createProduct(t, "SKU-A", "10.00", 2)

	_, err := f.checkout.CreateOrder(ctx, f.buyer.ID, CheckoutInput{
		Items:           []CheckoutItem{{ProductID: product.ID, Quantity: 3}},
		ShippingAddress: f.defaultAddress(),
	})
	require.ErrorIs(t, err, ErrProductUnavailable)

	// Nothing was persisted and no payment was scheduled.
	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
	assert.Empty(t, f.broker.Pending("orders"))
}

func TestCreateOrderRejectsUnapprovedSeller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.createProduct(t, "SKU-A", "10.00", 20)
	require.NoError(t, f.db.Model(f.seller).Update("status", models.SellerStatusSuspended).Error)

	_, err := f.checkout.CreateOrder(ctx, f.buyer.ID, CheckoutInput{
		Items:           []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: f.defaultAddress(),
	})
	require.ErrorIs(t, err, ErrSellerNotApproved)
}

func TestCreateOrderReportsSchedulingFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.createProduct(t, "SKU-A", "10.00", 20)

	f.broker.Close()

	order, err := f.checkout.CreateOrder(ctx, f.buyer.ID, CheckoutInput{
		Items:           []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: f.defaultAddress(),
	})
	require.ErrorIs(t, err, ErrPaymentNotScheduled)

	// The order itself was committed and stays pending.
	require.NotNil(t, order)
	var fresh models.Order
	require.NoError(t, f.db.First(&fresh, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, fresh.Status)
	assert.Equal(t, models.PaymentStatusPending, fresh.PaymentStatus)
}

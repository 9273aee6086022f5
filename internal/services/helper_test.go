package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/database"
	"github.com/example/bazaar/internal/fulfillment"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/queue"
	"github.com/example/bazaar/internal/utils"
)

type fixture struct {
	db       *gorm.DB
	clk      *clock.Frozen
	broker   *queue.MemoryBroker
	orders   *OrderService
	checkout *CheckoutService

	buyer  *models.User
	seller *models.Seller
}

func testFulfillmentConfig() config.Fulfillment {
	return config.Fulfillment{
		PaymentDelay:      5 * time.Second,
		EmailDelay:        10 * time.Second,
		InventoryDelay:    20 * time.Second,
		CommissionDelay:   30 * time.Second,
		NotificationDelay: 40 * time.Second,
		LowStockDelay:     5 * time.Minute,

		PaymentRetries: 3,
		StepRetries:    3,
		EmailRetries:   2,

		PaymentTimeout: 2 * time.Minute,
		StepTimeout:    time.Minute,

		CommissionDuePeriod:   7 * 24 * time.Hour,
		DefaultCommissionRate: decimal.RequireFromString("10.00"),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	clk := clock.NewFrozen(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	broker := queue.NewMemoryBroker()
	cfg := testFulfillmentConfig()
	orchestrator := fulfillment.NewOrchestrator(db, broker, clk, cfg)

	f := &fixture{
		db:       db,
		clk:      clk,
		broker:   broker,
		orders:   NewOrderService(db, clk),
		checkout: NewCheckoutService(db, clk, orchestrator, cfg.DefaultCommissionRate),
	}

	buyer := models.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, db.Create(&buyer).Error)
	f.buyer = &buyer

	sellerUser := models.User{Name: "Shop Owner", Email: "owner@example.com", PasswordHash: "x", Role: models.RoleSeller}
	require.NoError(t, db.Create(&sellerUser).Error)
	seller := models.Seller{
		UserID:         sellerUser.ID,
		StoreName:      "Test Shop",
		Slug:           "test-shop",
		Status:         models.SellerStatusApproved,
		CommissionRate: decimal.RequireFromString("10.00"),
	}
	require.NoError(t, db.Create(&seller).Error)
	f.seller = &seller

	return f
}

func (f *fixture) createProduct(t *testing.T, sku, price string, qty int) *models.Product {
	t.Helper()

	product := models.Product{
		SellerID:      f.seller.ID,
		Name:          "Product " + sku,
		Slug:          utils.Slugify("product-" + sku),
		SKU:           sku,
		Price:         decimal.RequireFromString(price),
		StockQuantity: qty,
		MinStockLevel: 2,
		TrackStock:    true,
		Status:        models.ProductStatusActive,
		StockStatus:   models.StockStatusInStock,
	}
	require.NoError(t, f.db.Create(&product).Error)
	return &product
}

func (f *fixture) createOrder(t *testing.T, status string) *models.Order {
	t.Helper()

	product := f.createProduct(t, fmt.Sprintf("SKU-%d", time.Now().UnixNano()), "25.00", 10)
	total := product.Price.Mul(decimal.NewFromInt(2))

	order := models.Order{
		OrderNumber:   utils.GenerateOrderNumber(time.Now()),
		UserID:        f.buyer.ID,
		Status:        status,
		PaymentStatus: models.PaymentStatusPending,
		Currency:      "USD",
		Subtotal:      total,
		TotalAmount:   total,
		Items: []models.OrderItem{{
			ProductID:      product.ID,
			SellerID:       f.seller.ID,
			ProductName:    product.Name,
			ProductSKU:     product.SKU,
			Quantity:       2,
			UnitPrice:      product.Price,
			TotalPrice:     total,
			CommissionRate: f.seller.CommissionRate,
			Status:         status,
		}},
	}
	require.NoError(t, f.db.Create(&order).Error)
	return &order
}

func (f *fixture) defaultAddress() *models.OrderAddress {
	return &models.OrderAddress{
		Name:        "Ada Lovelace",
		AddressLine: "12 Analytical Way",
		City:        "London",
		PostalCode:  "N1 7EU",
		Country:     "GB",
	}
}

package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"sync"
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
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/queue"
	"github.com/example/bazaar/internal/utils"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type mailRecorder struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *mailRecorder) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *mailRecorder) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMail, len(m.sent))
	copy(out, m.sent)
	return out
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testConfig() config.Fulfillment {
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

type env struct {
	db       *gorm.DB
	broker   *queue.MemoryBroker
	clk      *clock.Frozen
	mail     *mailRecorder
	pipeline *Pipeline
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := testDB(t)
	broker := queue.NewMemoryBroker()
	clk := clock.NewFrozen(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	mail := &mailRecorder{}

	return &env{
		db:       db,
		broker:   broker,
		clk:      clk,
		mail:     mail,
		pipeline: NewPipeline(db, broker, clk, mail, testConfig()),
	}
}

func (e *env) createBuyer(t *testing.T, name, email string) *models.User {
	t.Helper()

	user := models.User{Name: name, Email: email, PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, e.db.Create(&user).Error)
	return &user
}

func (e *env) createSeller(t *testing.T, storeName, email, rate string) *models.Seller {
	t.Helper()

	user := models.User{Name: storeName, Email: email, PasswordHash: "x", Role: models.RoleSeller}
	require.NoError(t, e.db.Create(&user).Error)

	seller := models.Seller{
		UserID:         user.ID,
		StoreName:      storeName,
		Slug:           utils.Slugify(storeName),
		Status:         models.SellerStatusApproved,
		CommissionRate: decimal.RequireFromString(rate),
	}
	require.NoError(t, e.db.Create(&seller).Error)
	seller.User = &user
	return &seller
}

func (e *env) createProduct(t *testing.T, seller *models.Seller, sku, price string, qty, minLevel int, track bool) *models.Product {
	t.Helper()

	product := models.Product{
		SellerID:      seller.ID,
		Name:          "Product " + sku,
		Slug:          utils.Slugify("product-" + sku),
		SKU:           sku,
		Price:         decimal.RequireFromString(price),
		StockQuantity: qty,
		MinStockLevel: minLevel,
		TrackStock:    track,
		Status:        models.ProductStatusActive,
	}
	product.StockStatus = models.StockStatusFor(qty, minLevel, track)
	require.NoError(t, e.db.Create(&product).Error)
	if !track {
		// TrackStock carries default:true, so gorm drops the zero-value
		// false on insert; write it explicitly.
		require.NoError(t, e.db.Model(&product).Update("track_stock", false).Error)
	}
	return &product
}

type orderLine struct {
	product  *models.Product
	quantity int
}

func (e *env) createOrder(t *testing.T, buyer *models.User, lines ...orderLine) *models.Order {
	t.Helper()

	order := models.Order{
		OrderNumber:   utils.GenerateOrderNumber(time.Now()),
		UserID:        buyer.ID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		Currency:      "USD",
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		totalPrice := line.product.Price.Mul(decimal.NewFromInt(int64(line.quantity)))
		subtotal = subtotal.Add(totalPrice)

		var seller models.Seller
		require.NoError(t, e.db.First(&seller, "id = ?", line.product.SellerID).Error)

		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.product.ID,
			SellerID:       line.product.SellerID,
			ProductName:    line.product.Name,
			ProductSKU:     line.product.SKU,
			Quantity:       line.quantity,
			UnitPrice:      line.product.Price,
			TotalPrice:     totalPrice,
			CommissionRate: line.product.EffectiveCommissionRate(&seller),
			Status:         models.OrderStatusPending,
		})
	}
	order.Subtotal = subtotal
	order.TotalAmount = subtotal

	require.NoError(t, e.db.Create(&order).Error)
	return &order
}

func (e *env) reloadOrder(t *testing.T, order *models.Order) *models.Order {
	t.Helper()

	var fresh models.Order
	require.NoError(t, e.db.Preload("Items").First(&fresh, "id = ?", order.ID).Error)
	return &fresh
}

func (e *env) reloadProduct(t *testing.T, product *models.Product) *models.Product {
	t.Helper()

	var fresh models.Product
	require.NoError(t, e.db.First(&fresh, "id = ?", product.ID).Error)
	return &fresh
}

func taskOfType(tasks []*queue.Task, taskType string) *queue.Task {
	for _, task := range tasks {
		if task.Type == taskType {
			return task
		}
	}
	return nil
}

package fulfillment

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/queue"
)

// InventoryUpdater consumes a confirmed order and decrements stock for
// each tracked product, recomputing the stock status and bumping sales
// counters. The whole order applies in one transaction; a failure on any
// item rolls back the batch for a clean retry.
type InventoryUpdater struct {
	db     *gorm.DB
	broker queue.Broker
	clock  clock.Clock
	cfg    config.Fulfillment
}

// NewInventoryUpdater constructs an InventoryUpdater.
func NewInventoryUpdater(db *gorm.DB, broker queue.Broker, clk clock.Clock, cfg config.Fulfillment) *InventoryUpdater {
	return &InventoryUpdater{db: db, broker: broker, clock: clk, cfg: cfg}
}

// Apply decrements stock for every tracked product in the order,
// floored at zero. The order's inventory_applied_at marker is written in
// the same transaction, so a re-delivered task never double-decrements.
func (u *InventoryUpdater) Apply(ctx context.Context, orderID uuid.UUID) error {
	var lowStock []uuid.UUID

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			return fmt.Errorf("load order %s: %w", orderID, err)
		}

		if order.InventoryAppliedAt != nil {
			log.Printf("[Inventory] order %s already applied, skipping", order.OrderNumber)
			return nil
		}

		for _, item := range order.Items {
			var product models.Product
			if err := tx.First(&product, "id = ?", item.ProductID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					continue
				}
				return fmt.Errorf("load product %s: %w", item.ProductID, err)
			}

			if !product.TrackStock {
				continue
			}

			// Self-relative decrement so concurrent orders cannot lose
			// updates; the CASE keeps the quantity floored at zero.
			if err := tx.Model(&models.Product{}).
				Where("id = ?", product.ID).
				Updates(map[string]interface{}{
					"stock_quantity": gorm.Expr(
						"CASE WHEN stock_quantity > ? THEN stock_quantity - ? ELSE 0 END",
						item.Quantity, item.Quantity),
					"total_sales": gorm.Expr("total_sales + ?", item.Quantity),
				}).Error; err != nil {
				return fmt.Errorf("decrement stock for %s: %w", product.SKU, err)
			}

			// Re-read inside the transaction to derive the status from
			// the post-decrement quantity.
			var updated models.Product
			if err := tx.First(&updated, "id = ?", product.ID).Error; err != nil {
				return fmt.Errorf("reload product %s: %w", product.ID, err)
			}

			status := models.StockStatusFor(updated.StockQuantity, updated.MinStockLevel, updated.TrackStock)
			if status != updated.StockStatus {
				if err := tx.Model(&models.Product{}).
					Where("id = ?", product.ID).
					Update("stock_status", status).Error; err != nil {
					return fmt.Errorf("update stock status for %s: %w", product.SKU, err)
				}
			}

			if status == models.StockStatusLowStock {
				lowStock = append(lowStock, product.ID)
			}
		}

		return tx.Model(&models.Order{}).
			Where("id = ?", order.ID).
			Update("inventory_applied_at", u.clock.Now()).Error
	})
	if err != nil {
		return err
	}

	for _, productID := range lowStock {
		if err := u.scheduleLowStockAlert(ctx, productID); err != nil {
			// Alerting is advisory; never fail the inventory pass over it.
			log.Printf("[Inventory] low stock alert for %s not scheduled: %v", productID, err)
		}
	}

	log.Printf("[Inventory] order %s inventory applied", orderID)
	return nil
}

func (u *InventoryUpdater) scheduleLowStockAlert(ctx context.Context, productID uuid.UUID) error {
	t, err := queue.NewTask(QueueNotifications, TypeSendLowStockAlert, LowStockAlert{ProductID: productID})
	if err != nil {
		return err
	}
	t.MaxRetries = u.cfg.EmailRetries
	t.Timeout = u.cfg.StepTimeout
	t.RunAt = u.clock.Now().Add(u.cfg.LowStockDelay)
	return u.broker.Enqueue(ctx, t)
}

// HandleUpdateInventory adapts Apply to the queue handler shape.
func (u *InventoryUpdater) HandleUpdateInventory(ctx context.Context, t *queue.Task) error {
	var ref OrderRef
	if err := t.Bind(&ref); err != nil {
		return err
	}
	return u.Apply(ctx, ref.OrderID)
}

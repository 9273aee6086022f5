package fulfillment

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/queue"
)

var oneHundred = decimal.NewFromInt(100)

// CommissionCalculator consumes a confirmed order and computes, per
// seller, the platform commission and net earnings, persisting exactly
// one SellerCommission row per seller per order.
type CommissionCalculator struct {
	db    *gorm.DB
	clock clock.Clock
	cfg   config.Fulfillment
}

// NewCommissionCalculator constructs a CommissionCalculator.
func NewCommissionCalculator(db *gorm.DB, clk clock.Clock, cfg config.Fulfillment) *CommissionCalculator {
	return &CommissionCalculator{db: db, clock: clk, cfg: cfg}
}

type sellerTotals struct {
	sellerID   uuid.UUID
	totalPrice decimal.Decimal
	commission decimal.Decimal
	earnings   decimal.Decimal
	rateSum    decimal.Decimal
	itemCount  int64
}

// Calculate updates every order item with its commission split and
// creates one aggregated SellerCommission per seller. The whole
// calculation is a single transaction; a commission row already existing
// for the order makes the call a no-op, and the unique index on
// (seller_id, order_id) backstops concurrent duplicates.
func (c *CommissionCalculator) Calculate(ctx context.Context, orderID uuid.UUID) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			return fmt.Errorf("load order %s: %w", orderID, err)
		}

		var existing int64
		if err := tx.Model(&models.SellerCommission{}).
			Where("order_id = ?", order.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			log.Printf("[Commissions] order %s already calculated, skipping", order.OrderNumber)
			return nil
		}

		totals := make(map[uuid.UUID]*sellerTotals)
		var sellerOrder []uuid.UUID

		for _, item := range order.Items {
			commissionAmount := item.TotalPrice.Mul(item.CommissionRate).Div(oneHundred).Round(2)
			sellerEarnings := item.TotalPrice.Sub(commissionAmount)

			if err := tx.Model(&models.OrderItem{}).
				Where("id = ?", item.ID).
				Updates(map[string]interface{}{
					"commission_amount": commissionAmount,
					"seller_earnings":   sellerEarnings,
				}).Error; err != nil {
				return fmt.Errorf("update item %s: %w", item.ID, err)
			}

			agg, ok := totals[item.SellerID]
			if !ok {
				agg = &sellerTotals{sellerID: item.SellerID}
				totals[item.SellerID] = agg
				sellerOrder = append(sellerOrder, item.SellerID)
			}
			agg.totalPrice = agg.totalPrice.Add(item.TotalPrice)
			agg.commission = agg.commission.Add(commissionAmount)
			agg.earnings = agg.earnings.Add(sellerEarnings)
			agg.rateSum = agg.rateSum.Add(item.CommissionRate)
			agg.itemCount++
		}

		dueDate := c.clock.Now().Add(c.cfg.CommissionDuePeriod)
		for _, sellerID := range sellerOrder {
			agg := totals[sellerID]
			commission := models.SellerCommission{
				SellerID:         agg.sellerID,
				OrderID:          order.ID,
				TotalAmount:      agg.totalPrice,
				CommissionAmount: agg.commission,
				SellerEarnings:   agg.earnings,
				CommissionRate:   agg.rateSum.Div(decimal.NewFromInt(agg.itemCount)).Round(2),
				Status:           models.CommissionStatusPending,
				DueDate:          dueDate,
			}
			if err := tx.Create(&commission).Error; err != nil {
				return fmt.Errorf("create commission for seller %s: %w", sellerID, err)
			}
		}

		log.Printf("[Commissions] order %s: %d seller commission(s) created", order.OrderNumber, len(sellerOrder))
		return nil
	})
}

// HandleCalculateCommissions adapts Calculate to the queue handler shape.
func (c *CommissionCalculator) HandleCalculateCommissions(ctx context.Context, t *queue.Task) error {
	var ref OrderRef
	if err := t.Bind(&ref); err != nil {
		return err
	}
	return c.Calculate(ctx, ref.OrderID)
}

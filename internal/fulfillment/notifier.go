package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/queue"
)

// Mailer delivers a rendered message to one recipient. Implementations
// log failures; a mail error never affects order state.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier consumes a confirmed order and produces one grouped in-app
// notification per seller plus buyer/seller emails. It also handles the
// delayed low-stock alerts scheduled by the inventory step.
type Notifier struct {
	db     *gorm.DB
	mailer Mailer
}

// NewNotifier constructs a Notifier.
func NewNotifier(db *gorm.DB, mailer Mailer) *Notifier {
	return &Notifier{db: db, mailer: mailer}
}

type newOrderPayload struct {
	OrderID      uuid.UUID       `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ItemsCount   int             `json:"items_count"`
	CustomerName string          `json:"customer_name"`
}

type sellerGroup struct {
	sellerID uuid.UUID
	items    []models.OrderItem
	total    decimal.Decimal
}

func groupBySeller(items []models.OrderItem) []*sellerGroup {
	groups := make(map[uuid.UUID]*sellerGroup)
	var order []uuid.UUID
	for _, item := range items {
		g, ok := groups[item.SellerID]
		if !ok {
			g = &sellerGroup{sellerID: item.SellerID}
			groups[item.SellerID] = g
			order = append(order, item.SellerID)
		}
		g.items = append(g.items, item)
		g.total = g.total.Add(item.TotalPrice)
	}

	out := make([]*sellerGroup, 0, len(order))
	for _, id := range order {
		out = append(out, groups[id])
	}
	return out
}

// GenerateSellerNotifications creates one new-order notification per
// seller involved in the order and bumps each seller's cumulative sales
// counters. Counters use self-relative increments so concurrent orders
// do not lose updates.
func (n *Notifier) GenerateSellerNotifications(ctx context.Context, orderID uuid.UUID) error {
	var order models.Order
	if err := n.db.WithContext(ctx).Preload("Items").Preload("User").
		First(&order, "id = ?", orderID).Error; err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}

	customerName := ""
	if order.User != nil {
		customerName = order.User.Name
	}

	return n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, g := range groupBySeller(order.Items) {
			payload, err := json.Marshal(newOrderPayload{
				OrderID:      order.ID,
				OrderNumber:  order.OrderNumber,
				TotalAmount:  g.total,
				ItemsCount:   len(g.items),
				CustomerName: customerName,
			})
			if err != nil {
				return fmt.Errorf("marshal notification payload: %w", err)
			}

			notification := models.SellerNotification{
				SellerID: g.sellerID,
				Type:     models.NotificationTypeNewOrder,
				Title:    "New order received",
				Message: fmt.Sprintf("You received order %s with %d item(s) totalling $%s",
					order.OrderNumber, len(g.items), g.total.StringFixed(2)),
				Data: datatypes.JSON(payload),
			}
			if err := tx.Create(&notification).Error; err != nil {
				return fmt.Errorf("create notification for seller %s: %w", g.sellerID, err)
			}

			if err := tx.Model(&models.Seller{}).
				Where("id = ?", g.sellerID).
				Updates(map[string]interface{}{
					"total_sales":   gorm.Expr("total_sales + ?", len(g.items)),
					"total_revenue": gorm.Expr("total_revenue + ?", g.total),
				}).Error; err != nil {
				return fmt.Errorf("update seller %s counters: %w", g.sellerID, err)
			}
		}

		log.Printf("[Notifications] order %s: seller notifications created", order.OrderNumber)
		return nil
	})
}

// SendOrderEmails sends the buyer confirmation plus one grouped
// new-order email per seller.
func (n *Notifier) SendOrderEmails(ctx context.Context, orderID uuid.UUID) error {
	var order models.Order
	if err := n.db.WithContext(ctx).Preload("Items").Preload("User").
		First(&order, "id = ?", orderID).Error; err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}

	if order.User != nil && order.User.Email != "" {
		subject := fmt.Sprintf("Order %s confirmed", order.OrderNumber)
		body := fmt.Sprintf("Thanks for your purchase, %s! Order %s for $%s has been confirmed.",
			order.User.Name, order.OrderNumber, order.TotalAmount.StringFixed(2))
		if err := n.mailer.Send(ctx, order.User.Email, subject, body); err != nil {
			return fmt.Errorf("buyer email for order %s: %w", order.OrderNumber, err)
		}
	}

	for _, g := range groupBySeller(order.Items) {
		var seller models.Seller
		if err := n.db.WithContext(ctx).Preload("User").
			First(&seller, "id = ?", g.sellerID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return fmt.Errorf("load seller %s: %w", g.sellerID, err)
		}

		to := seller.PayoutEmail
		if to == "" && seller.User != nil {
			to = seller.User.Email
		}
		if to == "" {
			continue
		}

		subject := fmt.Sprintf("New order %s", order.OrderNumber)
		body := fmt.Sprintf("%s: you sold %d item(s) in order %s for $%s.",
			seller.StoreName, len(g.items), order.OrderNumber, g.total.StringFixed(2))
		if err := n.mailer.Send(ctx, to, subject, body); err != nil {
			return fmt.Errorf("seller email for order %s: %w", order.OrderNumber, err)
		}
	}

	log.Printf("[Notifications] order %s: confirmation emails sent", order.OrderNumber)
	return nil
}

// SendLowStockAlert emails the product's seller and records a low-stock
// notification.
func (n *Notifier) SendLowStockAlert(ctx context.Context, productID uuid.UUID) error {
	var product models.Product
	if err := n.db.WithContext(ctx).Preload("Seller").Preload("Seller.User").
		First(&product, "id = ?", productID).Error; err != nil {
		return fmt.Errorf("load product %s: %w", productID, err)
	}

	if product.Seller == nil {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"product_id":      product.ID,
		"sku":             product.SKU,
		"stock_quantity":  product.StockQuantity,
		"min_stock_level": product.MinStockLevel,
	})
	if err != nil {
		return fmt.Errorf("marshal low stock payload: %w", err)
	}

	notification := models.SellerNotification{
		SellerID: product.SellerID,
		Type:     models.NotificationTypeLowStock,
		Title:    "Low stock warning",
		Message: fmt.Sprintf("Product %s (%s) is down to %d unit(s)",
			product.Name, product.SKU, product.StockQuantity),
		Data: datatypes.JSON(payload),
	}
	if err := n.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return fmt.Errorf("create low stock notification: %w", err)
	}

	to := product.Seller.PayoutEmail
	if to == "" && product.Seller.User != nil {
		to = product.Seller.User.Email
	}
	if to != "" {
		subject := fmt.Sprintf("Low stock: %s", product.SKU)
		body := fmt.Sprintf("Product %s is down to %d unit(s); minimum level is %d.",
			product.Name, product.StockQuantity, product.MinStockLevel)
		if err := n.mailer.Send(ctx, to, subject, body); err != nil {
			return fmt.Errorf("low stock email for %s: %w", product.SKU, err)
		}
	}

	log.Printf("[Notifications] low stock alert sent for %s", product.SKU)
	return nil
}

// HandleGenerateNotifications adapts GenerateSellerNotifications to the
// queue handler shape.
func (n *Notifier) HandleGenerateNotifications(ctx context.Context, t *queue.Task) error {
	var ref OrderRef
	if err := t.Bind(&ref); err != nil {
		return err
	}
	return n.GenerateSellerNotifications(ctx, ref.OrderID)
}

// HandleSendConfirmationEmail adapts SendOrderEmails to the queue
// handler shape.
func (n *Notifier) HandleSendConfirmationEmail(ctx context.Context, t *queue.Task) error {
	var ref OrderRef
	if err := t.Bind(&ref); err != nil {
		return err
	}
	return n.SendOrderEmails(ctx, ref.OrderID)
}

// HandleLowStockAlert adapts SendLowStockAlert to the queue handler shape.
func (n *Notifier) HandleLowStockAlert(ctx context.Context, t *queue.Task) error {
	var alert LowStockAlert
	if err := t.Bind(&alert); err != nil {
		return err
	}
	return n.SendLowStockAlert(ctx, alert.ProductID)
}

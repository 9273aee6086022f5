package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/fulfillment"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

// Checkout errors reported to handlers.
var (
	ErrEmptyOrder         = errors.New("order has no items")
	ErrProductUnavailable = errors.New("product is not available for purchase")
	ErrSellerNotApproved  = errors.New("seller is not approved")
	ErrAddressRequired    = errors.New("shipping address is required")

	// ErrPaymentNotScheduled is returned together with the created
	// order when the payment task could not be enqueued. The order is
	// committed and stays pending until a gateway webhook arrives.
	ErrPaymentNotScheduled = errors.New("payment task was not scheduled")
)

// CheckoutItem is one requested product line.
type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// CheckoutInput carries everything needed to place an order. When
// FromCart is set the user's cart supplies the items and is cleared on
// success.
type CheckoutInput struct {
	FromCart bool           `json:"from_cart"`
	Items    []CheckoutItem `json:"items"`

	ShippingAddressID *uuid.UUID           `json:"shipping_address_id"`
	ShippingAddress   *models.OrderAddress `json:"shipping_address"`
	BillingAddress    *models.OrderAddress `json:"billing_address"`

	PaymentMethod  string          `json:"payment_method"`
	Currency       string          `json:"currency"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Notes          string          `json:"notes"`
}

// CheckoutService turns a cart or an explicit item list into a pending
// order with product and address snapshots, then hands the order to the
// fulfillment orchestrator.
type CheckoutService struct {
	db           *gorm.DB
	clock        clock.Clock
	orchestrator *fulfillment.Orchestrator
	defaultRate  decimal.Decimal
}

// NewCheckoutService constructs a CheckoutService.
func NewCheckoutService(db *gorm.DB, clk clock.Clock, orchestrator *fulfillment.Orchestrator, defaultRate decimal.Decimal) *CheckoutService {
	return &CheckoutService{db: db, clock: clk, orchestrator: orchestrator, defaultRate: defaultRate}
}

// CreateOrder validates availability, snapshots prices and addresses,
// persists the order with its items in one transaction and schedules
// the payment task for non-free orders. When scheduling fails the
// committed order is returned alongside ErrPaymentNotScheduled.
func (s *CheckoutService) CreateOrder(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*models.Order, error) {
	items := input.Items
	if input.FromCart {
		cartItems, err := s.cartItems(ctx, userID)
		if err != nil {
			return nil, err
		}
		items = cartItems
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	shipping, billing, err := s.resolveAddresses(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &models.Order{
		OrderNumber:     utils.GenerateOrderNumber(now),
		UserID:          userID,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   input.PaymentMethod,
		Currency:        input.Currency,
		TaxAmount:       input.TaxAmount,
		ShippingAmount:  input.ShippingAmount,
		DiscountAmount:  input.DiscountAmount,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Notes:           input.Notes,
	}
	if order.Currency == "" {
		order.Currency = "USD"
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subtotal := decimal.Zero

		for _, line := range items {
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: invalid quantity %d", ErrProductUnavailable, line.Quantity)
			}

			var product models.Product
			if err := tx.Preload("Seller").First(&product, "id = ?", line.ProductID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return fmt.Errorf("%w: product %s", ErrProductUnavailable, line.ProductID)
				}
				return err
			}

			if product.Seller == nil || !product.Seller.IsApproved() {
				return fmt.Errorf("%w: product %s", ErrSellerNotApproved, product.SKU)
			}
			if !product.CanBePurchased(line.Quantity) {
				return fmt.Errorf("%w: product %s", ErrProductUnavailable, product.SKU)
			}

			rate := product.EffectiveCommissionRate(product.Seller)
			if rate.IsZero() {
				rate = s.defaultRate
			}

			totalPrice := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(totalPrice)

			order.Items = append(order.Items, models.OrderItem{
				ProductID:      product.ID,
				SellerID:       product.SellerID,
				ProductName:    product.Name,
				ProductSKU:     product.SKU,
				Quantity:       line.Quantity,
				UnitPrice:      product.Price,
				TotalPrice:     totalPrice,
				CommissionRate: rate,
				Status:         models.OrderStatusPending,
			})
		}

		order.Subtotal = subtotal
		order.TotalAmount = subtotal.Add(order.TaxAmount).Add(order.ShippingAmount).Sub(order.DiscountAmount)

		if err := tx.Create(order).Error; err != nil {
			return err
		}

		if input.FromCart {
			return s.clearCart(tx, userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.TotalAmount.IsPositive() {
		ref := utils.GeneratePaymentReference()
		if err := s.orchestrator.SchedulePayment(ctx, order.ID, ref); err != nil {
			log.Printf("[Checkout] payment task for order %s not scheduled: %v", order.OrderNumber, err)
			return order, fmt.Errorf("%w: %v", ErrPaymentNotScheduled, err)
		}
	}

	return order, nil
}

func (s *CheckoutService) cartItems(ctx context.Context, userID uuid.UUID) ([]CheckoutItem, error) {
	var cart models.Cart
	if err := s.db.WithContext(ctx).Preload("Items").
		First(&cart, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrEmptyOrder
		}
		return nil, err
	}

	items := make([]CheckoutItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, CheckoutItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items, nil
}

func (s *CheckoutService) clearCart(tx *gorm.DB, userID uuid.UUID) error {
	var cart models.Cart
	if err := tx.First(&cart, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
}

// resolveAddresses produces the immutable JSON snapshots stored on the
// order, from a saved address or an inline one. Billing defaults to the
// shipping address.
func (s *CheckoutService) resolveAddresses(ctx context.Context, userID uuid.UUID, input CheckoutInput) (datatypes.JSON, datatypes.JSON, error) {
	shipping := input.ShippingAddress

	if shipping == nil && input.ShippingAddressID != nil {
		var saved models.UserAddress
		if err := s.db.WithContext(ctx).
			First(&saved, "id = ? AND user_id = ?", *input.ShippingAddressID, userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, nil, ErrAddressRequired
			}
			return nil, nil, err
		}
		shipping = &models.OrderAddress{
			Name:        saved.Name,
			AddressLine: saved.AddressLine,
			Apartment:   saved.Apartment,
			City:        saved.City,
			State:       saved.State,
			PostalCode:  saved.PostalCode,
			Country:     saved.Country,
			Phone:       saved.Phone,
		}
	}
	if shipping == nil {
		return nil, nil, ErrAddressRequired
	}

	billing := input.BillingAddress
	if billing == nil {
		billing = shipping
	}

	shippingJSON, err := json.Marshal(shipping)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(billing)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal billing address: %w", err)
	}

	return datatypes.JSON(shippingJSON), datatypes.JSON(billingJSON), nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order lifecycle statuses. Cancelled and refunded are terminal.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Payment sub-states, tracked orthogonally to the order status.
const (
	PaymentStatusPending           = "pending"
	PaymentStatusPaid              = "paid"
	PaymentStatusFailed            = "failed"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusPartiallyRefunded = "partially_refunded"
)

// OrderAddress is the immutable address snapshot stored on the order as
// JSON. It is copied from a saved address or the checkout payload, never
// referenced live.
type OrderAddress struct {
	Name        string `json:"name"`
	AddressLine string `json:"address_line"`
	Apartment   string `json:"apartment,omitempty"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
}

// Order is a customer's purchase spanning one or more sellers.
type Order struct {
	BaseModel
	OrderNumber string    `gorm:"uniqueIndex" json:"order_number"`
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User        *User     `json:"user,omitempty"`
	Status      string    `gorm:"default:pending;index" json:"status"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(10,2)" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(10,2)" json:"tax_amount"`
	ShippingAmount decimal.Decimal `gorm:"type:decimal(10,2)" json:"shipping_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(10,2)" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_amount"`
	Currency       string          `gorm:"size:3;default:USD" json:"currency"`

	ShippingAddress datatypes.JSON `json:"shipping_address"`
	BillingAddress  datatypes.JSON `json:"billing_address"`
	ShippingMethod  string         `json:"shipping_method"`
	TrackingNumber  string         `json:"tracking_number"`

	PaymentStatus    string `gorm:"default:pending;index" json:"payment_status"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`

	PaidAt      *time.Time `json:"paid_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	RefundedAt  *time.Time `json:"refunded_at"`

	// InventoryAppliedAt marks that the stock decrement for this order
	// has run, making re-delivered inventory tasks a no-op.
	InventoryAppliedAt *time.Time `json:"inventory_applied_at"`

	RefundAmount *decimal.Decimal `gorm:"type:decimal(10,2)" json:"refund_amount"`
	RefundReason string           `json:"refund_reason"`

	Notes      string `json:"notes"`
	AdminNotes string `json:"admin_notes"`

	Items []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// IsTerminal reports whether the order reached a final state.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusDelivered ||
		o.Status == OrderStatusCancelled ||
		o.Status == OrderStatusRefunded
}

// TotalsConsistent checks the invariant
// total_amount == subtotal + tax + shipping - discount.
func (o *Order) TotalsConsistent() bool {
	expected := o.Subtotal.Add(o.TaxAmount).Add(o.ShippingAmount).Sub(o.DiscountAmount)
	return o.TotalAmount.Equal(expected)
}

// OrderItem is one seller's one product line within an order. Name, SKU,
// price and commission rate are snapshots taken at purchase time.
type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID `gorm:"type:uuid;index:idx_order_seller" json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	SellerID  uuid.UUID `gorm:"type:uuid;index:idx_order_seller" json:"seller_id"`
	Seller    *Seller   `json:"seller,omitempty"`

	ProductName string `json:"product_name"`
	ProductSKU  string `json:"product_sku"`

	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(10,2)" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_price"`

	CommissionRate   decimal.Decimal `gorm:"type:decimal(5,2)" json:"commission_rate"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(10,2)" json:"commission_amount"`
	SellerEarnings   decimal.Decimal `gorm:"type:decimal(10,2)" json:"seller_earnings"`

	Status         string     `gorm:"default:pending" json:"status"`
	TrackingNumber string     `json:"tracking_number"`
	ShippedAt      *time.Time `json:"shipped_at"`
	DeliveredAt    *time.Time `json:"delivered_at"`
}

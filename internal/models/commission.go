package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Commission payout statuses.
const (
	CommissionStatusPending   = "pending"
	CommissionStatusPaid      = "paid"
	CommissionStatusCancelled = "cancelled"
)

// SellerCommission aggregates one seller's earnings within one order.
// The (seller_id, order_id) pair is unique so a re-delivered commission
// task cannot create duplicates.
type SellerCommission struct {
	BaseModel
	SellerID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_commission_seller_order" json:"seller_id"`
	Seller   *Seller   `json:"seller,omitempty"`
	OrderID  uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_commission_seller_order" json:"order_id"`
	Order    *Order    `json:"order,omitempty"`

	TotalAmount      decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_amount"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(10,2)" json:"commission_amount"`
	SellerEarnings   decimal.Decimal `gorm:"type:decimal(10,2)" json:"seller_earnings"`
	CommissionRate   decimal.Decimal `gorm:"type:decimal(5,2)" json:"commission_rate"`

	Status           string     `gorm:"default:pending;index" json:"status"`
	DueDate          time.Time  `json:"due_date"`
	PaidAt           *time.Time `json:"paid_at"`
	PaymentReference string     `json:"payment_reference"`
}

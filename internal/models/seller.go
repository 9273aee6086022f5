package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Seller account statuses.
const (
	SellerStatusPending   = "pending"
	SellerStatusApproved  = "approved"
	SellerStatusSuspended = "suspended"
)

// Seller is a vendor profile attached to a user account. CommissionRate
// is the default platform cut for the seller's products; individual
// products may override it.
type Seller struct {
	BaseModel
	UserID         uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	User           *User           `json:"user,omitempty"`
	StoreName      string          `json:"store_name"`
	Slug           string          `gorm:"uniqueIndex" json:"slug"`
	Description    string          `json:"description"`
	Status         string          `gorm:"default:pending;index" json:"status"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(5,2)" json:"commission_rate"`
	TotalSales     int             `json:"total_sales"`
	TotalRevenue   decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_revenue"`
	PayoutEmail    string          `json:"payout_email"`
	Products       []Product       `json:"products,omitempty"`
}

// IsApproved reports whether the seller may list products and receive orders.
func (s *Seller) IsApproved() bool {
	return s.Status == SellerStatusApproved
}

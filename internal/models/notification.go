package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Notification types.
const (
	NotificationTypeNewOrder   = "new_order"
	NotificationTypeLowStock   = "low_stock"
	NotificationTypePaymentDue = "payment_due"
)

// SellerNotification is an in-app notification for a seller with a JSON
// payload snapshot of the triggering event.
type SellerNotification struct {
	BaseModel
	SellerID uuid.UUID      `gorm:"type:uuid;index" json:"seller_id"`
	Seller   *Seller        `json:"seller,omitempty"`
	Type     string         `gorm:"index" json:"type"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Data     datatypes.JSON `json:"data"`
	ReadAt   *time.Time     `json:"read_at"`
}

// IsRead reports whether the seller has seen the notification.
func (n *SellerNotification) IsRead() bool {
	return n.ReadAt != nil
}

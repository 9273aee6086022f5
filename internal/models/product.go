package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product statuses.
const (
	ProductStatusDraft    = "draft"
	ProductStatusActive   = "active"
	ProductStatusArchived = "archived"
)

// Stock statuses derived from quantity and the minimum stock level.
const (
	StockStatusInStock    = "in_stock"
	StockStatusLowStock   = "low_stock"
	StockStatusOutOfStock = "out_of_stock"
)

// Product is a seller's listing. Price and commission rate are
// snapshotted onto order items at purchase time, so later edits never
// affect existing orders.
type Product struct {
	BaseModel
	SellerID         uuid.UUID        `gorm:"type:uuid;index" json:"seller_id"`
	Seller           *Seller          `json:"seller,omitempty"`
	CategoryID       *uuid.UUID       `gorm:"type:uuid;index" json:"category_id"`
	Category         *Category        `json:"category,omitempty"`
	Name             string           `json:"name"`
	Slug             string           `gorm:"uniqueIndex" json:"slug"`
	SKU              string           `gorm:"uniqueIndex" json:"sku"`
	Description      string           `json:"description"`
	ShortDescription string           `json:"short_description"`
	Price            decimal.Decimal  `gorm:"type:decimal(10,2)" json:"price"`
	ComparePrice     *decimal.Decimal `gorm:"type:decimal(10,2)" json:"compare_price"`
	Currency         string           `gorm:"size:3;default:USD" json:"currency"`
	StockQuantity    int              `json:"stock_quantity"`
	MinStockLevel    int              `json:"min_stock_level"`
	TrackStock       bool             `gorm:"default:true" json:"track_stock"`
	StockStatus      string           `gorm:"default:in_stock" json:"stock_status"`
	Status           string           `gorm:"default:draft;index" json:"status"`
	CommissionRate   *decimal.Decimal `gorm:"type:decimal(5,2)" json:"commission_rate"`
	TotalSales       int              `json:"total_sales"`
}

// StockStatusFor derives the stock status from a quantity, the minimum
// stock level and whether stock is tracked at all. Untracked products
// are always in stock.
func StockStatusFor(quantity, minStockLevel int, trackStock bool) string {
	if !trackStock {
		return StockStatusInStock
	}
	if quantity <= 0 {
		return StockStatusOutOfStock
	}
	if quantity <= minStockLevel {
		return StockStatusLowStock
	}
	return StockStatusInStock
}

// EffectiveCommissionRate resolves the rate snapshotted onto order
// items: product override first, then the seller default.
func (p *Product) EffectiveCommissionRate(seller *Seller) decimal.Decimal {
	if p.CommissionRate != nil {
		return *p.CommissionRate
	}
	if seller != nil {
		return seller.CommissionRate
	}
	return decimal.Zero
}

// CanBePurchased reports whether the requested quantity is available.
func (p *Product) CanBePurchased(quantity int) bool {
	if p.Status != ProductStatusActive {
		return false
	}
	if p.TrackStock && p.StockQuantity < quantity {
		return false
	}
	return true
}

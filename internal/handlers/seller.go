package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

// SellerHandler serves seller onboarding, the seller dashboard and
// commission payouts.
type SellerHandler struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewSellerHandler constructs a SellerHandler.
func NewSellerHandler(db *gorm.DB, clk clock.Clock) *SellerHandler {
	return &SellerHandler{db: db, clock: clk}
}

type applyRequest struct {
	StoreName   string `json:"store_name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	PayoutEmail string `json:"payout_email"`
}

// Apply creates a pending seller profile for the authenticated user.
func (h *SellerHandler) Apply(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req applyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.StoreName == "" {
		return fiber.NewError(fiber.StatusBadRequest, "store_name is required")
	}

	var existing models.Seller
	if err := h.db.First(&existing, "user_id = ?", userID).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "seller profile already exists")
	} else if err != gorm.ErrRecordNotFound {
		return err
	}

	seller := models.Seller{
		UserID:      userID,
		StoreName:   req.StoreName,
		Slug:        req.Slug,
		Description: req.Description,
		Status:      models.SellerStatusPending,
		PayoutEmail: req.PayoutEmail,
	}
	if seller.Slug == "" {
		seller.Slug = utils.Slugify(req.StoreName)
	}

	if err := h.db.Create(&seller).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    seller,
	})
}

// List returns sellers with an optional status filter. Admin only.
func (h *SellerHandler) List(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Seller{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var sellers []models.Seller
	if err := query.Preload("User").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&sellers).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    sellers,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type approveRequest struct {
	CommissionRate *decimal.Decimal `json:"commission_rate"`
}

// Approve activates a pending seller, elevating the owning user to the
// seller role. Admin only.
func (h *SellerHandler) Approve(c *fiber.Ctx) error {
	seller, err := h.sellerByParam(c)
	if err != nil {
		return err
	}

	var req approveRequest
	_ = c.BodyParser(&req)

	err = h.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": models.SellerStatusApproved}
		if req.CommissionRate != nil {
			updates["commission_rate"] = *req.CommissionRate
		}
		if err := tx.Model(seller).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ? AND role = ?", seller.UserID, models.RoleCustomer).
			Update("role", models.RoleSeller).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": seller})
}

// Suspend blocks an approved seller from listing and selling. Admin only.
func (h *SellerHandler) Suspend(c *fiber.Ctx) error {
	seller, err := h.sellerByParam(c)
	if err != nil {
		return err
	}

	if err := h.db.Model(seller).Update("status", models.SellerStatusSuspended).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": seller})
}

// Dashboard returns the authenticated seller's headline numbers.
func (h *SellerHandler) Dashboard(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	var productCount int64
	if err := h.db.Model(&models.Product{}).
		Where("seller_id = ?", seller.ID).Count(&productCount).Error; err != nil {
		return err
	}

	var lowStockCount int64
	if err := h.db.Model(&models.Product{}).
		Where("seller_id = ? AND track_stock = ? AND stock_status <> ?",
			seller.ID, true, models.StockStatusInStock).
		Count(&lowStockCount).Error; err != nil {
		return err
	}

	var pendingItems int64
	if err := h.db.Model(&models.OrderItem{}).
		Where("seller_id = ? AND status IN ?", seller.ID,
			[]string{models.OrderStatusConfirmed, models.OrderStatusProcessing}).
		Count(&pendingItems).Error; err != nil {
		return err
	}

	var pendingEarnings decimal.Decimal
	var commissions []models.SellerCommission
	if err := h.db.Where("seller_id = ? AND status = ?", seller.ID, models.CommissionStatusPending).
		Find(&commissions).Error; err != nil {
		return err
	}
	for _, commission := range commissions {
		pendingEarnings = pendingEarnings.Add(commission.SellerEarnings)
	}

	var unreadNotifications int64
	if err := h.db.Model(&models.SellerNotification{}).
		Where("seller_id = ? AND read_at IS NULL", seller.ID).
		Count(&unreadNotifications).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"store_name":           seller.StoreName,
			"status":               seller.Status,
			"total_sales":          seller.TotalSales,
			"total_revenue":        seller.TotalRevenue,
			"product_count":        productCount,
			"low_stock_count":      lowStockCount,
			"pending_items":        pendingItems,
			"pending_earnings":     pendingEarnings,
			"unread_notifications": unreadNotifications,
		},
	})
}

// Commissions lists the authenticated seller's commission records.
func (h *SellerHandler) Commissions(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.SellerCommission{}).Where("seller_id = ?", seller.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var commissions []models.SellerCommission
	if err := query.Preload("Order").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&commissions).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    commissions,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type payCommissionRequest struct {
	PaymentReference string `json:"payment_reference"`
}

// MarkCommissionPaid records a payout against a pending commission.
// Admin only.
func (h *SellerHandler) MarkCommissionPaid(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid commission id")
	}

	var commission models.SellerCommission
	if err := h.db.First(&commission, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "commission not found")
		}
		return err
	}
	if commission.Status != models.CommissionStatusPending {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "commission is not pending")
	}

	var req payCommissionRequest
	_ = c.BodyParser(&req)

	now := h.clock.Now()
	if err := h.db.Model(&commission).Updates(map[string]interface{}{
		"status":            models.CommissionStatusPaid,
		"paid_at":           now,
		"payment_reference": req.PaymentReference,
	}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": commission})
}

func (h *SellerHandler) sellerByParam(c *fiber.Ctx) (*models.Seller, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid seller id")
	}

	var seller models.Seller
	if err := h.db.First(&seller, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "seller not found")
		}
		return nil, err
	}

	return &seller, nil
}

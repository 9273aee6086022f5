package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

// NotificationHandler serves the seller notification inbox.
type NotificationHandler struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(db *gorm.DB, clk clock.Clock) *NotificationHandler {
	return &NotificationHandler{db: db, clock: clk}
}

// List returns the authenticated seller's notifications, unread first.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.SellerNotification{}).Where("seller_id = ?", seller.ID)
	if c.Query("unread") == "true" {
		query = query.Where("read_at IS NULL")
	}
	if notificationType := c.Query("type"); notificationType != "" {
		query = query.Where("type = ?", notificationType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var notifications []models.SellerNotification
	if err := query.
		Limit(pg.Limit).Offset(pg.Offset).
		Order("read_at IS NULL desc, created_at desc").
		Find(&notifications).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    notifications,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// MarkRead marks one notification as read.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid notification id")
	}

	var notification models.SellerNotification
	if err := h.db.First(&notification, "id = ? AND seller_id = ?", id, seller.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "notification not found")
		}
		return err
	}

	if notification.ReadAt == nil {
		now := h.clock.Now()
		notification.ReadAt = &now
		if err := h.db.Save(&notification).Error; err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": notification})
}

// MarkAllRead marks every unread notification as read.
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	now := h.clock.Now()
	result := h.db.Model(&models.SellerNotification{}).
		Where("seller_id = ? AND read_at IS NULL", seller.ID).
		Update("read_at", now)
	if result.Error != nil {
		return result.Error
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"marked_read": result.RowsAffected},
	})
}

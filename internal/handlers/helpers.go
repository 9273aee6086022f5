package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
)

// currentSeller loads the approved seller profile of the authenticated
// user. Pending and suspended sellers get a 403.
func currentSeller(db *gorm.DB, c *fiber.Ctx) (*models.Seller, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var seller models.Seller
	if err := db.First(&seller, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusForbidden, "seller profile required")
		}
		return nil, err
	}
	if !seller.IsApproved() {
		return nil, fiber.NewError(fiber.StatusForbidden, "seller is not approved")
	}

	return &seller, nil
}

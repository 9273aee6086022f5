package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/fulfillment"
	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/services"
	"github.com/example/bazaar/internal/utils"
)

// OrderHandler serves checkout, the customer order views, the payment
// webhook and the admin/seller lifecycle endpoints.
type OrderHandler struct {
	db           *gorm.DB
	checkout     *services.CheckoutService
	orders       *services.OrderService
	orchestrator *fulfillment.Orchestrator
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(db *gorm.DB, checkout *services.CheckoutService, orders *services.OrderService, orchestrator *fulfillment.Orchestrator) *OrderHandler {
	return &OrderHandler{db: db, checkout: checkout, orders: orders, orchestrator: orchestrator}
}

// Checkout creates an order from the cart or an explicit item list.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var input services.CheckoutInput
	if err := c.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.checkout.CreateOrder(c.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentNotScheduled):
			// The order itself was committed.
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{
				"success":           true,
				"data":              order,
				"payment_scheduled": false,
				"message":           "payment processing could not be scheduled, awaiting gateway confirmation",
			})
		case errors.Is(err, services.ErrEmptyOrder),
			errors.Is(err, services.ErrAddressRequired):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrProductUnavailable),
			errors.Is(err, services.ErrSellerNotApproved):
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

// ListMine returns the authenticated user's orders.
func (h *OrderHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{}).Where("user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// Get loads one order. Customers see only their own; admins see any.
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	order, err := h.visibleOrder(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel cancels the customer's own order while it is still cancellable.
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	order, err := h.visibleOrder(c)
	if err != nil {
		return err
	}

	// The reason is optional, so an empty body is fine.
	var req cancelRequest
	_ = c.BodyParser(&req)

	updated, err := h.orders.Cancel(c.Context(), order.ID, req.Reason)
	if err != nil {
		return lifecycleError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": updated})
}

type paymentWebhookRequest struct {
	OrderID          uuid.UUID `json:"order_id"`
	PaymentReference string    `json:"payment_reference"`
	Status           string    `json:"status"`
}

// PaymentWebhook receives gateway callbacks. A success schedules the
// payment processing task; a failure cancels the order directly without
// touching the fulfillment pipeline.
func (h *OrderHandler) PaymentWebhook(c *fiber.Ctx) error {
	var req paymentWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OrderID == uuid.Nil || req.PaymentReference == "" {
		return fiber.NewError(fiber.StatusBadRequest, "order_id and payment_reference are required")
	}

	switch req.Status {
	case "success":
		if err := h.orchestrator.SchedulePayment(c.Context(), req.OrderID, req.PaymentReference); err != nil {
			return err
		}
	case "failed":
		if _, err := h.orders.MarkPaymentFailed(c.Context(), req.OrderID, req.PaymentReference); err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusNotFound, "order not found")
			}
			return err
		}
	default:
		return fiber.NewError(fiber.StatusBadRequest, "status must be success or failed")
	}

	return c.JSON(fiber.Map{"success": true})
}

// Invoice renders the order invoice for its owner or an admin.
func (h *OrderHandler) Invoice(c *fiber.Ctx) error {
	order, err := h.visibleOrder(c)
	if err != nil {
		return err
	}

	invoice, err := h.orders.GenerateInvoice(c.Context(), order.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": invoice})
}

// List returns all orders with filters. Admin only.
func (h *OrderHandler) List(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if paymentStatus := c.Query("payment_status"); paymentStatus != "" {
		query = query.Where("payment_status = ?", paymentStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("User").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// Confirm moves a pending order to confirmed. Admin only.
func (h *OrderHandler) Confirm(c *fiber.Ctx) error {
	id, err := parseOrderID(c)
	if err != nil {
		return err
	}

	order, err := h.orders.Confirm(c.Context(), id)
	if err != nil {
		return lifecycleError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type shipRequest struct {
	TrackingNumber string `json:"tracking_number"`
	ShippingMethod string `json:"shipping_method"`
}

// Ship marks the whole order shipped. Admin only.
func (h *OrderHandler) Ship(c *fiber.Ctx) error {
	id, err := parseOrderID(c)
	if err != nil {
		return err
	}

	var req shipRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.Ship(c.Context(), id, req.TrackingNumber, req.ShippingMethod)
	if err != nil {
		return lifecycleError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// Deliver marks a shipped order delivered. Admin only.
func (h *OrderHandler) Deliver(c *fiber.Ctx) error {
	id, err := parseOrderID(c)
	if err != nil {
		return err
	}

	order, err := h.orders.Deliver(c.Context(), id)
	if err != nil {
		return lifecycleError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

// Refund refunds an order in full or partially. Admin only.
func (h *OrderHandler) Refund(c *fiber.Ctx) error {
	id, err := parseOrderID(c)
	if err != nil {
		return err
	}

	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.Refund(c.Context(), id, req.Amount, req.Reason)
	if err != nil {
		return lifecycleError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// UpdateStatus applies an arbitrary valid transition. Admin only.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := parseOrderID(c)
	if err != nil {
		return err
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" {
		return fiber.NewError(fiber.StatusBadRequest, "status is required")
	}

	order, err := h.orders.UpdateStatus(c.Context(), id, req.Status, req.Notes)
	if err != nil {
		return lifecycleError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// SellerOrders lists the authenticated seller's order items.
func (h *OrderHandler) SellerOrders(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.OrderItem{}).Where("seller_id = ?", seller.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var items []models.OrderItem
	if err := query.Preload("Product").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// ShipItem marks one of the seller's own order items shipped.
func (h *OrderHandler) ShipItem(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}

	var item models.OrderItem
	if err := h.db.First(&item, "id = ?", itemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order item not found")
		}
		return err
	}
	if item.SellerID != seller.ID {
		return fiber.NewError(fiber.StatusForbidden, "not your order item")
	}

	var req shipRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updated, err := h.orders.ShipItem(c.Context(), itemID, req.TrackingNumber)
	if err != nil {
		return lifecycleError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": updated})
}

func (h *OrderHandler) visibleOrder(c *fiber.Ctx) (*models.Order, error) {
	id, err := parseOrderID(c)
	if err != nil {
		return nil, err
	}

	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var order models.Order
	if err := h.db.Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return nil, err
	}

	if order.UserID != userID && middleware.GetCurrentUserRole(c) != models.RoleAdmin {
		return nil, fiber.NewError(fiber.StatusForbidden, "not your order")
	}

	return &order, nil
}

func parseOrderID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}
	return id, nil
}

// lifecycleError maps order lifecycle errors to HTTP statuses.
func lifecycleError(err error) error {
	switch {
	case err == gorm.ErrRecordNotFound:
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrTrackingRequired):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return err
}

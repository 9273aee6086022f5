package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

// ProductHandler manages the public catalog and seller product CRUD.
type ProductHandler struct {
	db *gorm.DB
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// List returns paginated active products with optional filters.
func (h *ProductHandler) List(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{}).Where("status = ?", models.ProductStatusActive)

	if v := c.Query("category_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			query = query.Where("category_id = ?", id)
		}
	}

	if v := c.Query("seller_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			query = query.Where("seller_id = ?", id)
		}
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("name ILIKE ? OR short_description ILIKE ?", q, q)
	}

	if minPrice := c.Query("min_price"); minPrice != "" {
		if val, err := decimal.NewFromString(minPrice); err == nil {
			query = query.Where("price >= ?", val)
		}
	}

	if maxPrice := c.Query("max_price"); maxPrice != "" {
		if val, err := decimal.NewFromString(maxPrice); err == nil {
			query = query.Where("price <= ?", val)
		}
	}

	if stockStatus := c.Query("stock_status"); stockStatus != "" {
		query = query.Where("stock_status = ?", stockStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Seller").Preload("Category").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// Get loads one product by ID or slug.
func (h *ProductHandler) Get(c *fiber.Ctx) error {
	param := c.Params("id")
	query := h.db.Preload("Seller").Preload("Category")

	var product models.Product
	var err error
	if id, parseErr := uuid.Parse(param); parseErr == nil {
		err = query.First(&product, "id = ?", id).Error
	} else {
		err = query.First(&product, "slug = ?", param).Error
	}
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

type productRequest struct {
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	SKU              string           `json:"sku"`
	Description      string           `json:"description"`
	ShortDescription string           `json:"short_description"`
	CategoryID       *uuid.UUID       `json:"category_id"`
	Price            *decimal.Decimal `json:"price"`
	ComparePrice     *decimal.Decimal `json:"compare_price"`
	StockQuantity    *int             `json:"stock_quantity"`
	MinStockLevel    *int             `json:"min_stock_level"`
	TrackStock       *bool            `json:"track_stock"`
	Status           string           `json:"status"`
	CommissionRate   *decimal.Decimal `json:"commission_rate"`
}

// Create adds a product for the authenticated seller.
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.SKU == "" || req.Price == nil {
		return fiber.NewError(fiber.StatusBadRequest, "name, sku and price are required")
	}

	product := models.Product{
		SellerID:         seller.ID,
		CategoryID:       req.CategoryID,
		Name:             req.Name,
		Slug:             req.Slug,
		SKU:              req.SKU,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		Price:            *req.Price,
		ComparePrice:     req.ComparePrice,
		TrackStock:       true,
		Status:           models.ProductStatusDraft,
		CommissionRate:   req.CommissionRate,
	}
	if product.Slug == "" {
		product.Slug = utils.Slugify(req.Name)
	}
	if req.StockQuantity != nil {
		product.StockQuantity = *req.StockQuantity
	}
	if req.MinStockLevel != nil {
		product.MinStockLevel = *req.MinStockLevel
	}
	if req.TrackStock != nil {
		product.TrackStock = *req.TrackStock
	}
	if req.Status != "" {
		product.Status = req.Status
	}
	product.StockStatus = models.StockStatusFor(product.StockQuantity, product.MinStockLevel, product.TrackStock)

	if err := h.db.Create(&product).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// Update modifies one of the seller's own products.
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	product, err := h.ownProduct(c, seller.ID)
	if err != nil {
		return err
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name != "" {
		product.Name = req.Name
	}
	if req.Slug != "" {
		product.Slug = req.Slug
	}
	if req.SKU != "" {
		product.SKU = req.SKU
	}
	if req.Description != "" {
		product.Description = req.Description
	}
	if req.ShortDescription != "" {
		product.ShortDescription = req.ShortDescription
	}
	if req.CategoryID != nil {
		product.CategoryID = req.CategoryID
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.ComparePrice != nil {
		product.ComparePrice = req.ComparePrice
	}
	if req.StockQuantity != nil {
		product.StockQuantity = *req.StockQuantity
	}
	if req.MinStockLevel != nil {
		product.MinStockLevel = *req.MinStockLevel
	}
	if req.TrackStock != nil {
		product.TrackStock = *req.TrackStock
	}
	if req.Status != "" {
		product.Status = req.Status
	}
	if req.CommissionRate != nil {
		product.CommissionRate = req.CommissionRate
	}
	product.StockStatus = models.StockStatusFor(product.StockQuantity, product.MinStockLevel, product.TrackStock)

	if err := h.db.Save(product).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// Archive retires one of the seller's own products instead of deleting
// it, so order item references stay intact.
func (h *ProductHandler) Archive(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	product, err := h.ownProduct(c, seller.ID)
	if err != nil {
		return err
	}

	product.Status = models.ProductStatusArchived
	if err := h.db.Save(product).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "product archived",
	})
}

// Mine lists the authenticated seller's products regardless of status.
func (h *ProductHandler) Mine(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{}).Where("seller_id = ?", seller.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Category").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// LowStock lists the seller's tracked products at or below their
// minimum stock level.
func (h *ProductHandler) LowStock(c *fiber.Ctx) error {
	seller, err := currentSeller(h.db, c)
	if err != nil {
		return err
	}

	var products []models.Product
	if err := h.db.
		Where("seller_id = ? AND track_stock = ? AND stock_status IN ?",
			seller.ID, true, []string{models.StockStatusLowStock, models.StockStatusOutOfStock}).
		Order("stock_quantity asc").
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": products})
}

func (h *ProductHandler) ownProduct(c *fiber.Ctx, sellerID uuid.UUID) (*models.Product, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, fiber.NewError(fiber.StatusForbidden, "not your product")
	}

	return &product, nil
}

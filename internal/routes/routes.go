package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/fulfillment"
	"github.com/example/bazaar/internal/handlers"
	"github.com/example/bazaar/internal/middleware"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, clk clock.Clock, orchestrator *fulfillment.Orchestrator) {
	orderService := services.NewOrderService(db, clk)
	checkoutService := services.NewCheckoutService(db, clk, orchestrator, cfg.Fulfillment.DefaultCommissionRate)

	authHandler := handlers.NewAuthHandler(db, cfg)
	addressHandler := handlers.NewAddressHandler(db)
	categoryHandler := handlers.NewCategoryHandler(db)
	productHandler := handlers.NewProductHandler(db)
	cartHandler := handlers.NewCartHandler(db)
	orderHandler := handlers.NewOrderHandler(db, checkoutService, orderService, orchestrator)
	sellerHandler := handlers.NewSellerHandler(db, clk)
	notificationHandler := handlers.NewNotificationHandler(db, clk)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Public catalog
	api.Get("/categories", categoryHandler.List)
	api.Get("/products", productHandler.List)
	api.Get("/products/:id", productHandler.Get)

	// Payment gateway callback
	api.Post("/payments/webhook", orderHandler.PaymentWebhook)

	// Authenticated routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Get("/me", authHandler.Me)
	protected.Get("/addresses", addressHandler.List)
	protected.Post("/addresses", addressHandler.Create)
	protected.Delete("/addresses/:id", addressHandler.Delete)

	protected.Get("/cart", cartHandler.Get)
	protected.Post("/cart/items", cartHandler.AddItem)
	protected.Put("/cart/items/:id", cartHandler.UpdateItem)
	protected.Delete("/cart/items/:id", cartHandler.RemoveItem)
	protected.Delete("/cart", cartHandler.Clear)

	protected.Post("/orders", orderHandler.Checkout)
	protected.Get("/orders", orderHandler.ListMine)
	protected.Get("/orders/:id", orderHandler.Get)
	protected.Post("/orders/:id/cancel", orderHandler.Cancel)
	protected.Get("/orders/:id/invoice", orderHandler.Invoice)

	protected.Post("/sellers/apply", sellerHandler.Apply)

	// Seller routes
	seller := protected.Group("/seller", middleware.RequireRole(models.RoleSeller, models.RoleAdmin))
	seller.Get("/dashboard", sellerHandler.Dashboard)
	seller.Get("/products", productHandler.Mine)
	seller.Post("/products", productHandler.Create)
	seller.Put("/products/:id", productHandler.Update)
	seller.Delete("/products/:id", productHandler.Archive)
	seller.Get("/products/low-stock", productHandler.LowStock)
	seller.Get("/orders", orderHandler.SellerOrders)
	seller.Post("/orders/items/:id/ship", orderHandler.ShipItem)
	seller.Get("/commissions", sellerHandler.Commissions)
	seller.Get("/notifications", notificationHandler.List)
	seller.Post("/notifications/:id/read", notificationHandler.MarkRead)
	seller.Post("/notifications/read-all", notificationHandler.MarkAllRead)

	// Admin routes
	admin := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Post("/categories", categoryHandler.Create)
	admin.Put("/categories/:id", categoryHandler.Update)
	admin.Delete("/categories/:id", categoryHandler.Delete)
	admin.Get("/sellers", sellerHandler.List)
	admin.Post("/sellers/:id/approve", sellerHandler.Approve)
	admin.Post("/sellers/:id/suspend", sellerHandler.Suspend)
	admin.Get("/orders", orderHandler.List)
	admin.Post("/orders/:id/confirm", orderHandler.Confirm)
	admin.Post("/orders/:id/ship", orderHandler.Ship)
	admin.Post("/orders/:id/deliver", orderHandler.Deliver)
	admin.Post("/orders/:id/refund", orderHandler.Refund)
	admin.Put("/orders/:id/status", orderHandler.UpdateStatus)
	admin.Post("/commissions/:id/pay", sellerHandler.MarkCommissionPaid)
}

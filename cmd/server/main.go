package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/bazaar/internal/clock"
	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/database"
	"github.com/example/bazaar/internal/fulfillment"
	"github.com/example/bazaar/internal/queue"
	"github.com/example/bazaar/internal/routes"
	"github.com/example/bazaar/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var broker queue.Broker
	if cfg.RedisURL != "" {
		rdb, err := queue.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		broker = queue.NewRedisBroker(rdb)
		log.Printf("[Queue] using redis broker")
	} else {
		broker = queue.NewMemoryBroker()
		log.Printf("[Queue] REDIS_URL not set, using in-memory broker")
	}

	var mailer fulfillment.Mailer
	if cfg.SMTPHost != "" {
		mailer = services.NewSMTPMailer(cfg)
	} else {
		mailer = services.LogMailer{}
		log.Printf("[Mail] SMTP_HOST not set, logging mail instead")
	}

	clk := clock.Real()

	pipeline := fulfillment.NewPipeline(db, broker, clk, mailer, cfg.Fulfillment)
	worker := queue.NewWorker(broker, fulfillment.Queues(), cfg.WorkerCount, clk)
	pipeline.Register(worker)
	go worker.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName: "Bazaar Marketplace",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg, clk, pipeline.Orchestrator)

	go func() {
		<-ctx.Done()
		log.Printf("shutting down")
		_ = app.Shutdown()
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}

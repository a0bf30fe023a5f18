package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	redisstorage "github.com/gofiber/storage/redis"
	"gorm.io/gorm"

	"github.com/agendahub/payments-api/app/controllers"
	"github.com/agendahub/payments-api/internal/pkg/billing"
	"github.com/agendahub/payments-api/internal/pkg/cache"
	"github.com/agendahub/payments-api/internal/pkg/database"
	"github.com/agendahub/payments-api/internal/pkg/env"
	"github.com/agendahub/payments-api/internal/pkg/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	env.SetupEnvFile()

	db, err := database.Setup()
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close(db)

	app := NewApplication(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// NewApplication is the production variant: redis-backed rate limiting,
// swagger docs and the fiber monitor on top of the shared construction.
func NewApplication(db *gorm.DB) *fiber.App {
	repo := billing.NewRepository(db)
	activator := billing.NewFeatureActivator(repo)
	engine := billing.NewEngine(repo, activator, billing.PolicyFromEnv())
	gateway := billing.NewAsaasClientFromEnv()
	svc := billing.NewService(repo, gateway, engine, cache.Setup())
	processor := billing.NewProcessor(repo, engine, env.GetEnv("ASAAS_WEBHOOK_SECRET", ""))

	app := fiber.New(fiber.Config{
		AppName: "agendahub-payments-api",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	router.InstallRouter(app, router.NewApiRouter(
		controllers.NewPaymentController(svc),
		controllers.NewWebhookController(processor),
		controllers.NewHealthController(db),
		limiterStorage(),
	))

	return app
}

func limiterStorage() fiber.Storage {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: 1,
	})
}

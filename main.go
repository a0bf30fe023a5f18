package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/agendahub/payments-api/app/controllers"
	"github.com/agendahub/payments-api/internal/pkg/billing"
	"github.com/agendahub/payments-api/internal/pkg/cache"
	"github.com/agendahub/payments-api/internal/pkg/database"
	"github.com/agendahub/payments-api/internal/pkg/env"
	"github.com/agendahub/payments-api/internal/pkg/router"
)

func main() {
	env.SetupEnvFile()

	db, err := database.Setup()
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close(db)

	app := NewApplication(db)
	log.Fatal(app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))))
}

// NewApplication builds the fiber app over an injected DB handle. The
// production entry point in cmd/payments adds redis-backed rate limiting,
// swagger docs and graceful shutdown on top of the same construction.
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

	router.InstallRouter(app, router.NewApiRouter(
		controllers.NewPaymentController(svc),
		controllers.NewWebhookController(processor),
		controllers.NewHealthController(db),
		nil,
	))

	return app
}

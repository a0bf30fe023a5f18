package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/agendahub/payments-api/app/controllers"
	"github.com/agendahub/payments-api/internal/pkg/constants"
)

// ApiRouter wires the payment API surface. Controllers arrive fully
// constructed; the router only decides paths and middleware.
type ApiRouter struct {
	payments *controllers.PaymentController
	webhooks *controllers.WebhookController
	health   *controllers.HealthController

	// limiterStorage backs the rate limiter on the creation endpoints.
	// Nil falls back to fiber's in-memory storage (tests, minimal bootstrap).
	limiterStorage fiber.Storage
}

func NewApiRouter(
	payments *controllers.PaymentController,
	webhooks *controllers.WebhookController,
	health *controllers.HealthController,
	limiterStorage fiber.Storage,
) *ApiRouter {
	return &ApiRouter{
		payments:       payments,
		webhooks:       webhooks,
		health:         health,
		limiterStorage: limiterStorage,
	}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	app.Use(cors.New())

	app.Get(constants.HealthRoute, h.health.HandleHealth)

	// Creation endpoints sit behind the rate limiter; webhooks do not, the
	// gateway controls that traffic and throttling it causes redeliveries.
	create := app.Group("", limiter.New(limiter.Config{
		Max:     20,
		Storage: h.limiterStorage,
	}))
	create.Post(constants.CreatePaymentRoute, h.payments.HandleCreatePayment)
	create.Post(constants.CreateSubscriptionRoute, h.payments.HandleCreatePayment)

	app.Get(constants.PaymentStatusRoute, h.payments.HandlePaymentStatus)
	app.Get(constants.PaymentsRoute, h.payments.HandleListPayments)

	app.Post(constants.AsaasWebhookRoute, h.webhooks.HandleAsaasWebhook)
	app.Post(constants.ReprocessWebhookRoute, h.webhooks.HandleReprocessWebhook)
}

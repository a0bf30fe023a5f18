package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/agendahub/payments-api/internal/pkg/billing"
)

// WebhookController is the HTTP face of the webhook event processor.
type WebhookController struct {
	proc *billing.Processor
}

func NewWebhookController(proc *billing.Processor) *WebhookController {
	return &WebhookController{proc: proc}
}

// HandleAsaasWebhook handles POST /webhook/asaas. Deliveries that were logged
// and dispatched answer 200 whatever the business outcome was: the gateway
// must not redeliver conditions this service already owns. Only a rejected
// signature (401), an undecodable payload (400) or a failed log write (500)
// break that rule.
func (wc *WebhookController) HandleAsaasWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("asaas-signature")

	res, err := wc.proc.Process(c.Context(), rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "invalid_signature",
			})
		case errors.Is(err, billing.ErrMalformedEvent):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "invalid_payload",
			})
		default:
			fiberlog.Errorf("[Webhook] processing failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "webhook_processing_failed",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": webhookMessage(res),
	})
}

// HandleReprocessWebhook handles POST /webhook/reprocess/:webhookId, the
// manual recovery path over a stored payload.
func (wc *WebhookController) HandleReprocessWebhook(c *fiber.Ctx) error {
	webhookID, err := c.ParamsInt("webhookId")
	if err != nil || webhookID < 1 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "webhook_not_found",
		})
	}

	res, err := wc.proc.Reprocess(c.Context(), uint(webhookID))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrWebhookLogNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "webhook_not_found",
			})
		case errors.Is(err, billing.ErrMalformedEvent):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "invalid_payload",
			})
		default:
			fiberlog.Errorf("[Webhook] reprocess of %d failed: %v", webhookID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "webhook_processing_failed",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": webhookMessage(res),
		"outcome": res.Outcome,
	})
}

func webhookMessage(res *billing.ProcessResult) string {
	switch res.Outcome {
	case billing.OutcomeApplied:
		return "event processed, payment is now " + string(res.Status)
	case billing.OutcomeDuplicate:
		return "duplicate delivery, payment already " + string(res.Status)
	case billing.OutcomePaymentNotFound:
		return "event logged, no matching payment"
	case billing.OutcomeUnhandledEvent:
		return "event logged, type not handled"
	default:
		return "event logged"
	}
}

package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/agendahub/payments-api/internal/pkg/billing"
)

// PaymentController serves payment creation, status and listing. The billing
// service is injected; controllers hold no ambient state.
type PaymentController struct {
	svc *billing.Service
}

func NewPaymentController(svc *billing.Service) *PaymentController {
	return &PaymentController{svc: svc}
}

// HandleCreatePayment handles POST /create-payment (and its
// /create-subscription alias).
func (pc *PaymentController) HandleCreatePayment(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.Body()...)

	var in billing.CreatePaymentInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "validation_error",
			"message": "request body is not valid JSON",
		})
	}

	res, err := pc.svc.CreatePayment(c.Context(), in, rawBody)
	if err != nil {
		return pc.renderCreateError(c, err)
	}

	value, _ := res.Value.Float64()
	out := fiber.Map{
		"success":          true,
		"paymentId":        res.PaymentID,
		"gatewayPaymentId": res.GatewayPaymentID,
		"status":           res.Status,
		"value":            value,
		"dueDate":          res.DueDate,
		"invoiceUrl":       res.InvoiceURL,
	}
	if res.Pix != nil {
		out["pix"] = res.Pix
	}
	if res.CreditCard != nil {
		out["creditCard"] = res.CreditCard
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

func (pc *PaymentController) renderCreateError(c *fiber.Ctx, err error) error {
	var verr *billing.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "validation_error",
			"fields":  verr.Fields,
		})
	}
	if errors.Is(err, billing.ErrCustomerConflict) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "customer_conflict",
			"message": "email and cpf/cnpj belong to different customers, contact support",
		})
	}

	fiberlog.Errorf("[Payments] create payment failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "internal_error",
		"message": billing.DetailInDev(err, "payment creation failed"),
	})
}

// HandlePaymentStatus handles GET /payment-status/:id. The id may be the
// gateway id (pay_ prefix) or the local numeric id.
func (pc *PaymentController) HandlePaymentStatus(c *fiber.Ctx) error {
	res, err := pc.svc.GetPaymentStatus(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, billing.ErrPaymentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "payment_not_found",
			})
		}
		fiberlog.Errorf("[Payments] status lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "internal_error",
			"message": billing.DetailInDev(err, "status lookup failed"),
		})
	}

	value, _ := res.Value.Float64()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":          true,
		"paymentId":        res.PaymentID,
		"gatewayPaymentId": res.GatewayPaymentID,
		"status":           res.Status,
		"planType":         res.PlanType,
		"paymentMethod":    res.BillingType,
		"value":            value,
		"dueDate":          res.DueDate,
		"invoiceUrl":       res.InvoiceURL,
	})
}

// HandleListPayments handles GET /payments?page&limit&status.
func (pc *PaymentController) HandleListPayments(c *fiber.Ctx) error {
	res, err := pc.svc.ListPayments(c.Context(), billing.ListInput{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
		Status: c.Query("status"),
	})
	if err != nil {
		var verr *billing.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "validation_error",
				"fields":  verr.Fields,
			})
		}
		fiberlog.Errorf("[Payments] listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "internal_error",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":    true,
		"page":       res.Page,
		"limit":      res.Limit,
		"total":      res.Total,
		"totalPages": res.TotalPages,
		"hasNext":    res.HasNext,
		"hasPrev":    res.HasPrev,
		"payments":   res.Payments,
	})
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/agendahub/payments-api/app/models"
	"github.com/agendahub/payments-api/internal/pkg/env"
	"github.com/agendahub/payments-api/internal/pkg/plans"
)

const statusCacheTTL = 15 * time.Second

// Service drives the payment creation flow, status refresh and listing. All
// collaborators are injected; nothing consults package globals.
type Service struct {
	repo        Repository
	gateway     Gateway
	engine      *Engine
	validate    *validator.Validate
	statusCache *redis.Client
}

// NewService wires a payment service. statusCache may be nil, which disables
// the short-TTL status cache without changing behavior otherwise.
func NewService(repo Repository, gateway Gateway, engine *Engine, statusCache *redis.Client) *Service {
	return &Service{
		repo:        repo,
		gateway:     gateway,
		engine:      engine,
		validate:    validator.New(),
		statusCache: statusCache,
	}
}

// CreatePaymentInput is the payment-creation request body. Field names stay
// in Portuguese on the wire because the AgendaHub frontend sends them so.
type CreatePaymentInput struct {
	Nome          string  `json:"nome" validate:"required,min=3,max=150"`
	Cpf           string  `json:"cpf" validate:"required,min=11,max=14"`
	Email         string  `json:"email" validate:"required,email,max=200"`
	Telefone      string  `json:"telefone" validate:"required,min=10,max=20"`
	PaymentMethod string  `json:"paymentMethod" validate:"required"`
	PlanType      string  `json:"planType" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
}

// PixDetails is the PIX leg of a creation response.
type PixDetails struct {
	QRCode AsaasPixQRCode `json:"qrCode"`
}

// CreditCardDetails is the card leg of a creation response.
type CreditCardDetails struct {
	InvoiceURL            string `json:"invoiceUrl"`
	TransactionReceiptURL string `json:"transactionReceiptUrl,omitempty"`
}

type CreatePaymentResult struct {
	PaymentID        uint
	GatewayPaymentID string
	Status           models.PaymentStatus
	Value            decimal.Decimal
	DueDate          string
	InvoiceURL       string
	Pix              *PixDetails
	CreditCard       *CreditCardDetails
}

// CreatePayment runs the full creation flow: find-or-create the customer,
// create the remote payment, persist the local row as PENDING and shape the
// response by instrument. Any failure past validation is recorded in the
// payment_errors audit table with the raw request body.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput, rawBody []byte) (*CreatePaymentResult, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	billingType, _ := plans.ParseBillingType(in.PaymentMethod)
	plan, _ := plans.ParsePlan(in.PlanType)

	res, err := s.createPayment(ctx, in, billingType, plan)
	if err != nil && !errors.Is(err, ErrCustomerConflict) {
		if auditErr := s.repo.RecordPaymentError(err.Error(), rawBody); auditErr != nil {
			fiberlog.Errorf("[Billing] could not record payment error: %v", auditErr)
		}
	}
	return res, err
}

func (s *Service) validateInput(in CreatePaymentInput) error {
	fields := map[string]string{}
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[strings.ToLower(fe.Field())] = fmt.Sprintf("failed on %s", fe.Tag())
			}
		} else {
			fields["request"] = err.Error()
		}
	}
	if _, ok := plans.ParseBillingType(in.PaymentMethod); !ok && in.PaymentMethod != "" {
		fields["paymentmethod"] = "must be PIX or CREDIT_CARD"
	}
	if _, ok := plans.ParsePlan(in.PlanType); !ok && in.PlanType != "" {
		fields["plantype"] = "must be ESSENCIAL or PROFISSIONAL"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) createPayment(ctx context.Context, in CreatePaymentInput, billingType plans.BillingType, plan plans.Plan) (*CreatePaymentResult, error) {
	customer, err := s.findOrCreateCustomer(ctx, in)
	if err != nil {
		return nil, err
	}

	dueDate := time.Now().Add(24 * time.Hour).Format("2006-01-02")
	externalRef := fmt.Sprintf("%s_%d", plan, time.Now().UnixMilli())

	remote, err := s.gateway.CreatePayment(ctx, AsaasPaymentRequest{
		Customer:          customer.AsaasCustomerID,
		BillingType:       string(billingType),
		Value:             in.Amount,
		DueDate:           dueDate,
		Description:       fmt.Sprintf("Assinatura AgendaHub - %s", plan),
		ExternalReference: externalRef,
		InstallmentCount:  plans.Installments(billingType),
	})
	if err != nil {
		return nil, &GatewayError{Op: "create payment", Err: err}
	}

	payment := &models.Payment{
		CustomerID:        customer.ID,
		AsaasPaymentID:    remote.ID,
		PlanType:          string(plan),
		BillingType:       string(billingType),
		Amount:            decimal.NewFromFloat(in.Amount),
		Status:            models.PaymentStatusPending,
		ExternalReference: externalRef,
		InvoiceURL:        remote.InvoiceURL,
		DueDate:           dueDate,
	}
	if err := s.repo.CreatePayment(payment); err != nil {
		return nil, err
	}

	res := &CreatePaymentResult{
		PaymentID:        payment.ID,
		GatewayPaymentID: remote.ID,
		Status:           payment.Status,
		Value:            payment.Amount,
		DueDate:          dueDate,
		InvoiceURL:       remote.InvoiceURL,
	}
	switch billingType {
	case plans.BillingPix:
		qr, err := s.gateway.GetPixQRCode(ctx, remote.ID)
		if err != nil {
			// The payment exists either way; the client can poll the status
			// endpoint and pay through the invoice URL instead.
			fiberlog.Warnf("[Billing] pix qr code fetch failed for %s: %v", remote.ID, err)
		} else {
			res.Pix = &PixDetails{QRCode: *qr}
		}
	case plans.BillingCreditCard:
		res.CreditCard = &CreditCardDetails{
			InvoiceURL:            remote.InvoiceURL,
			TransactionReceiptURL: remote.TransactionReceiptURL,
		}
	}
	return res, nil
}

// findOrCreateCustomer resolves the request to a customer row. An email match
// and a cpf match pointing at different rows is a hard conflict. Existing
// customers get their mutable contact fields refreshed; a missing remote id
// (an earlier half-failed creation) is healed here too.
func (s *Service) findOrCreateCustomer(ctx context.Context, in CreatePaymentInput) (*models.Customer, error) {
	customer, conflict, err := s.repo.FindCustomerByEmailOrCpf(in.Email, in.Cpf)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrCustomerConflict
	}

	if customer == nil {
		remote, err := s.gateway.CreateCustomer(ctx, AsaasCustomerRequest{
			Name:        in.Nome,
			CpfCnpj:     in.Cpf,
			Email:       in.Email,
			MobilePhone: in.Telefone,
		})
		if err != nil {
			return nil, &GatewayError{Op: "create customer", Err: err}
		}
		customer = &models.Customer{
			Name:            in.Nome,
			CpfCnpj:         in.Cpf,
			Email:           in.Email,
			Phone:           in.Telefone,
			AsaasCustomerID: remote.ID,
		}
		if err := s.repo.SaveCustomer(customer); err != nil {
			return nil, err
		}
		return customer, nil
	}

	if err := s.repo.UpdateCustomerContact(customer.ID, in.Nome, in.Telefone); err != nil {
		return nil, err
	}
	customer.Name = in.Nome
	customer.Phone = in.Telefone

	if strings.TrimSpace(customer.AsaasCustomerID) == "" {
		remote, err := s.gateway.CreateCustomer(ctx, AsaasCustomerRequest{
			Name:        in.Nome,
			CpfCnpj:     customer.CpfCnpj,
			Email:       customer.Email,
			MobilePhone: in.Telefone,
		})
		if err != nil {
			return nil, &GatewayError{Op: "create customer", Err: err}
		}
		customer.AsaasCustomerID = remote.ID
		if err := s.repo.SaveCustomer(customer); err != nil {
			return nil, err
		}
	}
	return customer, nil
}

type PaymentStatusResult struct {
	PaymentID        uint
	GatewayPaymentID string
	Status           models.PaymentStatus
	PlanType         string
	BillingType      string
	Value            decimal.Decimal
	DueDate          string
	InvoiceURL       string
}

// GetPaymentStatus resolves a payment by its gateway id ("pay_" prefix) or
// local numeric id and refreshes the local status from the gateway. Remote
// lookups go through the same idempotent transition path as webhooks and are
// held back by a short-TTL cache so polling clients do not hammer the
// gateway.
func (s *Service) GetPaymentStatus(ctx context.Context, idParam string) (*PaymentStatusResult, error) {
	payment, err := s.resolvePayment(idParam)
	if err != nil {
		return nil, err
	}

	if !s.statusRecentlyRefreshed(ctx, payment.AsaasPaymentID) {
		remote, err := s.gateway.GetPayment(ctx, payment.AsaasPaymentID)
		if err != nil {
			// The local status still answers; staleness beats a 500 here.
			fiberlog.Warnf("[Billing] status refresh failed for %s: %v", payment.AsaasPaymentID, err)
		} else if models.KnownPaymentStatus(remote.Status) && models.PaymentStatus(remote.Status) != payment.Status {
			res, err := s.engine.ApplyTransition(ctx, payment.AsaasPaymentID, models.PaymentStatus(remote.Status))
			if err != nil && !errors.Is(err, ErrStaleTransition) && !errors.Is(err, ErrTransitionRejected) {
				return nil, err
			}
			if err == nil && res.Applied {
				payment.Status = res.To
			}
		}
		s.markStatusRefreshed(ctx, payment.AsaasPaymentID)
	}

	return &PaymentStatusResult{
		PaymentID:        payment.ID,
		GatewayPaymentID: payment.AsaasPaymentID,
		Status:           payment.Status,
		PlanType:         payment.PlanType,
		BillingType:      payment.BillingType,
		Value:            payment.Amount,
		DueDate:          payment.DueDate,
		InvoiceURL:       payment.InvoiceURL,
	}, nil
}

func (s *Service) resolvePayment(idParam string) (*models.Payment, error) {
	id := strings.TrimSpace(idParam)
	if id == "" {
		return nil, ErrPaymentNotFound
	}
	if strings.HasPrefix(id, "pay_") {
		return s.repo.GetPaymentByAsaasID(id)
	}
	localID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, ErrPaymentNotFound
	}
	return s.repo.GetPaymentByID(uint(localID))
}

func (s *Service) statusRecentlyRefreshed(ctx context.Context, asaasPaymentID string) bool {
	if s.statusCache == nil {
		return false
	}
	_, err := s.statusCache.Get(ctx, statusCacheKey(asaasPaymentID)).Result()
	return err == nil
}

func (s *Service) markStatusRefreshed(ctx context.Context, asaasPaymentID string) {
	if s.statusCache == nil {
		return
	}
	if err := s.statusCache.Set(ctx, statusCacheKey(asaasPaymentID), "1", statusCacheTTL).Err(); err != nil {
		fiberlog.Warnf("[Billing] status cache write failed: %v", err)
	}
}

func statusCacheKey(asaasPaymentID string) string {
	return "payment_status_refresh:" + asaasPaymentID
}

type ListInput struct {
	Page   int
	Limit  int
	Status string
}

type ListResult struct {
	Page       int
	Limit      int
	Total      int64
	TotalPages int
	HasNext    bool
	HasPrev    bool
	Payments   []models.Payment
}

// ListPayments returns one page of payments, newest first, optionally
// filtered by status.
func (s *Service) ListPayments(ctx context.Context, in ListInput) (*ListResult, error) {
	_ = ctx
	status := strings.ToUpper(strings.TrimSpace(in.Status))
	if status != "" && !models.KnownPaymentStatus(status) {
		return nil, &ValidationError{Fields: map[string]string{
			"status": "unknown payment status",
		}}
	}

	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	total, err := s.repo.CountPayments(status)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(status, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &ListResult{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
		Payments:   payments,
	}, nil
}

// DetailInDev returns the real error message in dev mode and a generic one in
// production, the suppression rule for gateway/internal failures.
func DetailInDev(err error, generic string) string {
	if env.IsDev() && err != nil {
		return err.Error()
	}
	return generic
}

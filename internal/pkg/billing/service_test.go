package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agendahub/payments-api/app/models"
	"github.com/agendahub/payments-api/internal/pkg/plans"
)

func newTestService(repo *fakeRepo, gw *fakeGateway) *Service {
	engine := NewEngine(repo, NewFeatureActivator(repo), PolicyLenient)
	return NewService(repo, gw, engine, nil)
}

func pixInput() CreatePaymentInput {
	return CreatePaymentInput{
		Nome:          "Ana",
		Cpf:           "12345678901",
		Email:         "a@x.com",
		Telefone:      "11999999999",
		PaymentMethod: "PIX",
		PlanType:      "ESSENCIAL",
		Amount:        49.90,
	}
}

func TestCreatePaymentPixNewCustomer(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{
		customerID: "cus_1",
		payment:    &AsaasPayment{ID: "pay_123", Status: "PENDING", InvoiceURL: "https://inv/1"},
		pix:        &AsaasPixQRCode{EncodedImage: "img", Payload: "pixcopy", ExpirationDate: "2026-08-25"},
	}
	svc := newTestService(repo, gw)

	res, err := svc.CreatePayment(context.Background(), pixInput(), []byte(`{}`))
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, res.Status)
	assert.Equal(t, "pay_123", res.GatewayPaymentID)
	assert.NotNil(t, res.Pix)
	assert.Equal(t, "pixcopy", res.Pix.QRCode.Payload)
	assert.Nil(t, res.CreditCard)

	// Exactly one customer created, remotely and locally.
	assert.Len(t, gw.createdCustomers, 1)
	assert.Len(t, repo.customers, 1)
	assert.Equal(t, "cus_1", repo.customers[0].AsaasCustomerID)

	// Card-only fields stay off the PIX request.
	assert.Len(t, gw.createdPayments, 1)
	assert.Equal(t, 0, gw.createdPayments[0].InstallmentCount)
	assert.Contains(t, gw.createdPayments[0].ExternalReference, "ESSENCIAL_")
}

func TestCreatePaymentCreditCard(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{
		customerID: "cus_1",
		payment: &AsaasPayment{
			ID:                    "pay_cc",
			InvoiceURL:            "https://inv/cc",
			TransactionReceiptURL: "https://rcpt/cc",
		},
	}
	svc := newTestService(repo, gw)

	in := pixInput()
	in.PaymentMethod = "CREDIT_CARD"
	in.PlanType = "PROFISSIONAL"

	res, err := svc.CreatePayment(context.Background(), in, []byte(`{}`))
	assert.NoError(t, err)
	assert.Nil(t, res.Pix)
	assert.Equal(t, "https://inv/cc", res.CreditCard.InvoiceURL)
	assert.Equal(t, 1, gw.createdPayments[0].InstallmentCount)
}

func TestCreatePaymentExistingCustomerReused(t *testing.T) {
	repo := newFakeRepo()
	repo.customers = append(repo.customers, &models.Customer{
		ID:              1,
		Name:            "Ana Velha",
		CpfCnpj:         "12345678901",
		Email:           "a@x.com",
		Phone:           "1100000000",
		AsaasCustomerID: "cus_1",
	})
	gw := &fakeGateway{payment: &AsaasPayment{ID: "pay_2"}}
	svc := newTestService(repo, gw)

	_, err := svc.CreatePayment(context.Background(), pixInput(), []byte(`{}`))
	assert.NoError(t, err)

	// No new customer anywhere; mutable contact fields refreshed.
	assert.Empty(t, gw.createdCustomers)
	assert.Len(t, repo.customers, 1)
	assert.Equal(t, "Ana", repo.customers[0].Name)
	assert.Equal(t, "11999999999", repo.customers[0].Phone)
}

func TestCreatePaymentCustomerConflict(t *testing.T) {
	repo := newFakeRepo()
	repo.conflict = true
	svc := newTestService(repo, &fakeGateway{})

	_, err := svc.CreatePayment(context.Background(), pixInput(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrCustomerConflict)
	// Conflicts are a client-side condition, not an audit event.
	assert.Empty(t, repo.auditedErr)
}

func TestCreatePaymentGatewayFailureAudited(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{customerErr: &AsaasError{StatusCode: 500, Body: "boom"}}
	svc := newTestService(repo, gw)

	_, err := svc.CreatePayment(context.Background(), pixInput(), []byte(`{"nome":"Ana"}`))
	var gerr *GatewayError
	assert.ErrorAs(t, err, &gerr)
	assert.Equal(t, "create customer", gerr.Op)
	assert.Len(t, repo.auditedErr, 1)
}

func TestCreatePaymentValidation(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeGateway{})

	in := pixInput()
	in.Email = "not-an-email"
	in.Amount = 0
	in.PaymentMethod = "BOLETO"

	_, err := svc.CreatePayment(context.Background(), in, nil)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "amount")
	assert.Contains(t, verr.Fields, "paymentmethod")
}

func TestCreatePaymentPixQRCodeFailureTolerated(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{
		customerID: "cus_1",
		payment:    &AsaasPayment{ID: "pay_123", InvoiceURL: "https://inv/1"},
		pixErr:     &AsaasError{StatusCode: 503, Body: "unavailable"},
	}
	svc := newTestService(repo, gw)

	res, err := svc.CreatePayment(context.Background(), pixInput(), []byte(`{}`))
	assert.NoError(t, err)
	assert.Nil(t, res.Pix)
	assert.Equal(t, "https://inv/1", res.InvoiceURL)
}

func TestGetPaymentStatusRefreshesFromGateway(t *testing.T) {
	repo := newFakeRepo()
	pendingPayment(repo, "pay_123")
	gw := &fakeGateway{getPayment: &AsaasPayment{ID: "pay_123", Status: "RECEIVED"}}
	svc := newTestService(repo, gw)

	res, err := svc.GetPaymentStatus(context.Background(), "pay_123")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusReceived, res.Status)

	// The refresh ran through the transition engine, so activation fired.
	assert.True(t, repo.features[featureKey(7, plans.FeatureOnlineBooking)])
}

func TestGetPaymentStatusByLocalID(t *testing.T) {
	repo := newFakeRepo()
	p := pendingPayment(repo, "pay_123")
	gw := &fakeGateway{getPayment: &AsaasPayment{ID: "pay_123", Status: "PENDING"}}
	svc := newTestService(repo, gw)

	res, err := svc.GetPaymentStatus(context.Background(), "1")
	assert.NoError(t, err)
	assert.Equal(t, p.AsaasPaymentID, res.GatewayPaymentID)

	_, err = svc.GetPaymentStatus(context.Background(), "99")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestGetPaymentStatusGatewayDownServesLocal(t *testing.T) {
	repo := newFakeRepo()
	pendingPayment(repo, "pay_123")
	gw := &fakeGateway{getPaymentErr: &AsaasError{StatusCode: 502, Body: "bad gateway"}}
	svc := newTestService(repo, gw)

	res, err := svc.GetPaymentStatus(context.Background(), "pay_123")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, res.Status)
}

func TestListPayments(t *testing.T) {
	repo := newFakeRepo()
	for i := 0; i < 15; i++ {
		p := pendingPayment(repo, "pay_"+string(rune('a'+i)))
		p.Status = models.PaymentStatusOverdue
	}
	svc := newTestService(repo, &fakeGateway{})

	res, err := svc.ListPayments(context.Background(), ListInput{Page: 2, Limit: 10, Status: "OVERDUE"})
	assert.NoError(t, err)
	assert.Equal(t, int64(15), res.Total)
	assert.Equal(t, 2, res.TotalPages)
	assert.True(t, res.HasPrev)
	assert.False(t, res.HasNext)
	assert.Len(t, res.Payments, 5)
	for _, p := range res.Payments {
		assert.Equal(t, models.PaymentStatusOverdue, p.Status)
	}

	_, err = svc.ListPayments(context.Background(), ListInput{Status: "NOT_A_STATUS"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

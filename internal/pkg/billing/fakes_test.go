package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/agendahub/payments-api/app/models"
	"github.com/agendahub/payments-api/internal/pkg/plans"
)

// fakeRepo is an in-memory Repository for service/engine/processor tests.
type fakeRepo struct {
	customers []*models.Customer
	conflict  bool

	payments      map[string]*models.Payment
	nextPaymentID uint

	logs       []*models.WebhookLog
	nextLogID  uint
	auditedErr []string

	features map[string]bool

	// forceUpdateRows simulates a lost conditional-update race when set.
	forceUpdateRows *int64

	failCreateLog bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		payments: map[string]*models.Payment{},
		features: map[string]bool{},
	}
}

func (f *fakeRepo) addPayment(p *models.Payment) *models.Payment {
	f.nextPaymentID++
	p.ID = f.nextPaymentID
	f.payments[p.AsaasPaymentID] = p
	return p
}

func (f *fakeRepo) FindCustomerByEmailOrCpf(email, cpf string) (*models.Customer, bool, error) {
	if f.conflict {
		return nil, true, nil
	}
	for _, c := range f.customers {
		if c.Email == email || c.CpfCnpj == cpf {
			return c, false, nil
		}
	}
	return nil, false, nil
}

func (f *fakeRepo) SaveCustomer(customer *models.Customer) error {
	if customer.ID == 0 {
		customer.ID = uint(len(f.customers) + 1)
		f.customers = append(f.customers, customer)
	}
	return nil
}

func (f *fakeRepo) UpdateCustomerContact(id uint, name, phone string) error {
	for _, c := range f.customers {
		if c.ID == id {
			c.Name = name
			c.Phone = phone
			return nil
		}
	}
	return errors.New("customer not found")
}

func (f *fakeRepo) CreatePayment(payment *models.Payment) error {
	f.addPayment(payment)
	return nil
}

func (f *fakeRepo) GetPaymentByAsaasID(asaasPaymentID string) (*models.Payment, error) {
	p, ok := f.payments[asaasPaymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) GetPaymentByID(id uint) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (f *fakeRepo) UpdatePaymentStatusIfChanged(asaasPaymentID string, to models.PaymentStatus) (int64, error) {
	if f.forceUpdateRows != nil {
		return *f.forceUpdateRows, nil
	}
	p, ok := f.payments[asaasPaymentID]
	if !ok || p.Status == to {
		return 0, nil
	}
	p.Status = to
	return 1, nil
}

func (f *fakeRepo) ListPayments(status string, offset, limit int) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range f.payments {
		if status == "" || string(p.Status) == status {
			out = append(out, *p)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) CountPayments(status string) (int64, error) {
	var n int64
	for _, p := range f.payments {
		if status == "" || string(p.Status) == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateWebhookLog(log *models.WebhookLog) error {
	if f.failCreateLog {
		return errors.New("log write failed")
	}
	f.nextLogID++
	log.ID = f.nextLogID
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeRepo) GetWebhookLogByID(id uint) (*models.WebhookLog, error) {
	for _, l := range f.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, ErrWebhookLogNotFound
}

func (f *fakeRepo) MarkWebhookProcessed(id uint, errMsg string) error {
	for _, l := range f.logs {
		if l.ID == id {
			l.Processed = true
			l.ErrorMessage = errMsg
			return nil
		}
	}
	return errors.New("log not found")
}

func (f *fakeRepo) MarkLatestWebhookProcessed(asaasPaymentID, eventType, errMsg string) error {
	for i := len(f.logs) - 1; i >= 0; i-- {
		if f.logs[i].AsaasPaymentID == asaasPaymentID && f.logs[i].EventType == eventType {
			f.logs[i].Processed = true
			f.logs[i].ErrorMessage = errMsg
			return nil
		}
	}
	return nil
}

func (f *fakeRepo) RecordWebhookError(id uint, errMsg string) error {
	for _, l := range f.logs {
		if l.ID == id {
			l.ErrorMessage = errMsg
			return nil
		}
	}
	return nil
}

func (f *fakeRepo) RecordPaymentError(message string, payload []byte) error {
	f.auditedErr = append(f.auditedErr, message)
	return nil
}

func (f *fakeRepo) UpsertCustomerFeature(customerID uint, feature string, active bool) error {
	f.features[featureKey(customerID, feature)] = active
	return nil
}

func (f *fakeRepo) GetCustomerFeature(customerID uint, feature string) (*models.CustomerFeature, error) {
	active, ok := f.features[featureKey(customerID, feature)]
	if !ok {
		return nil, nil
	}
	return &models.CustomerFeature{CustomerID: customerID, Feature: feature, Active: active}, nil
}

func featureKey(customerID uint, feature string) string {
	return fmt.Sprintf("%d|%s", customerID, feature)
}

// fakeGateway scripts gateway answers for the service tests.
type fakeGateway struct {
	customerID string
	customerErr error

	payment    *AsaasPayment
	paymentErr error

	pix    *AsaasPixQRCode
	pixErr error

	getPayment    *AsaasPayment
	getPaymentErr error

	createdCustomers []AsaasCustomerRequest
	createdPayments  []AsaasPaymentRequest
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, req AsaasCustomerRequest) (*AsaasCustomer, error) {
	g.createdCustomers = append(g.createdCustomers, req)
	if g.customerErr != nil {
		return nil, g.customerErr
	}
	return &AsaasCustomer{ID: g.customerID, Name: req.Name, Email: req.Email, CpfCnpj: req.CpfCnpj}, nil
}

func (g *fakeGateway) CreatePayment(ctx context.Context, req AsaasPaymentRequest) (*AsaasPayment, error) {
	g.createdPayments = append(g.createdPayments, req)
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	return g.payment, nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, paymentID string) (*AsaasPayment, error) {
	if g.getPaymentErr != nil {
		return nil, g.getPaymentErr
	}
	return g.getPayment, nil
}

func (g *fakeGateway) GetPixQRCode(ctx context.Context, paymentID string) (*AsaasPixQRCode, error) {
	if g.pixErr != nil {
		return nil, g.pixErr
	}
	if g.pix == nil {
		return &AsaasPixQRCode{}, nil
	}
	return g.pix, nil
}

// fakeActivator records side-effect invocations.
type fakeActivator struct {
	activated   []uint
	deactivated []uint
	plan        plans.Plan
	err         error
}

func (a *fakeActivator) Activate(ctx context.Context, customerID uint, plan plans.Plan) error {
	a.activated = append(a.activated, customerID)
	a.plan = plan
	return a.err
}

func (a *fakeActivator) Deactivate(ctx context.Context, customerID uint) error {
	a.deactivated = append(a.deactivated, customerID)
	return a.err
}

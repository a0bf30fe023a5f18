package billing

import (
	"errors"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agendahub/payments-api/app/models"
)

// Repository provides the DB operations used by the payment service, the
// transition engine and the webhook processor.
type Repository interface {
	FindCustomerByEmailOrCpf(email, cpf string) (*models.Customer, bool, error)
	SaveCustomer(customer *models.Customer) error
	UpdateCustomerContact(id uint, name, phone string) error

	CreatePayment(payment *models.Payment) error
	GetPaymentByAsaasID(asaasPaymentID string) (*models.Payment, error)
	GetPaymentByID(id uint) (*models.Payment, error)
	UpdatePaymentStatusIfChanged(asaasPaymentID string, to models.PaymentStatus) (int64, error)
	ListPayments(status string, offset, limit int) ([]models.Payment, error)
	CountPayments(status string) (int64, error)

	CreateWebhookLog(log *models.WebhookLog) error
	GetWebhookLogByID(id uint) (*models.WebhookLog, error)
	MarkWebhookProcessed(id uint, errMsg string) error
	MarkLatestWebhookProcessed(asaasPaymentID, eventType, errMsg string) error
	RecordWebhookError(id uint, errMsg string) error

	RecordPaymentError(message string, payload []byte) error

	UpsertCustomerFeature(customerID uint, feature string, active bool) error
	GetCustomerFeature(customerID uint, feature string) (*models.CustomerFeature, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// FindCustomerByEmailOrCpf looks a customer up by email OR cpf/cnpj. When the
// two keys resolve to different rows the boolean is true and both pointers
// are withheld: the caller must surface a conflict instead of picking a side.
func (r *gormRepository) FindCustomerByEmailOrCpf(email, cpf string) (*models.Customer, bool, error) {
	byEmail, err := r.firstCustomer("email = ?", email)
	if err != nil {
		return nil, false, err
	}
	byCpf, err := r.firstCustomer("cpf_cnpj = ?", cpf)
	if err != nil {
		return nil, false, err
	}

	switch {
	case byEmail != nil && byCpf != nil && byEmail.ID != byCpf.ID:
		return nil, true, nil
	case byEmail != nil:
		return byEmail, false, nil
	case byCpf != nil:
		return byCpf, false, nil
	default:
		return nil, false, nil
	}
}

func (r *gormRepository) firstCustomer(query string, arg string) (*models.Customer, error) {
	var c models.Customer
	err := r.db.Where(query, arg).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) SaveCustomer(customer *models.Customer) error {
	return r.db.Save(customer).Error
}

func (r *gormRepository) UpdateCustomerContact(id uint, name, phone string) error {
	return r.db.Model(&models.Customer{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":  name,
		"phone": phone,
	}).Error
}

func (r *gormRepository) CreatePayment(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

func (r *gormRepository) GetPaymentByAsaasID(asaasPaymentID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("asaas_payment_id = ?", asaasPaymentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPaymentByID(id uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePaymentStatusIfChanged issues the single conditional UPDATE the whole
// concurrency story hangs on: matched by the unique asaas id AND a differing
// status, so concurrent writers to the same row serialize at the storage
// layer. Returns rows affected; zero after an existence check means a race.
func (r *gormRepository) UpdatePaymentStatusIfChanged(asaasPaymentID string, to models.PaymentStatus) (int64, error) {
	res := r.db.Model(&models.Payment{}).
		Where("asaas_payment_id = ? AND status <> ?", asaasPaymentID, to).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) ListPayments(status string, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	q := r.db.Model(&models.Payment{}).Order("created_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Offset(offset).Limit(limit).Find(&payments).Error
	return payments, err
}

func (r *gormRepository) CountPayments(status string) (int64, error) {
	var total int64
	q := r.db.Model(&models.Payment{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&total).Error
	return total, err
}

func (r *gormRepository) CreateWebhookLog(log *models.WebhookLog) error {
	return r.db.Create(log).Error
}

func (r *gormRepository) GetWebhookLogByID(id uint) (*models.WebhookLog, error) {
	var wl models.WebhookLog
	err := r.db.First(&wl, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWebhookLogNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wl, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, errMsg string) error {
	return r.db.Model(&models.WebhookLog{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":     true,
		"error_message": errMsg,
	}).Error
}

// MarkLatestWebhookProcessed flips the most recent log row matching the
// payment id + event type. Redeliveries append their own rows, so "most
// recent first" targets the attempt that is actually being answered.
func (r *gormRepository) MarkLatestWebhookProcessed(asaasPaymentID, eventType, errMsg string) error {
	var wl models.WebhookLog
	err := r.db.Where("asaas_payment_id = ? AND event_type = ?", asaasPaymentID, eventType).
		Order("created_at DESC, id DESC").
		First(&wl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.MarkWebhookProcessed(wl.ID, errMsg)
}

func (r *gormRepository) RecordWebhookError(id uint, errMsg string) error {
	return r.db.Model(&models.WebhookLog{}).Where("id = ?", id).
		Update("error_message", errMsg).Error
}

func (r *gormRepository) RecordPaymentError(message string, payload []byte) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return r.db.Create(&models.PaymentError{
		Message: message,
		Payload: models.JSON(payload),
	}).Error
}

// UpsertCustomerFeature creates the feature row on first activation and flips
// it in place afterwards, stamping the matching side of the
// activated/deactivated pair.
func (r *gormRepository) UpsertCustomerFeature(customerID uint, feature string, active bool) error {
	now := time.Now()
	cf := &models.CustomerFeature{
		CustomerID: customerID,
		Feature:    feature,
		Active:     active,
	}
	assignments := map[string]interface{}{
		"active":     active,
		"updated_at": now,
	}
	if active {
		cf.ActivatedAt = lo.ToPtr(now)
		assignments["activated_at"] = lo.ToPtr(now)
	} else {
		cf.DeactivatedAt = lo.ToPtr(now)
		assignments["deactivated_at"] = lo.ToPtr(now)
	}

	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "customer_id"},
			{Name: "feature"},
		},
		DoUpdates: clause.Assignments(assignments),
	}).Create(cf).Error
}

func (r *gormRepository) GetCustomerFeature(customerID uint, feature string) (*models.CustomerFeature, error) {
	var cf models.CustomerFeature
	err := r.db.Where("customer_id = ? AND feature = ?", customerID, feature).First(&cf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cf, nil
}

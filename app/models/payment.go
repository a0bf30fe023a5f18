package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the local payment lifecycle state. The remote gateway is
// authoritative; these values mirror what its events instruct.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
	PaymentStatusReceived  PaymentStatus = "RECEIVED"
	PaymentStatusOverdue   PaymentStatus = "OVERDUE"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// KnownPaymentStatus reports whether s is one of the enumerated states.
func KnownPaymentStatus(s string) bool {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusConfirmed, PaymentStatusReceived,
		PaymentStatusOverdue, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// Payment is one gateway charge for a subscription plan. AsaasPaymentID is
// the idempotency anchor: immutable after creation and the sole join key for
// inbound webhook events. Status is mutated exclusively through the
// transition engine (webhook processing or an explicit status refresh).
type Payment struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	CustomerID        uint            `gorm:"not null;index" json:"customer_id"`
	Customer          Customer        `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	AsaasPaymentID    string          `gorm:"type:varchar(50);not null;uniqueIndex" json:"asaas_payment_id"`
	PlanType          string          `gorm:"type:varchar(20);not null;index" json:"plan_type"`
	BillingType       string          `gorm:"type:varchar(20);not null" json:"billing_type"`
	Amount            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Status            PaymentStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ExternalReference string          `gorm:"type:varchar(100)" json:"external_reference"`
	InvoiceURL        string          `gorm:"type:varchar(255)" json:"invoice_url"`
	DueDate           string          `gorm:"type:varchar(10)" json:"due_date"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

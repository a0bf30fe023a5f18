package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookLog stores every inbound gateway delivery verbatim before any
// processing happens. Append-only: redeliveries of the same logical event get
// their own rows; deduplication happens at the Payment level via idempotent
// status application, never here.
type WebhookLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DeliveryID     string    `gorm:"type:char(36);uniqueIndex;not null" json:"delivery_id"`
	AsaasPaymentID string    `gorm:"type:varchar(50);index;default:''" json:"asaas_payment_id"`
	EventType      string    `gorm:"type:varchar(100);index" json:"event_type"`
	Payload        JSON      `gorm:"type:longtext;not null" json:"payload"`
	Processed      bool      `gorm:"default:false;index" json:"processed"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// BeforeCreate assigns a delivery id so every attempt is individually
// addressable in logs and by the reprocess endpoint.
func (w *WebhookLog) BeforeCreate(tx *gorm.DB) error {
	if w.DeliveryID == "" {
		w.DeliveryID = uuid.New().String()
	}
	return nil
}

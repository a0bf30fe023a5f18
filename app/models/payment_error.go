package models

import "time"

// PaymentError is a write-only audit row for failed payment-creation
// attempts. Never read back by the application; diagnostics only.
type PaymentError struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Payload   JSON      `gorm:"type:longtext" json:"payload"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

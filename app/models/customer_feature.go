package models

import "time"

// CustomerFeature is one feature flag toggled for a customer by service
// activation. Upsert semantics: the row is created on first activation and
// flipped in place afterwards.
type CustomerFeature struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CustomerID    uint       `gorm:"not null;index:ux_customer_features_customer_feature,unique,priority:1" json:"customer_id"`
	Feature       string     `gorm:"type:varchar(50);not null;index:ux_customer_features_customer_feature,unique,priority:2" json:"feature"`
	Active        bool       `gorm:"default:false;index" json:"active"`
	ActivatedAt   *time.Time `gorm:"type:timestamp;default:null" json:"activated_at,omitempty"`
	DeactivatedAt *time.Time `gorm:"type:timestamp;default:null" json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

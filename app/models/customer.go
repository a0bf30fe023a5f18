package models

import "time"

// Customer is a local mirror of an AgendaHub subscriber linked to an Asaas
// customer. CpfCnpj and Email are each globally unique; AsaasCustomerID stays
// empty until the first remote creation succeeds.
type Customer struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"type:varchar(150);not null" json:"name"`
	CpfCnpj         string    `gorm:"type:varchar(14);not null;uniqueIndex" json:"cpf_cnpj"`
	Email           string    `gorm:"type:varchar(200);not null;uniqueIndex" json:"email"`
	Phone           string    `gorm:"type:varchar(20)" json:"phone"`
	AsaasCustomerID string    `gorm:"type:varchar(50);uniqueIndex;default:null" json:"asaas_customer_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

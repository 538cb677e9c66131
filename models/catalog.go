package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vehicle belongs to exactly one customer.
type Vehicle struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CustomerID   uint      `gorm:"not null;index" json:"customer_id"`
	Customer     *Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"-"`
	Make         string    `gorm:"type:varchar(100);not null" json:"make"`
	Model        string    `gorm:"type:varchar(100);not null" json:"model"`
	Year         int       `json:"year"`
	LicensePlate *string   `gorm:"type:varchar(20)" json:"license_plate,omitempty"`
	VIN          *string   `gorm:"column:vin;type:varchar(17)" json:"vin,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Vehicle model
func (Vehicle) TableName() string {
	return "vehicles"
}

// Service is a catalogue entry that can be attached to orders.
type Service struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description *string         `gorm:"type:text" json:"description,omitempty"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Service model
func (Service) TableName() string {
	return "services"
}

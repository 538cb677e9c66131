package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the state of a single payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// Payment records one attempt to pay an order through the processor. The
// pairing with ExternalIntentID never changes once written.
type Payment struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	OrderID          uint              `gorm:"not null;index" json:"order_id"`
	Order            *Order            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
	CustomerID       uint              `gorm:"not null;index" json:"customer_id"`
	Customer         *Customer         `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"-"`
	Amount           decimal.Decimal   `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency         string            `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	PaymentMethod    string            `gorm:"type:varchar(50);not null" json:"payment_method"`
	ExternalIntentID string            `gorm:"column:external_intent_id;type:varchar(255);not null;uniqueIndex" json:"payment_intent_id"`
	Status           PaymentStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TransactionID    *string           `gorm:"type:varchar(255)" json:"transaction_id"`
	Metadata         map[string]string `gorm:"serializer:json;type:text" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TableName specifies the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}

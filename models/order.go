package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the work status of an order.
type OrderStatus string

const (
	OrderStatusReceived   OrderStatus = "Received"
	OrderStatusInProgress OrderStatus = "In Progress"
	OrderStatusCompleted  OrderStatus = "Completed"
)

// OrderStatuses lists every valid work status.
var OrderStatuses = []OrderStatus{OrderStatusReceived, OrderStatusInProgress, OrderStatusCompleted}

func (s OrderStatus) IsValid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseOrderStatus validates a raw status value.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid status %q: must be one of %v", raw, OrderStatuses)
	}
	return status, nil
}

// OrderPaymentStatus tracks whether an order has been paid. It only moves
// from pending to paid, and only through payment reconciliation.
type OrderPaymentStatus string

const (
	OrderPaymentPending OrderPaymentStatus = "pending"
	OrderPaymentPaid    OrderPaymentStatus = "paid"
)

// Order is a repair job for one customer.
type Order struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	CustomerID         uint               `gorm:"not null;index" json:"customer_id"`
	Customer           *Customer          `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
	VehicleID          *uint              `gorm:"index" json:"vehicle_id"`
	Vehicle            *Vehicle           `gorm:"foreignKey:VehicleID;constraint:OnDelete:SET NULL" json:"vehicle,omitempty"`
	Description        *string            `gorm:"type:text" json:"description"`
	Status             OrderStatus        `gorm:"type:varchar(50);not null;default:'Received';index" json:"status"`
	TotalAmount        decimal.Decimal    `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	PaymentStatus      OrderPaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	ReceivedBy         string             `gorm:"type:varchar(255)" json:"received_by"`
	AssignedEmployeeID *uint              `gorm:"index" json:"assigned_employee_id"`
	AssignedEmployee   *Employee          `gorm:"foreignKey:AssignedEmployeeID;constraint:OnDelete:SET NULL" json:"assigned_employee,omitempty"`
	CompletionNote     *string            `gorm:"type:text" json:"completion_note"`
	OrderServices      []OrderService     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
	Services           []Service          `gorm:"-" json:"services"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// IsPaid reports whether the order has been settled.
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == OrderPaymentPaid
}

// HydrateServices flattens the preloaded join rows into Services, ordered by id.
func (o *Order) HydrateServices() {
	services := make([]Service, 0, len(o.OrderServices))
	for _, link := range o.OrderServices {
		if link.Service != nil {
			services = append(services, *link.Service)
		}
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })
	o.Services = services
}

// OrderService links a service to an order. A service appears at most once per order.
type OrderService struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;uniqueIndex:idx_order_service_unique" json:"order_id"`
	ServiceID uint      `gorm:"not null;uniqueIndex:idx_order_service_unique;index" json:"service_id"`
	Service   *Service  `gorm:"foreignKey:ServiceID;constraint:OnDelete:CASCADE" json:"service,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the OrderService model
func (OrderService) TableName() string {
	return "order_services"
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/authz"
	"github.com/atoz-auto/autoshop-api/events"
	"github.com/atoz-auto/autoshop-api/logger"
	"github.com/atoz-auto/autoshop-api/metrics"
	"github.com/atoz-auto/autoshop-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// readTx gives multi-query reads a single snapshot so a hydrated order never
// mixes rows from before and after a concurrent write.
var readTx = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// Optional distinguishes a field that is absent from a patch (Set false)
// from one explicitly set to null (Set true, Value nil).
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns an Optional explicitly cleared.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// CreateOrderInput carries the fields accepted when an order is opened.
type CreateOrderInput struct {
	CustomerID  uint
	VehicleID   *uint
	Description *string
	ServiceIDs  []uint
	ReceivedBy  *string
	TotalAmount *decimal.Decimal
}

// OrderPatch is a partial update. Nil pointers and unset Optionals leave the
// stored value untouched.
type OrderPatch struct {
	VehicleID          Optional[uint]
	Description        Optional[string]
	TotalAmount        *decimal.Decimal
	Status             *models.OrderStatus
	ReceivedBy         *string
	AssignedEmployeeID Optional[uint]
	CompletionNote     Optional[string]
	ServiceIDs         Optional[[]uint]
}

// Fields names the fields the patch touches.
func (p OrderPatch) Fields() []string {
	var fields []string
	if p.VehicleID.Set {
		fields = append(fields, authz.FieldVehicleID)
	}
	if p.Description.Set {
		fields = append(fields, authz.FieldDescription)
	}
	if p.TotalAmount != nil {
		fields = append(fields, authz.FieldTotalAmount)
	}
	if p.Status != nil {
		fields = append(fields, authz.FieldStatus)
	}
	if p.ReceivedBy != nil {
		fields = append(fields, authz.FieldReceivedBy)
	}
	if p.AssignedEmployeeID.Set {
		fields = append(fields, authz.FieldAssignedEmployeeID)
	}
	if p.CompletionNote.Set {
		fields = append(fields, authz.FieldCompletionNote)
	}
	if p.ServiceIDs.Set {
		fields = append(fields, authz.FieldServiceIDs)
	}
	return fields
}

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	Status             *models.OrderStatus
	PaymentStatus      *models.OrderPaymentStatus
	CustomerID         *uint
	AssignedEmployeeID *uint
	Limit              int
	Offset             int
}

// Normalized applies the default and maximum limit and clamps a negative offset.
func (f OrderFilter) Normalized() OrderFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// OrderStore owns orders and their attached services. Every write commits
// before the matching status event is published.
type OrderStore struct {
	db        *gorm.DB
	publisher events.Publisher
	metrics   *metrics.Registry
	now       func() time.Time
}

func NewOrderStore(db *gorm.DB, publisher events.Publisher, m *metrics.Registry) *OrderStore {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &OrderStore{db: db, publisher: publisher, metrics: m, now: time.Now}
}

// CreateOrder opens an order in status Received with payment pending.
func (s *OrderStore) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if in.TotalAmount != nil && in.TotalAmount.IsNegative() {
		return nil, apperrors.Validation("total_amount must be zero or greater")
	}

	var receivedBy string
	if in.ReceivedBy != nil {
		receivedBy = strings.TrimSpace(*in.ReceivedBy)
	}

	order := models.Order{
		CustomerID:    in.CustomerID,
		VehicleID:     in.VehicleID,
		Description:   in.Description,
		Status:        models.OrderStatusReceived,
		PaymentStatus: models.OrderPaymentPending,
		ReceivedBy:    receivedBy,
	}
	if in.TotalAmount != nil {
		order.TotalAmount = *in.TotalAmount
	}
	serviceIDs := uniqueIDs(in.ServiceIDs)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCustomer(tx, in.CustomerID); err != nil {
			return err
		}
		if in.VehicleID != nil {
			if err := ensureVehicleOwner(tx, *in.VehicleID, in.CustomerID); err != nil {
				return err
			}
		}
		if err := ensureServices(tx, serviceIDs); err != nil {
			return err
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return linkServices(tx, order.ID, serviceIDs)
	})
	if err != nil {
		return nil, storeError(err, "failed to create order")
	}

	s.metrics.OrderCreated()
	s.publish(ctx, &order)

	created, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Uint("order_id", order.ID).Msg("created order could not be reloaded")
		return &order, nil
	}
	return created, nil
}

// GetOrder returns a fully hydrated order.
func (s *OrderStore) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return preloadOrder(tx).First(&order, id).Error
	}, readTx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.Internal(err, "failed to load order")
	}
	order.HydrateServices()
	return &order, nil
}

// OrderOwner returns the customer that owns an order.
func (s *OrderStore) OrderOwner(ctx context.Context, id uint) (uint, error) {
	var row struct{ CustomerID uint }
	err := s.db.WithContext(ctx).Model(&models.Order{}).Select("customer_id").Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrOrderNotFound
		}
		return 0, apperrors.Internal(err, "failed to load order")
	}
	return row.CustomerID, nil
}

// VehicleOwner returns the customer that owns a vehicle.
func (s *OrderStore) VehicleOwner(ctx context.Context, id uint) (uint, error) {
	var vehicle models.Vehicle
	err := s.db.WithContext(ctx).Select("id", "customer_id").Take(&vehicle, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.New(apperrors.KindNotFound, "VEHICLE_NOT_FOUND", "Vehicle not found")
		}
		return 0, apperrors.Internal(err, "failed to load vehicle")
	}
	return vehicle.CustomerID, nil
}

// GetVehicle loads a vehicle by id.
func (s *OrderStore) GetVehicle(ctx context.Context, id uint) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := s.db.WithContext(ctx).Take(&vehicle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "VEHICLE_NOT_FOUND", "Vehicle not found")
		}
		return nil, apperrors.Internal(err, "failed to load vehicle")
	}
	return &vehicle, nil
}

// ListOrders returns a page of hydrated orders, newest first, and the total
// number of orders matching the filter.
func (s *OrderStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	f := filter.Normalized()

	var (
		orders []models.Order
		total  int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := applyFilter(tx.Model(&models.Order{}), f)
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return preloadOrder(applyFilter(tx, f)).
			Order("created_at DESC").
			Order("id DESC").
			Limit(f.Limit).
			Offset(f.Offset).
			Find(&orders).Error
	}, readTx)
	if err != nil {
		return nil, 0, apperrors.Internal(err, "failed to list orders")
	}

	for i := range orders {
		orders[i].HydrateServices()
	}
	return orders, total, nil
}

// UpdateOrder applies a partial update. Replacing service_ids deletes and
// re-inserts the links in the same transaction. A status event is published
// only when the status actually changed.
func (s *OrderStore) UpdateOrder(ctx context.Context, id uint, patch OrderPatch) (*models.Order, error) {
	if patch.TotalAmount != nil && patch.TotalAmount.IsNegative() {
		return nil, apperrors.Validation("total_amount must be zero or greater")
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, apperrors.Validation("status must be one of Received, In Progress, Completed")
	}

	var before models.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrOrderNotFound
			}
			return err
		}
		before = order.Status

		updates := map[string]any{}
		if patch.VehicleID.Set {
			if patch.VehicleID.Value != nil {
				if err := ensureVehicleOwner(tx, *patch.VehicleID.Value, order.CustomerID); err != nil {
					return err
				}
				updates["vehicle_id"] = *patch.VehicleID.Value
			} else {
				updates["vehicle_id"] = nil
			}
		}
		if patch.Description.Set {
			updates["description"] = nullable(patch.Description.Value)
		}
		if patch.TotalAmount != nil {
			updates["total_amount"] = *patch.TotalAmount
		}
		if patch.Status != nil {
			updates["status"] = string(*patch.Status)
		}
		if patch.ReceivedBy != nil {
			updates["received_by"] = strings.TrimSpace(*patch.ReceivedBy)
		}
		if patch.AssignedEmployeeID.Set {
			if patch.AssignedEmployeeID.Value != nil {
				if err := ensureEmployee(tx, *patch.AssignedEmployeeID.Value); err != nil {
					return err
				}
				updates["assigned_employee_id"] = *patch.AssignedEmployeeID.Value
			} else {
				updates["assigned_employee_id"] = nil
			}
		}
		if patch.CompletionNote.Set {
			updates["completion_note"] = nullable(patch.CompletionNote.Value)
		}

		if patch.ServiceIDs.Set {
			var ids []uint
			if patch.ServiceIDs.Value != nil {
				ids = uniqueIDs(*patch.ServiceIDs.Value)
			}
			if err := ensureServices(tx, ids); err != nil {
				return err
			}
			if err := tx.Where("order_id = ?", id).Delete(&models.OrderService{}).Error; err != nil {
				return err
			}
			if err := linkServices(tx, id, ids); err != nil {
				return err
			}
			if len(updates) == 0 {
				updates["updated_at"] = s.now()
			}
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, storeError(err, "failed to update order")
	}

	updated, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil && before != updated.Status {
		s.metrics.StatusChanged(string(before), string(updated.Status))
		s.publish(ctx, updated)
	}
	return updated, nil
}

// AddService attaches one catalogue service to an order. The unique
// (order_id, service_id) index rejects a second attach, including one that
// races this call.
func (s *OrderStore) AddService(ctx context.Context, orderID, serviceID uint) (*models.Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Select("id").Take(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrOrderNotFound
			}
			return err
		}
		if err := ensureServices(tx, []uint{serviceID}); err != nil {
			return err
		}
		return linkServices(tx, orderID, []uint{serviceID})
	})
	if err != nil {
		return nil, storeError(err, "failed to add service")
	}
	return s.GetOrder(ctx, orderID)
}

func (s *OrderStore) publish(ctx context.Context, order *models.Order) {
	evt := events.OrderEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		Timestamp:  s.now().UTC(),
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Uint("order_id", order.ID).Msg("order event delivery failed")
	}
}

func preloadOrder(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Customer").
		Preload("Vehicle").
		Preload("AssignedEmployee").
		Preload("OrderServices.Service")
}

func applyFilter(q *gorm.DB, f OrderFilter) *gorm.DB {
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.PaymentStatus != nil {
		q = q.Where("payment_status = ?", string(*f.PaymentStatus))
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.AssignedEmployeeID != nil {
		q = q.Where("assigned_employee_id = ?", *f.AssignedEmployeeID)
	}
	return q
}

func ensureCustomer(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.Customer{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperrors.ErrCustomerNotFound
	}
	return nil
}

func ensureVehicleOwner(tx *gorm.DB, vehicleID, customerID uint) error {
	var vehicle models.Vehicle
	if err := tx.Select("id", "customer_id").Take(&vehicle, vehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrOwnershipViolation
		}
		return err
	}
	if vehicle.CustomerID != customerID {
		return apperrors.ErrOwnershipViolation
	}
	return nil
}

func ensureEmployee(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.Employee{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperrors.ErrEmployeeNotFound
	}
	return nil
}

func ensureServices(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&models.Service{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return err
	}
	if count != int64(len(ids)) {
		return apperrors.ErrServiceNotFound
	}
	return nil
}

func linkServices(tx *gorm.DB, orderID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	links := make([]models.OrderService, 0, len(ids))
	for _, id := range ids {
		links = append(links, models.OrderService{OrderID: orderID, ServiceID: id})
	}
	if err := tx.Create(&links).Error; err != nil {
		if isDuplicateKey(err) {
			return apperrors.ErrDuplicateService
		}
		return err
	}
	return nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// storeError passes typed errors through and wraps anything else as internal.
func storeError(err error, message string) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Internal(err, message)
}

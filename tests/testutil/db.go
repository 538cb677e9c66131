package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/atoz-auto/autoshop-api/config"
	"github.com/atoz-auto/autoshop-api/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory sqlite database with every table
// migrated. A single connection serialises transactions the way row locks
// would on PostgreSQL.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.AutoMigrate(db))
	return db
}

func SeedCustomer(t *testing.T, db *gorm.DB, name string) *models.Customer {
	t.Helper()
	c := &models.Customer{
		Name:  name,
		Email: fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func SeedVehicle(t *testing.T, db *gorm.DB, customerID uint) *models.Vehicle {
	t.Helper()
	v := &models.Vehicle{CustomerID: customerID, Make: "Toyota", Model: "Corolla", Year: 2018}
	require.NoError(t, db.Create(v).Error)
	return v
}

func SeedService(t *testing.T, db *gorm.DB, name, price string) *models.Service {
	t.Helper()
	s := &models.Service{Name: name, Price: decimal.RequireFromString(price)}
	require.NoError(t, db.Create(s).Error)
	return s
}

func SeedEmployee(t *testing.T, db *gorm.DB, name, role string) *models.Employee {
	t.Helper()
	e := &models.Employee{
		Name:  name,
		Email: fmt.Sprintf("%s-%s@autoshop.test", name, uuid.NewString()[:8]),
		Role:  role,
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

// SeedOrder inserts an order directly, bypassing the store.
func SeedOrder(t *testing.T, db *gorm.DB, customerID uint, total string) *models.Order {
	t.Helper()
	o := &models.Order{
		CustomerID:    customerID,
		Status:        models.OrderStatusReceived,
		PaymentStatus: models.OrderPaymentPending,
		TotalAmount:   decimal.RequireFromString(total),
		ReceivedBy:    "Customer",
	}
	require.NoError(t, db.Create(o).Error)
	return o
}

// SetCreatedAt backdates a row so ordering tests are deterministic.
func SetCreatedAt(t *testing.T, db *gorm.DB, model any, id uint, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(model).Where("id = ?", id).UpdateColumn("created_at", at).Error)
}

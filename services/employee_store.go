package services

import (
	"context"
	"errors"
	"strings"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/models"
	"gorm.io/gorm"
)

// EmployeeStore manages staff records.
type EmployeeStore struct {
	db *gorm.DB
}

func NewEmployeeStore(db *gorm.DB) *EmployeeStore {
	return &EmployeeStore{db: db}
}

// UpdateRole normalises raw and stores it on the employee. Unknown roles
// are rejected rather than stored.
func (s *EmployeeStore) UpdateRole(ctx context.Context, id uint, raw string) (*models.Employee, error) {
	role := identity.NormalizeRole(raw)
	if strings.TrimSpace(raw) == "" || !role.IsStaff() {
		return nil, apperrors.Validation("role must be one of Admin, Manager, Employee")
	}

	res := s.db.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", id).Update("role", role.String())
	if res.Error != nil {
		return nil, apperrors.Internal(res.Error, "failed to update role")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrEmployeeNotFound
	}

	var employee models.Employee
	if err := s.db.WithContext(ctx).Take(&employee, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEmployeeNotFound
		}
		return nil, apperrors.Internal(err, "failed to load employee")
	}
	return &employee, nil
}

package authz

import (
	"sort"
	"strings"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/identity"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionCreateOrder     Action = "order:create"
	ActionReadOrder       Action = "order:read"
	ActionListOrders      Action = "order:list"
	ActionUpdateOrder     Action = "order:update"
	ActionAttachService   Action = "order:attach_service"
	ActionPayOrder        Action = "payment:pay"
	ActionReadPayments    Action = "payment:read"
	ActionSubscribeOrder  Action = "realtime:subscribe_order"
	ActionSubscribeFeed   Action = "realtime:subscribe_feed"
	ActionReadVehicle     Action = "vehicle:read"
	ActionManageEmployees Action = "employee:manage"
)

// Order fields an update may touch.
const (
	FieldVehicleID          = "vehicle_id"
	FieldDescription        = "description"
	FieldTotalAmount        = "total_amount"
	FieldStatus             = "status"
	FieldReceivedBy         = "received_by"
	FieldAssignedEmployeeID = "assigned_employee_id"
	FieldCompletionNote     = "completion_note"
	FieldServiceIDs         = "service_ids"
)

// employeeFields are the order fields an Employee may change.
var employeeFields = map[string]bool{
	FieldStatus:         true,
	FieldTotalAmount:    true,
	FieldCompletionNote: true,
}

// Resource describes what an action targets.
type Resource struct {
	// OwnerID is the customer that owns the resource, or the customer an
	// order is being created for.
	OwnerID uint
	// Fields lists the fields a create or update sets.
	Fields []string
}

// Decide allows or denies p performing action on res. It returns nil when
// allowed. Customers touching resources they do not own get NotFound so
// existence is not revealed.
func Decide(p identity.Principal, action Action, res Resource) error {
	switch {
	case p.IsCustomer():
		return decideCustomer(p, action, res)
	case p.IsStaff():
		return decideStaff(p, action, res)
	default:
		return apperrors.ErrUnauthenticated
	}
}

func decideCustomer(p identity.Principal, action Action, res Resource) error {
	switch action {
	case ActionCreateOrder:
		if res.OwnerID != p.ID {
			return apperrors.ErrForbidden.WithMessage("Customers can only create orders for themselves")
		}
		for _, f := range res.Fields {
			if f == FieldTotalAmount {
				return apperrors.ErrForbidden.WithMessage("Customers cannot set total_amount")
			}
		}
		return nil
	case ActionReadOrder, ActionAttachService, ActionPayOrder, ActionReadPayments, ActionSubscribeOrder:
		if res.OwnerID != p.ID {
			return apperrors.ErrOrderNotFound
		}
		return nil
	case ActionReadVehicle:
		if res.OwnerID != p.ID {
			return apperrors.New(apperrors.KindNotFound, "VEHICLE_NOT_FOUND", "Vehicle not found")
		}
		return nil
	case ActionListOrders:
		if res.OwnerID != p.ID {
			return apperrors.ErrForbidden.WithMessage("Customers can only list their own orders")
		}
		return nil
	default:
		return apperrors.ErrForbidden
	}
}

func decideStaff(p identity.Principal, action Action, res Resource) error {
	role := p.Role
	if !role.IsStaff() {
		return apperrors.ErrForbidden.WithMessage("Unrecognised role")
	}

	switch action {
	case ActionReadOrder, ActionListOrders, ActionSubscribeOrder, ActionSubscribeFeed, ActionReadVehicle, ActionReadPayments:
		return nil
	case ActionCreateOrder, ActionAttachService:
		if role == identity.RoleAdmin || role == identity.RoleManager {
			return nil
		}
		return apperrors.ErrForbidden
	case ActionUpdateOrder:
		if role == identity.RoleAdmin || role == identity.RoleManager {
			return nil
		}
		if denied := disallowedFields(res.Fields); len(denied) > 0 {
			return apperrors.ErrForbidden.
				WithMessage("Employees cannot change "+strings.Join(denied, ", ")).
				WithDetails(map[string]any{"fields": denied})
		}
		return nil
	case ActionManageEmployees:
		if role == identity.RoleAdmin {
			return nil
		}
		return apperrors.ErrForbidden
	default:
		return apperrors.ErrForbidden
	}
}

func disallowedFields(fields []string) []string {
	var denied []string
	for _, f := range fields {
		if !employeeFields[f] {
			denied = append(denied, f)
		}
	}
	sort.Strings(denied)
	return denied
}

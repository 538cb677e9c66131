package authz

import (
	"testing"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = identity.Staff(1, identity.RoleAdmin)
	manager  = identity.Staff(2, identity.RoleManager)
	employee = identity.Staff(3, identity.RoleEmployee)
	unknown  = identity.Staff(4, identity.RoleUnknown)
	alice    = identity.Customer(10)
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		principal identity.Principal
		action    Action
		resource  Resource
		wantKind  *apperrors.Kind
	}{
		{"customer creates own order", alice, ActionCreateOrder, Resource{OwnerID: 10}, nil},
		{"customer creates order for someone else", alice, ActionCreateOrder, Resource{OwnerID: 11}, kind(apperrors.KindForbidden)},
		{"customer prices own order", alice, ActionCreateOrder, Resource{OwnerID: 10, Fields: []string{FieldTotalAmount}}, kind(apperrors.KindForbidden)},
		{"customer reads own order", alice, ActionReadOrder, Resource{OwnerID: 10}, nil},
		{"customer reads foreign order", alice, ActionReadOrder, Resource{OwnerID: 11}, kind(apperrors.KindNotFound)},
		{"customer attaches service to own order", alice, ActionAttachService, Resource{OwnerID: 10}, nil},
		{"customer attaches service to foreign order", alice, ActionAttachService, Resource{OwnerID: 11}, kind(apperrors.KindNotFound)},
		{"customer pays own order", alice, ActionPayOrder, Resource{OwnerID: 10}, nil},
		{"customer pays foreign order", alice, ActionPayOrder, Resource{OwnerID: 11}, kind(apperrors.KindNotFound)},
		{"customer reads foreign payments", alice, ActionReadPayments, Resource{OwnerID: 11}, kind(apperrors.KindNotFound)},
		{"customer subscribes to own order", alice, ActionSubscribeOrder, Resource{OwnerID: 10}, nil},
		{"customer subscribes to foreign order", alice, ActionSubscribeOrder, Resource{OwnerID: 11}, kind(apperrors.KindNotFound)},
		{"customer reads foreign vehicle", alice, ActionReadVehicle, Resource{OwnerID: 11}, kind(apperrors.KindNotFound)},
		{"customer lists all orders", alice, ActionListOrders, Resource{}, kind(apperrors.KindForbidden)},
		{"customer lists own orders", alice, ActionListOrders, Resource{OwnerID: alice.ID}, nil},
		{"customer updates order", alice, ActionUpdateOrder, Resource{OwnerID: 10, Fields: []string{FieldStatus}}, kind(apperrors.KindForbidden)},
		{"customer subscribes to feed", alice, ActionSubscribeFeed, Resource{}, kind(apperrors.KindForbidden)},
		{"customer manages employees", alice, ActionManageEmployees, Resource{}, kind(apperrors.KindForbidden)},

		{"admin lists orders", admin, ActionListOrders, Resource{}, nil},
		{"admin updates every field", admin, ActionUpdateOrder, Resource{Fields: []string{FieldVehicleID, FieldServiceIDs, FieldStatus}}, nil},
		{"manager updates every field", manager, ActionUpdateOrder, Resource{Fields: []string{FieldAssignedEmployeeID, FieldReceivedBy}}, nil},
		{"employee updates status and amount", employee, ActionUpdateOrder, Resource{Fields: []string{FieldStatus, FieldTotalAmount, FieldCompletionNote}}, nil},
		{"employee edits vehicle linkage", employee, ActionUpdateOrder, Resource{Fields: []string{FieldStatus, FieldVehicleID}}, kind(apperrors.KindForbidden)},
		{"employee edits services", employee, ActionUpdateOrder, Resource{Fields: []string{FieldServiceIDs}}, kind(apperrors.KindForbidden)},
		{"employee reads any order", employee, ActionReadOrder, Resource{OwnerID: 99}, nil},
		{"employee subscribes to feed", employee, ActionSubscribeFeed, Resource{}, nil},
		{"employee creates order", employee, ActionCreateOrder, Resource{OwnerID: 10}, kind(apperrors.KindForbidden)},
		{"manager creates order for customer", manager, ActionCreateOrder, Resource{OwnerID: 10}, nil},
		{"staff cannot pay", admin, ActionPayOrder, Resource{OwnerID: 10}, kind(apperrors.KindForbidden)},
		{"staff reads payments", manager, ActionReadPayments, Resource{OwnerID: 10}, nil},
		{"admin manages employees", admin, ActionManageEmployees, Resource{}, nil},
		{"manager manages employees", manager, ActionManageEmployees, Resource{}, kind(apperrors.KindForbidden)},
		{"unknown role reads order", unknown, ActionReadOrder, Resource{}, kind(apperrors.KindForbidden)},
		{"unknown role lists orders", unknown, ActionListOrders, Resource{}, kind(apperrors.KindForbidden)},
		{"anonymous reads order", identity.Principal{}, ActionReadOrder, Resource{}, kind(apperrors.KindUnauthenticated)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decide(tt.principal, tt.action, tt.resource)
			if tt.wantKind == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, *tt.wantKind, apperrors.KindOf(err))
		})
	}
}

func TestDecideEmployeeReportsDeniedFields(t *testing.T) {
	err := Decide(employee, ActionUpdateOrder, Resource{Fields: []string{FieldStatus, FieldServiceIDs, FieldDescription}})
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"fields": []string{FieldDescription, FieldServiceIDs}}, appErr.Details())
}

func kind(k apperrors.Kind) *apperrors.Kind {
	return &k
}

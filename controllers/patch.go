package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/authz"
	"github.com/atoz-auto/autoshop-api/models"
	"github.com/atoz-auto/autoshop-api/services"
	"github.com/shopspring/decimal"
)

var errNullValue = errors.New("must not be null")

// immutableFields may appear on an order but can never be patched.
var immutableFields = map[string]string{
	"customer_id":    "customer_id cannot be changed after creation",
	"payment_status": "payment_status is set by payment reconciliation only",
	"id":             "id cannot be changed",
}

// parseOrderPatch decodes a partial update. An absent key leaves the field
// alone; an explicit null clears nullable fields.
func parseOrderPatch(body []byte) (services.OrderPatch, error) {
	var patch services.OrderPatch

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return patch, apperrors.Validation("Request body must be a JSON object")
	}
	if len(raw) == 0 {
		return patch, apperrors.Validation("No fields to update")
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var unknown []string
	for _, key := range keys {
		if msg, ok := immutableFields[key]; ok {
			return patch, apperrors.Validation(msg).WithDetails(map[string]any{"field": key})
		}

		value := raw[key]
		var err error
		switch key {
		case authz.FieldVehicleID:
			patch.VehicleID, err = decodeOptional[uint](value)
		case authz.FieldDescription:
			patch.Description, err = decodeOptional[string](value)
		case authz.FieldTotalAmount:
			patch.TotalAmount, err = decodeRequired[decimal.Decimal](value)
		case authz.FieldStatus:
			var s *string
			if s, err = decodeRequired[string](value); err == nil {
				var status models.OrderStatus
				if status, err = models.ParseOrderStatus(*s); err == nil {
					patch.Status = &status
				}
			}
		case authz.FieldReceivedBy:
			patch.ReceivedBy, err = decodeRequired[string](value)
		case authz.FieldAssignedEmployeeID:
			patch.AssignedEmployeeID, err = decodeOptional[uint](value)
		case authz.FieldCompletionNote:
			patch.CompletionNote, err = decodeOptional[string](value)
		case authz.FieldServiceIDs:
			patch.ServiceIDs, err = decodeOptional[[]uint](value)
		default:
			unknown = append(unknown, key)
			continue
		}
		if err != nil {
			return patch, apperrors.Validation("Invalid value for "+key).
				WithDetails(map[string]any{"field": key, "reason": err.Error()})
		}
	}

	if len(unknown) > 0 {
		return patch, apperrors.Validation("Unknown fields: "+strings.Join(unknown, ", ")).
			WithDetails(map[string]any{"fields": unknown})
	}
	return patch, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeOptional[T any](raw json.RawMessage) (services.Optional[T], error) {
	if isNull(raw) {
		return services.Null[T](), nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return services.Optional[T]{}, err
	}
	return services.Some(v), nil
}

func decodeRequired[T any](raw json.RawMessage) (*T, error) {
	if isNull(raw) {
		return nil, errNullValue
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

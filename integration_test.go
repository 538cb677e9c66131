package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/models"
	"github.com/atoz-auto/autoshop-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

// request sends a JSON request through h with an optional Authorization header.
func request(t *testing.T, h http.Handler, method, target, auth string, body any) (int, map[string]any) {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w.Code, response
}

func newIntegrationApp(t *testing.T) (*application, *gorm.DB) {
	t.Helper()
	cfg := testutil.LoadTestConfig(t)
	db := testutil.NewTestDB(t)
	app, err := buildApp(t.Context(), cfg, db, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, db
}

func TestOrderLifecycleIntegration(t *testing.T) {
	app, db := newIntegrationApp(t)
	h := app.router

	alice := testutil.SeedCustomer(t, db, "alice")
	car := testutil.SeedVehicle(t, db, alice.ID)
	brakes := testutil.SeedService(t, db, "Brake pads", "89.00")
	rotation := testutil.SeedService(t, db, "Tyre rotation", "25.00")
	tech := testutil.SeedEmployee(t, db, "tech", "Employee")

	customer := testutil.BearerHeader(t, identity.Customer(alice.ID))
	employee := testutil.BearerHeader(t, identity.Staff(tech.ID, identity.RoleEmployee))

	status, response := request(t, h, http.MethodPost, "/api/v1/orders", customer, map[string]any{
		"customer_id": alice.ID,
		"vehicle_id":  car.ID,
		"description": "Brakes grinding",
		"service_ids": []uint{brakes.ID, rotation.ID},
	})
	require.Equal(t, http.StatusCreated, status, response)
	orderID := uint(response["data"].(map[string]any)["id"].(float64))
	orderPath := fmt.Sprintf("/api/v1/orders/%d", orderID)

	status, response = request(t, h, http.MethodGet, orderPath, customer, nil)
	require.Equal(t, http.StatusOK, status)
	order := response["data"].(map[string]any)
	assert.Equal(t, "Received", order["status"])
	assert.Equal(t, "pending", order["payment_status"])
	assert.Len(t, order["services"], 2)

	// Customers cannot reach the staff-only update route.
	status, _ = request(t, h, http.MethodPut, orderPath, customer, map[string]any{"status": "Completed"})
	assert.Equal(t, http.StatusForbidden, status)

	status, response = request(t, h, http.MethodPut, orderPath, employee, map[string]any{"vehicle_id": car.ID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", response["error"].(map[string]any)["code"])

	status, response = request(t, h, http.MethodPut, orderPath, employee, map[string]any{"status": "Completed", "total_amount": 120.00})
	require.Equal(t, http.StatusOK, status, response)
	assert.Equal(t, "Completed", response["data"].(map[string]any)["status"])

	// Staff tokens are not accepted on customer payment routes.
	status, _ = request(t, h, http.MethodPost, fmt.Sprintf("/api/v1/payments/orders/%d/intent", orderID), employee, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, response = request(t, h, http.MethodPost, fmt.Sprintf("/api/v1/payments/orders/%d/intent", orderID), customer, nil)
	require.Equal(t, http.StatusOK, status, response)
	intentID := response["data"].(map[string]any)["paymentIntentId"].(string)

	// The processor notifies first; the client confirmation that follows is a no-op success.
	payload, _ := testutil.PaymentIntentEvent(t, stripe.EventTypePaymentIntentSucceeded, intentID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", testutil.SignWebhook(payload, testutil.TestWebhookSecret))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	status, response = request(t, h, http.MethodPost, "/api/v1/payments/confirm", customer, map[string]any{
		"orderId":         orderID,
		"paymentIntentId": intentID,
	})
	require.Equal(t, http.StatusOK, status, response)
	assert.Equal(t, "paid", response["data"].(map[string]any)["payment_status"])

	var completed int64
	require.NoError(t, db.Model(&models.Payment{}).Where("order_id = ? AND status = ?", orderID, models.PaymentCompleted).Count(&completed).Error)
	assert.Equal(t, int64(1), completed)
}

func TestRoleClaimsIntegration(t *testing.T) {
	app, db := newIntegrationApp(t)
	h := app.router
	alice := testutil.SeedCustomer(t, db, "alice")
	order := testutil.SeedOrder(t, db, alice.ID, "10.00")
	orderPath := fmt.Sprintf("/api/v1/orders/%d", order.ID)

	issuer := testutil.NewTestIssuer()
	mint := func(role string) string {
		token, _, err := issuer.MintRole(7, role)
		require.NoError(t, err)
		return "Bearer " + token
	}

	tests := []struct {
		name           string
		auth           string
		expectedStatus int
	}{
		{"missing role is treated as admin", mint(""), http.StatusOK},
		{"role is case insensitive", mint("mAnAgEr"), http.StatusOK},
		{"unknown role is denied", mint("Janitor"), http.StatusForbidden},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := request(t, h, http.MethodPut, orderPath, tt.auth, map[string]any{"description": "updated"})
			assert.Equal(t, tt.expectedStatus, status)
		})
	}
}

package integration

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atoz-auto/autoshop-api/config"
	"github.com/atoz-auto/autoshop-api/events"
	"github.com/atoz-auto/autoshop-api/metrics"
	"github.com/atoz-auto/autoshop-api/routes"
	"github.com/atoz-auto/autoshop-api/services"
	"github.com/atoz-auto/autoshop-api/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stack is the API mounted on a fresh database, without the realtime hub.
type stack struct {
	router  *gin.Engine
	db      *gorm.DB
	events  *events.Recorder
	gateway *services.SandboxGateway
	metrics *metrics.Registry
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(nil) })

	rec := events.NewRecorder(64)
	gateway := services.NewSandboxGateway()
	m := metrics.New()
	orders := services.NewOrderStore(db, rec, m)
	reconciler := services.NewPaymentReconciler(db, gateway, "usd", m)

	router := routes.New(routes.Options{Logger: zerolog.Nop()}, routes.Dependencies{
		Tokens:    testutil.NewTestResolver(t),
		Orders:    orders,
		Payments:  reconciler,
		Webhooks:  services.NewWebhookProcessor(testutil.TestWebhookSecret, reconciler, services.NewMemoryGuard(time.Hour), nil, m),
		Employees: services.NewEmployeeStore(db),
		Metrics:   m,
	})
	return &stack{router: router, db: db, events: rec, gateway: gateway, metrics: m}
}

// do sends a JSON request and decodes the envelope.
func (s *stack) do(t *testing.T, method, path, auth string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var response map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w, response
}

func errorCode(response map[string]any) string {
	errObj, _ := response["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func dataObject(response map[string]any) map[string]any {
	data, _ := response["data"].(map[string]any)
	return data
}

func idOf(obj map[string]any) uint {
	return uint(obj["id"].(float64))
}

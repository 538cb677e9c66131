package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/atoz-auto/autoshop-api/config"
	"github.com/atoz-auto/autoshop-api/events"
	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/services"
	"github.com/atoz-auto/autoshop-api/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testEnv bundles a fresh database with the stores the controllers use.
type testEnv struct {
	db         *gorm.DB
	events     *events.Recorder
	orders     *services.OrderStore
	gateway    *services.SandboxGateway
	reconciler *services.PaymentReconciler
	employees  *services.EmployeeStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(nil) })

	rec := events.NewRecorder(32)
	gateway := services.NewSandboxGateway()
	return &testEnv{
		db:         db,
		events:     rec,
		orders:     services.NewOrderStore(db, rec, nil),
		gateway:    gateway,
		reconciler: services.NewPaymentReconciler(db, gateway, "usd", nil),
		employees:  services.NewEmployeeStore(db),
	}
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// routeAs mounts handler on a fresh router with p as the authenticated principal.
func routeAs(p identity.Principal, method, path string, handler gin.HandlerFunc) *gin.Engine {
	router := setupTestRouter()
	router.Handle(method, path, testutil.MockAuthMiddleware(p), handler)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w, response
}

func errorCode(response map[string]any) string {
	errData, ok := response["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := errData["code"].(string)
	return code
}

func uintStr(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

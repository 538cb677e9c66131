package acceptance

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atoz-auto/autoshop-api/config"
	"github.com/atoz-auto/autoshop-api/events"
	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/metrics"
	"github.com/atoz-auto/autoshop-api/realtime"
	"github.com/atoz-auto/autoshop-api/routes"
	"github.com/atoz-auto/autoshop-api/services"
	"github.com/atoz-auto/autoshop-api/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const allowedOrigin = "http://localhost:3000"

// liveServer is the API listening on a real socket.
type liveServer struct {
	server *httptest.Server
	db     *gorm.DB
	hub    *realtime.Hub
}

func startServer(t *testing.T) *liveServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	config.SetDB(db)

	m := metrics.New()
	lookup := services.NewOrderStore(db, nil, nil)
	hub := realtime.NewHub(realtime.OrderAuthorizer(lookup), realtime.Options{
		AllowedOrigins: []string{allowedOrigin},
		Metrics:        m,
	})
	orders := services.NewOrderStore(db, events.Multi{hub}, m)
	reconciler := services.NewPaymentReconciler(db, services.NewSandboxGateway(), "usd", m)

	router := routes.New(routes.Options{
		Logger:         zerolog.Nop(),
		AllowedOrigins: []string{allowedOrigin},
	}, routes.Dependencies{
		Tokens:    testutil.NewTestResolver(t),
		Orders:    orders,
		Payments:  reconciler,
		Webhooks:  services.NewWebhookProcessor(testutil.TestWebhookSecret, reconciler, services.NewMemoryGuard(time.Hour), nil, m),
		Employees: services.NewEmployeeStore(db),
		Hub:       hub,
		Metrics:   m,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		config.SetDB(nil)
	})
	return &liveServer{server: srv, db: db, hub: hub}
}

// call makes a real HTTP request and decodes the JSON envelope.
func (s *liveServer) call(t *testing.T, method, path, auth string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var response map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &response), string(raw))
	}
	return resp, response
}

func (s *liveServer) dial(t *testing.T, p identity.Principal) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/v1/ws?token=" + testutil.MintToken(t, p)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
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

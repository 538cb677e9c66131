package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/tests/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// AuthIntegrationTestSuite exercises token resolution through the full router.
type AuthIntegrationTestSuite struct {
	suite.Suite
	stack *stack
}

// SetupTest runs before each test
func (suite *AuthIntegrationTestSuite) SetupTest() {
	suite.stack = newStack(suite.T())
}

// TestPublicEndpoint tests that public endpoints work without authentication
func (suite *AuthIntegrationTestSuite) TestPublicEndpoint() {
	w, response := suite.stack.do(suite.T(), http.MethodGet, "/api/v1/health", "", nil)

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.True(suite.T(), response["success"].(bool))
	assert.Equal(suite.T(), "Autoshop API is running", response["message"])
}

// TestProtectedEndpointWithoutToken tests that protected endpoints reject requests without tokens
func (suite *AuthIntegrationTestSuite) TestProtectedEndpointWithoutToken() {
	w, response := suite.stack.do(suite.T(), http.MethodGet, "/api/v1/orders", "", nil)

	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.False(suite.T(), response["success"].(bool))
	assert.Equal(suite.T(), "UNAUTHORIZED", errorCode(response))
}

// TestProtectedEndpointWithInvalidToken tests that protected endpoints reject invalid tokens
func (suite *AuthIntegrationTestSuite) TestProtectedEndpointWithInvalidToken() {
	w, response := suite.stack.do(suite.T(), http.MethodGet, "/api/v1/orders", "Bearer invalid-token-here", nil)

	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(suite.T(), "INVALID_TOKEN", errorCode(response))
}

// TestProtectedEndpointWithForeignSignature rejects tokens signed with another secret
func (suite *AuthIntegrationTestSuite) TestProtectedEndpointWithForeignSignature() {
	issuer := identity.NewIssuer(identity.IssuerConfig{
		Secret:   "someone-elses-secret",
		Issuer:   testutil.TestJWTIssuer,
		Audience: testutil.TestJWTAudience,
		TTL:      time.Hour,
	})
	token, _, err := issuer.Mint(identity.Customer(1))
	suite.Require().NoError(err)

	w, _ := suite.stack.do(suite.T(), http.MethodGet, "/api/v1/orders", "Bearer "+token, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

// TestProtectedEndpointWithExpiredToken rejects tokens past their expiry
func (suite *AuthIntegrationTestSuite) TestProtectedEndpointWithExpiredToken() {
	past := time.Now().Add(-2 * time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "1",
		"role": "customer",
		"iss":  testutil.TestJWTIssuer,
		"aud":  testutil.TestJWTAudience,
		"iat":  past.Unix(),
		"exp":  past.Add(time.Hour).Unix(),
	}).SignedString([]byte(testutil.TestJWTSecret))
	suite.Require().NoError(err)

	w, response := suite.stack.do(suite.T(), http.MethodGet, "/api/v1/orders", "Bearer "+token, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(suite.T(), "INVALID_TOKEN", errorCode(response))
}

// TestProtectedEndpointWithMalformedAuthHeader tests various malformed auth headers
func (suite *AuthIntegrationTestSuite) TestProtectedEndpointWithMalformedAuthHeader() {
	testCases := []struct {
		name   string
		header string
	}{
		{"Missing Bearer prefix", "token-without-bearer"},
		{"Wrong prefix", "Basic token"},
		{"Empty token", "Bearer "},
		{"Only Bearer", "Bearer"},
	}

	for _, tc := range testCases {
		suite.T().Run(tc.name, func(t *testing.T) {
			w, _ := suite.stack.do(t, http.MethodGet, "/api/v1/orders", tc.header, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

// TestValidTokenReachesHandler checks a minted customer token is accepted
func (suite *AuthIntegrationTestSuite) TestValidTokenReachesHandler() {
	alice := testutil.SeedCustomer(suite.T(), suite.stack.db, "alice")

	w, response := suite.stack.do(suite.T(), http.MethodGet, "/api/v1/orders", testutil.BearerHeader(suite.T(), identity.Customer(alice.ID)), nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Empty(suite.T(), response["data"])
}

// TestRoleGuards checks the route-level customer and staff guards
func (suite *AuthIntegrationTestSuite) TestRoleGuards() {
	customer := testutil.BearerHeader(suite.T(), identity.Customer(3))
	employee := testutil.BearerHeader(suite.T(), identity.Staff(4, identity.RoleEmployee))

	w, _ := suite.stack.do(suite.T(), http.MethodPut, "/api/v1/employees/1/role", customer, map[string]any{"role": "Admin"})
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	w, _ = suite.stack.do(suite.T(), http.MethodPut, "/api/v1/employees/1/role", employee, map[string]any{"role": "Admin"})
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	w, _ = suite.stack.do(suite.T(), http.MethodPost, "/api/v1/payments/confirm", employee, map[string]any{"orderId": 1, "paymentIntentId": "pi_1"})
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

// TestProtectedEndpointResponseFormat tests the error response format
func (suite *AuthIntegrationTestSuite) TestProtectedEndpointResponseFormat() {
	_, response := suite.stack.do(suite.T(), http.MethodGet, "/api/v1/orders", "", nil)

	assert.Contains(suite.T(), response, "success")
	assert.False(suite.T(), response["success"].(bool))
	assert.Contains(suite.T(), response, "error")

	errorObj := response["error"].(map[string]interface{})
	assert.Contains(suite.T(), errorObj, "code")
	assert.Contains(suite.T(), errorObj, "message")
}

func TestAuthIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(AuthIntegrationTestSuite))
}

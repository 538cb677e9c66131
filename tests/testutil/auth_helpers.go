package testutil

import (
	"testing"
	"time"

	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	TestJWTSecret   = "test-jwt-secret"
	TestJWTIssuer   = "autoshop-api"
	TestJWTAudience = "autoshop-clients"
)

// NewTestResolver returns a resolver that accepts tokens from NewTestIssuer.
func NewTestResolver(t *testing.T) *identity.Resolver {
	t.Helper()
	r, err := identity.NewResolver(identity.ResolverConfig{
		Secret:    TestJWTSecret,
		Issuer:    TestJWTIssuer,
		Audience:  TestJWTAudience,
		ClockSkew: time.Second,
	})
	require.NoError(t, err)
	return r
}

func NewTestIssuer() *identity.Issuer {
	return identity.NewIssuer(identity.IssuerConfig{
		Secret:   TestJWTSecret,
		Issuer:   TestJWTIssuer,
		Audience: TestJWTAudience,
		TTL:      time.Hour,
	})
}

// MintToken signs a token for p with the test issuer.
func MintToken(t *testing.T, p identity.Principal) string {
	t.Helper()
	token, _, err := NewTestIssuer().Mint(p)
	require.NoError(t, err)
	return token
}

// BearerHeader returns an Authorization header value for p.
func BearerHeader(t *testing.T, p identity.Principal) string {
	t.Helper()
	return "Bearer " + MintToken(t, p)
}

// MockAuthMiddleware injects p as the authenticated principal.
func MockAuthMiddleware(p identity.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetPrincipal(c, p)
		c.Next()
	}
}

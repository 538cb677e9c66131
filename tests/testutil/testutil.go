package testutil

import (
	"os"
	"testing"

	"github.com/atoz-auto/autoshop-api/config"
	"github.com/stretchr/testify/require"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// It fails the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	if env := os.Getenv("GO_ENV"); env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: tests must run with GO_ENV=test. Current GO_ENV=%q.", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test for suites that load config.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}
}

// LoadTestConfig loads configuration the way the server does, with every
// optional backend switched off and the test signing secrets in place.
func LoadTestConfig(t *testing.T) *config.Config {
	t.Helper()

	env := map[string]string{
		"GO_ENV":                "test",
		"DATABASE_URL":          "postgres://unused@localhost/autoshop_test",
		"JWT_SECRET":            TestJWTSecret,
		"JWT_ISSUER":            TestJWTIssuer,
		"JWT_AUDIENCE":          TestJWTAudience,
		"STRIPE_WEBHOOK_SECRET": TestWebhookSecret,
		"CORS_ALLOWED_ORIGINS":  "http://localhost:3000",
		"LOG_LEVEL":             "error",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	// Unset rather than empty: envconfig turns "" into a one-element slice.
	for _, k := range []string{"STRIPE_SECRET_KEY", "REDIS_URL", "KAFKA_BROKERS", "AWS_S3_BUCKET"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	RequireTestEnvironment(t)
	return cfg
}

package testutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
)

const TestWebhookSecret = "whsec_test"

// PaymentIntentEvent builds a raw processor event carrying a payment intent.
// It returns the payload and the event id.
func PaymentIntentEvent(t *testing.T, eventType stripe.EventType, intentID string) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(&stripe.PaymentIntent{
		ID:     intentID,
		Object: "payment_intent",
		Status: stripe.PaymentIntentStatusSucceeded,
	})
	require.NoError(t, err)

	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       eventType,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: raw},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload, event.ID
}

// SignWebhook returns a Stripe-Signature header for payload.
func SignWebhook(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

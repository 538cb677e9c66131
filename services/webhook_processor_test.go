package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/metrics"
	"github.com/atoz-auto/autoshop-api/models"
	"github.com/atoz-auto/autoshop-api/tests/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
)

type reconcilerFunc func(ctx context.Context, intentID string) (ReconcileOutcome, error)

func (f reconcilerFunc) ReconcileIntent(ctx context.Context, intentID string) (ReconcileOutcome, error) {
	return f(ctx, intentID)
}

func TestWebhook_SettlesIntentOnce(t *testing.T) {
	f := newPaymentFixture(t, "99.00")
	ctx := context.Background()
	intent, err := f.reconciler.CreateIntent(ctx, f.order.ID, f.customer.ID)
	require.NoError(t, err)

	archive := NewMockEventArchive()
	processor := NewWebhookProcessor(testutil.TestWebhookSecret, f.reconciler, NewMemoryGuard(time.Hour), archive, f.metrics)

	payload, eventID := testutil.PaymentIntentEvent(t, stripe.EventTypePaymentIntentSucceeded, intent.PaymentIntentID)
	sig := testutil.SignWebhook(payload, testutil.TestWebhookSecret)

	result, err := processor.Handle(ctx, payload, sig)
	require.NoError(t, err)
	assert.Equal(t, eventID, result.EventID)
	assert.Equal(t, string(OutcomeApplied), result.Outcome)
	assert.Equal(t, models.OrderPaymentPaid, f.reloadOrder(t).PaymentStatus)

	archived, err := archive.Find(eventID)
	require.NoError(t, err)
	assert.Equal(t, payload, archived)

	// Redelivery of the same event is acknowledged without reprocessing.
	result, err = processor.Handle(ctx, payload, sig)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicateDelivery, result.Outcome)
	assert.Equal(t, 1, archive.Writes(), "redelivery is not archived again")

	// A different event for the same intent finds the payment already settled.
	payload2, _ := testutil.PaymentIntentEvent(t, stripe.EventTypePaymentIntentSucceeded, intent.PaymentIntentID)
	result, err = processor.Handle(ctx, payload2, testutil.SignWebhook(payload2, testutil.TestWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeAlreadyDone), result.Outcome)

	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.PaymentsReconciled.WithLabelValues(SourceWebhook)))
	assert.Equal(t, float64(1), promtest.ToFloat64(
		f.metrics.WebhookEvents.WithLabelValues(string(stripe.EventTypePaymentIntentSucceeded), OutcomeDuplicateDelivery)))
}

func TestWebhook_SignatureFailures(t *testing.T) {
	called := false
	reconciler := reconcilerFunc(func(context.Context, string) (ReconcileOutcome, error) {
		called = true
		return OutcomeApplied, nil
	})
	payload, _ := testutil.PaymentIntentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_123")

	tests := []struct {
		name      string
		secret    string
		signature string
	}{
		{name: "missing header", secret: testutil.TestWebhookSecret, signature: ""},
		{name: "garbage header", secret: testutil.TestWebhookSecret, signature: "t=1,v1=invalid"},
		{name: "signed with another secret", secret: testutil.TestWebhookSecret, signature: testutil.SignWebhook(payload, "whsec_other")},
		{name: "no secret configured", secret: "", signature: testutil.SignWebhook(payload, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := NewMockEventArchive()
			processor := NewWebhookProcessor(tt.secret, reconciler, NewMemoryGuard(time.Hour), archive, metrics.New())
			_, err := processor.Handle(context.Background(), payload, tt.signature)
			assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
			assert.Empty(t, archive.Objects())
		})
	}
	assert.False(t, called)

	// A body altered after signing fails verification.
	processor := NewWebhookProcessor(testutil.TestWebhookSecret, reconciler, nil, nil, nil)
	sig := testutil.SignWebhook(payload, testutil.TestWebhookSecret)
	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = ' '
	_, err := processor.Handle(context.Background(), tampered, sig)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	assert.False(t, called)
}

func TestWebhook_IgnoresOtherEventTypes(t *testing.T) {
	called := false
	reconciler := reconcilerFunc(func(context.Context, string) (ReconcileOutcome, error) {
		called = true
		return OutcomeApplied, nil
	})
	processor := NewWebhookProcessor(testutil.TestWebhookSecret, reconciler, nil, nil, nil)

	payload, _ := testutil.PaymentIntentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, "pi_123")
	result, err := processor.Handle(context.Background(), payload, testutil.SignWebhook(payload, testutil.TestWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.False(t, called)
}

func TestWebhook_UnknownIntentIsAcknowledged(t *testing.T) {
	f := newPaymentFixture(t, "10.00")
	processor := NewWebhookProcessor(testutil.TestWebhookSecret, f.reconciler, nil, nil, nil)

	payload, _ := testutil.PaymentIntentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_from_elsewhere")
	result, err := processor.Handle(context.Background(), payload, testutil.SignWebhook(payload, testutil.TestWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeUnknownIntent), result.Outcome)
	assert.Equal(t, models.OrderPaymentPending, f.reloadOrder(t).PaymentStatus)
}

func TestWebhook_FailureReleasesDeliveryForRetry(t *testing.T) {
	calls := 0
	reconciler := reconcilerFunc(func(context.Context, string) (ReconcileOutcome, error) {
		calls++
		if calls == 1 {
			return "", errors.New("database unavailable")
		}
		return OutcomeApplied, nil
	})
	guard := NewMemoryGuard(time.Hour)
	processor := NewWebhookProcessor(testutil.TestWebhookSecret, reconciler, guard, nil, nil)

	payload, _ := testutil.PaymentIntentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_retry")
	sig := testutil.SignWebhook(payload, testutil.TestWebhookSecret)

	result, err := processor.Handle(context.Background(), payload, sig)
	require.NoError(t, err, "failures after verification are reported in the result")
	assert.Equal(t, OutcomeFailed, result.Outcome)

	result, err = processor.Handle(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeApplied), result.Outcome)
	assert.Equal(t, 2, calls)
}

func TestWebhook_ArchiveFailureDoesNotBlock(t *testing.T) {
	archive := NewMockEventArchive()
	archive.FailWith(errors.New("bucket unavailable"))
	reconciler := reconcilerFunc(func(context.Context, string) (ReconcileOutcome, error) {
		return OutcomeApplied, nil
	})
	processor := NewWebhookProcessor(testutil.TestWebhookSecret, reconciler, nil, archive, nil)

	payload, _ := testutil.PaymentIntentEvent(t, stripe.EventTypePaymentIntentSucceeded, "pi_archive")
	result, err := processor.Handle(context.Background(), payload, testutil.SignWebhook(payload, testutil.TestWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, string(OutcomeApplied), result.Outcome)
}

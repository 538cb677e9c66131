package services

import (
	"context"
	"encoding/json"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/logger"
	"github.com/atoz-auto/autoshop-api/metrics"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// Webhook outcomes beyond the reconcile outcomes.
const (
	OutcomeDuplicateDelivery = "duplicate_delivery"
	OutcomeIgnored           = "ignored"
	OutcomeFailed            = "error"
)

// IntentReconciler applies a settled intent.
type IntentReconciler interface {
	ReconcileIntent(ctx context.Context, intentID string) (ReconcileOutcome, error)
}

// WebhookResult summarises one delivery.
type WebhookResult struct {
	EventID   string
	EventType string
	Outcome   string
}

// WebhookProcessor verifies and applies processor webhooks.
type WebhookProcessor struct {
	secret     string
	reconciler IntentReconciler
	guard      DeliveryGuard
	archive    EventArchive
	metrics    *metrics.Registry
}

// NewWebhookProcessor builds a processor. guard and archive may be nil.
func NewWebhookProcessor(secret string, reconciler IntentReconciler, guard DeliveryGuard, archive EventArchive, m *metrics.Registry) *WebhookProcessor {
	return &WebhookProcessor{
		secret:     secret,
		reconciler: reconciler,
		guard:      guard,
		archive:    archive,
		metrics:    m,
	}
}

// Handle verifies the signature and applies the event. The only error it
// returns is a verification failure; anything that goes wrong afterwards is
// logged and reported in the result so the processor still gets a 2xx.
func (p *WebhookProcessor) Handle(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	log := logger.FromContext(ctx)

	if p.secret == "" || signature == "" {
		p.metrics.Webhook("unknown", "invalid_signature")
		return WebhookResult{}, apperrors.ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		p.metrics.Webhook("unknown", "invalid_signature")
		return WebhookResult{}, apperrors.ErrInvalidSignature.WithCause(err)
	}

	result := WebhookResult{EventID: event.ID, EventType: string(event.Type)}
	defer func() { p.metrics.Webhook(result.EventType, result.Outcome) }()

	if p.guard != nil {
		seen, err := p.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("webhook dedupe check failed, processing anyway")
		} else if seen {
			result.Outcome = OutcomeDuplicateDelivery
			return result, nil
		}
	}

	if p.archive != nil {
		if key, err := p.archive.Archive(ctx, "stripe", event.ID, payload); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("webhook archive failed")
		} else {
			log.Debug().Str("event_id", event.ID).Str("key", key).Msg("webhook archived")
		}
	}

	outcome, err := p.apply(ctx, event)
	if err != nil {
		if p.guard != nil {
			if releaseErr := p.guard.Release(ctx, event.ID); releaseErr != nil {
				log.Warn().Err(releaseErr).Str("event_id", event.ID).Msg("webhook dedupe release failed")
			}
		}
		log.Error().Err(err).Str("event_id", event.ID).Str("event_type", result.EventType).Msg("webhook processing failed")
		result.Outcome = OutcomeFailed
		return result, nil
	}

	result.Outcome = outcome
	log.Info().Str("event_id", event.ID).Str("event_type", result.EventType).Str("outcome", outcome).Msg("webhook processed")
	return result, nil
}

func (p *WebhookProcessor) apply(ctx context.Context, event stripe.Event) (string, error) {
	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		return OutcomeIgnored, nil
	}
	if event.Data == nil {
		return "", apperrors.Validation("webhook event has no data")
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return "", apperrors.Validation("webhook payload is not a payment intent").WithCause(err)
	}
	if pi.ID == "" {
		return "", apperrors.Validation("webhook payment intent has no id")
	}

	outcome, err := p.reconciler.ReconcileIntent(ctx, pi.ID)
	if err != nil {
		return "", err
	}
	if outcome == OutcomeUnknownIntent {
		logger.FromContext(ctx).Warn().Str("payment_intent_id", pi.ID).Msg("webhook for unknown payment intent ignored")
	}
	return string(outcome), nil
}

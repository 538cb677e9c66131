package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
)

// IntentStatusSucceeded is the processor status of a settled intent.
const IntentStatusSucceeded = "succeeded"

// ErrIntentNotFound is returned when the processor has no such intent.
var ErrIntentNotFound = errors.New("payment intent not found")

// IntentRequest describes an intent to create.
type IntentRequest struct {
	OrderID      uint
	CustomerID   uint
	AmountCents  int64
	Currency     string
	Description  string
	ReceiptEmail string
	Metadata     map[string]string
}

// Intent is the processor's view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Currency     string
	Metadata     map[string]string
}

// Succeeded reports whether the processor settled the intent.
func (i *Intent) Succeeded() bool {
	return i != nil && i.Status == IntentStatusSucceeded
}

// PaymentGateway is the port to the payment processor.
type PaymentGateway interface {
	// Name identifies the gateway; it is recorded as the payment method.
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}

// StripeGateway talks to Stripe's PaymentIntents API.
type StripeGateway struct{}

// NewStripeGateway configures the Stripe SDK with the secret key.
func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, errors.New("stripe secret key is required")
	}
	stripe.Key = key
	return &StripeGateway{}, nil
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("retrieve payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

// SandboxGateway is an in-process stand-in used when no processor key is
// configured. Its handles are prefixed so they can never be mistaken for
// real processor ids, and intents settle as soon as they are created unless
// SetStatus says otherwise.
type SandboxGateway struct {
	mu            sync.Mutex
	intents       map[string]*Intent
	defaultStatus string
	failNext      error
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		intents:       make(map[string]*Intent),
		defaultStatus: IntentStatusSucceeded,
	}
}

func (g *SandboxGateway) Name() string {
	return "sandbox"
}

func (g *SandboxGateway) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.takeFailure(); err != nil {
		return nil, err
	}

	id := "sandbox_pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	metadata := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	intent := &Intent{
		ID:           id,
		ClientSecret: "sandbox_secret_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:       g.defaultStatus,
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Metadata:     metadata,
	}
	g.intents[id] = intent
	return copyIntent(intent), nil
}

func (g *SandboxGateway) RetrieveIntent(_ context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.takeFailure(); err != nil {
		return nil, err
	}
	intent, ok := g.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return copyIntent(intent), nil
}

// SetDefaultStatus changes the status given to newly created intents.
func (g *SandboxGateway) SetDefaultStatus(status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaultStatus = status
}

// SetStatus changes the status of an existing intent.
func (g *SandboxGateway) SetStatus(id, status string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if ok {
		intent.Status = status
	}
	return ok
}

// SetMetadata replaces an existing intent's metadata.
func (g *SandboxGateway) SetMetadata(id string, metadata map[string]string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if ok {
		intent.Metadata = metadata
	}
	return ok
}

// FailNext makes the next call return err.
func (g *SandboxGateway) FailNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = err
}

func (g *SandboxGateway) takeFailure() error {
	err := g.failNext
	g.failNext = nil
	return err
}

func copyIntent(in *Intent) *Intent {
	out := *in
	out.Metadata = make(map[string]string, len(in.Metadata))
	for k, v := range in.Metadata {
		out.Metadata[k] = v
	}
	return &out
}

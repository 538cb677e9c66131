package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/logger"
	"github.com/atoz-auto/autoshop-api/metrics"
	"github.com/atoz-auto/autoshop-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Reconciliation sources, used as metric labels.
const (
	SourceConfirm = "confirm"
	SourceWebhook = "webhook"
)

// Metadata keys written on every intent and checked on confirmation.
const (
	MetadataOrderID    = "order_id"
	MetadataCustomerID = "customer_id"
)

// IntentResult is returned to the client so it can complete payment.
type IntentResult struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Sandbox         bool            `json:"sandbox,omitempty"`
}

// ReconcileOutcome reports what a webhook delivery did.
type ReconcileOutcome string

const (
	OutcomeApplied       ReconcileOutcome = "applied"
	OutcomeAlreadyDone   ReconcileOutcome = "already_completed"
	OutcomeUnknownIntent ReconcileOutcome = "unknown_intent"
)

// PaymentReconciler moves an order to paid exactly once, whichever of the
// client confirmation or the processor webhook arrives first.
type PaymentReconciler struct {
	db       *gorm.DB
	gateway  PaymentGateway
	currency string
	metrics  *metrics.Registry
}

func NewPaymentReconciler(db *gorm.DB, gateway PaymentGateway, currency string, m *metrics.Registry) *PaymentReconciler {
	if currency == "" {
		currency = "usd"
	}
	return &PaymentReconciler{db: db, gateway: gateway, currency: strings.ToLower(currency), metrics: m}
}

// Gateway returns the processor port in use.
func (r *PaymentReconciler) Gateway() PaymentGateway {
	return r.gateway
}

// CreateIntent opens a processor intent for the order total and records a
// pending payment bound to it.
func (r *PaymentReconciler) CreateIntent(ctx context.Context, orderID, customerID uint) (*IntentResult, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("id = ? AND customer_id = ?", orderID, customerID).
		Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.Internal(err, "failed to load order")
	}

	if order.IsPaid() {
		return nil, apperrors.ErrAlreadyPaid
	}
	cents := toCents(order.TotalAmount)
	if cents <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	req := IntentRequest{
		OrderID:     order.ID,
		CustomerID:  customerID,
		AmountCents: cents,
		Currency:    r.currency,
		Description: fmt.Sprintf("Auto repair order #%d", order.ID),
		Metadata: map[string]string{
			MetadataOrderID:    strconv.FormatUint(uint64(order.ID), 10),
			MetadataCustomerID: strconv.FormatUint(uint64(customerID), 10),
		},
	}
	if order.Customer != nil {
		req.ReceiptEmail = order.Customer.Email
		req.Metadata["customer_name"] = order.Customer.Name
	}

	intent, err := r.gateway.CreateIntent(ctx, req)
	if err != nil {
		return nil, apperrors.ErrPaymentProvider.WithCause(err)
	}

	payment := models.Payment{
		OrderID:          order.ID,
		CustomerID:       customerID,
		Amount:           order.TotalAmount,
		Currency:         strings.ToUpper(r.currency),
		PaymentMethod:    r.gateway.Name(),
		ExternalIntentID: intent.ID,
		Status:           models.PaymentPending,
		Metadata:         intent.Metadata,
	}
	if err := r.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, apperrors.Internal(err, "failed to record payment")
	}

	r.metrics.IntentCreated(r.gateway.Name())
	logger.FromContext(ctx).Info().
		Uint("order_id", order.ID).
		Str("payment_intent_id", intent.ID).
		Str("gateway", r.gateway.Name()).
		Msg("payment intent created")

	return &IntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          order.TotalAmount,
		Currency:        r.currency,
		Sandbox:         r.gateway.Name() == "sandbox",
	}, nil
}

// ConfirmPayment checks the intent with the processor and, if it succeeded
// for this order and customer, marks the payment completed and the order
// paid. Confirming an already settled payment is a no-op success.
func (r *PaymentReconciler) ConfirmPayment(ctx context.Context, orderID uint, intentID string, customerID uint) (*models.Order, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, apperrors.Validation("paymentIntentId is required")
	}

	db := r.db.WithContext(ctx)

	var order models.Order
	if err := db.Where("id = ? AND customer_id = ?", orderID, customerID).Take(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.Internal(err, "failed to load order")
	}

	var payment models.Payment
	err := db.Where("order_id = ? AND external_intent_id = ? AND customer_id = ?", orderID, intentID, customerID).
		Take(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.Internal(err, "failed to load payment")
	}

	if order.IsPaid() {
		if payment.Status == models.PaymentCompleted {
			return r.loadOrder(ctx, orderID)
		}
		return nil, apperrors.ErrAlreadyPaid
	}

	intent, err := r.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, ErrIntentNotFound) {
			return nil, apperrors.ErrPaymentMismatch.WithMessage("Payment intent not found")
		}
		return nil, apperrors.ErrPaymentProvider.WithCause(err)
	}
	if err := checkIntent(intent, orderID, customerID); err != nil {
		return nil, err
	}

	applied, err := r.markPaid(ctx, payment.ID, orderID, intent.ID)
	if err != nil {
		return nil, err
	}
	if applied {
		r.metrics.PaymentReconciled(SourceConfirm)
		logger.FromContext(ctx).Info().
			Uint("order_id", orderID).
			Str("payment_intent_id", intent.ID).
			Msg("payment confirmed")
	}
	return r.loadOrder(ctx, orderID)
}

// ReconcileIntent applies a processor "succeeded" notification. The payment
// is found by intent id alone; unknown intents are ignored.
func (r *PaymentReconciler) ReconcileIntent(ctx context.Context, intentID string) (ReconcileOutcome, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("external_intent_id = ?", intentID).Take(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OutcomeUnknownIntent, nil
		}
		return "", apperrors.Internal(err, "failed to load payment")
	}
	if payment.Status == models.PaymentCompleted {
		return OutcomeAlreadyDone, nil
	}

	applied, err := r.markPaid(ctx, payment.ID, payment.OrderID, intentID)
	if errors.Is(err, apperrors.ErrAlreadyPaid) {
		// Another payment settled the order first; this one stays pending.
		logger.FromContext(ctx).Warn().
			Uint("order_id", payment.OrderID).
			Str("payment_intent_id", intentID).
			Msg("intent succeeded for an order that is already paid")
		return OutcomeAlreadyDone, nil
	}
	if err != nil {
		return "", err
	}
	if !applied {
		return OutcomeAlreadyDone, nil
	}
	r.metrics.PaymentReconciled(SourceWebhook)
	return OutcomeApplied, nil
}

// PaymentHistory lists an order's payments, newest first.
func (r *PaymentReconciler) PaymentHistory(ctx context.Context, orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&payments).Error
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load payment history")
	}
	return payments, nil
}

// markPaid performs the pending->completed and pending->paid transitions
// atomically. Both updates are conditional on the prior state, so concurrent
// callers cannot both apply them. It reports false when the payment had
// already been completed by someone else.
func (r *PaymentReconciler) markPaid(ctx context.Context, paymentID, orderID uint, transactionID string) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", paymentID, models.PaymentPending).
			Updates(map[string]any{
				"status":         models.PaymentCompleted,
				"transaction_id": transactionID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		res = tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", orderID, models.OrderPaymentPending).
			Update("payment_status", models.OrderPaymentPaid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrAlreadyPaid
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, storeError(err, "failed to record payment")
	}
	return applied, nil
}

func (r *PaymentReconciler) loadOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Take(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.Internal(err, "failed to load order")
	}
	return &order, nil
}

func checkIntent(intent *Intent, orderID, customerID uint) error {
	if intent.Metadata[MetadataOrderID] != strconv.FormatUint(uint64(orderID), 10) {
		return apperrors.ErrPaymentMismatch
	}
	if intent.Metadata[MetadataCustomerID] != strconv.FormatUint(uint64(customerID), 10) {
		return apperrors.ErrPaymentCustomerMismatch
	}
	if !intent.Succeeded() {
		return apperrors.ErrPaymentNotCompleted.WithDetails(map[string]any{"status": intent.Status})
	}
	return nil
}

// toCents converts a decimal amount to integer minor units, rounding half
// away from zero.
func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

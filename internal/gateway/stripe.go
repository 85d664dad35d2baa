package gateway

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// CreateIntentParams carries everything needed to open a payment intent at
// the gateway. Currency is the lower-cased gateway currency code.
type CreateIntentParams struct {
	AmountCents  int64
	Currency     string
	Metadata     map[string]string
	ReceiptEmail string
	Description  string
}

// Gateway is the external payment-provider contract consumed by the payment
// service. Implementations return the intent's current snapshot after every
// call so local state can be synchronized from it.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*IntentSnapshot, error)
	ConfirmPaymentIntent(ctx context.Context, intentID, paymentMethodID string) (*IntentSnapshot, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (*IntentSnapshot, error)
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a Stripe-backed gateway client.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

// CreatePaymentIntent opens a new payment intent at Stripe.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*IntentSnapshot, error) {
	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
	}
	piParams.Context = ctx
	if params.ReceiptEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.ReceiptEmail)
	}
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(piParams)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return snapshotFromStripe(pi), nil
}

// ConfirmPaymentIntent confirms an existing intent, optionally attaching a
// payment method.
func (g *StripeGateway) ConfirmPaymentIntent(ctx context.Context, intentID, paymentMethodID string) (*IntentSnapshot, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	if paymentMethodID != "" {
		params.PaymentMethod = stripe.String(paymentMethodID)
	}

	pi, err := g.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe confirm payment intent %s: %w", intentID, err)
	}
	return snapshotFromStripe(pi), nil
}

// RetrievePaymentIntent fetches the current intent state from Stripe.
func (g *StripeGateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*IntentSnapshot, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe retrieve payment intent %s: %w", intentID, err)
	}
	return snapshotFromStripe(pi), nil
}

// VerifyWebhook checks the Stripe signature header and converts the event
// into the logical shape the payment service consumes.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("stripe webhook verification: %w", err)
	}

	we := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Data != nil {
		we.Raw = event.Data.Raw
		we.Object = event.Data.Object
	}
	return we, nil
}

// snapshotFromStripe converts a typed Stripe intent into the canonical
// snapshot.
func snapshotFromStripe(pi *stripe.PaymentIntent) *IntentSnapshot {
	snap := &IntentSnapshot{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Metadata: pi.Metadata,
	}
	if pi.PaymentMethod != nil {
		snap.PaymentMethodID = pi.PaymentMethod.ID
	}
	if pi.Customer != nil {
		snap.CustomerID = pi.Customer.ID
	}
	if pi.LatestCharge != nil && pi.LatestCharge.PaymentMethodDetails != nil {
		details := map[string]any{
			"type": string(pi.LatestCharge.PaymentMethodDetails.Type),
		}
		if card := pi.LatestCharge.PaymentMethodDetails.Card; card != nil {
			details["card_brand"] = string(card.Brand)
			details["card_last4"] = card.Last4
		}
		snap.PaymentMethodDetails = details
	}
	if pi.LastPaymentError != nil {
		snap.LastError = &IntentError{
			Message: pi.LastPaymentError.Msg,
			Code:    string(pi.LastPaymentError.Code),
		}
	}
	return snap
}

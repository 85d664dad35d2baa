package gateway

import (
	"encoding/json"
)

// IntentSnapshot is the canonical local view of a gateway payment intent.
// Every payload shape the gateway can deliver (typed object, generic map,
// raw JSON) is normalized into this one type before the core touches it.
type IntentSnapshot struct {
	ID                   string            `json:"id"`
	Status               string            `json:"status"`
	PaymentMethodID      string            `json:"payment_method_id"`
	CustomerID           string            `json:"customer_id"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	PaymentMethodDetails map[string]any    `json:"payment_method_details,omitempty"`
	LastError            *IntentError      `json:"last_error,omitempty"`
}

// IntentError is the gateway's last payment error, reduced to what the core
// stores.
type IntentError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Webhook event types the reconciliation path dispatches on. Any other type
// falls back to the intent's raw status string.
const (
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
	EventPaymentIntentFailed     = "payment_intent.payment_failed"
	EventPaymentIntentProcessing = "payment_intent.processing"
	EventPaymentIntentCanceled   = "payment_intent.canceled"
)

// WebhookEvent is the logical shape of a verified gateway webhook delivery.
// Exactly one of Intent, Raw or Object carries the payment-intent payload.
type WebhookEvent struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Intent *IntentSnapshot `json:"-"`
	Raw    json.RawMessage `json:"-"`
	Object map[string]any  `json:"-"`
}

// intentPayload mirrors the wire shape of a payment intent closely enough
// to lift the fields the core needs. payment_method and customer may arrive
// as bare ID strings or as expanded objects.
type intentPayload struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentMethod json.RawMessage   `json:"payment_method"`
	Customer      json.RawMessage   `json:"customer"`
	Metadata      map[string]string `json:"metadata"`
	Charges       struct {
		Data []struct {
			PaymentMethodDetails map[string]any `json:"payment_method_details"`
		} `json:"data"`
	} `json:"charges"`
	LatestCharge     json.RawMessage `json:"latest_charge"`
	LastPaymentError *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"last_payment_error"`
}

// ExtractIntent normalizes the event payload into an IntentSnapshot. It
// returns nil when the payload does not describe a payment intent; webhook
// delivery is at-least-once and may carry shapes this service never asked
// for, so an unusable payload is not an error.
func (e *WebhookEvent) ExtractIntent() *IntentSnapshot {
	if e == nil {
		return nil
	}
	if e.Intent != nil {
		return e.Intent
	}

	raw := e.Raw
	if raw == nil && e.Object != nil {
		b, err := json.Marshal(e.Object)
		if err != nil {
			return nil
		}
		raw = b
	}
	if raw == nil {
		return nil
	}

	var payload intentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if payload.ID == "" {
		return nil
	}

	snap := &IntentSnapshot{
		ID:              payload.ID,
		Status:          payload.Status,
		PaymentMethodID: objectID(payload.PaymentMethod),
		CustomerID:      objectID(payload.Customer),
		Metadata:        payload.Metadata,
	}

	if len(payload.Charges.Data) > 0 && payload.Charges.Data[0].PaymentMethodDetails != nil {
		snap.PaymentMethodDetails = payload.Charges.Data[0].PaymentMethodDetails
	} else if len(payload.LatestCharge) > 0 {
		var charge struct {
			PaymentMethodDetails map[string]any `json:"payment_method_details"`
		}
		if err := json.Unmarshal(payload.LatestCharge, &charge); err == nil {
			snap.PaymentMethodDetails = charge.PaymentMethodDetails
		}
	}

	if payload.LastPaymentError != nil {
		snap.LastError = &IntentError{
			Message: payload.LastPaymentError.Message,
			Code:    payload.LastPaymentError.Code,
		}
	}

	return snap
}

// objectID resolves a field that may be either a bare ID string or an
// expanded object carrying an "id" key.
func objectID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

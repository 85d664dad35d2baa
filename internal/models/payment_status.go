package models

// Gateway payment-intent status strings as delivered by Stripe.
const (
	GatewayStatusSucceeded            = "succeeded"
	GatewayStatusProcessing           = "processing"
	GatewayStatusRequiresCapture      = "requires_capture"
	GatewayStatusRequiresPaymentMeth  = "requires_payment_method"
	GatewayStatusRequiresAction       = "requires_action"
	GatewayStatusRequiresConfirmation = "requires_confirmation"
	GatewayStatusCanceled             = "canceled"
	GatewayStatusRequiresRefund       = "requires_refund"
)

// NextPaymentStatus maps a gateway intent status onto the local payment
// state. It is the single authoritative mapping shared by direct
// confirmation and webhook reconciliation, so the two call paths cannot
// drift. The second return value is false when the gateway status is not
// recognized, in which case the current status is returned unchanged.
func NextPaymentStatus(current PaymentStatus, gatewayStatus string) (PaymentStatus, bool) {
	switch gatewayStatus {
	case GatewayStatusSucceeded:
		return PaymentStatusSucceeded, true
	case GatewayStatusProcessing, GatewayStatusRequiresCapture:
		return PaymentStatusProcessing, true
	case GatewayStatusRequiresPaymentMeth, GatewayStatusRequiresAction, GatewayStatusRequiresConfirmation:
		return PaymentStatusPending, true
	case GatewayStatusCanceled:
		return PaymentStatusCancelled, true
	case GatewayStatusRequiresRefund:
		return PaymentStatusRefunded, true
	default:
		return current, false
	}
}

// ApplyGatewayStatus advances the payment according to NextPaymentStatus,
// setting the lifecycle timestamps that go with terminal transitions. It
// reports whether the status was recognized and applied.
func (p *Payment) ApplyGatewayStatus(gatewayStatus string) bool {
	next, applied := NextPaymentStatus(p.Status, gatewayStatus)
	if !applied {
		return false
	}
	switch next {
	case PaymentStatusSucceeded:
		p.MarkSucceeded("", nil)
	case PaymentStatusRefunded:
		p.MarkRefunded()
	default:
		p.Status = next
	}
	return true
}

package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPaymentStatus(t *testing.T) {
	tests := []struct {
		gatewayStatus string
		want          PaymentStatus
		applied       bool
	}{
		{GatewayStatusSucceeded, PaymentStatusSucceeded, true},
		{GatewayStatusProcessing, PaymentStatusProcessing, true},
		{GatewayStatusRequiresCapture, PaymentStatusProcessing, true},
		{GatewayStatusRequiresPaymentMeth, PaymentStatusPending, true},
		{GatewayStatusRequiresAction, PaymentStatusPending, true},
		{GatewayStatusRequiresConfirmation, PaymentStatusPending, true},
		{GatewayStatusCanceled, PaymentStatusCancelled, true},
		{GatewayStatusRequiresRefund, PaymentStatusRefunded, true},
	}

	for _, tt := range tests {
		t.Run(tt.gatewayStatus, func(t *testing.T) {
			got, applied := NextPaymentStatus(PaymentStatusPending, tt.gatewayStatus)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.applied, applied)
		})
	}
}

func TestNextPaymentStatusUnrecognized(t *testing.T) {
	got, applied := NextPaymentStatus(PaymentStatusProcessing, "some_future_status")
	assert.False(t, applied)
	assert.Equal(t, PaymentStatusProcessing, got)

	got, applied = NextPaymentStatus(PaymentStatusSucceeded, "")
	assert.False(t, applied)
	assert.Equal(t, PaymentStatusSucceeded, got)
}

func TestApplyGatewayStatusSucceeded(t *testing.T) {
	p := &Payment{Status: PaymentStatusPending}
	require.True(t, p.ApplyGatewayStatus(GatewayStatusSucceeded))

	assert.Equal(t, PaymentStatusSucceeded, p.Status)
	assert.NotNil(t, p.PaidAt)
	assert.Nil(t, p.FailureReason)
}

func TestApplyGatewayStatusRefunded(t *testing.T) {
	p := &Payment{Status: PaymentStatusSucceeded, Amount: decimal.RequireFromString("49.90")}
	require.True(t, p.ApplyGatewayStatus(GatewayStatusRequiresRefund))

	assert.Equal(t, PaymentStatusRefunded, p.Status)
	assert.NotNil(t, p.RefundedAt)
	assert.True(t, p.RefundedAmount.Equal(p.Amount))
}

func TestApplyGatewayStatusUnrecognizedLeavesPaymentAlone(t *testing.T) {
	p := &Payment{Status: PaymentStatusProcessing}
	require.False(t, p.ApplyGatewayStatus("requires_telepathy"))

	assert.Equal(t, PaymentStatusProcessing, p.Status)
	assert.Nil(t, p.PaidAt)
	assert.Nil(t, p.FailedAt)
}

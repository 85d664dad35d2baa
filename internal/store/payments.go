package store

import (
	"context"
	"database/sql"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
)

// InsertPayment creates the payment row for an order. The unique constraints
// on order_id and stripe_payment_intent_id back the one-payment-per-order
// and one-row-per-intent guarantees.
func (s *Store) InsertPayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (
			order_id, stripe_payment_intent_id, stripe_payment_method_id, stripe_customer_id,
			amount, refunded_amount, currency, status,
			payment_method_details, stripe_metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		payment.OrderID, payment.StripePaymentIntentID, payment.StripePaymentMethodID, payment.StripeCustomerID,
		payment.Amount, payment.RefundedAmount, payment.Currency, payment.Status,
		payment.PaymentMethodDetails, payment.StripeMetadata,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
}

// GetPaymentByOrderID retrieves the payment for an order. A missing payment
// is not an error: it returns (nil, nil) so callers can get-or-create.
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByIntentID retrieves the payment correlated with a gateway
// payment intent. Returns (nil, nil) when no local row matches.
func (s *Store) GetPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE stripe_payment_intent_id = $1", intentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePayment persists the mutable reconciliation state of a payment.
func (s *Store) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		UPDATE payments SET
			stripe_payment_method_id = $1, stripe_customer_id = $2,
			refunded_amount = $3, status = $4,
			payment_method_details = $5, stripe_metadata = $6,
			failure_reason = $7, failure_code = $8,
			paid_at = $9, failed_at = $10, refunded_at = $11,
			updated_at = NOW()
		WHERE id = $12
		RETURNING updated_at`

	return s.db.QueryRowxContext(ctx, query,
		payment.StripePaymentMethodID, payment.StripeCustomerID,
		payment.RefundedAmount, payment.Status,
		payment.PaymentMethodDetails, payment.StripeMetadata,
		payment.FailureReason, payment.FailureCode,
		payment.PaidAt, payment.FailedAt, payment.RefundedAt,
		payment.ID,
	).Scan(&payment.UpdatedAt)
}

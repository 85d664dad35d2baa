package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/gateway"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/util"
)

// PaymentStore is the persistence surface the payment service depends on.
type PaymentStore interface {
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	GetPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	InsertPayment(ctx context.Context, payment *models.Payment) error
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// PaymentEventPublisher publishes payment lifecycle events, best effort.
type PaymentEventPublisher interface {
	PublishPaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// PaymentService drives payment intents through the external gateway and
// reconciles webhook deliveries into the local payment record. Direct
// confirmation and webhook reconciliation both funnel through
// models.NextPaymentStatus so the two paths cannot diverge.
type PaymentService struct {
	store     PaymentStore
	gateway   gateway.Gateway
	publisher PaymentEventPublisher
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service. publisher may be nil.
func NewPaymentService(store PaymentStore, gw gateway.Gateway, publisher PaymentEventPublisher) *PaymentService {
	return &PaymentService{
		store:     store,
		gateway:   gw,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreatePaymentIntent opens a payment intent for the order, get-or-create:
// when a payment already exists for the order it is returned unchanged and
// the gateway is not called again, so client retries are safe.
func (ps *PaymentService) CreatePaymentIntent(ctx context.Context, order *models.Order) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreatePaymentIntent")
	defer span.End()

	existing, err := ps.store.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment for order %d: %w", order.ID, err)
	}
	if existing != nil {
		ps.logger.Info("Payment already exists for order",
			zap.Int64("order_id", order.ID),
			zap.String("intent_id", existing.StripePaymentIntentID))
		return existing, nil
	}

	amountCents := order.TotalMoney().Cents()
	if amountCents <= 0 {
		return nil, &models.PaymentProcessingError{Message: "order total must be greater than zero"}
	}

	receiptEmail, err := ps.receiptEmail(ctx, order)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	snap, err := ps.gateway.CreatePaymentIntent(ctx, gateway.CreateIntentParams{
		AmountCents: amountCents,
		Currency:    strings.ToLower(order.Currency),
		Metadata: map[string]string{
			"order_id":     strconv.FormatInt(order.ID, 10),
			"order_number": order.OrderNumber,
		},
		ReceiptEmail: receiptEmail,
		Description:  "Order " + order.OrderNumber,
	})
	util.GatewayRequestLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &models.PaymentProcessingError{Message: "failed to create payment intent", Err: err}
	}

	payment := &models.Payment{
		OrderID:               order.ID,
		StripePaymentIntentID: snap.ID,
		Amount:                order.Total,
		RefundedAmount:        decimal.Zero,
		Currency:              order.Currency,
		Status:                models.PaymentStatusPending,
	}
	ps.syncFromIntent(payment, snap)

	if err := ps.store.InsertPayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to persist payment for order %d: %w", order.ID, err)
	}

	util.PaymentIntentsCreatedTotal.Inc()
	ps.logger.Info("Payment intent created",
		zap.Int64("order_id", order.ID),
		zap.String("intent_id", snap.ID),
		zap.Int64("amount_cents", amountCents))
	return payment, nil
}

// ConfirmPayment confirms the intent at the gateway and synchronizes the
// local record from the returned snapshot. The local payment must already
// exist; this call never creates one.
func (ps *PaymentService) ConfirmPayment(ctx context.Context, intentID, paymentMethodID string) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ConfirmPayment")
	defer span.End()

	payment, err := ps.store.GetPaymentByIntentID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment for intent %s: %w", intentID, err)
	}
	if payment == nil {
		return nil, &models.PaymentProcessingError{Message: "no payment found for intent " + intentID}
	}

	start := time.Now()
	snap, err := ps.gateway.ConfirmPaymentIntent(ctx, intentID, paymentMethodID)
	util.GatewayRequestLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &models.PaymentProcessingError{Message: "failed to confirm payment intent", Err: err}
	}

	previous := payment.Status
	ps.syncFromIntent(payment, snap)

	if err := ps.store.UpdatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to persist payment %d: %w", payment.ID, err)
	}

	ps.publishStatusChange(ctx, payment, previous)
	return payment, nil
}

// HandleWebhookEvent reconciles an asynchronous gateway event into the local
// payment record. Events for unknown or foreign intents return (nil, nil):
// delivery is at-least-once and may reference intents this service never
// created. Recognized events that change nothing are returned without being
// re-persisted.
func (ps *PaymentService) HandleWebhookEvent(ctx context.Context, event *gateway.WebhookEvent) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhookEvent")
	defer span.End()

	intent := event.ExtractIntent()
	if intent == nil || intent.ID == "" {
		util.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		return nil, nil
	}

	payment, err := ps.store.GetPaymentByIntentID(ctx, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment for intent %s: %w", intent.ID, err)
	}
	if payment == nil {
		ps.logger.Debug("Webhook for unknown intent ignored",
			zap.String("intent_id", intent.ID),
			zap.String("event_type", event.Type))
		util.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		return nil, nil
	}

	previous := payment.Status
	var changed bool

	switch event.Type {
	case gateway.EventPaymentIntentSucceeded:
		payment.MarkSucceeded(intent.PaymentMethodID, models.JSONMap(intent.PaymentMethodDetails))
		changed = true

	case gateway.EventPaymentIntentFailed:
		reason := "Payment failed"
		code := ""
		if intent.LastError != nil {
			if intent.LastError.Message != "" {
				reason = intent.LastError.Message
			}
			code = intent.LastError.Code
		}
		payment.MarkFailed(reason, code)
		changed = true

	case gateway.EventPaymentIntentProcessing:
		payment.Status = models.PaymentStatusProcessing
		changed = true

	case gateway.EventPaymentIntentCanceled:
		payment.Status = models.PaymentStatusCancelled
		changed = true

	default:
		changed = payment.ApplyGatewayStatus(intent.Status)
	}

	if !changed {
		util.WebhookEventsTotal.WithLabelValues(event.Type, "noop").Inc()
		return payment, nil
	}

	if intent.PaymentMethodID != "" {
		methodID := intent.PaymentMethodID
		payment.StripePaymentMethodID = &methodID
	}
	if len(intent.Metadata) > 0 {
		payment.StripeMetadata = stringMapToJSON(intent.Metadata)
	}

	if err := ps.store.UpdatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to persist payment %d: %w", payment.ID, err)
	}

	util.WebhookEventsTotal.WithLabelValues(event.Type, "applied").Inc()
	ps.logger.Info("Webhook event applied",
		zap.String("intent_id", intent.ID),
		zap.String("event_type", event.Type),
		zap.String("status", string(payment.Status)))

	ps.publishStatusChange(ctx, payment, previous)
	return payment, nil
}

// GetPaymentForOrder retrieves the payment for an order, nil when none
// exists yet.
func (ps *PaymentService) GetPaymentForOrder(ctx context.Context, orderID int64) (*models.Payment, error) {
	return ps.store.GetPaymentByOrderID(ctx, orderID)
}

// syncFromIntent applies the intent's status through the shared mapping and
// copies the correlation fields the gateway resolved.
func (ps *PaymentService) syncFromIntent(payment *models.Payment, snap *gateway.IntentSnapshot) bool {
	applied := payment.ApplyGatewayStatus(snap.Status)

	if snap.PaymentMethodID != "" {
		methodID := snap.PaymentMethodID
		payment.StripePaymentMethodID = &methodID
	}
	if snap.CustomerID != "" {
		customerID := snap.CustomerID
		payment.StripeCustomerID = &customerID
	}
	if len(snap.Metadata) > 0 {
		payment.StripeMetadata = stringMapToJSON(snap.Metadata)
	}
	if len(snap.PaymentMethodDetails) > 0 {
		payment.PaymentMethodDetails = models.JSONMap(snap.PaymentMethodDetails)
	}
	if payment.Status == models.PaymentStatusFailed && snap.LastError != nil && payment.FailureReason == nil {
		payment.MarkFailed(snap.LastError.Message, snap.LastError.Code)
	}
	return applied
}

// publishStatusChange emits payment lifecycle events when the status moved
// into a terminal state.
func (ps *PaymentService) publishStatusChange(ctx context.Context, payment *models.Payment, previous models.PaymentStatus) {
	if ps.publisher == nil || payment.Status == previous {
		return
	}

	base := models.BaseEvent{
		EventID:   uuid.New().String(),
		Timestamp: time.Now(),
	}

	switch payment.Status {
	case models.PaymentStatusSucceeded:
		util.PaymentsSucceededTotal.Inc()
		base.EventType = models.EventTypePaymentSucceeded
		event := &models.PaymentSucceededEvent{
			BaseEvent:   base,
			OrderID:     payment.OrderID,
			PaymentID:   payment.ID,
			IntentID:    payment.StripePaymentIntentID,
			AmountCents: payment.AmountMoney().Cents(),
			Currency:    payment.Currency,
		}
		if err := ps.publisher.PublishPaymentSucceeded(ctx, event); err != nil {
			ps.logger.Error("Failed to publish PaymentSucceeded event", zap.Error(err))
		}

	case models.PaymentStatusFailed, models.PaymentStatusCancelled:
		util.PaymentsFailedTotal.Inc()
		base.EventType = models.EventTypePaymentFailed
		reason := string(payment.Status)
		if payment.FailureReason != nil {
			reason = *payment.FailureReason
		}
		event := &models.PaymentFailedEvent{
			BaseEvent: base,
			OrderID:   payment.OrderID,
			PaymentID: payment.ID,
			IntentID:  payment.StripePaymentIntentID,
			Reason:    reason,
		}
		if err := ps.publisher.PublishPaymentFailed(ctx, event); err != nil {
			ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
		}
	}
}

// receiptEmail resolves the buyer email for gateway receipts.
func (ps *PaymentService) receiptEmail(ctx context.Context, order *models.Order) (string, error) {
	if order.GuestEmail != nil {
		return *order.GuestEmail, nil
	}
	if order.UserID == nil {
		return "", nil
	}
	user, err := ps.store.GetUserByID(ctx, *order.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve receipt email for order %d: %w", order.ID, err)
	}
	return user.Email, nil
}

func stringMapToJSON(m map[string]string) models.JSONMap {
	out := make(models.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

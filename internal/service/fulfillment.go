package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/util"
)

// FulfillmentStore provides consumer-side event idempotency.
type FulfillmentStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// FulfillmentOrchestrator advances order lifecycle in response to payment
// events: confirmed on success, cancelled with stock returned on failure.
// Events arrive at-least-once from the broker, so each one is checked
// against the processed-events ledger before being applied.
type FulfillmentOrchestrator struct {
	store  FulfillmentStore
	orders *OrderService
	logger *zap.Logger
}

// NewFulfillmentOrchestrator creates a new fulfillment orchestrator.
func NewFulfillmentOrchestrator(store FulfillmentStore, orders *OrderService) *FulfillmentOrchestrator {
	return &FulfillmentOrchestrator{
		store:  store,
		orders: orders,
		logger: util.GetLogger(),
	}
}

// HandlePaymentSucceeded confirms the paid order.
func (fo *FulfillmentOrchestrator) HandlePaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error {
	ctx, span := util.StartSpan(ctx, "FulfillmentOrchestrator.HandlePaymentSucceeded")
	defer span.End()

	processed, err := fo.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		fo.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	fo.logger.Info("Handling payment success",
		zap.Int64("order_id", event.OrderID),
		zap.String("intent_id", event.IntentID))

	if err := fo.orders.MarkOrderConfirmed(ctx, event.OrderID); err != nil {
		return fmt.Errorf("failed to confirm order %d: %w", event.OrderID, err)
	}

	if err := fo.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		fo.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// HandlePaymentFailed cancels the order and returns its stock.
func (fo *FulfillmentOrchestrator) HandlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	ctx, span := util.StartSpan(ctx, "FulfillmentOrchestrator.HandlePaymentFailed")
	defer span.End()

	processed, err := fo.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		fo.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	fo.logger.Warn("Handling payment failure",
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", event.Reason))

	if err := fo.orders.CancelOrderAndRestock(ctx, event.OrderID, event.Reason); err != nil {
		return fmt.Errorf("failed to cancel order %d: %w", event.OrderID, err)
	}

	if err := fo.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		fo.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

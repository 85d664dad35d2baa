package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
)

// EventPublisher handles publishing domain events.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes an OrderCreated event.
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderConfirmed publishes an OrderConfirmed event.
func (ep *EventPublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderCancelled publishes an OrderCancelled event.
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentSucceeded publishes a PaymentSucceeded event.
func (ep *EventPublisher) PublishPaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentFailed publishes a PaymentFailed event.
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed events to registered handlers.
type EventHandler struct {
	onPaymentSucceeded func(context.Context, *models.PaymentSucceededEvent) error
	onPaymentFailed    func(context.Context, *models.PaymentFailedEvent) error
}

// NewEventHandler creates a new event handler.
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentSucceeded registers a handler for PaymentSucceeded events.
func (eh *EventHandler) OnPaymentSucceeded(handler func(context.Context, *models.PaymentSucceededEvent) error) {
	eh.onPaymentSucceeded = handler
}

// OnPaymentFailed registers a handler for PaymentFailed events.
func (eh *EventHandler) OnPaymentFailed(handler func(context.Context, *models.PaymentFailedEvent) error) {
	eh.onPaymentFailed = handler
}

// HandleMessage routes messages to the appropriate handler.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypePaymentSucceeded:
		if eh.onPaymentSucceeded != nil {
			var event models.PaymentSucceededEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentSucceeded event: %w", err)
			}
			return eh.onPaymentSucceeded(ctx, &event)
		}

	case models.EventTypePaymentFailed:
		if eh.onPaymentFailed != nil {
			var event models.PaymentFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentFailed event: %w", err)
			}
			return eh.onPaymentFailed(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}

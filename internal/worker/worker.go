package worker

import (
	"context"
	"log"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/broker"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/service"
)

// FulfillmentWorker consumes payment events and drives order fulfillment:
// confirmation after successful payment, cancellation with restock after a
// failed one.
type FulfillmentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewFulfillmentWorker creates a new fulfillment worker.
func NewFulfillmentWorker(consumer *broker.Consumer, orchestrator *service.FulfillmentOrchestrator) *FulfillmentWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentSucceeded(orchestrator.HandlePaymentSucceeded)
	eventHandler.OnPaymentFailed(orchestrator.HandlePaymentFailed)

	return &FulfillmentWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker.
func (w *FulfillmentWorker) Start(ctx context.Context) error {
	log.Println("Starting fulfillment worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker.
func (w *FulfillmentWorker) Stop() error {
	log.Println("Stopping fulfillment worker...")
	return w.consumer.Close()
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/money"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/store"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/util"
)

// OrderStore is the persistence surface the order service depends on.
// *store.Store satisfies it; tests substitute an in-memory fake.
type OrderStore interface {
	RunInTransaction(ctx context.Context, fn func(tx store.OrderTx) error) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
}

// OrderEventPublisher publishes order lifecycle events. Publishing is best
// effort and never fails the surrounding operation.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// OrderService assembles order drafts into persisted aggregates and owns all
// order mutations. Every public operation runs inside a single database
// transaction: stock decrements, order insert and item inserts commit or
// roll back together.
type OrderService struct {
	store     OrderStore
	publisher OrderEventPublisher
	cache     ProductCache
	logger    *zap.Logger
}

// NewOrderService creates a new order service. publisher and cache may be
// nil.
func NewOrderService(store OrderStore, publisher OrderEventPublisher, cache ProductCache) *OrderService {
	return &OrderService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// CreateGuestOrder assembles and persists an order for an unauthenticated
// buyer. Guest email and name are mandatory.
func (s *OrderService) CreateGuestOrder(ctx context.Context, draft *models.OrderDraft, guest models.GuestCustomerData) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateGuestOrder")
	defer span.End()

	var order *models.Order
	err := s.store.RunInTransaction(ctx, func(tx store.OrderTx) error {
		built, err := s.buildOrder(ctx, tx, draft)
		if err != nil {
			return err
		}
		built.SetGuest(guest)
		if err := built.ValidateGuest(); err != nil {
			return err
		}
		if err := s.persistOrder(ctx, tx, built); err != nil {
			return err
		}
		order = built
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.WithLabelValues("guest").Inc()
	s.logger.Info("Guest order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))
	s.invalidateProducts(ctx, order)
	s.publishOrderCreated(ctx, order)
	return order, nil
}

// CreateUserOrder assembles and persists an order owned by a registered
// customer.
func (s *OrderService) CreateUserOrder(ctx context.Context, userID int64, draft *models.OrderDraft) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateUserOrder")
	defer span.End()

	var order *models.Order
	err := s.store.RunInTransaction(ctx, func(tx store.OrderTx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		built, err := s.buildOrder(ctx, tx, draft)
		if err != nil {
			return err
		}
		built.AttachUser(user.ID)
		if err := built.Validate(); err != nil {
			return err
		}
		if err := s.persistOrder(ctx, tx, built); err != nil {
			return err
		}
		order = built
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.WithLabelValues("user").Inc()
	s.logger.Info("User order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("order_number", order.OrderNumber))
	s.invalidateProducts(ctx, order)
	s.publishOrderCreated(ctx, order)
	return order, nil
}

// ConvertGuestOrderToUser attaches a guest order to a registered customer.
// Conversion is one-way and single-use: an order that already has a customer
// is rejected untouched.
func (s *OrderService) ConvertGuestOrderToUser(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ConvertGuestOrderToUser")
	defer span.End()

	var order *models.Order
	err := s.store.RunInTransaction(ctx, func(tx store.OrderTx) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.UserID != nil {
			return &models.InvalidOrderDataError{Reason: "order is already linked to a customer"}
		}
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		current.AttachUser(user.ID)
		if err := current.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, current); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.OrdersConvertedTotal.Inc()
	s.logger.Info("Guest order converted",
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", userID))
	return order, nil
}

// MarkOrderConfirmed advances an order to CONFIRMED after a successful
// payment. Re-applying to an already confirmed order is a no-op.
func (s *OrderService) MarkOrderConfirmed(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.MarkOrderConfirmed")
	defer span.End()

	var order *models.Order
	err := s.store.RunInTransaction(ctx, func(tx store.OrderTx) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == models.OrderStatusConfirmed {
			return nil
		}
		if err := tx.UpdateOrderStatus(ctx, orderID, models.OrderStatusConfirmed); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}

	util.OrdersConfirmedTotal.Inc()
	s.logger.Info("Order confirmed", zap.Int64("order_id", orderID))
	s.publishOrderConfirmed(ctx, order)
	return nil
}

// CancelOrderAndRestock cancels an order after a failed payment and returns
// every reserved item to stock. Already cancelled orders are left alone.
func (s *OrderService) CancelOrderAndRestock(ctx context.Context, orderID int64, reason string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrderAndRestock")
	defer span.End()

	var order *models.Order
	err := s.store.RunInTransaction(ctx, func(tx store.OrderTx) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == models.OrderStatusCancelled {
			return nil
		}
		for _, item := range current.Items {
			if _, err := tx.RestockProduct(ctx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("failed to restock product %d: %w", item.ProductID, err)
			}
		}
		if err := tx.UpdateOrderStatus(ctx, orderID, models.OrderStatusCancelled); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Warn("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason))
	s.invalidateProducts(ctx, order)
	s.publishOrderCancelled(ctx, order, reason)
	return nil
}

// GetOrder retrieves an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.store.GetOrderByID(ctx, orderID)
}

// GetUserOrders retrieves the orders of a registered customer.
func (s *OrderService) GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}

// buildOrder assembles a draft into a fully priced order. Stock is reserved
// eagerly per item, in draft order, inside the caller's transaction; the
// first resolved unit price establishes the order currency when the draft
// did not pin one, and every later price must match it exactly.
func (s *OrderService) buildOrder(ctx context.Context, tx store.OrderTx, draft *models.OrderDraft) (*models.Order, error) {
	start := time.Now()
	defer func() {
		util.OrderBuildLatency.Observe(time.Since(start).Seconds())
	}()

	if err := draft.Validate(); err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber: newOrderNumber(),
		Status:      models.OrderStatusPending,
	}

	currency := draft.Currency
	subtotal := money.Zero(currency)

	for _, itemDraft := range draft.Items {
		product, err := tx.ReserveStock(ctx, itemDraft.ProductID, itemDraft.Quantity)
		if err != nil {
			util.StockReservationsFailed.WithLabelValues(failureReason(err)).Inc()
			return nil, err
		}

		unitPrice := product.UnitPrice()
		if itemDraft.UnitPriceOverride != nil {
			unitPrice = *itemDraft.UnitPriceOverride
		}

		if currency == "" {
			currency = unitPrice.Currency
			subtotal = money.Zero(currency)
		}
		if unitPrice.Currency != currency {
			return nil, &models.InvalidOrderDataError{Reason: "all order items must share the same currency"}
		}

		item := models.NewOrderItem(product, unitPrice, itemDraft.Quantity)
		if err := item.Validate(); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, *item)

		subtotal, err = subtotal.Add(item.TotalPriceMoney())
		if err != nil {
			return nil, &models.InvalidOrderDataError{Reason: err.Error()}
		}
	}

	if len(order.Items) < 1 {
		return nil, &models.InvalidOrderDataError{Reason: "order must contain at least one item"}
	}

	order.Currency = currency

	tax, err := resolveAdjustment(draft.TaxAmount, "tax", currency)
	if err != nil {
		return nil, err
	}
	shipping, err := resolveAdjustment(draft.ShippingAmount, "shipping", currency)
	if err != nil {
		return nil, err
	}
	discount, err := resolveAdjustment(draft.DiscountAmount, "discount", currency)
	if err != nil {
		return nil, err
	}
	if err := order.SetAmounts(subtotal, tax, shipping, discount); err != nil {
		return nil, err
	}

	order.BillingAddress = draft.BillingAddress
	order.ShippingAddress = draft.ShippingAddress
	if draft.Notes != "" {
		notes := draft.Notes
		order.Notes = &notes
	}
	if len(draft.Metadata) > 0 {
		order.Metadata = draft.Metadata
	}

	return order, nil
}

// persistOrder inserts the order and its items inside the transaction.
func (s *OrderService) persistOrder(ctx context.Context, tx store.OrderTx, order *models.Order) error {
	if err := tx.InsertOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		if err := tx.InsertOrderItem(ctx, &order.Items[i]); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order) {
	if s.publisher == nil {
		return
	}

	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Currency:  item.Currency,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Guest:       order.IsGuestOrder(),
		Total:       order.Total.StringFixed(2),
		Currency:    order.Currency,
		Items:       items,
	}

	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (s *OrderService) publishOrderConfirmed(ctx context.Context, order *models.Order) {
	if s.publisher == nil {
		return
	}

	event := &models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderConfirmed,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	}

	if err := s.publisher.PublishOrderConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderConfirmed event", zap.Error(err))
	}
}

func (s *OrderService) publishOrderCancelled(ctx context.Context, order *models.Order, reason string) {
	if s.publisher == nil {
		return
	}

	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		Reason:  reason,
	}

	if err := s.publisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
}

// invalidateProducts drops the cached snapshot of every product whose stock
// the order just changed. Best effort: the cache entries expire on their own.
func (s *OrderService) invalidateProducts(ctx context.Context, order *models.Order) {
	if s.cache == nil {
		return
	}
	for _, item := range order.Items {
		if err := s.cache.InvalidateProduct(ctx, item.ProductID); err != nil {
			s.logger.Warn("Failed to invalidate product cache",
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}
}

// resolveAdjustment defaults a missing adjustment to zero in the order
// currency and rejects explicit adjustments denominated in any other.
func resolveAdjustment(m *money.Money, name, currency string) (money.Money, error) {
	if m == nil {
		return money.Zero(currency), nil
	}
	if m.Currency != currency {
		return money.Money{}, &models.InvalidOrderDataError{Reason: name + " amount currency must match order currency"}
	}
	if m.IsNegative() {
		return money.Money{}, &models.InvalidOrderDataError{Reason: name + " amount must not be negative"}
	}
	return *m, nil
}

// newOrderNumber generates a short unique order number.
func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.New().String()[:8])
}

// failureReason buckets an error for metric labels.
func failureReason(err error) string {
	switch err.(type) {
	case *models.InsufficientStockError:
		return "insufficient_stock"
	case *models.InvalidOrderDataError:
		return "invalid_order_data"
	case *models.ProductNotFoundError:
		return "product_not_found"
	case *models.UserNotFoundError:
		return "user_not_found"
	default:
		return "error"
	}
}

package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/money"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/store"
)

// fakeOrderStore is an in-memory OrderStore. RunInTransaction snapshots the
// state before running fn and restores it when fn fails, mirroring the
// all-or-nothing behavior of the real transactional store.
type fakeOrderStore struct {
	products map[int64]*models.Product
	users    map[int64]*models.User
	orders   map[int64]*models.Order
	nextID   int64
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		products: make(map[int64]*models.Product),
		users:    make(map[int64]*models.User),
		orders:   make(map[int64]*models.Order),
	}
}

func (s *fakeOrderStore) addProduct(id int64, sku, name, price, currency string, stock int, trackStock bool) {
	s.products[id] = &models.Product{
		ID:         id,
		SKU:        sku,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Currency:   currency,
		Stock:      stock,
		TrackStock: trackStock,
	}
}

func (s *fakeOrderStore) clone() *fakeOrderStore {
	c := &fakeOrderStore{
		products: make(map[int64]*models.Product, len(s.products)),
		users:    s.users,
		orders:   make(map[int64]*models.Order, len(s.orders)),
		nextID:   s.nextID,
	}
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, o := range s.orders {
		co := *o
		co.Items = append([]models.OrderItem(nil), o.Items...)
		c.orders[id] = &co
	}
	return c
}

func (s *fakeOrderStore) RunInTransaction(ctx context.Context, fn func(tx store.OrderTx) error) error {
	snapshot := s.clone()
	if err := fn(&fakeOrderTx{s: s}); err != nil {
		*s = *snapshot
		return err
	}
	return nil
}

func (s *fakeOrderStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, &models.OrderNotFoundError{OrderID: id}
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	return &copied, nil
}

func (s *fakeOrderStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.UserID != nil && *order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

type fakeOrderTx struct {
	s *fakeOrderStore
}

func (t *fakeOrderTx) ReserveStock(ctx context.Context, productID int64, quantity int) (*models.Product, error) {
	product, ok := t.s.products[productID]
	if !ok {
		return nil, &models.ProductNotFoundError{ProductID: productID}
	}
	if !product.TrackStock {
		copied := *product
		return &copied, nil
	}
	if product.Stock < quantity {
		return nil, &models.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.Stock,
		}
	}
	product.Stock -= quantity
	copied := *product
	return &copied, nil
}

func (t *fakeOrderTx) RestockProduct(ctx context.Context, productID int64, quantity int) (*models.Product, error) {
	product, ok := t.s.products[productID]
	if !ok {
		return nil, &models.ProductNotFoundError{ProductID: productID}
	}
	if product.TrackStock {
		product.Stock += quantity
	}
	copied := *product
	return &copied, nil
}

func (t *fakeOrderTx) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, ok := t.s.users[userID]
	if !ok {
		return nil, &models.UserNotFoundError{UserID: userID}
	}
	copied := *user
	return &copied, nil
}

func (t *fakeOrderTx) InsertOrder(ctx context.Context, order *models.Order) error {
	t.s.nextID++
	order.ID = t.s.nextID
	copied := *order
	copied.Items = nil
	t.s.orders[order.ID] = &copied
	return nil
}

func (t *fakeOrderTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	t.s.nextID++
	item.ID = t.s.nextID
	stored, ok := t.s.orders[item.OrderID]
	if !ok {
		return &models.OrderNotFoundError{OrderID: item.OrderID}
	}
	stored.Items = append(stored.Items, *item)
	return nil
}

func (t *fakeOrderTx) GetOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	order, ok := t.s.orders[orderID]
	if !ok {
		return nil, &models.OrderNotFoundError{OrderID: orderID}
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	return &copied, nil
}

func (t *fakeOrderTx) UpdateOrder(ctx context.Context, order *models.Order) error {
	if _, ok := t.s.orders[order.ID]; !ok {
		return &models.OrderNotFoundError{OrderID: order.ID}
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	t.s.orders[order.ID] = &copied
	return nil
}

func (t *fakeOrderTx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	order, ok := t.s.orders[orderID]
	if !ok {
		return &models.OrderNotFoundError{OrderID: orderID}
	}
	order.Status = status
	return nil
}

type capturingPublisher struct {
	created   []*models.OrderCreatedEvent
	confirmed []*models.OrderConfirmedEvent
	cancelled []*models.OrderCancelledEvent
}

func (p *capturingPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	p.created = append(p.created, event)
	return nil
}

func (p *capturingPublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	p.confirmed = append(p.confirmed, event)
	return nil
}

func (p *capturingPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	p.cancelled = append(p.cancelled, event)
	return nil
}

type capturingProductCache struct {
	invalidated []int64
}

func (c *capturingProductCache) GetCachedProduct(ctx context.Context, productID int64) (*models.Product, error) {
	return nil, nil
}

func (c *capturingProductCache) CacheProduct(ctx context.Context, product *models.Product) error {
	return nil
}

func (c *capturingProductCache) InvalidateProduct(ctx context.Context, productID int64) error {
	c.invalidated = append(c.invalidated, productID)
	return nil
}

func testGuest() models.GuestCustomerData {
	return models.GuestCustomerData{Email: "jane@example.com", Name: "Jane Doe"}
}

func TestCreateGuestOrderEndToEnd(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	publisher := &capturingPublisher{}
	svc := NewOrderService(fs, publisher, nil)

	tax := money.MustNew("8.00", "USD")
	shipping := money.MustNew("5.00", "USD")
	discount := money.MustNew("3.00", "USD")
	draft := &models.OrderDraft{
		Items:          []models.OrderItemDraft{{ProductID: 1, Quantity: 2}},
		TaxAmount:      &tax,
		ShippingAmount: &shipping,
		DiscountAmount: &discount,
	}

	order, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, "210.00 USD", order.TotalMoney().String())
	assert.Equal(t, "200.00 USD", order.SubtotalMoney().String())
	assert.True(t, order.IsGuestOrder())
	require.NotNil(t, order.GuestEmail)
	assert.Equal(t, "jane@example.com", *order.GuestEmail)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "Widget", order.Items[0].ProductName)
	assert.Equal(t, "WIDGET-1", order.Items[0].ProductSKU)
	assert.Equal(t, order.ID, order.Items[0].OrderID)

	assert.Equal(t, 8, fs.products[1].Stock)

	require.Len(t, publisher.created, 1)
	assert.Equal(t, models.EventTypeOrderCreated, publisher.created[0].EventType)
	assert.Equal(t, "210.00", publisher.created[0].Total)
	assert.True(t, publisher.created[0].Guest)
}

func TestCreateGuestOrderCurrencyMismatchRollsBack(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	fs.addProduct(2, "GADGET-1", "Gadget", "50.00", "EUR", 10, true)
	svc := NewOrderService(fs, nil, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 1},
		},
	}

	_, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	var invalid *models.InvalidOrderDataError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "currency")

	assert.Equal(t, 10, fs.products[1].Stock)
	assert.Equal(t, 10, fs.products[2].Stock)
	assert.Empty(t, fs.orders)
}

func TestCreateGuestOrderInsufficientStockRollsBack(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	fs.addProduct(2, "GADGET-1", "Gadget", "50.00", "USD", 3, true)
	svc := NewOrderService(fs, nil, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 5},
		},
	}

	_, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	var stockErr *models.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(2), stockErr.ProductID)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)

	// the first item's reservation is rolled back with everything else
	assert.Equal(t, 10, fs.products[1].Stock)
	assert.Equal(t, 3, fs.products[2].Stock)
	assert.Empty(t, fs.orders)
}

func TestCreateGuestOrderUntrackedStock(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "EBOOK-1", "Ebook", "9.99", "USD", 0, false)
	svc := NewOrderService(fs, nil, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 1, Quantity: 3}},
	}

	order, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	require.NoError(t, err)
	assert.Equal(t, "29.97 USD", order.TotalMoney().String())
	assert.Equal(t, 0, fs.products[1].Stock)
}

func TestCreateGuestOrderUnitPriceOverride(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	svc := NewOrderService(fs, nil, nil)

	override := money.MustNew("80.00", "USD")
	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 1, Quantity: 1, UnitPriceOverride: &override}},
	}

	order, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	require.NoError(t, err)
	assert.Equal(t, "80.00 USD", order.TotalMoney().String())
	assert.Equal(t, "80.00 USD", order.Items[0].UnitPriceMoney().String())
}

func TestCreateGuestOrderAdjustmentCurrencyMismatch(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	svc := NewOrderService(fs, nil, nil)

	tax := money.MustNew("8.00", "EUR")
	draft := &models.OrderDraft{
		Items:     []models.OrderItemDraft{{ProductID: 1, Quantity: 1}},
		TaxAmount: &tax,
	}

	_, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	var invalid *models.InvalidOrderDataError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 10, fs.products[1].Stock)
}

func TestCreateGuestOrderUnknownProduct(t *testing.T) {
	fs := newFakeOrderStore()
	svc := NewOrderService(fs, nil, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 99, Quantity: 1}},
	}

	_, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	var notFound *models.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(99), notFound.ProductID)
}

func TestCreateUserOrder(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	fs.users[42] = &models.User{ID: 42, Email: "bob@example.com", Name: "Bob"}
	publisher := &capturingPublisher{}
	svc := NewOrderService(fs, publisher, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 1, Quantity: 1}},
	}

	order, err := svc.CreateUserOrder(context.Background(), 42, draft)
	require.NoError(t, err)

	require.NotNil(t, order.UserID)
	assert.Equal(t, int64(42), *order.UserID)
	assert.Nil(t, order.GuestEmail)
	assert.False(t, order.IsGuestOrder())

	require.Len(t, publisher.created, 1)
	assert.False(t, publisher.created[0].Guest)
}

func TestCreateUserOrderUnknownUser(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	svc := NewOrderService(fs, nil, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 1, Quantity: 1}},
	}

	_, err := svc.CreateUserOrder(context.Background(), 7, draft)
	var notFound *models.UserNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 10, fs.products[1].Stock)
}

func TestConvertGuestOrderToUser(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	fs.users[42] = &models.User{ID: 42, Email: "bob@example.com", Name: "Bob"}
	svc := NewOrderService(fs, nil, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 1, Quantity: 1}},
	}
	guestOrder, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	require.NoError(t, err)

	converted, err := svc.ConvertGuestOrderToUser(context.Background(), guestOrder.ID, 42)
	require.NoError(t, err)

	require.NotNil(t, converted.UserID)
	assert.Equal(t, int64(42), *converted.UserID)
	assert.Nil(t, converted.GuestEmail)
	assert.Nil(t, converted.GuestName)

	stored, err := svc.GetOrder(context.Background(), guestOrder.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, int64(42), *stored.UserID)
}

func TestConvertGuestOrderToUserAlreadyLinked(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	fs.users[42] = &models.User{ID: 42, Email: "bob@example.com", Name: "Bob"}
	fs.users[43] = &models.User{ID: 43, Email: "eve@example.com", Name: "Eve"}
	svc := NewOrderService(fs, nil, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 1, Quantity: 1}},
	}
	order, err := svc.CreateUserOrder(context.Background(), 42, draft)
	require.NoError(t, err)

	_, err = svc.ConvertGuestOrderToUser(context.Background(), order.ID, 43)
	var invalid *models.InvalidOrderDataError
	require.ErrorAs(t, err, &invalid)

	stored, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, int64(42), *stored.UserID)
}

func TestConvertGuestOrderToUserUnknownOrder(t *testing.T) {
	fs := newFakeOrderStore()
	svc := NewOrderService(fs, nil, nil)

	_, err := svc.ConvertGuestOrderToUser(context.Background(), 999, 42)
	var notFound *models.OrderNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestMarkOrderConfirmedIdempotent(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	svc := NewOrderService(fs, nil, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 1, Quantity: 1}},
	}
	order, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	require.NoError(t, err)

	require.NoError(t, svc.MarkOrderConfirmed(context.Background(), order.ID))
	require.NoError(t, svc.MarkOrderConfirmed(context.Background(), order.ID))

	stored, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
}

func TestCancelOrderAndRestock(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	svc := NewOrderService(fs, nil, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 1, Quantity: 4}},
	}
	order, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	require.NoError(t, err)
	require.Equal(t, 6, fs.products[1].Stock)

	require.NoError(t, svc.CancelOrderAndRestock(context.Background(), order.ID, "payment failed"))
	assert.Equal(t, 10, fs.products[1].Stock)

	stored, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)

	// cancelling again must not restock twice
	require.NoError(t, svc.CancelOrderAndRestock(context.Background(), order.ID, "retry"))
	assert.Equal(t, 10, fs.products[1].Stock)
}

func TestMarkOrderConfirmedPublishesEventOnce(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	publisher := &capturingPublisher{}
	svc := NewOrderService(fs, publisher, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 1, Quantity: 1}},
	}
	order, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	require.NoError(t, err)

	require.NoError(t, svc.MarkOrderConfirmed(context.Background(), order.ID))

	require.Len(t, publisher.confirmed, 1)
	assert.Equal(t, models.EventTypeOrderConfirmed, publisher.confirmed[0].EventType)
	assert.Equal(t, order.ID, publisher.confirmed[0].OrderID)
	assert.Equal(t, order.OrderNumber, publisher.confirmed[0].OrderNumber)
	assert.NotEmpty(t, publisher.confirmed[0].EventID)

	// confirming an already confirmed order publishes nothing
	require.NoError(t, svc.MarkOrderConfirmed(context.Background(), order.ID))
	assert.Len(t, publisher.confirmed, 1)
}

func TestCancelOrderAndRestockPublishesEventOnce(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	publisher := &capturingPublisher{}
	svc := NewOrderService(fs, publisher, nil)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{{ProductID: 1, Quantity: 2}},
	}
	order, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	require.NoError(t, err)

	require.NoError(t, svc.CancelOrderAndRestock(context.Background(), order.ID, "card declined"))

	require.Len(t, publisher.cancelled, 1)
	assert.Equal(t, models.EventTypeOrderCancelled, publisher.cancelled[0].EventType)
	assert.Equal(t, order.ID, publisher.cancelled[0].OrderID)
	assert.Equal(t, "card declined", publisher.cancelled[0].Reason)

	// a redelivered cancellation is a no-op and publishes nothing
	require.NoError(t, svc.CancelOrderAndRestock(context.Background(), order.ID, "retry"))
	assert.Len(t, publisher.cancelled, 1)
}

func TestOrderMutationsInvalidateProductCache(t *testing.T) {
	fs := newFakeOrderStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", "USD", 10, true)
	fs.addProduct(2, "GADGET-1", "Gadget", "50.00", "USD", 5, true)
	cache := &capturingProductCache{}
	svc := NewOrderService(fs, nil, cache)

	draft := &models.OrderDraft{
		Items: []models.OrderItemDraft{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	}
	order, err := svc.CreateGuestOrder(context.Background(), draft, testGuest())
	require.NoError(t, err)

	// creating the order drops both cached products
	assert.Equal(t, []int64{1, 2}, cache.invalidated)

	cache.invalidated = nil
	require.NoError(t, svc.CancelOrderAndRestock(context.Background(), order.ID, "payment failed"))

	// restocking drops them again so readers see the returned stock
	assert.Equal(t, []int64{1, 2}, cache.invalidated)
}

package store

import (
	"context"
	"database/sql"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
)

// InsertOrder creates a new order row inside the transaction.
func (t *Tx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			order_number, user_id, guest_email, guest_name, guest_phone,
			currency, subtotal, tax_amount, shipping_amount, discount_amount, total,
			status, billing_address, shipping_address, notes, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	return t.tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.UserID, order.GuestEmail, order.GuestName, order.GuestPhone,
		order.Currency, order.Subtotal, order.TaxAmount, order.ShippingAmount, order.DiscountAmount, order.Total,
		order.Status, order.BillingAddress, order.ShippingAddress, order.Notes, order.Metadata,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

// InsertOrderItem creates a new order item row inside the transaction.
func (t *Tx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (
			order_id, product_id, product_name, product_sku,
			unit_price, currency, quantity, total_price
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return t.tx.QueryRowxContext(ctx, query,
		item.OrderID, item.ProductID, item.ProductName, item.ProductSKU,
		item.UnitPrice, item.Currency, item.Quantity, item.TotalPrice,
	).Scan(&item.ID, &item.CreatedAt)
}

// GetOrderForUpdate locks and loads an order with its items.
func (t *Tx) GetOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, &models.OrderNotFoundError{OrderID: orderID}
	}
	if err != nil {
		return nil, err
	}

	err = t.tx.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrder persists buyer identity, amounts and status of an order.
func (t *Tx) UpdateOrder(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders SET
			user_id = $1, guest_email = $2, guest_name = $3, guest_phone = $4,
			subtotal = $5, tax_amount = $6, shipping_amount = $7, discount_amount = $8, total = $9,
			status = $10, notes = $11, metadata = $12, updated_at = NOW()
		WHERE id = $13
		RETURNING updated_at`

	return t.tx.QueryRowxContext(ctx, query,
		order.UserID, order.GuestEmail, order.GuestName, order.GuestPhone,
		order.Subtotal, order.TaxAmount, order.ShippingAmount, order.DiscountAmount, order.Total,
		order.Status, order.Notes, order.Metadata, order.ID,
	).Scan(&order.UpdatedAt)
}

// UpdateOrderStatus advances the order status inside the transaction.
func (t *Tx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// GetOrderByID retrieves an order with its items.
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.OrderNotFoundError{OrderID: id}
	}
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first.
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
)

// OrderTx is the transactional unit of work handed to order workflows.
// Everything performed through it commits or rolls back together, including
// stock decrements, so a failure partway through an order leaves no partial
// state behind.
type OrderTx interface {
	ReserveStock(ctx context.Context, productID int64, quantity int) (*models.Product, error)
	RestockProduct(ctx context.Context, productID int64, quantity int) (*models.Product, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error
}

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection.
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// RunInTransaction executes fn inside a single database transaction and
// commits only if fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx OrderTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Tx is the sqlx-backed OrderTx implementation.
type Tx struct {
	tx *sqlx.Tx
}

// ReserveStock locks the product row, checks availability and decrements the
// stock counter. Untracked products always succeed and are left untouched.
func (t *Tx) ReserveStock(ctx context.Context, productID int64, quantity int) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", productID)
	if err == sql.ErrNoRows {
		return nil, &models.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	if !product.TrackStock {
		return &product, nil
	}

	if product.Stock < quantity {
		return nil, &models.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.Stock,
		}
	}

	_, err = t.tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		quantity, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	product.Stock -= quantity
	return &product, nil
}

// RestockProduct returns previously reserved quantity to the stock counter.
func (t *Tx) RestockProduct(ctx context.Context, productID int64, quantity int) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", productID)
	if err == sql.ErrNoRows {
		return nil, &models.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	if !product.TrackStock {
		return &product, nil
	}

	_, err = t.tx.ExecContext(ctx,
		"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to restock product: %w", err)
	}

	product.Stock += quantity
	return &product, nil
}

// GetUser retrieves a user inside the transaction.
func (t *Tx) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := t.tx.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, &models.UserNotFoundError{UserID: userID}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProductByID retrieves a product by ID.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products.
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.UserNotFoundError{UserID: id}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IsEventProcessed checks if an event has been processed.
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

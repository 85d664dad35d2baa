package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
)

const (
	productCacheTTL = 5 * time.Minute
	eventSeenTTL    = 24 * time.Hour
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client.
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CacheProduct stores a product snapshot for the catalog read path. Stock
// counters are authoritative only in the database; the cache is read-through
// convenience for browse traffic.
func (c *Client) CacheProduct(ctx context.Context, product *models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	return c.rdb.Set(ctx, productKey(product.ID), data, productCacheTTL).Err()
}

// GetCachedProduct retrieves a cached product, (nil, nil) on a miss.
func (c *Client) GetCachedProduct(ctx context.Context, productID int64) (*models.Product, error) {
	data, err := c.rdb.Get(ctx, productKey(productID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached product: %w", err)
	}
	return &product, nil
}

// InvalidateProduct drops a product from the cache after a stock mutation.
func (c *Client) InvalidateProduct(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, productKey(productID)).Err()
}

// MarkEventSeen records a webhook delivery id, returning false when the
// same id was already recorded. Used as an advisory duplicate filter in
// front of the reconciliation path, which is idempotent on its own.
func (c *Client) MarkEventSeen(ctx context.Context, eventID string) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("webhook:seen:%s", eventID), "1", eventSeenTTL).Result()
}

// AcquireIntentLock takes a short-lived lock serializing concurrent webhook
// deliveries for the same payment intent.
func (c *Client) AcquireIntentLock(ctx context.Context, intentID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, intentLockKey(intentID), "1", ttl).Result()
}

// ReleaseIntentLock releases the per-intent lock.
func (c *Client) ReleaseIntentLock(ctx context.Context, intentID string) error {
	return c.rdb.Del(ctx, intentLockKey(intentID)).Err()
}

func productKey(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}

func intentLockKey(intentID string) string {
	return fmt.Sprintf("lock:intent:%s", intentID)
}

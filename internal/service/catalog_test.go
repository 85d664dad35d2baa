package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
)

type fakeProductStore struct {
	products map[int64]*models.Product
	getCalls int
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{products: make(map[int64]*models.Product)}
}

func (s *fakeProductStore) addProduct(id int64, sku, name, price string, stock int) {
	s.products[id] = &models.Product{
		ID:         id,
		SKU:        sku,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Currency:   "USD",
		Stock:      stock,
		TrackStock: true,
	}
}

func (s *fakeProductStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	s.getCalls++
	product, ok := s.products[id]
	if !ok {
		return nil, &models.ProductNotFoundError{ProductID: id}
	}
	copied := *product
	return &copied, nil
}

func (s *fakeProductStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range s.products {
		out = append(out, *p)
	}
	return out, nil
}

type fakeProductCache struct {
	entries map[int64]*models.Product
	err     error
}

func newFakeProductCache() *fakeProductCache {
	return &fakeProductCache{entries: make(map[int64]*models.Product)}
}

func (c *fakeProductCache) GetCachedProduct(ctx context.Context, productID int64) (*models.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.entries[productID], nil
}

func (c *fakeProductCache) CacheProduct(ctx context.Context, product *models.Product) error {
	if c.err != nil {
		return c.err
	}
	c.entries[product.ID] = product
	return nil
}

func (c *fakeProductCache) InvalidateProduct(ctx context.Context, productID int64) error {
	if c.err != nil {
		return c.err
	}
	delete(c.entries, productID)
	return nil
}

func TestGetProductMissThenHit(t *testing.T) {
	fs := newFakeProductStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", 10)
	cache := newFakeProductCache()
	svc := NewCatalogService(fs, cache)

	product, err := svc.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "WIDGET-1", product.SKU)
	assert.Equal(t, 1, fs.getCalls)

	// the miss populated the cache
	require.Contains(t, cache.entries, int64(1))

	// the second read is served from the cache without touching the store
	again, err := svc.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "WIDGET-1", again.SKU)
	assert.Equal(t, 1, fs.getCalls)
}

func TestGetProductUnknown(t *testing.T) {
	fs := newFakeProductStore()
	cache := newFakeProductCache()
	svc := NewCatalogService(fs, cache)

	_, err := svc.GetProduct(context.Background(), 99)
	var notFound *models.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(99), notFound.ProductID)
	assert.Empty(t, cache.entries)
}

func TestGetProductNilCache(t *testing.T) {
	fs := newFakeProductStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", 10)
	svc := NewCatalogService(fs, nil)

	product, err := svc.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Widget", product.Name)
}

func TestGetProductCacheFailureFallsThrough(t *testing.T) {
	fs := newFakeProductStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", 10)
	cache := newFakeProductCache()
	cache.err = errors.New("redis: connection refused")
	svc := NewCatalogService(fs, cache)

	// the database stays authoritative when the cache is down
	product, err := svc.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "WIDGET-1", product.SKU)
	assert.Equal(t, 1, fs.getCalls)
}

func TestListProducts(t *testing.T) {
	fs := newFakeProductStore()
	fs.addProduct(1, "WIDGET-1", "Widget", "100.00", 10)
	fs.addProduct(2, "GADGET-1", "Gadget", "50.00", 5)
	svc := NewCatalogService(fs, nil)

	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

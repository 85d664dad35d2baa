package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/util"
)

// ProductStore is the persistence surface the catalog read path depends on.
type ProductStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
}

// ProductCache is the product snapshot cache in front of the catalog read
// path. The database stays authoritative; cache failures are logged and the
// read falls through to the store.
type ProductCache interface {
	GetCachedProduct(ctx context.Context, productID int64) (*models.Product, error)
	CacheProduct(ctx context.Context, product *models.Product) error
	InvalidateProduct(ctx context.Context, productID int64) error
}

// CatalogService serves product reads through the cache. cache may be nil,
// in which case every read goes to the store.
type CatalogService struct {
	store  ProductStore
	cache  ProductCache
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store ProductStore, cache ProductCache) *CatalogService {
	return &CatalogService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// GetProduct retrieves a product read-through: cache first, store on a miss,
// repopulating the cache with the fresh row.
func (cs *CatalogService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	if cs.cache != nil {
		cached, err := cs.cache.GetCachedProduct(ctx, productID)
		if err != nil {
			cs.logger.Warn("Product cache read failed", zap.Error(err))
		} else if cached != nil {
			util.ProductCacheHits.Inc()
			return cached, nil
		}
	}
	util.ProductCacheMisses.Inc()

	product, err := cs.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if cs.cache != nil {
		if err := cs.cache.CacheProduct(ctx, product); err != nil {
			cs.logger.Warn("Product cache write failed", zap.Error(err))
		}
	}
	return product, nil
}

// ListProducts retrieves the full catalog from the store.
func (cs *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	return cs.store.GetProducts(ctx)
}

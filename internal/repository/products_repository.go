package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog-service/internal/models"
)

// Cache TTL constants
const (
	ProductCacheTTL = 5 * time.Minute
)

// ErrDuplicateSKU is returned when a direct create or SKU change would
// collide with an existing product's normalized SKU.
var ErrDuplicateSKU = errors.New("a product with this SKU already exists")

// ProductsStore is the storage contract consumed by handlers and the
// import pipeline.
type ProductsStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	UpdateProduct(ctx context.Context, sku string, patch *models.UpdateProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, sku string) error
	DeleteAllProducts(ctx context.Context) (int64, error)
	UpsertProduct(ctx context.Context, product *models.Product) error
	UpsertBatch(ctx context.Context, products []*models.Product) error
	SKUExists(ctx context.Context, sku string) (bool, error)
}

type ProductsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

var _ ProductsStore = (*ProductsRepository)(nil)

func NewProductsRepository(db *gorm.DB, redisClient *redis.Client) *ProductsRepository {
	return &ProductsRepository{
		db:    db,
		redis: redisClient,
	}
}

func productCacheKey(skuLower string) string {
	return fmt.Sprintf("catalog:products:%s", skuLower)
}

// invalidateProductCache drops the cached copy of a single product.
func (r *ProductsRepository) invalidateProductCache(ctx context.Context, skuLower string) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Del(ctx, productCacheKey(skuLower)).Err()
}

// invalidateAllProductCaches drops every cached product (used by bulk writes).
func (r *ProductsRepository) invalidateAllProductCaches(ctx context.Context) {
	if r.redis == nil {
		return
	}
	iter := r.redis.Scan(ctx, 0, "catalog:products:*", 0).Iterator()
	for iter.Next(ctx) {
		_ = r.redis.Del(ctx, iter.Val()).Err()
	}
}

// CreateProduct creates a new product. A duplicate normalized SKU is
// rejected with ErrDuplicateSKU rather than silently upserted; the import
// path is the only upserting writer.
func (r *ProductsRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	product.SKU = strings.TrimSpace(product.SKU)
	product.SKULower = models.NormalizeSKU(product.SKU)
	if product.SKULower == "" {
		return fmt.Errorf("sku must not be empty")
	}

	exists, err := r.SKUExists(ctx, product.SKU)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateSKU
	}

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return err
	}
	r.invalidateProductCache(ctx, product.SKULower)
	return nil
}

// GetProductBySKU retrieves a product by normalized SKU with caching
func (r *ProductsRepository) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	skuLower := models.NormalizeSKU(sku)
	cacheKey := productCacheKey(skuLower)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var product models.Product
			if err := json.Unmarshal([]byte(val), &product); err == nil {
				return &product, nil
			}
		}
	}

	var product models.Product
	if err := r.db.WithContext(ctx).Where("sku_lower = ?", skuLower).First(&product).Error; err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(product); err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductCacheTTL)
		}
	}

	return &product, nil
}

// ListProducts retrieves products with filters and pagination
func (r *ProductsRepository) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	products := make([]models.Product, 0)

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.SKU != "" {
		query = query.Where("sku ILIKE ?", "%"+filter.SKU+"%")
	}
	if filter.Name != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Name+"%")
	}
	if filter.Description != "" {
		query = query.Where("description ILIKE ?", "%"+filter.Description+"%")
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}

	err := query.Order("created_at DESC").
		Offset(filter.Skip).
		Limit(filter.Limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// UpdateProduct applies a partial update to the product identified by SKU.
// Returns gorm.ErrRecordNotFound when the SKU does not exist.
func (r *ProductsRepository) UpdateProduct(ctx context.Context, sku string, patch *models.UpdateProductRequest) (*models.Product, error) {
	oldLower := models.NormalizeSKU(sku)

	var product models.Product
	if err := r.db.WithContext(ctx).Where("sku_lower = ?", oldLower).First(&product).Error; err != nil {
		return nil, err
	}

	// A SKU change must not collide with another product's normalized key.
	if patch.SKU != nil {
		newLower := models.NormalizeSKU(*patch.SKU)
		if newLower == "" {
			return nil, fmt.Errorf("sku must not be empty")
		}
		if newLower != oldLower {
			exists, err := r.SKUExists(ctx, *patch.SKU)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, ErrDuplicateSKU
			}
		}
	}

	patch.Apply(&product)
	product.UpdatedAt = time.Now()

	if err := r.db.WithContext(ctx).Save(&product).Error; err != nil {
		return nil, err
	}

	r.invalidateProductCache(ctx, oldLower)
	if product.SKULower != oldLower {
		r.invalidateProductCache(ctx, product.SKULower)
	}
	return &product, nil
}

// DeleteProduct deletes a product by SKU. Returns gorm.ErrRecordNotFound
// when no product matches.
func (r *ProductsRepository) DeleteProduct(ctx context.Context, sku string) error {
	skuLower := models.NormalizeSKU(sku)
	result := r.db.WithContext(ctx).Where("sku_lower = ?", skuLower).Delete(&models.Product{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.invalidateProductCache(ctx, skuLower)
	return nil
}

// DeleteAllProducts deletes every product inside a single transaction and
// returns the number of rows removed. On failure the transaction rolls back
// and no partial deletion is visible.
func (r *ProductsRepository) DeleteAllProducts(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Product{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.invalidateAllProductCaches(ctx)
	return deleted, nil
}

// upsertAssignments are the columns overwritten when an insert conflicts on
// sku_lower. created_at is deliberately absent so the insert-time value
// survives updates.
var upsertAssignments = []string{"sku", "name", "description", "price", "active", "updated_at"}

// UpsertProduct inserts the product or, on a sku_lower conflict, overwrites
// the existing row's fields in a single atomic statement. Two concurrent
// upserts of the same SKU cannot duplicate the row; last writer wins.
func (r *ProductsRepository) UpsertProduct(ctx context.Context, product *models.Product) error {
	if err := prepareUpsert(product); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku_lower"}},
		DoUpdates: clause.AssignmentColumns(upsertAssignments),
	}).Create(product).Error
	if err != nil {
		return fmt.Errorf("failed to upsert product %q: %w", product.SKU, err)
	}
	r.invalidateProductCache(ctx, product.SKULower)
	return nil
}

// UpsertBatch upserts a batch of products in one transaction. The batch is
// the import pipeline's commit unit: either the whole batch is durably
// committed or none of it is.
func (r *ProductsRepository) UpsertBatch(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, product := range products {
			if err := prepareUpsert(product); err != nil {
				return err
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "sku_lower"}},
				DoUpdates: clause.AssignmentColumns(upsertAssignments),
			}).Create(product).Error
			if err != nil {
				return fmt.Errorf("failed to upsert product %q: %w", product.SKU, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidateAllProductCaches(ctx)
	return nil
}

// SKUExists reports whether a product with the same normalized SKU exists
func (r *ProductsRepository) SKUExists(ctx context.Context, sku string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("sku_lower = ?", models.NormalizeSKU(sku)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func prepareUpsert(product *models.Product) error {
	product.SKU = strings.TrimSpace(product.SKU)
	product.SKULower = models.NormalizeSKU(product.SKU)
	if product.SKULower == "" {
		return fmt.Errorf("sku must not be empty")
	}
	return nil
}

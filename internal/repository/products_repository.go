package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
)

// ErrDuplicateSlug is returned when another product of the tenant already owns the slug
var ErrDuplicateSlug = errors.New("duplicate product slug")

// Cache TTL constants
const (
	ProductCacheTTL  = 5 * time.Minute
	RegistryCacheTTL = 10 * time.Minute // categories, brands and attribute definitions rarely change

	pgUniqueViolation = "23505"
)

type ProductsRepository struct {
	db    *gorm.DB
	redis *redis.Client
	cache *cache.CacheLayer
}

func NewProductsRepository(db *gorm.DB, redis *redis.Client) *ProductsRepository {
	repo := &ProductsRepository{
		db:    db,
		redis: redis,
	}

	// Two-level cache on top of the shared Redis client
	if redis != nil {
		repo.cache = cache.NewCacheLayerFromClient(redis, cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 5000,
			L1TTL:      30 * time.Second,
			DefaultTTL: ProductCacheTTL,
			KeyPrefix:  "tesseract:products:",
		})
	}

	return repo
}

// invalidateTenantProductListCaches drops every product list cached for a tenant
func (r *ProductsRepository) invalidateTenantProductListCaches(ctx context.Context, tenantID string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("products:list:%s:*", tenantID))
}

// Product Operations

// CreateProduct inserts an imported product. A slug collision on the
// (tenant_id, slug) index is reported as ErrDuplicateSlug so the caller can
// allocate another one.
func (r *ProductsRepository) CreateProduct(ctx context.Context, tenantID string, product *models.Product) error {
	now := time.Now()
	product.TenantID = tenantID
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSlug, product.Slug)
		}
		return err
	}

	r.invalidateTenantProductListCaches(ctx, tenantID)
	return nil
}

// SlugExists reports whether a slug is taken within a tenant.
// Soft-deleted rows still hold their slug in the unique index, so they count.
func (r *ProductsRepository) SlugExists(ctx context.Context, tenantID, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Product{}).
		Where("tenant_id = ? AND slug = ?", tenantID, slug).
		Count(&count).Error
	return count > 0, err
}

// Registry Operations (read-only for import lookup)

// ListCategories returns every category of a tenant, top level first
func (r *ProductsRepository) ListCategories(ctx context.Context, tenantID string) ([]models.Category, error) {
	return cachedList(ctx, r, fmt.Sprintf("categories:all:%s", tenantID), func(q *gorm.DB) ([]models.Category, error) {
		var rows []models.Category
		err := q.Where("tenant_id = ?", tenantID).Order("level ASC, name ASC").Find(&rows).Error
		return rows, err
	})
}

// ListBrands returns every brand of a tenant
func (r *ProductsRepository) ListBrands(ctx context.Context, tenantID string) ([]models.Brand, error) {
	return cachedList(ctx, r, fmt.Sprintf("brands:all:%s", tenantID), func(q *gorm.DB) ([]models.Brand, error) {
		var rows []models.Brand
		err := q.Where("tenant_id = ?", tenantID).Order("name ASC").Find(&rows).Error
		return rows, err
	})
}

// ListAttributeDefinitions returns the attribute registry of a tenant
func (r *ProductsRepository) ListAttributeDefinitions(ctx context.Context, tenantID string) ([]models.AttributeDefinition, error) {
	return cachedList(ctx, r, fmt.Sprintf("attributes:all:%s", tenantID), func(q *gorm.DB) ([]models.AttributeDefinition, error) {
		var rows []models.AttributeDefinition
		err := q.Where("tenant_id = ?", tenantID).Order("name ASC").Find(&rows).Error
		return rows, err
	})
}

// cachedList reads through the cache when one is configured
func cachedList[T any](ctx context.Context, r *ProductsRepository, key string, load func(*gorm.DB) ([]T, error)) ([]T, error) {
	query := r.db.WithContext(ctx)
	if r.cache == nil {
		return load(query)
	}

	var rows []T
	err := r.cache.GetOrSetJSON(ctx, key, &rows, RegistryCacheTTL, func() (any, error) {
		return load(query)
	})
	return rows, err
}

// Ping checks the database and, when configured, Redis
func (r *ProductsRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if r.redis != nil {
		if err := r.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/repository"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return gormDB, mock
}

func newProduct() *models.Product {
	return &models.Product{
		Name:       "Aspirateur Pro",
		Slug:       "aspirateur-pro",
		CategoryID: uuid.NewString(),
		Price:      decimal.RequireFromString("129.90"),
		Stock:      4,
		InStock:    true,
		Status:     models.ProductStatusActive,
	}
}

func TestCreateProduct_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewProductsRepository(gormDB, nil)
	product := newProduct()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "products"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	err := repo.CreateProduct(context.Background(), "tenant-1", product)

	require.NoError(t, err)
	assert.Equal(t, "tenant-1", product.TenantID)
	assert.NotEqual(t, uuid.Nil, product.ID)
	assert.False(t, product.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProduct_DuplicateSlug(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewProductsRepository(gormDB, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "products"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_products_tenant_slug"})
	mock.ExpectRollback()

	err := repo.CreateProduct(context.Background(), "tenant-1", newProduct())

	assert.True(t, errors.Is(err, repository.ErrDuplicateSlug))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProduct_OtherFailure(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewProductsRepository(gormDB, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "products"`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.CreateProduct(context.Background(), "tenant-1", newProduct())

	require.Error(t, err)
	assert.False(t, errors.Is(err, repository.ErrDuplicateSlug))
}

func TestSlugExists(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewProductsRepository(gormDB, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "products" WHERE tenant_id = $1 AND slug = $2`)).
		WithArgs("tenant-1", "aspirateur-pro").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "products"`)).
		WithArgs("tenant-2", "aspirateur-pro").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	taken, err := repo.SlugExists(context.Background(), "tenant-1", "aspirateur-pro")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.SlugExists(context.Background(), "tenant-2", "aspirateur-pro")
	require.NoError(t, err)
	assert.False(t, taken)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCategories(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewProductsRepository(gormDB, nil)

	parent := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "slug", "parent_id", "level", "created_at", "updated_at"}).
		AddRow(parent, "tenant-1", "Électroménager", "electromenager", nil, 0, now, now).
		AddRow(uuid.New(), "tenant-1", "Aspirateurs", "aspirateurs", parent, 1, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "categories" WHERE tenant_id = $1`)).
		WithArgs("tenant-1").
		WillReturnRows(rows)

	categories, err := repo.ListCategories(context.Background(), "tenant-1")

	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Électroménager", categories[0].Name)
	assert.Nil(t, categories[0].ParentID)
	require.NotNil(t, categories[1].ParentID)
	assert.Equal(t, parent, *categories[1].ParentID)
}

func TestListBrands(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewProductsRepository(gormDB, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "brands"`)).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}).
			AddRow(uuid.New(), "tenant-1", "Dyson"))

	brands, err := repo.ListBrands(context.Background(), "tenant-1")

	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "Dyson", brands[0].Name)
}

func TestListAttributeDefinitions(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewProductsRepository(gormDB, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "attribute_definitions"`)).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "kind"}).
			AddRow(uuid.New(), "tenant-1", "Puissance", "number").
			AddRow(uuid.New(), "tenant-1", "Sans fil", "boolean"))

	defs, err := repo.ListAttributeDefinitions(context.Background(), "tenant-1")

	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, models.AttributeNumber, defs[0].Kind)
	assert.Equal(t, models.AttributeBoolean, defs[1].Kind)
}

func TestListCategories_QueryError(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewProductsRepository(gormDB, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "categories"`)).
		WillReturnError(errors.New("relation does not exist"))

	_, err := repo.ListCategories(context.Background(), "tenant-1")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	// gorm pings once while opening
	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	repo := repository.NewProductsRepository(gormDB, nil)

	mock.ExpectPing()
	assert.NoError(t, repo.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.ErrorContains(t, repo.Ping(context.Background()), "database")
}

package repository_test

import (
	"context"
	"testing"
	"time"

	"ecommerce-api/models"
	"ecommerce-api/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

// the map keys sort, so the status CASE renders before the stock decrement
const reserveUpdatePattern = `UPDATE "products" SET "status"=CASE WHEN stock - \$1 = 0 THEN \$2 ELSE status END,"stock"=stock - \$3`

func TestReserve_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(reserveUpdatePattern).
		WithArgs(2, string(models.ProductStatusOutOfStock), 2, sqlmock.AnyArg(), sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Reserve(context.Background(), gormDB, uuid.New(), 2)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_InsufficientStock(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	// the conditional UPDATE matches no row when stock < quantity
	mock.ExpectBegin()
	mock.ExpectExec(reserveUpdatePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Reserve(context.Background(), gormDB, uuid.New(), 5)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductFindByID_Found(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "price", "stock", "status", "created_at", "updated_at"}).
		AddRow(id.String(), "Widget", "9.99", 5, "active", now, now)

	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WillReturnRows(rows)

	product, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, product.ID)
	assert.Equal(t, "Widget", product.Name)
	assert.True(t, product.Price.Equal(mustDecimal(t, "9.99")))
	assert.Equal(t, 5, product.Stock)
	assert.Equal(t, models.ProductStatusActive, product.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductFindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	product, err := repo.FindByID(context.Background(), uuid.New())
	assert.Nil(t, product)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductDelete_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "products"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

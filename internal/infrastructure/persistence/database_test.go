package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), GormConfig(nil))
	require.NoError(t, err)
	return db, mock
}

func TestGormConfig(t *testing.T) {
	cfg := GormConfig(nil)

	assert.True(t, cfg.TranslateError, "unique violations must surface as gorm.ErrDuplicatedKey")
	assert.True(t, cfg.SkipDefaultTransaction)
	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, time.UTC, cfg.NowFunc().Location())
}

func TestDatabase_PingAndStats(t *testing.T) {
	db, mock := setupMockDB(t)
	d := &Database{DB: db}

	require.NoError(t, d.Ping())

	stats, err := d.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLotRepository_SaveIsVersioned(t *testing.T) {
	lot := &inventory.Lot{
		BaseEntity:        shared.BaseEntity{ID: 7},
		ProductID:         1,
		QuantityIn:        decimal.NewFromInt(10),
		QuantityRemaining: decimal.NewFromInt(4),
		Version:           3,
	}
	update := regexp.MustCompile(`UPDATE "lots" SET .* WHERE id = \$6 AND version = \$7`).String()

	t.Run("bumps the version when the row matched", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(update).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 4, int64(7), 3).
			WillReturnResult(sqlmock.NewResult(0, 1))

		saved := *lot
		require.NoError(t, NewGormLotRepository(db).Save(context.Background(), &saved))
		assert.Equal(t, 4, saved.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports a conflict when another transaction won", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))

		stale := *lot
		err := NewGormLotRepository(db).Save(context.Background(), &stale)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.ErrConcurrencyConflict.Code, domainErr.Code)
		assert.Equal(t, 3, stale.Version)
	})
}

func TestRepositories_LockRows(t *testing.T) {
	ctx := context.Background()

	t.Run("products are locked in ascending id order", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(
			`SELECT * FROM "products" WHERE id IN ($1,$2) ORDER BY id ASC FOR UPDATE`)).
			WithArgs(int64(9), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "code", "serial_tracked"}).
				AddRow(2, "P-2", false).
				AddRow(9, "P-9", true))

		products, err := NewGormProductRepository(db).LockByIDs(ctx, []int64{9, 2})
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, int64(2), products[0].ID)
		assert.True(t, products[1].SerialTracked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("available lots are locked in FIFO order", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(
			`SELECT * FROM "lots" WHERE product_id = $1 AND quantity_remaining > 0 ORDER BY received_date ASC, id ASC FOR UPDATE`)).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "quantity_remaining"}))

		lots, err := NewGormLotRepository(db).FindAvailableForUpdate(ctx, 5)
		require.NoError(t, err)
		assert.Empty(t, lots)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

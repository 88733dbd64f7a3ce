package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/erp/warehouse/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), GormConfig(nil))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, id int64, serialTracked bool) *inventory.Product {
	t.Helper()
	p, err := inventory.NewProduct(id, "P-"+decimal.NewFromInt(id).String(), "Product", "", "pcs", 0, serialTracked)
	require.NoError(t, err)
	require.NoError(t, NewGormProductRepository(db).Save(context.Background(), p))
	return p
}

func seedLot(t *testing.T, db *gorm.DB, productID int64, qty string, received time.Time) *inventory.Lot {
	t.Helper()
	lot, err := inventory.NewLot(productID, nil, decimal.RequireFromString(qty), decimal.NewFromInt(10), "pcs", received)
	require.NoError(t, err)
	require.NoError(t, NewGormLotRepository(db).Create(context.Background(), lot))
	return lot
}

func TestProductRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	seedProduct(t, db, 3, false)
	seedProduct(t, db, 1, true)

	t.Run("finds by id", func(t *testing.T) {
		p, err := repo.FindByID(ctx, 1)
		require.NoError(t, err)
		assert.True(t, p.SerialTracked)
	})

	t.Run("missing product is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, 99)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("locks in ascending id order and skips missing ids", func(t *testing.T) {
		products, err := repo.LockByIDs(ctx, []int64{3, 99, 1})
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, int64(1), products[0].ID)
		assert.Equal(t, int64(3), products[1].ID)
	})

	t.Run("save updates an existing row", func(t *testing.T) {
		p, err := repo.FindByID(ctx, 3)
		require.NoError(t, err)
		p.Name = "Renamed"
		require.NoError(t, repo.Save(ctx, p))

		reloaded, err := repo.FindByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", reloaded.Name)
	})
}

func TestLotRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLotRepository(db)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	seedProduct(t, db, 1, false)
	late := seedLot(t, db, 1, "5", day.Add(48*time.Hour))
	early := seedLot(t, db, 1, "3", day)
	sameDay := seedLot(t, db, 1, "2", day)

	t.Run("available lots come back oldest first with id as tiebreaker", func(t *testing.T) {
		lots, err := repo.FindAvailableForUpdate(ctx, 1)
		require.NoError(t, err)
		require.Len(t, lots, 3)
		assert.Equal(t, []int64{early.ID, sameDay.ID, late.ID}, []int64{lots[0].ID, lots[1].ID, lots[2].ID})
	})

	t.Run("depleted lots are hidden unless requested", func(t *testing.T) {
		lot, err := repo.FindByID(ctx, sameDay.ID)
		require.NoError(t, err)
		require.NoError(t, lot.Take(decimal.NewFromInt(2)))
		require.NoError(t, repo.Save(ctx, lot))

		available, err := repo.FindByProduct(ctx, 1, false)
		require.NoError(t, err)
		assert.Len(t, available, 2)

		all, err := repo.FindByProduct(ctx, 1, true)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("sums remaining quantities", func(t *testing.T) {
		total, err := repo.SumRemaining(ctx, 1)
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(8)), total.String())

		none, err := repo.SumRemaining(ctx, 42)
		require.NoError(t, err)
		assert.True(t, none.IsZero())
	})

	t.Run("stale version is a concurrency conflict", func(t *testing.T) {
		first, err := repo.FindByID(ctx, late.ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, late.ID)
		require.NoError(t, err)

		require.NoError(t, first.Take(decimal.NewFromInt(1)))
		require.NoError(t, repo.Save(ctx, first))

		require.NoError(t, second.Take(decimal.NewFromInt(1)))
		err = repo.Save(ctx, second)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("latest unit price follows the newest lot", func(t *testing.T) {
		price, ok, err := repo.LatestUnitPrice(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, price.Equal(decimal.NewFromInt(10)))

		_, ok, err = repo.LatestUnitPrice(ctx, 42)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("exists for product", func(t *testing.T) {
		exists, err := repo.ExistsForProduct(ctx, 1)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsForProduct(ctx, 42)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestLedgerRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLedgerRepository(db)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	post := func(pos *inventory.LedgerPosition, typ inventory.TransactionType, qty string, at time.Time) *inventory.LedgerEntry {
		t.Helper()
		entry, err := pos.Append(inventory.Posting{
			ProductID:      pos.ProductID,
			Type:           typ,
			QuantityChange: decimal.RequireFromString(qty),
			Reference:      inventory.ReceivingReference(1),
		}, at)
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, entry))
		return entry
	}

	start, err := repo.Position(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), start.Sequence)
	assert.True(t, start.Balance.IsZero())

	pos := start
	post(&pos, inventory.TransactionTypeIn, "10", t0)
	post(&pos, inventory.TransactionTypeOut, "-4", t0.Add(time.Hour))
	post(&pos, inventory.TransactionTypeDamage, "-1", t0.Add(2*time.Hour))
	other := inventory.StartPosition(2)
	post(&other, inventory.TransactionTypeIn, "7", t0)

	t.Run("position reads the tail of the chain", func(t *testing.T) {
		tail, err := repo.Position(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(3), tail.Sequence)
		assert.True(t, tail.Balance.Equal(decimal.NewFromInt(5)))
	})

	t.Run("entries replay to the recorded balance", func(t *testing.T) {
		entries, err := repo.FindByProduct(ctx, 1)
		require.NoError(t, err)
		balance, err := inventory.VerifyChain(1, entries)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, inventory.ReferenceReceiving, entries[0].Reference.Kind())
	})

	t.Run("duplicate sequence is a concurrency conflict", func(t *testing.T) {
		stale := start
		entry, err := stale.Append(inventory.Posting{
			ProductID:      1,
			Type:           inventory.TransactionTypeIn,
			QuantityChange: decimal.NewFromInt(1),
		}, t0)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Append(ctx, entry), shared.ErrConcurrencyConflict)
	})

	t.Run("totals group by product and type", func(t *testing.T) {
		totals, err := repo.Totals(ctx, nil, nil, nil)
		require.NoError(t, err)
		require.Len(t, totals, 2)
		assert.True(t, totals[0].In.Equal(decimal.NewFromInt(10)))
		assert.True(t, totals[0].Out.Equal(decimal.NewFromInt(-4)))
		assert.True(t, totals[0].Damage.Equal(decimal.NewFromInt(-1)))
		assert.True(t, totals[0].Adjust.IsZero())
		assert.True(t, totals[1].In.Equal(decimal.NewFromInt(7)))
	})

	t.Run("movements honour the filter", func(t *testing.T) {
		out := inventory.TransactionTypeOut
		entries, err := repo.FindMovements(ctx, inventory.MovementFilter{Type: &out})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(2), entries[0].Sequence)

		from := t0.Add(30 * time.Minute)
		entries, err = repo.FindMovements(ctx, inventory.MovementFilter{From: &from})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("last entry before and up to a date", func(t *testing.T) {
		before, err := repo.LastBefore(ctx, 1, t0.Add(time.Hour))
		require.NoError(t, err)
		require.NotNil(t, before)
		assert.Equal(t, int64(1), before.Sequence)

		upTo := t0.Add(time.Hour)
		last, err := repo.LastUpTo(ctx, 1, &upTo)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, int64(2), last.Sequence)

		none, err := repo.LastBefore(ctx, 1, t0)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("product ids", func(t *testing.T) {
		ids, err := repo.ProductIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids)
	})
}

func TestSerialRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSerialRepository(db)
	ctx := context.Background()

	seedProduct(t, db, 1, true)
	lot := seedLot(t, db, 1, "3", time.Now())

	serials := make([]*inventory.Serial, 0, 3)
	for _, sn := range []string{"SN-1", "SN-2", "SN-3"} {
		s, err := inventory.NewSerial(sn, lot)
		require.NoError(t, err)
		serials = append(serials, s)
	}
	require.NoError(t, repo.CreateBatch(ctx, serials))

	t.Run("serial numbers are globally unique", func(t *testing.T) {
		dup, err := inventory.NewSerial("SN-1", lot)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.CreateBatch(ctx, []*inventory.Serial{dup}), shared.ErrConcurrencyConflict)
	})

	t.Run("picking a serial takes it out of stock", func(t *testing.T) {
		s, err := repo.FindByNumber(ctx, "SN-2")
		require.NoError(t, err)
		require.NoError(t, s.Pick(77, time.Now()))
		require.NoError(t, repo.Save(ctx, s))

		inStock, err := repo.FindInStockByLot(ctx, lot.ID, 10)
		require.NoError(t, err)
		assert.Len(t, inStock, 2)

		bound, err := repo.FindByPickingDetail(ctx, 77)
		require.NoError(t, err)
		require.Len(t, bound, 1)
		assert.Equal(t, "SN-2", bound[0].SerialNumber)

		counts, err := repo.CountInStockByLot(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[lot.ID])
	})

	t.Run("find by numbers returns only existing serials", func(t *testing.T) {
		found, err := repo.FindByNumbers(ctx, []string{"SN-3", "SN-404"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "SN-3", found[0].SerialNumber)
	})
}

func TestDamageRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDamageRepository(db)
	ctx := context.Background()

	partner := int64(5)
	rec, err := inventory.NewDamageRecord(1, &partner, nil, decimal.NewFromInt(3), "crushed", inventory.DamageSourceReceiving, 11, "alice")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, rec))
	assert.NotZero(t, rec.ID)

	records, err := repo.FindBySource(ctx, inventory.DamageSourceReceiving, 11)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "crushed", records[0].Reason)

	t.Run("pending accumulator is created once and versioned", func(t *testing.T) {
		pending, err := repo.LockPending(ctx, 1, partner)
		require.NoError(t, err)
		assert.True(t, pending.Quantity.IsZero())

		pending.Accumulate(decimal.NewFromInt(4), decimal.NewFromInt(20))
		require.NoError(t, repo.SavePending(ctx, pending))

		again, err := repo.LockPending(ctx, 1, partner)
		require.NoError(t, err)
		assert.Equal(t, pending.ID, again.ID)
		assert.True(t, again.Quantity.Equal(decimal.NewFromInt(4)))

		stale := *pending
		stale.Version--
		assert.ErrorIs(t, repo.SavePending(ctx, &stale), shared.ErrConcurrencyConflict)
	})
}

func TestDocumentRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedProduct(t, db, 1, false)

	t.Run("receiving roundtrip with optimistic header update", func(t *testing.T) {
		repo := NewGormReceivingRepository(db)
		r, err := inventory.NewReceiving(9, "dock 2", "alice", []inventory.ReceivingLine{
			{ProductID: 1, OrderedQuantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(2)},
		})
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, r))
		require.Len(t, r.Details, 1)

		locked, err := repo.FindByDetailIDForUpdate(ctx, r.Details[0].ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID, locked.ID)

		partner, err := repo.PartnerForDetail(ctx, r.Details[0].ID)
		require.NoError(t, err)
		assert.Equal(t, int64(9), partner)

		version := locked.Version
		require.NoError(t, repo.Save(ctx, locked))
		assert.Equal(t, version+1, locked.Version)

		r.Version = version
		assert.ErrorIs(t, repo.Save(ctx, r), shared.ErrConcurrencyConflict)
	})

	t.Run("picking order details and allocations", func(t *testing.T) {
		repo := NewGormPickingOrderRepository(db)
		order, err := inventory.NewPickingOrder(nil, inventory.PickingPurposeOutbound, "", "bob")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, order))

		lot := seedLot(t, db, 1, "5", time.Now())
		plan, err := inventory.PlanAllocation(1, decimal.NewFromInt(2), []*inventory.Lot{lot})
		require.NoError(t, err)
		detail := inventory.NewPickingDetail(order.ID, plan)
		require.NoError(t, repo.CreateDetail(ctx, detail))
		require.Len(t, detail.Allocations, 1)
		assert.NotZero(t, detail.Allocations[0].ID)

		loaded, err := repo.FindByIDForUpdate(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Details, 1)
		assert.Equal(t, lot.ID, loaded.Details[0].Allocations[0].LotID)

		require.NoError(t, repo.DeleteDetail(ctx, detail.ID))
		assert.ErrorIs(t, repo.DeleteDetail(ctx, detail.ID), shared.ErrNotFound)
	})

	t.Run("stock-take roundtrip", func(t *testing.T) {
		repo := NewGormStockTakeRepository(db)
		st, err := inventory.NewStockTake("", "carol", []inventory.StockTakeLine{
			{ProductID: 1, ActualQuantity: decimal.NewFromInt(4)},
		})
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, st))

		loaded, err := repo.FindByIDForUpdate(ctx, st.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Details, 1)
		assert.True(t, loaded.Details[0].ActualQuantity.Equal(decimal.NewFromInt(4)))
		require.NoError(t, repo.Save(ctx, loaded))
	})
}

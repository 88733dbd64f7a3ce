package inventory_test

import (
	"context"
	"testing"
	"time"

	appinv "github.com/erp/warehouse/internal/application/inventory"
	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/erp/warehouse/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	partnerID int64 = 900
	actor           = "tester"
)

type services struct {
	stack       *testutil.Stack
	receiving   *appinv.ReceivingService
	picking     *appinv.PickingService
	stockTake   *appinv.StockTakeService
	query       *appinv.QueryService
	damage      *appinv.DamageService
	accumulator *appinv.DamageAccumulator
	returns     *appinv.ReturnOrderCreator
}

func newServices(t *testing.T, opts appinv.Options) *services {
	t.Helper()
	stack := testutil.NewStack(t, testutil.NewSQLiteDB(t))
	logger := zap.NewNop()
	metrics := appinv.NopMetrics()
	return &services{
		stack:       stack,
		receiving:   appinv.NewReceivingService(stack.Scope, opts, metrics, logger),
		picking:     appinv.NewPickingService(stack.Scope, opts, metrics, logger),
		stockTake:   appinv.NewStockTakeService(stack.Scope, opts, metrics, logger),
		query:       appinv.NewQueryService(stack.Scope, metrics, logger),
		damage:      appinv.NewDamageService(stack.Scope, opts, metrics, logger),
		accumulator: appinv.NewDamageAccumulator(stack.Scope, opts, metrics, logger),
		returns:     appinv.NewReturnOrderCreator(stack.Scope, opts, metrics, logger),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// receive creates a one-line receiving and finalizes it
func (s *services) receive(t *testing.T, productID int64, qty, price string, serials ...string) *appinv.FinalizeReceivingDetailResponse {
	t.Helper()
	ctx := context.Background()
	rcv, err := s.receiving.Create(ctx, appinv.CreateReceivingRequest{
		PartnerID: partnerID,
		Lines:     []appinv.ReceivingLineRequest{{ProductID: productID, OrderedQuantity: dec(qty), UnitPrice: dec(price)}},
	}, actor)
	require.NoError(t, err)
	require.Len(t, rcv.Details, 1)

	result, err := s.receiving.FinalizeDetail(ctx, rcv.Details[0].ID, appinv.FinalizeReceivingDetailRequest{
		AcceptedQuantity: dec(qty),
		SerialNumbers:    serials,
	}, actor)
	require.NoError(t, err)
	return result
}

func (s *services) newOrder(t *testing.T) *appinv.PickingOrderResponse {
	t.Helper()
	order, err := s.picking.Create(context.Background(), appinv.CreatePickingOrderRequest{}, actor)
	require.NoError(t, err)
	return order
}

func (s *services) movements(t *testing.T, productID int64) []appinv.LedgerEntryResponse {
	t.Helper()
	entries, err := s.query.GetMovements(context.Background(), appinv.MovementFilter{ProductID: &productID})
	require.NoError(t, err)
	return entries
}

func (s *services) lots(t *testing.T, productID int64) []appinv.LotResponse {
	t.Helper()
	lots, err := s.query.GetLots(context.Background(), productID, true)
	require.NoError(t, err)
	return lots
}

func (s *services) requireConsistent(t *testing.T, productID int64) {
	t.Helper()
	report, err := s.query.VerifyConsistency(context.Background(), productID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "violations: %v", report.Violations)
}

// events returns the pending outbox events of one type, decoded
func (s *services) events(t *testing.T, eventType string) []shared.DomainEvent {
	t.Helper()
	entries, err := s.stack.Outbox.FindPending(context.Background(), 1000)
	require.NoError(t, err)
	var out []shared.DomainEvent
	for _, e := range entries {
		if e.EventType != eventType {
			continue
		}
		evt, err := s.stack.Serializer.Deserialize(e.EventType, e.Payload)
		require.NoError(t, err)
		out = append(out, evt)
	}
	return out
}

func TestReceiveAndPick_InsufficientStockLeavesStateUnchanged(t *testing.T) {
	s := newServices(t, appinv.DefaultOptions())
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "X", false)

	received := s.receive(t, 1, "10", "100")
	require.NotNil(t, received.Lot)
	assert.True(t, received.Lot.QuantityRemaining.Equal(dec("10")))
	require.NotNil(t, received.LedgerEntry)
	assert.Equal(t, string(inventory.TransactionTypeIn), received.LedgerEntry.TransactionType)
	assert.True(t, received.LedgerEntry.BalanceAfter.Equal(dec("10")))
	assert.Equal(t, "COMPLETED", received.Receiving.Status)

	order := s.newOrder(t)
	detail, err := s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{ProductID: 1, Quantity: dec("4")}, actor)
	require.NoError(t, err)
	assert.True(t, detail.UnitPrice.Equal(dec("100")))
	require.Len(t, detail.Allocations, 1)

	_, err = s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{ProductID: 1, Quantity: dec("7")}, actor)
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.True(t, stockErr.Requested.Equal(dec("7")))
	assert.True(t, stockErr.Available.Equal(dec("6")))
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)

	lots := s.lots(t, 1)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].QuantityRemaining.Equal(dec("6")))

	entries := s.movements(t, 1)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Sequence)
	assert.Equal(t, int64(2), entries[1].Sequence)
	assert.True(t, entries[1].QuantityChange.Equal(dec("-4")))
	assert.True(t, entries[1].BalanceAfter.Equal(dec("6")))
	assert.Equal(t, actor, entries[1].UserID)

	reloaded, err := s.picking.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Details, 1)
	s.requireConsistent(t, 1)
}

func TestPick_FIFOAcrossLotsWithWeightedPrice(t *testing.T) {
	s := newServices(t, appinv.DefaultOptions())
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "X", false)

	first := s.receive(t, 1, "5", "100")
	second := s.receive(t, 1, "5", "120")

	order := s.newOrder(t)
	detail, err := s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{ProductID: 1, Quantity: dec("7")}, actor)
	require.NoError(t, err)

	// (5*100 + 2*120) / 7
	assert.True(t, detail.UnitPrice.Equal(dec("105.71")), detail.UnitPrice.String())
	require.Len(t, detail.Allocations, 2)
	assert.Equal(t, first.Lot.ID, detail.Allocations[0].LotID)
	assert.True(t, detail.Allocations[0].Quantity.Equal(dec("5")))
	assert.Equal(t, second.Lot.ID, detail.Allocations[1].LotID)
	assert.True(t, detail.Allocations[1].Quantity.Equal(dec("2")))

	lots := s.lots(t, 1)
	require.Len(t, lots, 2)
	assert.True(t, lots[0].QuantityRemaining.IsZero())
	assert.True(t, lots[1].QuantityRemaining.Equal(dec("3")))

	entries := s.movements(t, 1)
	require.Len(t, entries, 4)
	assert.True(t, entries[2].QuantityChange.Equal(dec("-5")))
	assert.True(t, entries[3].QuantityChange.Equal(dec("-2")))
	assert.True(t, entries[3].BalanceAfter.Equal(dec("3")))
	s.requireConsistent(t, 1)
}

func TestPickingReversal(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*services, *appinv.PickingOrderResponse, *appinv.PickingDetailResponse) {
		s := newServices(t, appinv.DefaultOptions())
		testutil.SeedProduct(t, s.stack.DB, 1, "X", false)
		s.receive(t, 1, "5", "100")
		s.receive(t, 1, "5", "120")
		order := s.newOrder(t)
		detail, err := s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{ProductID: 1, Quantity: dec("7")}, actor)
		require.NoError(t, err)
		return s, order, detail
	}

	t.Run("update restores the exact lots before reallocating", func(t *testing.T) {
		s, order, detail := setup(t)

		updated, err := s.picking.UpdateItem(ctx, order.ID, detail.ID, appinv.UpdatePickingItemRequest{Quantity: dec("3")}, actor)
		require.NoError(t, err)
		assert.True(t, updated.QuantityPicked.Equal(dec("3")))
		assert.True(t, updated.UnitPrice.Equal(dec("100")))

		lots := s.lots(t, 1)
		assert.True(t, lots[0].QuantityRemaining.Equal(dec("2")))
		assert.True(t, lots[1].QuantityRemaining.Equal(dec("5")))

		entries := s.movements(t, 1)
		require.Len(t, entries, 7)
		assert.NotNil(t, entries[4].ReversalOf)
		assert.NotNil(t, entries[5].ReversalOf)
		assert.True(t, entries[5].BalanceAfter.Equal(dec("10")))
		assert.True(t, entries[6].BalanceAfter.Equal(dec("7")))
		s.requireConsistent(t, 1)
	})

	t.Run("failed update keeps the original allocation", func(t *testing.T) {
		s, order, detail := setup(t)

		_, err := s.picking.UpdateItem(ctx, order.ID, detail.ID, appinv.UpdatePickingItemRequest{Quantity: dec("11")}, actor)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		reloaded, err := s.picking.GetByID(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, reloaded.Details, 1)
		assert.True(t, reloaded.Details[0].QuantityPicked.Equal(dec("7")))
		assert.Len(t, s.movements(t, 1), 4)
	})

	t.Run("delete restores stock", func(t *testing.T) {
		s, order, detail := setup(t)

		require.NoError(t, s.picking.DeleteItem(ctx, order.ID, detail.ID, actor))

		reloaded, err := s.picking.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Empty(t, reloaded.Details)
		for _, lot := range s.lots(t, 1) {
			assert.True(t, lot.QuantityRemaining.Equal(dec("5")))
		}
		entries := s.movements(t, 1)
		assert.True(t, entries[len(entries)-1].BalanceAfter.Equal(dec("10")))
		s.requireConsistent(t, 1)
	})

	t.Run("cancel reverses every detail and freezes the order", func(t *testing.T) {
		s, order, _ := setup(t)

		cancelled, err := s.picking.Cancel(ctx, order.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, "CANCELLED", cancelled.Status)

		_, err = s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{ProductID: 1, Quantity: dec("1")}, actor)
		assert.ErrorIs(t, err, shared.ErrInvalidState)

		entries := s.movements(t, 1)
		assert.True(t, entries[len(entries)-1].BalanceAfter.Equal(dec("10")))
		s.requireConsistent(t, 1)
	})

	t.Run("completed orders are immutable", func(t *testing.T) {
		s, order, detail := setup(t)

		completed, err := s.picking.Complete(ctx, order.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, "COMPLETED", completed.Status)

		err = s.picking.DeleteItem(ctx, order.ID, detail.ID, actor)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestStockTake_ShortagePostsAdjust(t *testing.T) {
	s := newServices(t, appinv.DefaultOptions())
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "X", false)
	s.receive(t, 1, "4", "100")
	s.receive(t, 1, "2", "110")

	st, err := s.stockTake.Create(ctx, appinv.CreateStockTakeRequest{
		Lines: []appinv.StockTakeLineRequest{{ProductID: 1, ActualQuantity: dec("3")}},
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", st.Status)

	_, err = s.stockTake.Complete(ctx, st.ID, actor)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	st, err = s.stockTake.Submit(ctx, st.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", st.Status)
	assert.True(t, st.Details[0].SystemQuantity.Equal(dec("6")))
	assert.True(t, st.Details[0].Variance.Equal(dec("-3")))

	_, err = s.stockTake.Complete(ctx, st.ID, actor)
	assert.ErrorIs(t, err, shared.ErrInvalidState, "review is required")

	st, err = s.stockTake.Review(ctx, st.ID, appinv.ReviewStockTakeRequest{Approve: true}, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", st.Status)
	assert.Equal(t, "reviewer", st.ReviewedBy)

	st, err = s.stockTake.Complete(ctx, st.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", st.Status)

	entries := s.movements(t, 1)
	last := entries[len(entries)-1]
	assert.Equal(t, string(inventory.TransactionTypeAdjust), last.TransactionType)
	assert.True(t, last.QuantityChange.Equal(dec("-3")))
	assert.True(t, last.BalanceAfter.Equal(dec("3")))

	lots := s.lots(t, 1)
	assert.True(t, lots[0].QuantityRemaining.Equal(dec("1")))
	assert.True(t, lots[0].QuantityLost.Equal(dec("3")))
	assert.True(t, lots[1].QuantityRemaining.Equal(dec("2")))
	s.requireConsistent(t, 1)

	_, err = s.stockTake.Cancel(ctx, st.ID, actor)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestStockTake_DamageAndSurplus(t *testing.T) {
	s := newServices(t, appinv.DefaultOptions())
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "X", false)
	testutil.SeedProduct(t, s.stack.DB, 2, "Y", false)
	s.receive(t, 1, "10", "50")
	s.receive(t, 2, "4", "30")

	st, err := s.stockTake.Create(ctx, appinv.CreateStockTakeRequest{
		Lines: []appinv.StockTakeLineRequest{
			{ProductID: 1, ActualQuantity: dec("6"), DamageQuantity: dec("1")},
			{ProductID: 2, ActualQuantity: dec("5")},
		},
	}, actor)
	require.NoError(t, err)
	_, err = s.stockTake.Submit(ctx, st.ID, actor)
	require.NoError(t, err)
	_, err = s.stockTake.Review(ctx, st.ID, appinv.ReviewStockTakeRequest{Approve: true}, actor)
	require.NoError(t, err)
	_, err = s.stockTake.Complete(ctx, st.ID, actor)
	require.NoError(t, err)

	entries := s.movements(t, 1)
	require.Len(t, entries, 3)
	assert.Equal(t, string(inventory.TransactionTypeDamage), entries[1].TransactionType)
	assert.True(t, entries[1].QuantityChange.Equal(dec("-1")))
	assert.Equal(t, string(inventory.TransactionTypeAdjust), entries[2].TransactionType)
	assert.True(t, entries[2].QuantityChange.Equal(dec("-3")))
	assert.True(t, entries[2].BalanceAfter.Equal(dec("6")))

	surplus := s.movements(t, 2)
	require.Len(t, surplus, 2)
	assert.True(t, surplus[1].QuantityChange.Equal(dec("1")))
	assert.True(t, surplus[1].UnitPrice.Equal(dec("30")))
	lots := s.lots(t, 2)
	require.Len(t, lots, 2)
	assert.Nil(t, lots[1].SourceDetailID)

	assert.Len(t, s.events(t, inventory.EventTypeDamageRecorded), 1)
	s.requireConsistent(t, 1)
	s.requireConsistent(t, 2)
}

func TestStockTake_RejectCancels(t *testing.T) {
	s := newServices(t, appinv.DefaultOptions())
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "X", false)
	s.receive(t, 1, "5", "10")

	st, err := s.stockTake.Create(ctx, appinv.CreateStockTakeRequest{
		Lines: []appinv.StockTakeLineRequest{{ProductID: 1, ActualQuantity: dec("1")}},
	}, actor)
	require.NoError(t, err)
	_, err = s.stockTake.Submit(ctx, st.ID, actor)
	require.NoError(t, err)

	st, err = s.stockTake.Review(ctx, st.ID, appinv.ReviewStockTakeRequest{Approve: false, Note: "recount"}, actor)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", st.Status)
	assert.Len(t, s.movements(t, 1), 1)
}

func TestStockTake_SerialTrackedCountsAreWholeUnits(t *testing.T) {
	opts := appinv.DefaultOptions()
	opts.StockTakeRequiresReview = false
	s := newServices(t, opts)
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "PHONE", true)
	s.receive(t, 1, "3", "100")

	st, err := s.stockTake.Create(ctx, appinv.CreateStockTakeRequest{
		Lines: []appinv.StockTakeLineRequest{{ProductID: 1, ActualQuantity: dec("1.5")}},
	}, actor)
	require.NoError(t, err)

	_, err = s.stockTake.Submit(ctx, st.ID, actor)
	var qtyErr *inventory.InvalidQuantityError
	require.ErrorAs(t, err, &qtyErr)
	assert.Equal(t, "actual quantity", qtyErr.Field)

	_, err = s.stockTake.Complete(ctx, st.ID, actor)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Len(t, s.movements(t, 1), 1)
	s.requireConsistent(t, 1)
}

func TestStockTake_StockMovedAfterSubmit(t *testing.T) {
	opts := appinv.DefaultOptions()
	opts.StockTakeRequiresReview = false
	s := newServices(t, opts)
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "X", false)
	s.receive(t, 1, "6", "10")

	st, err := s.stockTake.Create(ctx, appinv.CreateStockTakeRequest{
		Lines: []appinv.StockTakeLineRequest{{ProductID: 1, ActualQuantity: dec("5")}},
	}, actor)
	require.NoError(t, err)
	_, err = s.stockTake.Submit(ctx, st.ID, actor)
	require.NoError(t, err)

	order := s.newOrder(t)
	_, err = s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{ProductID: 1, Quantity: dec("2")}, actor)
	require.NoError(t, err)

	_, err = s.stockTake.Complete(ctx, st.ID, actor)
	var stateErr *inventory.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Contains(t, stateErr.State, "changed from 6 to 4")

	reloaded, err := s.stockTake.GetByID(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", reloaded.Status)
	assert.Len(t, s.movements(t, 1), 2)
	s.requireConsistent(t, 1)

	_, err = s.stockTake.Cancel(ctx, st.ID, actor)
	require.NoError(t, err)
}

func TestSerials(t *testing.T) {
	s := newServices(t, appinv.DefaultOptions())
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "PHONE", true)

	t.Run("rejects a serial count that does not match", func(t *testing.T) {
		rcv, err := s.receiving.Create(ctx, appinv.CreateReceivingRequest{
			PartnerID: partnerID,
			Lines:     []appinv.ReceivingLineRequest{{ProductID: 1, OrderedQuantity: dec("2"), UnitPrice: dec("1")}},
		}, actor)
		require.NoError(t, err)
		_, err = s.receiving.FinalizeDetail(ctx, rcv.Details[0].ID, appinv.FinalizeReceivingDetailRequest{
			AcceptedQuantity: dec("2"),
			SerialNumbers:    []string{"ONLY-ONE"},
		}, actor)
		var qtyErr *inventory.InvalidQuantityError
		assert.ErrorAs(t, err, &qtyErr)
		assert.Empty(t, s.movements(t, 1))
	})

	generated := s.receive(t, 1, "2", "300")
	require.Len(t, generated.SerialNumbers, 2)
	assert.Contains(t, generated.SerialNumbers[0], "PHONE-")
	s.receive(t, 1, "2", "310", "SN-A", "SN-B")

	order := s.newOrder(t)

	t.Run("explicit serials must follow the FIFO plan", func(t *testing.T) {
		_, err := s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{
			ProductID: 1, Quantity: dec("1"), SerialNumbers: []string{"SN-A"},
		}, actor)
		var serialErr *inventory.SerialNotAvailableError
		require.ErrorAs(t, err, &serialErr)
		assert.Equal(t, "SN-A", serialErr.SerialNumber)
	})

	t.Run("auto selection takes serials of the consumed lot", func(t *testing.T) {
		detail, err := s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{ProductID: 1, Quantity: dec("1")}, actor)
		require.NoError(t, err)
		require.Len(t, detail.SerialNumbers, 1)
		assert.Contains(t, generated.SerialNumbers, detail.SerialNumbers[0])
	})

	var remaining string
	for _, sn := range generated.SerialNumbers {
		serial, err := s.query.GetSerial(ctx, sn)
		require.NoError(t, err)
		if serial.Status == string(inventory.SerialStatusInStock) {
			remaining = sn
		}
	}
	require.NotEmpty(t, remaining)

	t.Run("explicit serials spanning two lots", func(t *testing.T) {
		detail, err := s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{
			ProductID: 1, Quantity: dec("2"), SerialNumbers: []string{remaining, "SN-A"},
		}, actor)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{remaining, "SN-A"}, detail.SerialNumbers)
		assert.True(t, detail.UnitPrice.Equal(dec("305")))
	})

	t.Run("a picked serial cannot be picked again", func(t *testing.T) {
		_, err := s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{
			ProductID: 1, Quantity: dec("1"), SerialNumbers: []string{"SN-A"},
		}, actor)
		assert.ErrorIs(t, err, shared.NewDomainError(inventory.CodeSerialNotAvailable, ""))
	})

	t.Run("serials of an open order cannot be reported", func(t *testing.T) {
		_, err := s.damage.ReportSerialIssue(ctx, "SN-A", appinv.ReportSerialIssueRequest{Status: "DAMAGED"}, actor)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Empty(t, s.events(t, inventory.EventTypeDamageRecorded))
	})

	_, err := s.picking.Complete(ctx, order.ID, actor)
	require.NoError(t, err)

	t.Run("reporting damage on a picked serial", func(t *testing.T) {
		serial, err := s.damage.ReportSerialIssue(ctx, "SN-A", appinv.ReportSerialIssueRequest{Status: "DAMAGED", Reason: "cracked"}, actor)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.SerialStatusDamaged), serial.Status)

		events := s.events(t, inventory.EventTypeDamageRecorded)
		require.Len(t, events, 1)
		damage := events[0].(*inventory.DamageRecordedEvent)
		require.NotNil(t, damage.PartnerID)
		assert.Equal(t, partnerID, *damage.PartnerID)
		assert.True(t, damage.Quantity.Equal(dec("1")))
	})

	t.Run("in-stock serials cannot be reported", func(t *testing.T) {
		_, err := s.damage.ReportSerialIssue(ctx, "SN-B", appinv.ReportSerialIssueRequest{Status: "LOST"}, actor)
		assert.ErrorIs(t, err, shared.NewDomainError(inventory.CodeSerialNotAvailable, ""))
	})

	t.Run("ledger is untouched by issue reports", func(t *testing.T) {
		entries := s.movements(t, 1)
		last := entries[len(entries)-1]
		assert.True(t, last.BalanceAfter.Equal(dec("1")))
		s.requireConsistent(t, 1)
	})
}

// A rejected issue report must leave every serial of an open order releasable
func TestSerialIssue_OpenOrderStaysReversible(t *testing.T) {
	s := newServices(t, appinv.DefaultOptions())
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "PHONE", true)
	s.receive(t, 1, "2", "100", "SN-A", "SN-B")

	order := s.newOrder(t)
	detail, err := s.picking.AddItem(ctx, order.ID, appinv.AddPickingItemRequest{
		ProductID: 1, Quantity: dec("1"), SerialNumbers: []string{"SN-A"},
	}, actor)
	require.NoError(t, err)

	for _, status := range []string{"DAMAGED", "LOST"} {
		_, err := s.damage.ReportSerialIssue(ctx, "SN-A", appinv.ReportSerialIssueRequest{Status: status}, actor)
		var stateErr *inventory.InvalidStateError
		require.ErrorAs(t, err, &stateErr, status)
		assert.Equal(t, order.ID, stateErr.ID)
	}

	t.Run("update re-allocates the reported serial's detail", func(t *testing.T) {
		updated, err := s.picking.UpdateItem(ctx, order.ID, detail.ID, appinv.UpdatePickingItemRequest{
			Quantity: dec("1"), SerialNumbers: []string{"SN-B"},
		}, actor)
		require.NoError(t, err)
		assert.Equal(t, []string{"SN-B"}, updated.SerialNumbers)
	})

	t.Run("cancel reverses the order", func(t *testing.T) {
		cancelled, err := s.picking.Cancel(ctx, order.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, string(inventory.PickingStatusCancelled), cancelled.Status)

		for _, sn := range []string{"SN-A", "SN-B"} {
			serial, err := s.query.GetSerial(ctx, sn)
			require.NoError(t, err)
			assert.Equal(t, string(inventory.SerialStatusInStock), serial.Status)
		}
		entries := s.movements(t, 1)
		assert.True(t, entries[len(entries)-1].BalanceAfter.Equal(dec("2")))
		s.requireConsistent(t, 1)
	})
}

func TestDamageAccumulation(t *testing.T) {
	opts := appinv.DefaultOptions()
	opts.DamageThreshold = dec("20")
	s := newServices(t, opts)
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "X", false)

	finalizeWithDamage := func(accepted, damaged string) {
		rcv, err := s.receiving.Create(ctx, appinv.CreateReceivingRequest{
			PartnerID: partnerID,
			Lines:     []appinv.ReceivingLineRequest{{ProductID: 1, OrderedQuantity: dec("100"), UnitPrice: dec("5")}},
		}, actor)
		require.NoError(t, err)
		result, err := s.receiving.FinalizeDetail(ctx, rcv.Details[0].ID, appinv.FinalizeReceivingDetailRequest{
			AcceptedQuantity: dec(accepted),
			DamageQuantity:   dec(damaged),
			DamageReason:     "crushed",
		}, actor)
		require.NoError(t, err)
		require.NotNil(t, result.DamageRecord)
	}

	finalizeWithDamage("85", "15")
	finalizeWithDamage("90", "10")

	damages := s.events(t, inventory.EventTypeDamageRecorded)
	require.Len(t, damages, 2)
	for _, evt := range damages {
		require.NoError(t, s.accumulator.Handle(ctx, evt))
	}

	requests := s.events(t, inventory.EventTypeReturnOrderRequested)
	require.Len(t, requests, 1)
	req := requests[0].(*inventory.ReturnOrderRequestedEvent)
	assert.Equal(t, partnerID, req.PartnerID)
	assert.True(t, req.Quantity.Equal(dec("25")))

	require.NoError(t, s.returns.Handle(ctx, req))
	order, err := s.picking.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.PickingPurposeReturnToSupplier), order.Purpose)
	require.NotNil(t, order.PartnerID)
	assert.Equal(t, partnerID, *order.PartnerID)

	t.Run("damage without a supplier is skipped", func(t *testing.T) {
		rec, err := inventory.NewDamageRecord(1, nil, nil, dec("50"), "", inventory.DamageSourceStockTake, 1, actor)
		require.NoError(t, err)
		require.NoError(t, s.accumulator.Handle(ctx, inventory.NewDamageRecordedEvent(rec)))
		assert.Len(t, s.events(t, inventory.EventTypeReturnOrderRequested), 1)
	})

	t.Run("rejects other events", func(t *testing.T) {
		assert.Error(t, s.accumulator.Handle(ctx, testutil.NewTestEvent(inventory.EventTypeDamageRecorded, 1)))
	})
}

func TestSummary(t *testing.T) {
	opts := appinv.DefaultOptions()
	opts.StockTakeRequiresReview = false
	s := newServices(t, opts)
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "X", false)
	productID := int64(1)

	// spaces the phases so their entries get distinct timestamps
	pause := func() { time.Sleep(5 * time.Millisecond) }

	// before the window: IN +10, OUT -3
	s.receive(t, 1, "10", "100")
	pause()
	first := s.newOrder(t)
	_, err := s.picking.AddItem(ctx, first.ID, appinv.AddPickingItemRequest{ProductID: 1, Quantity: dec("3")}, actor)
	require.NoError(t, err)
	pause()

	// inside the window: IN +5, OUT -4 and its reversal +4, DAMAGE -1, ADJUST -2
	s.receive(t, 1, "5", "100")
	pause()
	second := s.newOrder(t)
	detail, err := s.picking.AddItem(ctx, second.ID, appinv.AddPickingItemRequest{ProductID: 1, Quantity: dec("4")}, actor)
	require.NoError(t, err)
	pause()
	require.NoError(t, s.picking.DeleteItem(ctx, second.ID, detail.ID, actor))
	pause()
	st, err := s.stockTake.Create(ctx, appinv.CreateStockTakeRequest{
		Lines: []appinv.StockTakeLineRequest{{ProductID: 1, ActualQuantity: dec("9"), DamageQuantity: dec("1")}},
	}, actor)
	require.NoError(t, err)
	_, err = s.stockTake.Submit(ctx, st.ID, actor)
	require.NoError(t, err)
	_, err = s.stockTake.Complete(ctx, st.ID, actor)
	require.NoError(t, err)
	pause()

	// after the window: IN +2
	s.receive(t, 1, "2", "100")

	entries := s.movements(t, 1)
	require.Len(t, entries, 8)
	at := func(i int) *time.Time {
		d := entries[i].TransactionDate.UTC()
		return &d
	}
	require.NotNil(t, entries[4].ReversalOf)
	require.Equal(t, string(inventory.TransactionTypeDamage), entries[5].TransactionType)
	require.Equal(t, string(inventory.TransactionTypeAdjust), entries[6].TransactionType)
	later := entries[7].TransactionDate.UTC().Add(time.Hour)

	tests := []struct {
		name                                       string
		from, to                                   *time.Time
		beginning, in, out, adjust, damage, ending string
	}{
		{"whole history", nil, nil, "0", "17", "3", "-2", "1", "11"},
		{"bounded window", at(2), at(6), "7", "5", "0", "-2", "1", "9"},
		{"open ended from", at(2), nil, "7", "7", "0", "-2", "1", "11"},
		{"up to a bound", nil, at(1), "0", "10", "3", "0", "0", "7"},
		{"single instant includes both bounds", at(5), at(6), "12", "0", "0", "-2", "1", "9"},
		{"window after the last entry", &later, nil, "11", "0", "0", "0", "0", "11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := s.query.GetSummary(ctx, appinv.SummaryFilter{ProductID: &productID, From: tt.from, To: tt.to})
			require.NoError(t, err)
			require.Len(t, summary, 1)
			got := summary[0]
			assert.True(t, got.BeginningBalance.Equal(dec(tt.beginning)), "beginning %s", got.BeginningBalance)
			assert.True(t, got.TotalIn.Equal(dec(tt.in)), "in %s", got.TotalIn)
			assert.True(t, got.TotalOut.Equal(dec(tt.out)), "out %s", got.TotalOut)
			assert.True(t, got.TotalAdjust.Equal(dec(tt.adjust)), "adjust %s", got.TotalAdjust)
			assert.True(t, got.TotalDamage.Equal(dec(tt.damage)), "damage %s", got.TotalDamage)
			assert.True(t, got.EndingBalance.Equal(dec(tt.ending)), "ending %s", got.EndingBalance)

			inRange, err := s.query.GetMovements(ctx, appinv.MovementFilter{ProductID: &productID, From: tt.from, To: tt.to})
			require.NoError(t, err)
			if len(inRange) > 0 {
				assert.True(t, got.EndingBalance.Equal(inRange[len(inRange)-1].BalanceAfter))
			}
		})
	}

	t.Run("rejects an inverted range", func(t *testing.T) {
		_, err := s.query.GetSummary(ctx, appinv.SummaryFilter{From: at(6), To: at(2)})
		var qtyErr *inventory.InvalidQuantityError
		assert.ErrorAs(t, err, &qtyErr)
	})

	t.Run("movements filter by type", func(t *testing.T) {
		out, err := s.query.GetMovements(ctx, appinv.MovementFilter{ProductID: &productID, Type: "OUT"})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.True(t, out[0].QuantityChange.Equal(dec("-3")))
		assert.True(t, out[2].QuantityChange.Equal(dec("4")))
	})
}

func TestReceiving_Validation(t *testing.T) {
	s := newServices(t, appinv.DefaultOptions())
	ctx := context.Background()
	testutil.SeedProduct(t, s.stack.DB, 1, "X", false)

	t.Run("unknown product", func(t *testing.T) {
		_, err := s.receiving.Create(ctx, appinv.CreateReceivingRequest{
			PartnerID: partnerID,
			Lines:     []appinv.ReceivingLineRequest{{ProductID: 77, OrderedQuantity: dec("1")}},
		}, actor)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("provisional counts have no stock effect", func(t *testing.T) {
		rcv, err := s.receiving.Create(ctx, appinv.CreateReceivingRequest{
			PartnerID: partnerID,
			Lines:     []appinv.ReceivingLineRequest{{ProductID: 1, OrderedQuantity: dec("5"), UnitPrice: dec("2")}},
		}, actor)
		require.NoError(t, err)

		rcv, err = s.receiving.RecordProvisionalQuantity(ctx, rcv.Details[0].ID, appinv.RecordProvisionalRequest{Quantity: dec("4")}, actor)
		require.NoError(t, err)
		require.NotNil(t, rcv.Details[0].ProvisionalQuantity)
		assert.True(t, rcv.Details[0].ProvisionalQuantity.Equal(dec("4")))
		assert.Empty(t, s.movements(t, 1))

		_, err = s.receiving.FinalizeDetail(ctx, rcv.Details[0].ID, appinv.FinalizeReceivingDetailRequest{AcceptedQuantity: dec("-1")}, actor)
		var qtyErr *inventory.InvalidQuantityError
		assert.ErrorAs(t, err, &qtyErr)
	})

	t.Run("finalized details cannot be finalized again", func(t *testing.T) {
		result := s.receive(t, 1, "3", "2")
		_, err := s.receiving.FinalizeDetail(ctx, result.Receiving.Details[0].ID, appinv.FinalizeReceivingDetailRequest{AcceptedQuantity: dec("3")}, actor)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("ordered quantity is enforced when configured", func(t *testing.T) {
		opts := appinv.DefaultOptions()
		opts.EnforceOrderedQuantity = true
		strict := appinv.NewReceivingService(s.stack.Scope, opts, nil, nil)

		rcv, err := strict.Create(ctx, appinv.CreateReceivingRequest{
			PartnerID: partnerID,
			Lines:     []appinv.ReceivingLineRequest{{ProductID: 1, OrderedQuantity: dec("5")}},
		}, actor)
		require.NoError(t, err)
		_, err = strict.FinalizeDetail(ctx, rcv.Details[0].ID, appinv.FinalizeReceivingDetailRequest{AcceptedQuantity: dec("5"), DamageQuantity: dec("1")}, actor)
		var qtyErr *inventory.InvalidQuantityError
		assert.ErrorAs(t, err, &qtyErr)
	})
}

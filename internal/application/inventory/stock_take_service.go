package inventory

import (
	"context"
	"fmt"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockTakeService reconciles physical counts with the ledger
type StockTakeService struct {
	wf *workflow
}

// NewStockTakeService creates a new StockTakeService
func NewStockTakeService(scope TransactionScope, opts Options, metrics Metrics, logger *zap.Logger) *StockTakeService {
	return &StockTakeService{wf: newWorkflow(scope, opts, metrics, logger)}
}

// Create creates a draft stock-take
func (s *StockTakeService) Create(ctx context.Context, req CreateStockTakeRequest, actor string) (*StockTakeResponse, error) {
	lines := make([]inventory.StockTakeLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, inventory.StockTakeLine{
			ProductID:      l.ProductID,
			ActualQuantity: l.ActualQuantity,
			DamageQuantity: l.DamageQuantity,
			SerialNumbers:  l.SerialNumbers,
		})
	}
	st, err := inventory.NewStockTake(req.Note, actor, lines)
	if err != nil {
		return nil, err
	}

	err = s.wf.run(ctx, "create_stock_take", actor, func(tx *txContext) error {
		if _, err := tx.lockProducts(st.ProductIDs()...); err != nil {
			return err
		}
		return tx.repos.StockTakes().Create(tx.ctx, st)
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockTakeResponse(st)
	return &resp, nil
}

// GetByID returns a stock-take with its details
func (s *StockTakeService) GetByID(ctx context.Context, id int64) (*StockTakeResponse, error) {
	var resp StockTakeResponse
	err := s.wf.scope.Snapshot(ctx, func(repos TransactionalRepositories) error {
		st, err := repos.StockTakes().FindByID(ctx, id)
		if err != nil {
			return err
		}
		resp = ToStockTakeResponse(st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit snapshots the system quantities and computes the variances
func (s *StockTakeService) Submit(ctx context.Context, id int64, actor string) (*StockTakeResponse, error) {
	return s.transition(ctx, "submit_stock_take", id, actor, func(tx *txContext, st *inventory.StockTake) error {
		products, err := tx.lockProducts(st.ProductIDs()...)
		if err != nil {
			return err
		}
		system := make(map[int64]decimal.Decimal, len(products))
		tracked := make(map[int64]bool, len(products))
		for id, p := range products {
			remaining, err := tx.repos.Lots().SumRemaining(tx.ctx, id)
			if err != nil {
				return err
			}
			system[id] = remaining
			tracked[id] = p.SerialTracked
		}
		return st.Submit(system, tracked, tx.now)
	})
}

// Review approves or rejects a submitted stock-take
func (s *StockTakeService) Review(ctx context.Context, id int64, req ReviewStockTakeRequest, actor string) (*StockTakeResponse, error) {
	return s.transition(ctx, "review_stock_take", id, actor, func(tx *txContext, st *inventory.StockTake) error {
		return st.Review(req.Approve, actor, req.Note, tx.now)
	})
}

// Cancel cancels a stock-take that was not applied yet
func (s *StockTakeService) Cancel(ctx context.Context, id int64, actor string) (*StockTakeResponse, error) {
	return s.transition(ctx, "cancel_stock_take", id, actor, func(tx *txContext, st *inventory.StockTake) error {
		return st.Cancel(tx.now)
	})
}

// Complete applies every variance to the lots and the ledger. Stock that moved
// after submission makes the counts stale, so completion is refused and the
// stock-take has to be cancelled and counted again.
// A shortage is written off oldest lot first and posted as one DAMAGE entry for the
// counted damage and one negative ADJUST entry for the rest. A surplus becomes a new lot with a positive
// ADJUST entry.
func (s *StockTakeService) Complete(ctx context.Context, id int64, actor string) (*StockTakeResponse, error) {
	return s.transition(ctx, "complete_stock_take", id, actor, func(tx *txContext, st *inventory.StockTake) error {
		if err := st.Complete(s.wf.opts.StockTakeRequiresReview, tx.now); err != nil {
			return err
		}
		products, err := tx.lockProducts(st.ProductIDs()...)
		if err != nil {
			return err
		}
		current := make(map[int64]decimal.Decimal, len(products))
		for id := range products {
			if current[id], err = tx.repos.Lots().SumRemaining(tx.ctx, id); err != nil {
				return err
			}
		}
		if err := st.CheckSnapshot(current); err != nil {
			return err
		}
		for i := range st.Details {
			d := &st.Details[i]
			product := products[d.ProductID]
			switch {
			case d.Variance.IsNegative():
				err = applyShortage(tx, st, d, product)
			case d.Variance.IsPositive():
				err = applySurplus(tx, st, d, product)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *StockTakeService) transition(ctx context.Context, operation string, id int64, actor string, fn func(tx *txContext, st *inventory.StockTake) error) (*StockTakeResponse, error) {
	var st *inventory.StockTake
	err := s.wf.run(ctx, operation, actor, func(tx *txContext) error {
		var err error
		st, err = tx.repos.StockTakes().FindByIDForUpdate(tx.ctx, id)
		if err != nil {
			return err
		}
		if err := fn(tx, st); err != nil {
			return err
		}
		return tx.repos.StockTakes().Save(tx.ctx, st)
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockTakeResponse(st)
	return &resp, nil
}

func applyShortage(tx *txContext, st *inventory.StockTake, d *inventory.StockTakeDetail, product *inventory.Product) error {
	damaged, lost := d.Shortage()
	lots, err := tx.repos.Lots().FindAvailableForUpdate(tx.ctx, product.ID)
	if err != nil {
		return err
	}
	plan, err := inventory.PlanAllocation(product.ID, d.Variance.Neg(), lots)
	if err != nil {
		return err
	}
	byID := make(map[int64]*inventory.Lot, len(lots))
	for _, lot := range lots {
		byID[lot.ID] = lot
	}

	damageLeft := damaged
	for _, line := range plan.Lines {
		lot := byID[line.LotID]
		lineDamage := decimal.Min(line.Quantity, damageLeft)
		lineLost := line.Quantity.Sub(lineDamage)
		damageLeft = damageLeft.Sub(lineDamage)

		if lineDamage.IsPositive() {
			if err := lot.WriteOff(lineDamage, inventory.WriteOffDamaged); err != nil {
				return err
			}
		}
		if lineLost.IsPositive() {
			if err := lot.WriteOff(lineLost, inventory.WriteOffLost); err != nil {
				return err
			}
		}
		if err := tx.saveLots(lot); err != nil {
			return err
		}

		if product.SerialTracked {
			if err := writeOffSerials(tx, product.ID, lot.ID, lineDamage, lineLost); err != nil {
				return err
			}
		}

		if lineDamage.IsPositive() {
			lotID := lot.ID
			partnerID, err := lotPartner(tx, lot)
			if err != nil {
				return err
			}
			rec, err := inventory.NewDamageRecord(product.ID, partnerID, &lotID, lineDamage,
				st.Note, inventory.DamageSourceStockTake, st.ID, tx.actor)
			if err != nil {
				return err
			}
			if err := recordDamage(tx, rec); err != nil {
				return err
			}
		}
	}

	if damaged.IsPositive() {
		if _, err := tx.ledger.post(tx.ctx, inventory.Posting{
			ProductID:      product.ID,
			Type:           inventory.TransactionTypeDamage,
			QuantityChange: damaged.Neg(),
			UnitPrice:      plan.UnitPrice,
			Reference:      inventory.StockTakeReference(st.ID),
			UserID:         tx.actor,
		}, tx.now); err != nil {
			return err
		}
	}
	if lost.IsPositive() {
		if _, err := tx.ledger.post(tx.ctx, inventory.Posting{
			ProductID:      product.ID,
			Type:           inventory.TransactionTypeAdjust,
			QuantityChange: lost.Neg(),
			UnitPrice:      plan.UnitPrice,
			Reference:      inventory.StockTakeReference(st.ID),
			UserID:         tx.actor,
		}, tx.now); err != nil {
			return err
		}
	}
	return nil
}

// writeOffSerials marks the InStock serials of a lot as damaged first, then lost
func writeOffSerials(tx *txContext, productID, lotID int64, damaged, lost decimal.Decimal) error {
	nDamaged := int(damaged.IntPart())
	need := nDamaged + int(lost.IntPart())
	serials, err := tx.repos.Serials().FindInStockByLot(tx.ctx, lotID, need)
	if err != nil {
		return err
	}
	if len(serials) < need {
		return &inventory.ConsistencyViolationError{
			ProductID: productID,
			Check:     fmt.Sprintf("in-stock serials of lot %d", lotID),
			Expected:  decimal.NewFromInt(int64(need)),
			Actual:    decimal.NewFromInt(int64(len(serials))),
		}
	}
	for i, serial := range serials {
		status := inventory.SerialStatusLost
		if i < nDamaged {
			status = inventory.SerialStatusDamaged
		}
		if err := serial.MarkIssue(status); err != nil {
			return err
		}
		if err := tx.repos.Serials().Save(tx.ctx, serial); err != nil {
			return err
		}
	}
	return nil
}

func applySurplus(tx *txContext, st *inventory.StockTake, d *inventory.StockTakeDetail, product *inventory.Product) error {
	price, _, err := tx.repos.Lots().LatestUnitPrice(tx.ctx, product.ID)
	if err != nil {
		return err
	}
	surplus := d.Surplus()
	lot, err := inventory.NewSurplusLot(product.ID, surplus, price, product.Unit, tx.now)
	if err != nil {
		return err
	}
	if err := tx.repos.Lots().Create(tx.ctx, lot); err != nil {
		return err
	}
	lotID := lot.ID
	if _, err := tx.ledger.post(tx.ctx, inventory.Posting{
		ProductID:      product.ID,
		LotID:          &lotID,
		Type:           inventory.TransactionTypeAdjust,
		QuantityChange: surplus,
		UnitPrice:      price,
		Reference:      inventory.StockTakeReference(st.ID),
		UserID:         tx.actor,
	}, tx.now); err != nil {
		return err
	}
	if product.SerialTracked {
		numbers, err := registerSerials(tx, product, lot, d.SerialNumbers)
		if err != nil {
			return err
		}
		d.SerialNumbers = numbers
	}
	return nil
}

// lotPartner resolves the supplier of a lot through its receiving detail.
// Surplus lots have no supplier.
func lotPartner(tx *txContext, lot *inventory.Lot) (*int64, error) {
	if lot.IsSurplus() {
		return nil, nil
	}
	partnerID, err := tx.repos.Receivings().PartnerForDetail(tx.ctx, *lot.SourceDetailID)
	if err != nil {
		return nil, err
	}
	return &partnerID, nil
}

package inventory

import (
	"context"
	"fmt"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultMovementLimit = 100
	maxMovementLimit     = 1000
)

// QueryService answers balance and movement questions from the ledger
type QueryService struct {
	wf *workflow
}

// NewQueryService creates a new QueryService
func NewQueryService(scope TransactionScope, metrics Metrics, logger *zap.Logger) *QueryService {
	return &QueryService{wf: newWorkflow(scope, DefaultOptions(), metrics, logger)}
}

// GetSummary returns the period balances of one or all products.
// The computed ending balance must match the last balanceAfter in range.
func (s *QueryService) GetSummary(ctx context.Context, filter SummaryFilter) ([]SummaryResponse, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, inventory.NewInvalidQuantityError("date range", decimal.Zero, "to must not be before from")
	}

	var result []SummaryResponse
	err := s.wf.scope.Snapshot(ctx, func(repos TransactionalRepositories) error {
		totals, err := repos.Ledger().Totals(ctx, filter.ProductID, filter.From, filter.To)
		if err != nil {
			return err
		}
		byProduct := make(map[int64]inventory.LedgerTotals, len(totals))
		for _, t := range totals {
			byProduct[t.ProductID] = t
		}

		var productIDs []int64
		if filter.ProductID != nil {
			productIDs = []int64{*filter.ProductID}
		} else {
			productIDs, err = repos.Ledger().ProductIDs(ctx)
			if err != nil {
				return err
			}
		}

		result = make([]SummaryResponse, 0, len(productIDs))
		for _, pid := range productIDs {
			summary, err := summarize(ctx, repos, pid, byProduct[pid], filter)
			if err != nil {
				return err
			}
			result = append(result, summary)
		}
		return nil
	})
	if err != nil {
		s.wf.reportViolation(ctx, "get_summary", err)
		return nil, err
	}
	return result, nil
}

func summarize(ctx context.Context, repos TransactionalRepositories, productID int64, totals inventory.LedgerTotals, filter SummaryFilter) (SummaryResponse, error) {
	beginning := decimal.Zero
	if filter.From != nil {
		before, err := repos.Ledger().LastBefore(ctx, productID, *filter.From)
		if err != nil {
			return SummaryResponse{}, err
		}
		if before != nil {
			beginning = before.BalanceAfter
		}
	}

	resp := SummaryResponse{
		ProductID:        productID,
		BeginningBalance: beginning,
		TotalIn:          totals.In,
		TotalOut:         totals.Out.Neg(),
		TotalAdjust:      totals.Adjust,
		TotalDamage:      totals.Damage.Neg(),
	}
	resp.EndingBalance = beginning.Add(resp.TotalIn).Sub(resp.TotalOut).Add(resp.TotalAdjust).Sub(resp.TotalDamage)

	last, err := repos.Ledger().LastUpTo(ctx, productID, filter.To)
	if err != nil {
		return SummaryResponse{}, err
	}
	recorded := beginning
	if last != nil && (filter.From == nil || !last.TransactionDate.Before(*filter.From)) {
		recorded = last.BalanceAfter
	}
	if !recorded.Equal(resp.EndingBalance) {
		return SummaryResponse{}, &inventory.ConsistencyViolationError{
			ProductID: productID,
			Check:     "summary ending balance vs ledger",
			Expected:  recorded,
			Actual:    resp.EndingBalance,
		}
	}
	return resp, nil
}

// GetMovements returns ledger entries ordered by product then sequence
func (s *QueryService) GetMovements(ctx context.Context, filter MovementFilter) ([]LedgerEntryResponse, error) {
	f := inventory.MovementFilter{
		ProductID: filter.ProductID,
		From:      filter.From,
		To:        filter.To,
		Limit:     filter.Limit,
	}
	if filter.Type != "" {
		t := inventory.TransactionType(filter.Type)
		if !t.IsValid() {
			return nil, inventory.NewInvalidQuantityError("type", decimal.Zero, "unknown transaction type "+filter.Type)
		}
		f.Type = &t
	}
	if f.Limit <= 0 {
		f.Limit = defaultMovementLimit
	}
	if f.Limit > maxMovementLimit {
		f.Limit = maxMovementLimit
	}

	var result []LedgerEntryResponse
	err := s.wf.scope.Snapshot(ctx, func(repos TransactionalRepositories) error {
		entries, err := repos.Ledger().FindMovements(ctx, f)
		if err != nil {
			return err
		}
		result = make([]LedgerEntryResponse, 0, len(entries))
		for i := range entries {
			result = append(result, ToLedgerEntryResponse(&entries[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetLots returns the lots of a product in FIFO order
func (s *QueryService) GetLots(ctx context.Context, productID int64, includeDepleted bool) ([]LotResponse, error) {
	var result []LotResponse
	err := s.wf.scope.Snapshot(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Products().FindByID(ctx, productID); err != nil {
			return err
		}
		lots, err := repos.Lots().FindByProduct(ctx, productID, includeDepleted)
		if err != nil {
			return err
		}
		result = make([]LotResponse, 0, len(lots))
		for _, lot := range lots {
			result = append(result, ToLotResponse(lot))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetSerial returns a serial number
func (s *QueryService) GetSerial(ctx context.Context, serialNumber string) (*SerialResponse, error) {
	var resp SerialResponse
	err := s.wf.scope.Snapshot(ctx, func(repos TransactionalRepositories) error {
		serial, err := repos.Serials().FindByNumber(ctx, serialNumber)
		if err != nil {
			return err
		}
		resp = ToSerialResponse(serial)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyConsistency replays a product's ledger and cross-checks it against the lots
// and serials. Findings are reported, not raised.
func (s *QueryService) VerifyConsistency(ctx context.Context, productID int64) (*ConsistencyReport, error) {
	report := &ConsistencyReport{ProductID: productID}
	err := s.wf.scope.Snapshot(ctx, func(repos TransactionalRepositories) error {
		product, err := repos.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		entries, err := repos.Ledger().FindByProduct(ctx, productID)
		if err != nil {
			return err
		}
		report.EntryCount = len(entries)

		balance, chainErr := inventory.VerifyChain(productID, entries)
		if chainErr != nil {
			report.Violations = append(report.Violations, chainErr.Error())
		}
		if n := len(entries); n > 0 {
			balance = entries[n-1].BalanceAfter
		}
		report.LedgerBalance = balance

		lots, err := repos.Lots().FindByProduct(ctx, productID, true)
		if err != nil {
			return err
		}
		report.LotCount = len(lots)
		remaining := decimal.Zero
		for _, lot := range lots {
			if err := lot.CheckInvariant(); err != nil {
				report.Violations = append(report.Violations, fmt.Sprintf("lot %d: %s", lot.ID, err.Error()))
			}
			remaining = remaining.Add(lot.QuantityRemaining)
		}
		report.LotRemaining = remaining
		if !remaining.Equal(balance) {
			report.Violations = append(report.Violations,
				fmt.Sprintf("lot remaining %s does not match ledger balance %s", remaining.String(), balance.String()))
		}

		if product.SerialTracked {
			counts, err := repos.Serials().CountInStockByLot(ctx, productID)
			if err != nil {
				return err
			}
			for _, lot := range lots {
				if inStock := decimal.NewFromInt(counts[lot.ID]); !inStock.Equal(lot.QuantityRemaining) {
					report.Violations = append(report.Violations,
						fmt.Sprintf("lot %d has %s in-stock serials for %s remaining", lot.ID, inStock.String(), lot.QuantityRemaining.String()))
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Consistent = len(report.Violations) == 0
	if !report.Consistent {
		s.wf.metrics.RecordConsistencyViolation(ctx, productID, "verify_consistency")
		s.wf.logger.Error("Inventory consistency check failed",
			zap.Int64("product_id", productID),
			zap.String("ledger_balance", report.LedgerBalance.String()),
			zap.String("lot_remaining", report.LotRemaining.String()),
			zap.Strings("violations", report.Violations))
	}
	return report, nil
}

package inventory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PricePrecision is the number of decimals outbound unit prices are rounded to
const PricePrecision int32 = 2

// AllocationLine is the quantity taken from one lot
type AllocationLine struct {
	LotID        int64
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	ReceivedDate time.Time
}

// AllocationPlan covers a requested quantity with lots in FIFO order
type AllocationPlan struct {
	ProductID int64
	Requested decimal.Decimal
	Lines     []AllocationLine
	UnitPrice decimal.Decimal // weighted over the consumed lots
}

// TotalCost returns sum(quantity * unit price) over the plan lines
func (p *AllocationPlan) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		total = total.Add(line.Quantity.Mul(line.UnitPrice))
	}
	return total
}

// QuantityForLot returns how much the plan takes from a lot
func (p *AllocationPlan) QuantityForLot(lotID int64) decimal.Decimal {
	for _, line := range p.Lines {
		if line.LotID == lotID {
			return line.Quantity
		}
	}
	return decimal.Zero
}

// SortFIFO orders lots by received date, then by lot id for lots received at the same instant
func SortFIFO(lots []*Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].ReceivedDate.Equal(lots[j].ReceivedDate) {
			return lots[i].ReceivedDate.Before(lots[j].ReceivedDate)
		}
		return lots[i].ID < lots[j].ID
	})
}

// AvailableQuantity sums the remaining quantity of the product's lots
func AvailableQuantity(productID int64, lots []*Lot) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		if lot.ProductID == productID && lot.IsAvailable() {
			total = total.Add(lot.QuantityRemaining)
		}
	}
	return total
}

// PlanAllocation walks the product's lots oldest first and plans how much to take
// from each. The lots are not modified; sufficiency is checked before any line is
// produced so a failed plan never leaves partial state behind.
func PlanAllocation(productID int64, requested decimal.Decimal, lots []*Lot) (*AllocationPlan, error) {
	if !requested.IsPositive() {
		return nil, NewInvalidQuantityError("requested quantity", requested, "must be positive")
	}

	candidates := make([]*Lot, 0, len(lots))
	for _, lot := range lots {
		if lot.ProductID == productID && lot.IsAvailable() {
			candidates = append(candidates, lot)
		}
	}

	available := AvailableQuantity(productID, candidates)
	if available.LessThan(requested) {
		return nil, &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
	}

	SortFIFO(candidates)

	plan := &AllocationPlan{
		ProductID: productID,
		Requested: requested,
		Lines:     make([]AllocationLine, 0, len(candidates)),
	}
	outstanding := requested
	for _, lot := range candidates {
		if !outstanding.IsPositive() {
			break
		}
		take := decimal.Min(lot.QuantityRemaining, outstanding)
		plan.Lines = append(plan.Lines, AllocationLine{
			LotID:        lot.ID,
			Quantity:     take,
			UnitPrice:    lot.UnitPrice,
			ReceivedDate: lot.ReceivedDate,
		})
		outstanding = outstanding.Sub(take)
	}

	plan.UnitPrice = WeightedUnitPrice(plan.Lines)
	return plan, nil
}

// WeightedUnitPrice computes sum(q_i * p_i) / sum(q_i) rounded to PricePrecision
func WeightedUnitPrice(lines []AllocationLine) decimal.Decimal {
	totalQty := decimal.Zero
	totalCost := decimal.Zero
	for _, line := range lines {
		totalQty = totalQty.Add(line.Quantity)
		totalCost = totalCost.Add(line.Quantity.Mul(line.UnitPrice))
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalCost.DivRound(totalQty, PricePrecision)
}

// ApplyAllocation takes the planned quantities from the lots.
// Every lot is checked before the first one is mutated.
func ApplyAllocation(plan *AllocationPlan, lots map[int64]*Lot) error {
	for _, line := range plan.Lines {
		lot, ok := lots[line.LotID]
		if !ok || lot.ProductID != plan.ProductID {
			return &ConsistencyViolationError{ProductID: plan.ProductID, Check: "allocated lot not loaded", Expected: line.Quantity, Actual: decimal.Zero}
		}
		if lot.QuantityRemaining.LessThan(line.Quantity) {
			return &InsufficientStockError{ProductID: plan.ProductID, Requested: line.Quantity, Available: lot.QuantityRemaining}
		}
	}
	for _, line := range plan.Lines {
		if err := lots[line.LotID].Take(line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

package inventory

import "github.com/shopspring/decimal"

// Options tunes inventory workflow policies
type Options struct {
	// DamageThreshold is the accumulated damage per (product, partner) that requests a return order
	DamageThreshold decimal.Decimal
	// EnforceOrderedQuantity rejects receivings where accepted + damage exceeds the ordered quantity
	EnforceOrderedQuantity bool
	// StockTakeRequiresReview forbids completing a stock-take that was not approved
	StockTakeRequiresReview bool
	// AutoCreateReturnOrders creates a return-to-supplier picking order when damage crosses the threshold
	AutoCreateReturnOrders bool
	// MaxConflictRetries is how many times a workflow is retried after an optimistic locking conflict
	MaxConflictRetries int
}

// DefaultOptions returns the default workflow options
func DefaultOptions() Options {
	return Options{
		DamageThreshold:         decimal.NewFromInt(20),
		EnforceOrderedQuantity:  false,
		StockTakeRequiresReview: true,
		AutoCreateReturnOrders:  false,
		MaxConflictRetries:      3,
	}
}

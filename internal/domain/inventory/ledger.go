package inventory

import (
	"time"

	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionTypeIn     TransactionType = "IN"
	TransactionTypeOut    TransactionType = "OUT"
	TransactionTypeAdjust TransactionType = "ADJUST"
	TransactionTypeDamage TransactionType = "DAMAGE"
)

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeIn, TransactionTypeOut, TransactionTypeAdjust, TransactionTypeDamage:
		return true
	}
	return false
}

// LedgerEntry is one append-only stock movement of a product.
// BalanceAfter is the product balance across all lots once the entry is applied.
type LedgerEntry struct {
	ID              int64
	ProductID       int64
	LotID           *int64
	Sequence        int64
	TransactionDate time.Time
	Type            TransactionType
	QuantityChange  decimal.Decimal
	BalanceAfter    decimal.Decimal
	UnitPrice       decimal.Decimal
	Reference       Reference
	ReversalOf      *int64
	UserID          string
	Note            string
	CreatedAt       time.Time
}

// Posting is a requested ledger movement before it is positioned in the chain
type Posting struct {
	ProductID      int64
	LotID          *int64
	Type           TransactionType
	QuantityChange decimal.Decimal
	UnitPrice      decimal.Decimal
	Reference      Reference
	ReversalOf     *int64
	UserID         string
	Note           string
}

// Validate enforces the sign rules of each transaction type
func (p Posting) Validate() error {
	if p.ProductID <= 0 {
		return shared.NewDomainError("INVALID_PRODUCT", "Product ID must be positive")
	}
	if !p.Type.IsValid() {
		return shared.NewDomainError("INVALID_TRANSACTION_TYPE", "Unknown transaction type "+string(p.Type))
	}
	q := p.QuantityChange
	switch p.Type {
	case TransactionTypeIn:
		if !q.IsPositive() {
			return NewInvalidQuantityError("IN quantity", q, "must be positive")
		}
	case TransactionTypeOut:
		if p.ReversalOf != nil {
			if !q.IsPositive() {
				return NewInvalidQuantityError("OUT reversal quantity", q, "must be positive")
			}
		} else if !q.IsNegative() {
			return NewInvalidQuantityError("OUT quantity", q, "must be negative")
		}
	case TransactionTypeDamage:
		if !q.IsNegative() {
			return NewInvalidQuantityError("DAMAGE quantity", q, "must be negative")
		}
	case TransactionTypeAdjust:
		if q.IsZero() {
			return NewInvalidQuantityError("ADJUST quantity", q, "cannot be zero")
		}
	}
	if p.ReversalOf != nil && p.Type != TransactionTypeOut {
		return shared.NewDomainError("INVALID_REVERSAL", "Only OUT entries can be reversed")
	}
	return nil
}

// LedgerPosition is the tail of a product's ledger chain
type LedgerPosition struct {
	ProductID int64
	Sequence  int64
	Balance   decimal.Decimal
	LastDate  time.Time
}

// StartPosition returns the position of a product without any entry
func StartPosition(productID int64) LedgerPosition {
	return LedgerPosition{ProductID: productID, Balance: decimal.Zero}
}

// Append positions a posting after the current tail and advances the position.
// Transaction dates never go backwards within a product, and the running
// balance can never drop below zero.
func (pos *LedgerPosition) Append(p Posting, at time.Time) (*LedgerEntry, error) {
	if p.ProductID != pos.ProductID {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Posting product does not match ledger position")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	date := at.UTC()
	if date.Before(pos.LastDate) {
		date = pos.LastDate
	}
	balance := pos.Balance.Add(p.QuantityChange)
	if balance.IsNegative() {
		return nil, &ConsistencyViolationError{
			ProductID: p.ProductID,
			Check:     "ledger balance below zero",
			Expected:  decimal.Zero,
			Actual:    balance,
		}
	}

	entry := &LedgerEntry{
		ProductID:       p.ProductID,
		LotID:           p.LotID,
		Sequence:        pos.Sequence + 1,
		TransactionDate: date,
		Type:            p.Type,
		QuantityChange:  p.QuantityChange,
		BalanceAfter:    balance,
		UnitPrice:       p.UnitPrice,
		Reference:       p.Reference,
		ReversalOf:      p.ReversalOf,
		UserID:          p.UserID,
		Note:            p.Note,
		CreatedAt:       time.Now().UTC(),
	}

	pos.Sequence = entry.Sequence
	pos.Balance = balance
	pos.LastDate = date
	return entry, nil
}

// VerifyChain replays the entries of one product, ordered by sequence, and checks
// balanceAfter[n] = balanceAfter[n-1] + quantityChange[n] starting from zero.
// It returns the final balance.
func VerifyChain(productID int64, entries []LedgerEntry) (decimal.Decimal, error) {
	balance := decimal.Zero
	var lastSeq int64
	var lastDate time.Time
	for i := range entries {
		e := &entries[i]
		if e.ProductID != productID {
			return balance, &ConsistencyViolationError{ProductID: productID, Check: "ledger entry of another product", Expected: decimal.NewFromInt(productID), Actual: decimal.NewFromInt(e.ProductID)}
		}
		if e.Sequence <= lastSeq {
			return balance, &ConsistencyViolationError{ProductID: productID, Check: "ledger sequence not increasing", Expected: decimal.NewFromInt(lastSeq + 1), Actual: decimal.NewFromInt(e.Sequence)}
		}
		if e.TransactionDate.Before(lastDate) {
			return balance, &ConsistencyViolationError{ProductID: productID, Check: "ledger date going backwards", Expected: decimal.NewFromInt(lastDate.Unix()), Actual: decimal.NewFromInt(e.TransactionDate.Unix())}
		}
		balance = balance.Add(e.QuantityChange)
		if !balance.Equal(e.BalanceAfter) {
			return balance, &ConsistencyViolationError{ProductID: productID, Check: "ledger chain balance", Expected: balance, Actual: e.BalanceAfter}
		}
		lastSeq = e.Sequence
		lastDate = e.TransactionDate
	}
	return balance, nil
}

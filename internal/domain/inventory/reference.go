package inventory

import (
	"encoding/json"
	"fmt"

	"github.com/erp/warehouse/internal/domain/shared"
)

// ReferenceKind identifies the document a ledger entry points at
type ReferenceKind string

const (
	ReferenceNone      ReferenceKind = "NONE"
	ReferenceReceiving ReferenceKind = "RECEIVING"
	ReferencePicking   ReferenceKind = "PICKING"
	ReferenceStockTake ReferenceKind = "STOCK_TAKE"
)

// Reference links a ledger entry to its source document.
// The zero value is the NONE reference; a document reference always carries a positive id.
type Reference struct {
	kind ReferenceKind
	id   int64
}

// NoReference returns a reference to nothing
func NoReference() Reference { return Reference{} }

// ReceivingReference references a receiving document
func ReceivingReference(id int64) Reference { return Reference{kind: ReferenceReceiving, id: id} }

// PickingReference references a picking order
func PickingReference(id int64) Reference { return Reference{kind: ReferencePicking, id: id} }

// StockTakeReference references a stock-take
func StockTakeReference(id int64) Reference { return Reference{kind: ReferenceStockTake, id: id} }

// ParseReference rebuilds a reference from its stored kind and id columns
func ParseReference(kind string, id *int64) (Reference, error) {
	switch ReferenceKind(kind) {
	case "", ReferenceNone:
		if id != nil {
			return Reference{}, shared.NewDomainError("INVALID_REFERENCE", "NONE reference cannot carry an id")
		}
		return NoReference(), nil
	case ReferenceReceiving, ReferencePicking, ReferenceStockTake:
		if id == nil || *id <= 0 {
			return Reference{}, shared.NewDomainError("INVALID_REFERENCE", fmt.Sprintf("%s reference requires a positive id", kind))
		}
		return Reference{kind: ReferenceKind(kind), id: *id}, nil
	}
	return Reference{}, shared.NewDomainError("INVALID_REFERENCE", fmt.Sprintf("unknown reference kind %q", kind))
}

// Kind returns the reference kind
func (r Reference) Kind() ReferenceKind {
	if r.kind == "" {
		return ReferenceNone
	}
	return r.kind
}

// ID returns the referenced document id; ok is false for NONE
func (r Reference) ID() (id int64, ok bool) {
	if r.Kind() == ReferenceNone {
		return 0, false
	}
	return r.id, true
}

// IsNone reports whether the reference points at nothing
func (r Reference) IsNone() bool {
	return r.Kind() == ReferenceNone
}

// Equal compares two references
func (r Reference) Equal(other Reference) bool {
	return r.Kind() == other.Kind() && r.id == other.id
}

func (r Reference) String() string {
	if r.IsNone() {
		return string(ReferenceNone)
	}
	return fmt.Sprintf("%s:%d", r.kind, r.id)
}

// MarshalJSON renders {"kind": ..., "id": ...}, or null for NONE
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.IsNone() {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Kind ReferenceKind `json:"kind"`
		ID   int64         `json:"id"`
	}{Kind: r.kind, ID: r.id})
}

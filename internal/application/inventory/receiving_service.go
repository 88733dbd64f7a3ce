package inventory

import (
	"context"
	"fmt"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReceivingService turns accepted receiving quantities into lots, IN ledger entries and serials
type ReceivingService struct {
	wf *workflow
}

// NewReceivingService creates a new ReceivingService
func NewReceivingService(scope TransactionScope, opts Options, metrics Metrics, logger *zap.Logger) *ReceivingService {
	return &ReceivingService{wf: newWorkflow(scope, opts, metrics, logger)}
}

// Create creates a pending receiving with provisional details
func (s *ReceivingService) Create(ctx context.Context, req CreateReceivingRequest, actor string) (*ReceivingResponse, error) {
	lines := make([]inventory.ReceivingLine, 0, len(req.Lines))
	productIDs := make([]int64, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, inventory.ReceivingLine{
			ProductID:       l.ProductID,
			OrderedQuantity: l.OrderedQuantity,
			UnitPrice:       l.UnitPrice,
		})
		productIDs = append(productIDs, l.ProductID)
	}
	receiving, err := inventory.NewReceiving(req.PartnerID, req.Note, actor, lines)
	if err != nil {
		return nil, err
	}

	err = s.wf.run(ctx, "create_receiving", actor, func(tx *txContext) error {
		if _, err := tx.lockProducts(productIDs...); err != nil {
			return err
		}
		return tx.repos.Receivings().Create(tx.ctx, receiving)
	})
	if err != nil {
		return nil, err
	}

	resp := ToReceivingResponse(receiving)
	return &resp, nil
}

// GetByID returns a receiving with its details
func (s *ReceivingService) GetByID(ctx context.Context, id int64) (*ReceivingResponse, error) {
	var resp ReceivingResponse
	err := s.wf.scope.Snapshot(ctx, func(repos TransactionalRepositories) error {
		receiving, err := repos.Receivings().FindByID(ctx, id)
		if err != nil {
			return err
		}
		resp = ToReceivingResponse(receiving)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordProvisionalQuantity stores a preliminary count of a detail without stock effect
func (s *ReceivingService) RecordProvisionalQuantity(ctx context.Context, detailID int64, req RecordProvisionalRequest, actor string) (*ReceivingResponse, error) {
	var receiving *inventory.Receiving
	err := s.wf.run(ctx, "record_provisional_quantity", actor, func(tx *txContext) error {
		var err error
		receiving, err = tx.repos.Receivings().FindByDetailIDForUpdate(tx.ctx, detailID)
		if err != nil {
			return err
		}
		detail, err := receiving.Detail(detailID)
		if err != nil {
			return err
		}
		if err := detail.RecordProvisional(req.Quantity); err != nil {
			return err
		}
		return tx.repos.Receivings().Save(tx.ctx, receiving)
	})
	if err != nil {
		return nil, err
	}
	resp := ToReceivingResponse(receiving)
	return &resp, nil
}

// FinalizeDetail confirms the accepted and damaged quantities of a receiving detail.
// The accepted quantity becomes a new lot with one IN ledger entry, plus one serial
// per unit for serial-tracked products. Damage is recorded and announced to the
// damage subsystem through the outbox.
func (s *ReceivingService) FinalizeDetail(ctx context.Context, detailID int64, req FinalizeReceivingDetailRequest, actor string) (*FinalizeReceivingDetailResponse, error) {
	if req.AcceptedQuantity.IsNegative() {
		return nil, inventory.NewInvalidQuantityError("accepted quantity", req.AcceptedQuantity, "cannot be negative")
	}
	if req.DamageQuantity.IsNegative() {
		return nil, inventory.NewInvalidQuantityError("damage quantity", req.DamageQuantity, "cannot be negative")
	}

	var result *FinalizeReceivingDetailResponse
	err := s.wf.run(ctx, "finalize_receiving_detail", actor, func(tx *txContext) error {
		result = &FinalizeReceivingDetailResponse{}

		receiving, err := tx.repos.Receivings().FindByDetailIDForUpdate(tx.ctx, detailID)
		if err != nil {
			return err
		}
		detail, err := receiving.Detail(detailID)
		if err != nil {
			return err
		}
		products, err := tx.lockProducts(detail.ProductID)
		if err != nil {
			return err
		}
		product := products[detail.ProductID]

		if err := detail.Finalize(req.AcceptedQuantity, req.DamageQuantity, req.DamageReason, s.wf.opts.EnforceOrderedQuantity, tx.now); err != nil {
			return err
		}
		if err := validateIncomingSerials(product, detail.AcceptedQuantity, req.SerialNumbers); err != nil {
			return err
		}

		var lotID *int64
		if detail.AcceptedQuantity.IsPositive() {
			lot, err := inventory.NewLot(product.ID, &detail.ID, detail.AcceptedQuantity, detail.UnitPrice, product.Unit, tx.now)
			if err != nil {
				return err
			}
			if err := tx.repos.Lots().Create(tx.ctx, lot); err != nil {
				return err
			}
			lotID = &lot.ID
			detail.AttachLot(lot.ID)

			entry, err := tx.ledger.post(tx.ctx, inventory.Posting{
				ProductID:      product.ID,
				LotID:          lotID,
				Type:           inventory.TransactionTypeIn,
				QuantityChange: detail.AcceptedQuantity,
				UnitPrice:      detail.UnitPrice,
				Reference:      inventory.ReceivingReference(receiving.ID),
				UserID:         tx.actor,
			}, tx.now)
			if err != nil {
				return err
			}

			if product.SerialTracked {
				numbers, err := registerSerials(tx, product, lot, req.SerialNumbers)
				if err != nil {
					return err
				}
				result.SerialNumbers = numbers
			}

			lotResp := ToLotResponse(lot)
			entryResp := ToLedgerEntryResponse(entry)
			result.Lot = &lotResp
			result.LedgerEntry = &entryResp
		}

		if detail.DamageQuantity.IsPositive() {
			partnerID := receiving.PartnerID
			rec, err := inventory.NewDamageRecord(product.ID, &partnerID, lotID, detail.DamageQuantity,
				detail.DamageReason, inventory.DamageSourceReceiving, receiving.ID, tx.actor)
			if err != nil {
				return err
			}
			if err := recordDamage(tx, rec); err != nil {
				return err
			}
			result.DamageRecord = &rec.ID
		}

		receiving.RefreshStatus(tx.now)
		if err := tx.repos.Receivings().Save(tx.ctx, receiving); err != nil {
			return err
		}
		result.Receiving = ToReceivingResponse(receiving)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validateIncomingSerials checks the serial numbers supplied for newly received units
func validateIncomingSerials(product *inventory.Product, quantity decimal.Decimal, serialNumbers []string) error {
	if !product.SerialTracked {
		if len(serialNumbers) > 0 {
			return inventory.NewInvalidQuantityError("serial count", decimal.NewFromInt(int64(len(serialNumbers))), "product is not serial tracked")
		}
		return nil
	}
	if !quantity.IsInteger() {
		return inventory.NewInvalidQuantityError("quantity", quantity, "serial-tracked quantities must be whole units")
	}
	if len(serialNumbers) > 0 && int64(len(serialNumbers)) != quantity.IntPart() {
		return inventory.NewInvalidQuantityError("serial count", decimal.NewFromInt(int64(len(serialNumbers))), "must equal quantity "+quantity.String())
	}
	seen := make(map[string]bool, len(serialNumbers))
	for _, sn := range serialNumbers {
		if seen[sn] {
			return &inventory.SerialNotAvailableError{SerialNumber: sn, Reason: "listed more than once"}
		}
		seen[sn] = true
	}
	return nil
}

// registerSerials creates one InStock serial per unit of a new lot, using the given
// numbers or generating <productCode>-<lotId>-<seq>
func registerSerials(tx *txContext, product *inventory.Product, lot *inventory.Lot, serialNumbers []string) ([]string, error) {
	count := int(lot.QuantityIn.IntPart())
	numbers := serialNumbers
	if len(numbers) == 0 {
		numbers = make([]string, 0, count)
		for seq := 1; seq <= count; seq++ {
			numbers = append(numbers, fmt.Sprintf("%s-%d-%d", product.Code, lot.ID, seq))
		}
	}

	existing, err := tx.repos.Serials().FindByNumbers(tx.ctx, numbers)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, &inventory.SerialNotAvailableError{SerialNumber: existing[0].SerialNumber, Reason: "already registered"}
	}

	serials := make([]*inventory.Serial, 0, len(numbers))
	registered := make([]string, 0, len(numbers))
	for _, sn := range numbers {
		serial, err := inventory.NewSerial(sn, lot)
		if err != nil {
			return nil, err
		}
		serials = append(serials, serial)
		registered = append(registered, serial.SerialNumber)
	}
	if err := tx.repos.Serials().CreateBatch(tx.ctx, serials); err != nil {
		return nil, err
	}
	return registered, nil
}

// recordDamage stores a damage record and its event in the current transaction
func recordDamage(tx *txContext, rec *inventory.DamageRecord) error {
	if err := tx.repos.Damages().Create(tx.ctx, rec); err != nil {
		return err
	}
	if err := tx.repos.Events().Record(tx.ctx, inventory.NewDamageRecordedEvent(rec)); err != nil {
		return fmt.Errorf("failed to record damage event: %w", err)
	}
	return nil
}

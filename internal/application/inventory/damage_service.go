package inventory

import (
	"context"
	"fmt"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// systemActor is recorded on changes made by event handlers
const systemActor = "system"

// DamageService reports issues on serials that already left stock
type DamageService struct {
	wf *workflow
}

// NewDamageService creates a new DamageService
func NewDamageService(scope TransactionScope, opts Options, metrics Metrics, logger *zap.Logger) *DamageService {
	return &DamageService{wf: newWorkflow(scope, opts, metrics, logger)}
}

// ReportSerialIssue marks a serial picked by a completed order as damaged or lost.
// Serials of open orders are rejected. A damaged serial is
// recorded for the damage subsystem. The ledger is not affected: the unit was
// already booked out when it was picked.
func (s *DamageService) ReportSerialIssue(ctx context.Context, serialNumber string, req ReportSerialIssueRequest, actor string) (*SerialResponse, error) {
	status := inventory.SerialStatus(req.Status)
	if status != inventory.SerialStatusDamaged && status != inventory.SerialStatusLost {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "Issue status must be DAMAGED or LOST")
	}

	var serial *inventory.Serial
	err := s.wf.run(ctx, "report_serial_issue", actor, func(tx *txContext) error {
		found, err := tx.repos.Serials().FindByNumber(tx.ctx, serialNumber)
		if err != nil {
			return err
		}
		if found.Status != inventory.SerialStatusPicked || found.PickingDetailID == nil {
			return &inventory.SerialNotAvailableError{SerialNumber: found.SerialNumber, Reason: "only picked serials can be reported, status is " + string(found.Status)}
		}
		// an open order can still be reversed, which needs the serial back in stock
		order, err := tx.repos.Pickings().FindByDetailIDForUpdate(tx.ctx, *found.PickingDetailID)
		if err != nil {
			return err
		}
		if order.Status != inventory.PickingStatusCompleted {
			return &inventory.InvalidStateError{Entity: "picking order", ID: order.ID, State: string(order.Status), Action: "report serial issue on"}
		}
		if _, err := tx.lockProducts(found.ProductID); err != nil {
			return err
		}
		// reload under the order and product locks
		serial, err = tx.repos.Serials().FindByNumber(tx.ctx, serialNumber)
		if err != nil {
			return err
		}
		if serial.Status != inventory.SerialStatusPicked || serial.PickingDetailID == nil || *serial.PickingDetailID != *found.PickingDetailID {
			return &inventory.SerialNotAvailableError{SerialNumber: serial.SerialNumber, Reason: "only picked serials can be reported, status is " + string(serial.Status)}
		}
		if err := serial.MarkIssue(status); err != nil {
			return err
		}
		if err := tx.repos.Serials().Save(tx.ctx, serial); err != nil {
			return err
		}
		if status != inventory.SerialStatusDamaged {
			return nil
		}

		lot, err := tx.repos.Lots().FindByID(tx.ctx, serial.LotID)
		if err != nil {
			return err
		}
		partnerID, err := lotPartner(tx, lot)
		if err != nil {
			return err
		}
		lotID := lot.ID
		rec, err := inventory.NewDamageRecord(serial.ProductID, partnerID, &lotID, decimal.NewFromInt(1),
			req.Reason, inventory.DamageSourceSerialReport, serial.ID, tx.actor)
		if err != nil {
			return err
		}
		rec.SerialNumber = serial.SerialNumber
		return recordDamage(tx, rec)
	})
	if err != nil {
		return nil, err
	}
	resp := ToSerialResponse(serial)
	return &resp, nil
}

// DamageAccumulator adds recorded damage to the pending quantity of its
// (product, partner) pair and requests a return order when the threshold is reached
type DamageAccumulator struct {
	wf *workflow
}

// NewDamageAccumulator creates a new DamageAccumulator
func NewDamageAccumulator(scope TransactionScope, opts Options, metrics Metrics, logger *zap.Logger) *DamageAccumulator {
	return &DamageAccumulator{wf: newWorkflow(scope, opts, metrics, logger)}
}

// EventTypes returns the event types this handler is interested in
func (h *DamageAccumulator) EventTypes() []string {
	return []string{inventory.EventTypeDamageRecorded}
}

// Handle processes a DamageRecordedEvent
func (h *DamageAccumulator) Handle(ctx context.Context, event shared.DomainEvent) error {
	damage, ok := event.(*inventory.DamageRecordedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeDamageRecorded, event.EventType())
	}
	if damage.PartnerID == nil {
		h.wf.logger.Debug("Damage without supplier is not accumulated",
			zap.Int64("damage_record_id", damage.DamageRecordID),
			zap.Int64("product_id", damage.ProductID))
		return nil
	}

	threshold := h.wf.opts.DamageThreshold
	return h.wf.run(ctx, "accumulate_damage", systemActor, func(tx *txContext) error {
		pending, err := tx.repos.Damages().LockPending(tx.ctx, damage.ProductID, *damage.PartnerID)
		if err != nil {
			return err
		}
		returnQty, triggered := pending.Accumulate(damage.Quantity, threshold)
		if err := tx.repos.Damages().SavePending(tx.ctx, pending); err != nil {
			return err
		}
		if !triggered {
			return nil
		}

		h.wf.logger.Info("Damage threshold reached, requesting return order",
			zap.Int64("product_id", pending.ProductID),
			zap.Int64("partner_id", pending.PartnerID),
			zap.String("quantity", returnQty.String()),
			zap.String("threshold", threshold.String()))
		return tx.repos.Events().Record(tx.ctx, inventory.NewReturnOrderRequestedEvent(pending, returnQty, threshold))
	})
}

// ReturnOrderCreator opens a return-to-supplier picking order for each return request
type ReturnOrderCreator struct {
	wf *workflow
}

// NewReturnOrderCreator creates a new ReturnOrderCreator
func NewReturnOrderCreator(scope TransactionScope, opts Options, metrics Metrics, logger *zap.Logger) *ReturnOrderCreator {
	return &ReturnOrderCreator{wf: newWorkflow(scope, opts, metrics, logger)}
}

// EventTypes returns the event types this handler is interested in
func (h *ReturnOrderCreator) EventTypes() []string {
	return []string{inventory.EventTypeReturnOrderRequested}
}

// Handle processes a ReturnOrderRequestedEvent
func (h *ReturnOrderCreator) Handle(ctx context.Context, event shared.DomainEvent) error {
	req, ok := event.(*inventory.ReturnOrderRequestedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeReturnOrderRequested, event.EventType())
	}

	partnerID := req.PartnerID
	note := fmt.Sprintf("Return of %s damaged units of product %d", req.Quantity.String(), req.ProductID)
	order, err := inventory.NewPickingOrder(&partnerID, inventory.PickingPurposeReturnToSupplier, note, systemActor)
	if err != nil {
		return err
	}
	err = h.wf.run(ctx, "create_return_order", systemActor, func(tx *txContext) error {
		return tx.repos.Pickings().Create(tx.ctx, order)
	})
	if err != nil {
		return err
	}
	h.wf.logger.Info("Return order created",
		zap.Int64("picking_order_id", order.ID),
		zap.Int64("partner_id", partnerID),
		zap.Int64("product_id", req.ProductID))
	return nil
}

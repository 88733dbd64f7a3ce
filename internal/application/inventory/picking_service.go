package inventory

import (
	"context"
	"fmt"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PickingService fulfills outbound requests through FIFO allocation
type PickingService struct {
	wf *workflow
}

// NewPickingService creates a new PickingService
func NewPickingService(scope TransactionScope, opts Options, metrics Metrics, logger *zap.Logger) *PickingService {
	return &PickingService{wf: newWorkflow(scope, opts, metrics, logger)}
}

// Create creates a pending picking order
func (s *PickingService) Create(ctx context.Context, req CreatePickingOrderRequest, actor string) (*PickingOrderResponse, error) {
	order, err := inventory.NewPickingOrder(req.PartnerID, inventory.PickingPurpose(req.Purpose), req.Note, actor)
	if err != nil {
		return nil, err
	}
	err = s.wf.run(ctx, "create_picking_order", actor, func(tx *txContext) error {
		return tx.repos.Pickings().Create(tx.ctx, order)
	})
	if err != nil {
		return nil, err
	}
	resp := ToPickingOrderResponse(order)
	return &resp, nil
}

// GetByID returns a picking order with details, allocations and bound serials
func (s *PickingService) GetByID(ctx context.Context, id int64) (*PickingOrderResponse, error) {
	var resp PickingOrderResponse
	err := s.wf.scope.Snapshot(ctx, func(repos TransactionalRepositories) error {
		order, err := repos.Pickings().FindByID(ctx, id)
		if err != nil {
			return err
		}
		resp = ToPickingOrderResponse(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddItem allocates the requested quantity oldest lot first and records one OUT
// entry per consumed lot. Either everything is applied or nothing is.
func (s *PickingService) AddItem(ctx context.Context, orderID int64, req AddPickingItemRequest, actor string) (*PickingDetailResponse, error) {
	var resp PickingDetailResponse
	err := s.wf.run(ctx, "add_picking_item", actor, func(tx *txContext) error {
		order, err := tx.repos.Pickings().FindByIDForUpdate(tx.ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.EnsureEditable("add item to"); err != nil {
			return err
		}
		products, err := tx.lockProducts(req.ProductID)
		if err != nil {
			return err
		}

		result, err := s.allocate(tx, order, products[req.ProductID], req.Quantity, req.SerialNumbers)
		if err != nil {
			return err
		}
		detail := inventory.NewPickingDetail(order.ID, result.plan)
		result.attach(detail)
		if err := tx.repos.Pickings().CreateDetail(tx.ctx, detail); err != nil {
			return err
		}
		if err := pickSerials(tx, detail, result.serials); err != nil {
			return err
		}
		resp = ToPickingDetailResponse(detail)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateItem reverses the detail's current allocation and allocates the new quantity
func (s *PickingService) UpdateItem(ctx context.Context, orderID, detailID int64, req UpdatePickingItemRequest, actor string) (*PickingDetailResponse, error) {
	var resp PickingDetailResponse
	err := s.wf.run(ctx, "update_picking_item", actor, func(tx *txContext) error {
		order, err := tx.repos.Pickings().FindByIDForUpdate(tx.ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.EnsureEditable("update item of"); err != nil {
			return err
		}
		detail, err := order.Detail(detailID)
		if err != nil {
			return err
		}
		products, err := tx.lockProducts(detail.ProductID)
		if err != nil {
			return err
		}

		if err := reverseDetail(tx, order, detail); err != nil {
			return err
		}
		result, err := s.allocate(tx, order, products[detail.ProductID], req.Quantity, req.SerialNumbers)
		if err != nil {
			return err
		}
		detail.ApplyPlan(result.plan)
		result.attach(detail)
		if err := tx.repos.Pickings().UpdateDetail(tx.ctx, detail); err != nil {
			return err
		}
		if err := pickSerials(tx, detail, result.serials); err != nil {
			return err
		}
		resp = ToPickingDetailResponse(detail)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteItem reverses a detail's allocation and removes it
func (s *PickingService) DeleteItem(ctx context.Context, orderID, detailID int64, actor string) error {
	return s.wf.run(ctx, "delete_picking_item", actor, func(tx *txContext) error {
		order, err := tx.repos.Pickings().FindByIDForUpdate(tx.ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.EnsureEditable("delete item of"); err != nil {
			return err
		}
		detail, err := order.Detail(detailID)
		if err != nil {
			return err
		}
		if _, err := tx.lockProducts(detail.ProductID); err != nil {
			return err
		}
		if err := reverseDetail(tx, order, detail); err != nil {
			return err
		}
		return tx.repos.Pickings().DeleteDetail(tx.ctx, detail.ID)
	})
}

// Complete makes the order terminal; its ledger entries become immutable history
func (s *PickingService) Complete(ctx context.Context, orderID int64, actor string) (*PickingOrderResponse, error) {
	var order *inventory.PickingOrder
	err := s.wf.run(ctx, "complete_picking_order", actor, func(tx *txContext) error {
		var err error
		order, err = tx.repos.Pickings().FindByIDForUpdate(tx.ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.Complete(tx.now); err != nil {
			return err
		}
		return tx.repos.Pickings().Save(tx.ctx, order)
	})
	if err != nil {
		return nil, err
	}
	resp := ToPickingOrderResponse(order)
	return &resp, nil
}

// Cancel reverses every detail of a pending order and makes it terminal
func (s *PickingService) Cancel(ctx context.Context, orderID int64, actor string) (*PickingOrderResponse, error) {
	var order *inventory.PickingOrder
	err := s.wf.run(ctx, "cancel_picking_order", actor, func(tx *txContext) error {
		var err error
		order, err = tx.repos.Pickings().FindByIDForUpdate(tx.ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.EnsureEditable("cancel"); err != nil {
			return err
		}
		productIDs := make([]int64, 0, len(order.Details))
		for _, d := range order.Details {
			productIDs = append(productIDs, d.ProductID)
		}
		if _, err := tx.lockProducts(productIDs...); err != nil {
			return err
		}
		for i := range order.Details {
			if err := reverseDetail(tx, order, &order.Details[i]); err != nil {
				return err
			}
			order.Details[i].SerialNumbers = nil
		}
		if err := order.Cancel(tx.now); err != nil {
			return err
		}
		return tx.repos.Pickings().Save(tx.ctx, order)
	})
	if err != nil {
		return nil, err
	}
	resp := ToPickingOrderResponse(order)
	return &resp, nil
}

// allocation is the applied outcome of one allocation inside a transaction
type allocation struct {
	plan           *inventory.AllocationPlan
	ledgerEntryIDs []int64
	serials        []*inventory.Serial
}

// attach copies the OUT entry ids onto the detail's allocation lines
func (a *allocation) attach(detail *inventory.PickingDetail) {
	for i := range detail.Allocations {
		detail.Allocations[i].LedgerEntryID = a.ledgerEntryIDs[i]
	}
}

func (s *PickingService) allocate(tx *txContext, order *inventory.PickingOrder, product *inventory.Product, quantity decimal.Decimal, serialNumbers []string) (*allocation, error) {
	if product.SerialTracked && !quantity.IsInteger() {
		return nil, inventory.NewInvalidQuantityError("quantity", quantity, "serial-tracked quantities must be whole units")
	}
	if !product.SerialTracked && len(serialNumbers) > 0 {
		return nil, inventory.NewInvalidQuantityError("serial count", decimal.NewFromInt(int64(len(serialNumbers))), "product is not serial tracked")
	}

	lots, err := tx.repos.Lots().FindAvailableForUpdate(tx.ctx, product.ID)
	if err != nil {
		return nil, err
	}
	plan, err := inventory.PlanAllocation(product.ID, quantity, lots)
	if err != nil {
		return nil, err
	}

	result := &allocation{plan: plan, ledgerEntryIDs: make([]int64, 0, len(plan.Lines))}
	if product.SerialTracked {
		if len(serialNumbers) > 0 {
			result.serials, err = explicitSerials(tx, plan, serialNumbers)
		} else {
			result.serials, err = autoSelectSerials(tx, plan)
		}
		if err != nil {
			return nil, err
		}
	}

	byID := make(map[int64]*inventory.Lot, len(lots))
	for _, lot := range lots {
		byID[lot.ID] = lot
	}
	if err := inventory.ApplyAllocation(plan, byID); err != nil {
		return nil, err
	}
	for _, line := range plan.Lines {
		if err := tx.saveLots(byID[line.LotID]); err != nil {
			return nil, err
		}
	}

	for _, line := range plan.Lines {
		lotID := line.LotID
		entry, err := tx.ledger.post(tx.ctx, inventory.Posting{
			ProductID:      product.ID,
			LotID:          &lotID,
			Type:           inventory.TransactionTypeOut,
			QuantityChange: line.Quantity.Neg(),
			UnitPrice:      line.UnitPrice,
			Reference:      inventory.PickingReference(order.ID),
			UserID:         tx.actor,
		}, tx.now)
		if err != nil {
			return nil, err
		}
		result.ledgerEntryIDs = append(result.ledgerEntryIDs, entry.ID)
	}

	s.wf.metrics.RecordAllocation(tx.ctx, product.ID, quantity, len(plan.Lines))
	return result, nil
}

// explicitSerials validates requested serials against the FIFO plan: each must be
// InStock, belong to the product, and the count per lot must match the plan.
func explicitSerials(tx *txContext, plan *inventory.AllocationPlan, serialNumbers []string) ([]*inventory.Serial, error) {
	if int64(len(serialNumbers)) != plan.Requested.IntPart() {
		return nil, inventory.NewInvalidQuantityError("serial count", decimal.NewFromInt(int64(len(serialNumbers))), "must equal quantity "+plan.Requested.String())
	}

	found, err := tx.repos.Serials().FindByNumbers(tx.ctx, serialNumbers)
	if err != nil {
		return nil, err
	}
	byNumber := make(map[string]*inventory.Serial, len(found))
	for _, s := range found {
		byNumber[s.SerialNumber] = s
	}

	perLot := make(map[int64][]*inventory.Serial)
	seen := make(map[string]bool, len(serialNumbers))
	ordered := make([]*inventory.Serial, 0, len(serialNumbers))
	for _, sn := range serialNumbers {
		if seen[sn] {
			return nil, &inventory.SerialNotAvailableError{SerialNumber: sn, Reason: "listed more than once"}
		}
		seen[sn] = true

		serial, ok := byNumber[sn]
		switch {
		case !ok:
			return nil, &inventory.SerialNotAvailableError{SerialNumber: sn, Reason: "not registered"}
		case serial.ProductID != plan.ProductID:
			return nil, &inventory.SerialNotAvailableError{SerialNumber: sn, Reason: "belongs to another product"}
		case serial.Status != inventory.SerialStatusInStock:
			return nil, &inventory.SerialNotAvailableError{SerialNumber: sn, Reason: "status is " + string(serial.Status)}
		}
		perLot[serial.LotID] = append(perLot[serial.LotID], serial)
		ordered = append(ordered, serial)
	}

	for lotID, serials := range perLot {
		planned := plan.QuantityForLot(lotID)
		if decimal.NewFromInt(int64(len(serials))).GreaterThan(planned) {
			return nil, &inventory.SerialNotAvailableError{
				SerialNumber: serials[0].SerialNumber,
				Reason:       fmt.Sprintf("lot %d supplies %s units to this request", lotID, planned.String()),
			}
		}
	}
	return ordered, nil
}

// autoSelectSerials picks InStock serials from exactly the lots the plan consumes
func autoSelectSerials(tx *txContext, plan *inventory.AllocationPlan) ([]*inventory.Serial, error) {
	selected := make([]*inventory.Serial, 0, plan.Requested.IntPart())
	for _, line := range plan.Lines {
		need := int(line.Quantity.IntPart())
		serials, err := tx.repos.Serials().FindInStockByLot(tx.ctx, line.LotID, need)
		if err != nil {
			return nil, err
		}
		if len(serials) < need {
			return nil, &inventory.ConsistencyViolationError{
				ProductID: plan.ProductID,
				Check:     fmt.Sprintf("in-stock serials of lot %d", line.LotID),
				Expected:  line.Quantity,
				Actual:    decimal.NewFromInt(int64(len(serials))),
			}
		}
		selected = append(selected, serials...)
	}
	return selected, nil
}

// pickSerials binds the selected serials to a stored detail
func pickSerials(tx *txContext, detail *inventory.PickingDetail, serials []*inventory.Serial) error {
	detail.SerialNumbers = make([]string, 0, len(serials))
	for _, serial := range serials {
		if err := serial.Pick(detail.ID, tx.now); err != nil {
			return err
		}
		if err := tx.repos.Serials().Save(tx.ctx, serial); err != nil {
			return err
		}
		detail.SerialNumbers = append(detail.SerialNumbers, serial.SerialNumber)
	}
	return nil
}

// reverseDetail restores exactly the lot quantities a detail consumed, records
// a compensating OUT entry for each original one and releases its serials
func reverseDetail(tx *txContext, order *inventory.PickingOrder, detail *inventory.PickingDetail) error {
	lotIDs := make([]int64, 0, len(detail.Allocations))
	for _, a := range detail.Allocations {
		lotIDs = append(lotIDs, a.LotID)
	}
	lots, err := tx.repos.Lots().FindByIDsForUpdate(tx.ctx, lotIDs)
	if err != nil {
		return err
	}
	byID := make(map[int64]*inventory.Lot, len(lots))
	for _, lot := range lots {
		byID[lot.ID] = lot
	}

	for _, a := range detail.Allocations {
		lot, ok := byID[a.LotID]
		if !ok {
			return &inventory.ConsistencyViolationError{ProductID: detail.ProductID, Check: fmt.Sprintf("allocated lot %d missing", a.LotID), Expected: a.Quantity, Actual: decimal.Zero}
		}
		if err := lot.Restore(a.Quantity); err != nil {
			return err
		}
		lotID := a.LotID
		original := a.LedgerEntryID
		if _, err := tx.ledger.post(tx.ctx, inventory.Posting{
			ProductID:      detail.ProductID,
			LotID:          &lotID,
			Type:           inventory.TransactionTypeOut,
			QuantityChange: a.Quantity,
			UnitPrice:      a.UnitPrice,
			Reference:      inventory.PickingReference(order.ID),
			ReversalOf:     &original,
			UserID:         tx.actor,
			Note:           fmt.Sprintf("reversal of picking detail %d", detail.ID),
		}, tx.now); err != nil {
			return err
		}
	}
	if err := tx.saveLots(lots...); err != nil {
		return err
	}

	serials, err := tx.repos.Serials().FindByPickingDetail(tx.ctx, detail.ID)
	if err != nil {
		return err
	}
	for _, serial := range serials {
		if err := serial.Release(); err != nil {
			return err
		}
		if err := tx.repos.Serials().Save(tx.ctx, serial); err != nil {
			return err
		}
	}
	return nil
}

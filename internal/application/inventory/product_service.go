package inventory

import (
	"context"

	"github.com/erp/warehouse/internal/domain/inventory"
	"go.uber.org/zap"
)

// ProductService keeps the local product references in sync with the catalog
type ProductService struct {
	wf *workflow
}

// NewProductService creates a new ProductService
func NewProductService(scope TransactionScope, opts Options, metrics Metrics, logger *zap.Logger) *ProductService {
	return &ProductService{wf: newWorkflow(scope, opts, metrics, logger)}
}

// Upsert creates or updates the reference row of a catalog product.
// The serial tracking mode is frozen once stock was received for the product.
func (s *ProductService) Upsert(ctx context.Context, id int64, req UpsertProductRequest) (*ProductResponse, error) {
	incoming, err := inventory.NewProduct(id, req.Code, req.Name, req.Category, req.Unit, req.WarrantyMonths, req.SerialTracked)
	if err != nil {
		return nil, err
	}

	var result *inventory.Product
	err = s.wf.run(ctx, "upsert_product", "", func(tx *txContext) error {
		locked, err := tx.repos.Products().LockByIDs(tx.ctx, []int64{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			result = incoming
			return tx.repos.Products().Save(tx.ctx, incoming)
		}

		existing := locked[0]
		hasLots, err := tx.repos.Lots().ExistsForProduct(tx.ctx, id)
		if err != nil {
			return err
		}
		if err := existing.ApplyCatalogUpdate(incoming, hasLots); err != nil {
			return err
		}
		result = existing
		return tx.repos.Products().Save(tx.ctx, existing)
	})
	if err != nil {
		return nil, err
	}

	resp := ToProductResponse(result)
	return &resp, nil
}

// GetByID returns a product reference
func (s *ProductService) GetByID(ctx context.Context, id int64) (*ProductResponse, error) {
	var resp ProductResponse
	err := s.wf.scope.Snapshot(ctx, func(repos TransactionalRepositories) error {
		product, err := repos.Products().FindByID(ctx, id)
		if err != nil {
			return err
		}
		resp = ToProductResponse(product)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

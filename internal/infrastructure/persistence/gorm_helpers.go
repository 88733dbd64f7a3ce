package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/warehouse/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds a row lock; the sqlite dialect drops the clause
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// translateError maps gorm sentinel errors onto domain errors
func translateError(err error, entity string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NewDomainError(shared.ErrNotFound.Code, fmt.Sprintf("%s %v not found", entity, id))
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, fmt.Sprintf("%s %v was written concurrently", entity, id))
	}
	return fmt.Errorf("%s %v: %w", entity, id, err)
}

// staleVersion is returned when an optimistic update matched no row
func staleVersion(entity string, id int64) error {
	return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, fmt.Sprintf("%s %d was modified by another transaction", entity, id))
}

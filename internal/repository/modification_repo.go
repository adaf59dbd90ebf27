package repository

import (
	"context"
	"errors"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModificationRepository is append-only by construction: there is no
// update or delete operation, matching the invariant that the
// modification log is the immutable audit trail.
type ModificationRepository interface {
	Append(ctx context.Context, mod *model.InvoiceModification) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceModification, error)
	LatestForInvoice(ctx context.Context, invoiceID uuid.UUID) (*model.InvoiceModification, error)
}

type modificationRepository struct {
	db *gorm.DB
}

func NewModificationRepository(db *gorm.DB) ModificationRepository {
	return &modificationRepository{db: db}
}

func (r *modificationRepository) Append(ctx context.Context, mod *model.InvoiceModification) error {
	return GetDB(ctx, r.db).Create(mod).Error
}

func (r *modificationRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceModification, error) {
	var mods []model.InvoiceModification
	if err := GetDB(ctx, r.db).
		Where("invoice_id = ?", invoiceID).
		Order("created_at asc").
		Find(&mods).Error; err != nil {
		return nil, err
	}
	return mods, nil
}

func (r *modificationRepository) LatestForInvoice(ctx context.Context, invoiceID uuid.UUID) (*model.InvoiceModification, error) {
	var mod model.InvoiceModification
	err := GetDB(ctx, r.db).
		Where("invoice_id = ?", invoiceID).
		Order("created_at desc").
		First(&mod).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mod, nil
}

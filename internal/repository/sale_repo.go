package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SaleRepository interface {
	// Create persists the sale together with its items. Sales are
	// immutable after this point.
	Create(ctx context.Context, sale *model.Sale) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindItem(ctx context.Context, saleID, itemID uuid.UUID) (*model.SaleItem, error)
	List(ctx context.Context, shopID uuid.UUID, page, limit int) ([]model.Sale, int64, error)
	// IncrementReturned bumps returned_quantity guarded against
	// exceeding the original quantity. Returns false when the guard
	// fails, which closes the race window between validation and commit.
	IncrementReturned(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
}

type saleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Create(ctx context.Context, sale *model.Sale) error {
	return GetDB(ctx, r.db).Create(sale).Error
}

func (r *saleRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	if err := GetDB(ctx, r.db).Preload("Items").First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepository) FindItem(ctx context.Context, saleID, itemID uuid.UUID) (*model.SaleItem, error) {
	var item model.SaleItem
	if err := GetDB(ctx, r.db).Where("sale_id = ?", saleID).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *saleRepository) List(ctx context.Context, shopID uuid.UUID, page, limit int) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Sale{}).Where("shop_id = ?", shopID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Items").
		Where("shop_id = ?", shopID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&sales).Error; err != nil {
		return nil, 0, err
	}

	return sales, total, nil
}

func (r *saleRepository) IncrementReturned(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.SaleItem{}).
		Where("id = ? AND returned_quantity + ? <= quantity", itemID, qty).
		Update("returned_quantity", gorm.Expr("returned_quantity + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

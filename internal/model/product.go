package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents an item a shop sells. CurrentStock is decremented
// at checkout only; returned units are derived from SaleItem rows, not
// written back here (projections apply the effective-quantity rule).
type Product struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ShopID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_products_shop_sku" json:"shop_id"`
	SKU          string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_products_shop_sku" json:"sku"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	CurrentStock int             `gorm:"type:int;default:0;not null" json:"current_stock"`
	Price        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

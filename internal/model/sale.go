package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sale is the immutable record of a completed transaction. TotalAmount
// and the line items are frozen at creation; every later adjustment is
// derived state on the Invoice and its modification log, never a write
// back to this row.
type Sale struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ShopID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"shop_id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	CustomerName  string          `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone string          `gorm:"type:varchar(20)" json:"customer_phone"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	Items         []SaleItem      `gorm:"foreignKey:SaleID" json:"items"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SaleItem is one line of a Sale. ReturnedQuantity is the only mutable
// column: it grows monotonically and never exceeds Quantity.
type SaleItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SaleID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName      string          `gorm:"type:varchar(255);not null" json:"product_name"`
	Quantity         int             `gorm:"type:int;not null" json:"quantity"`
	PriceAtSale      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"price_at_sale"`
	ReturnedQuantity int             `gorm:"type:int;not null;default:0" json:"returned_quantity"`
}

func (i *SaleItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// RemainingQuantity returns the units still eligible for return.
func (i SaleItem) RemainingQuantity() int {
	return i.Quantity - i.ReturnedQuantity
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ModificationType enum constants
const (
	ModificationPrice  = "price"
	ModificationReturn = "return"
	ModificationOther  = "other"
)

// Invoice is the customer-facing projection of exactly one Sale.
// Created once, never deleted. Only IsModified, NewTotalAmount,
// ModificationReason and UpdatedAt are ever mutated, and only by the
// reconciliation service — SaleID and InvoiceNumber are frozen.
type Invoice struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ShopID             uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_shop_number" json:"shop_id"`
	SaleID             uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"sale_id"`
	InvoiceNumber      string           `gorm:"type:varchar(30);not null;uniqueIndex:idx_invoices_shop_number" json:"invoice_number"`
	CustomerName       string           `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone      string           `gorm:"type:varchar(20)" json:"customer_phone"`
	IsModified         bool             `gorm:"not null;default:false" json:"is_modified"`
	NewTotalAmount     *decimal.Decimal `gorm:"type:decimal(18,4)" json:"new_total_amount"`
	ModificationReason *string          `gorm:"type:text" json:"modification_reason"`
	CreatedAt          time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// EffectiveAmount applies the display-amount rule: the last committed
// modification's amount when the invoice has been modified, otherwise
// the owning sale's original total.
func (i Invoice) EffectiveAmount(saleTotal decimal.Decimal) decimal.Decimal {
	if i.IsModified && i.NewTotalAmount != nil {
		return *i.NewTotalAmount
	}
	return saleTotal
}

// ReturnedItem is the per-line breakdown recorded on a return
// modification: what was returned this event and what remains.
type ReturnedItem struct {
	ItemID      uuid.UUID       `json:"item_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	Remaining   int             `json:"remaining"`
	PriceAtSale decimal.Decimal `json:"price_at_sale"`
}

// InvoiceModification is an append-only audit entry. Rows are never
// updated or deleted; ordered by CreatedAt they are the full audit
// trail, and the latest NewAmount is always mirrored on the Invoice.
type InvoiceModification struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	ShopID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"shop_id"`
	ModificationType string          `gorm:"type:varchar(20);not null" json:"modification_type"` // price, return, other
	NewAmount        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"new_amount"`
	Reason           string          `gorm:"type:text;not null" json:"reason"`
	ModifiedBy       uuid.UUID       `gorm:"type:uuid;not null" json:"modified_by"`
	ReturnedItems    []ReturnedItem  `gorm:"serializer:json" json:"returned_items,omitempty"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
}

func (m *InvoiceModification) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// InvoiceSequence backs server-side invoice numbering: one counter row
// per shop, advanced atomically inside the invoice-creation transaction.
type InvoiceSequence struct {
	ShopID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"shop_id"`
	LastValue int64     `gorm:"not null;default:0" json:"last_value"`
}

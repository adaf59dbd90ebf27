package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpenseCategory enum constants
const (
	ExpenseRent      = "RENT"
	ExpenseSalary    = "SALARY"
	ExpenseSupplies  = "SUPPLIES"
	ExpenseUtilities = "UTILITIES"
	ExpenseOther     = "OTHER"
)

// Expense represents a shop-scoped cost entry feeding the financial summary
type Expense struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ShopID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"shop_id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null" json:"user_id"`
	Category    string          `gorm:"type:varchar(30);not null;default:'OTHER'" json:"category"`
	Description string          `gorm:"type:text" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	IncurredAt  time.Time       `gorm:"not null;index" json:"incurred_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shop is the tenant boundary. Every Sale, Invoice, InvoiceModification,
// Product and Expense row carries a ShopID, and the services verify the
// acting principal's shop against the target row before any mutation.
type Shop struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	Phone     string    `gorm:"type:varchar(20)" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Shop) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Actor is the authenticated principal passed explicitly into every
// service call. There is no ambient session state below the middleware.
type Actor struct {
	UserID uuid.UUID
	ShopID uuid.UUID
	Role   string
}

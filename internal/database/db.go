package database

import (
	"log"

	"backend/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}

// Migrate creates the ledger relations. Shared with the test harness so
// both run the exact same schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Shop{},
		&model.User{},
		&model.Product{},
		&model.Sale{},
		&model.SaleItem{},
		&model.Invoice{},
		&model.InvoiceModification{},
		&model.InvoiceSequence{},
		&model.Expense{},
		&model.AuditLog{},
	)
}

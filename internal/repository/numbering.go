package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NumberSource hands out per-shop invoice numbers. Uniqueness is
// enforced server-side (atomic counter upsert plus the unique index on
// (shop_id, invoice_number)), never by a check-then-insert from the
// client side.
type NumberSource interface {
	Next(ctx context.Context, shopID uuid.UUID) (string, error)
}

type sequenceNumberSource struct {
	db *gorm.DB
}

func NewSequenceNumberSource(db *gorm.DB) NumberSource {
	return &sequenceNumberSource{db: db}
}

// Next claims the next value in a single upsert so that overlapping
// checkouts in the same shop cannot observe the same counter. Runs on
// the transaction in ctx when one is active, so a failed invoice insert
// also rolls the claimed number back.
func (s *sequenceNumberSource) Next(ctx context.Context, shopID uuid.UUID) (string, error) {
	var lastValue int64
	err := GetDB(ctx, s.db).Raw(`
		INSERT INTO invoice_sequences (shop_id, last_value) VALUES (?, 1)
		ON CONFLICT (shop_id) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`, shopID).
		Scan(&lastValue).Error
	if err != nil {
		return "", fmt.Errorf("failed to advance invoice sequence: %w", err)
	}

	return fmt.Sprintf("INV-%06d", lastValue), nil
}

package projection

import (
	"context"
	"time"

	"backend/internal/pubsub"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockLevel reports the sellable quantity for a product. Returned
// units are added back on top of the live counter so the view stays
// consistent with the reconciliation ledger.
type StockLevel struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	InStock     int    `json:"in_stock"`
	LowStock    bool   `json:"low_stock"`
}

func newStockSummary(db *gorm.DB, broker *pubsub.Broker) *Projection[[]StockLevel] {
	deps := []string{pubsub.EntityProducts, pubsub.EntityInvoices}
	return New(broker, "stock_summary", time.Minute, deps, func(ctx context.Context, shopID uuid.UUID) ([]StockLevel, error) {
		var rows []StockLevel
		err := db.WithContext(ctx).Table("products").
			Select("products.id as product_id, products.name as product_name, products.sku as sku, "+
				"products.current_stock + COALESCE(SUM(sale_items.returned_quantity), 0) as in_stock").
			Joins("LEFT JOIN sale_items ON sale_items.product_id = products.id").
			Where("products.shop_id = ? AND products.deleted_at IS NULL", shopID).
			Group("products.id, products.name, products.sku, products.current_stock").
			Order("products.name ASC").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].LowStock = rows[i].InStock <= lowStockThreshold
		}
		return rows, nil
	})
}

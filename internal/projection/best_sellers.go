package projection

import (
	"context"
	"time"

	"backend/internal/pubsub"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const bestSellersLimit = 5

// BestSeller ranks a product by effective units sold — original
// quantity minus returned units, valued at the frozen sale price.
type BestSeller struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitsSold   int     `json:"units_sold"`
	Revenue     float64 `json:"revenue"`
}

func newBestSellers(db *gorm.DB, broker *pubsub.Broker) *Projection[[]BestSeller] {
	deps := []string{pubsub.EntitySales, pubsub.EntityInvoices, pubsub.EntityProducts}
	return New(broker, "best_sellers", time.Minute, deps, func(ctx context.Context, shopID uuid.UUID) ([]BestSeller, error) {
		var rows []BestSeller
		err := db.WithContext(ctx).Table("sale_items").
			Select("sale_items.product_id as product_id, sale_items.product_name as product_name, "+
				"SUM(sale_items.quantity - sale_items.returned_quantity) as units_sold, "+
				"SUM((sale_items.quantity - sale_items.returned_quantity) * sale_items.price_at_sale) as revenue").
			Joins("JOIN sales ON sales.id = sale_items.sale_id").
			Where("sales.shop_id = ?", shopID).
			Group("sale_items.product_id, sale_items.product_name").
			Order("units_sold DESC").
			Limit(bestSellersLimit).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		return rows, nil
	})
}

package projection

import (
	"context"
	"time"

	"backend/internal/pubsub"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const recentOrdersLimit = 10

// RecentOrder is one row of the recent-orders widget, valued at the
// effective display amount.
type RecentOrder struct {
	SaleID        string    `json:"sale_id"`
	InvoiceNumber string    `json:"invoice_number"`
	CustomerName  string    `json:"customer_name"`
	Amount        float64   `json:"amount"`
	IsModified    bool      `json:"is_modified"`
	CreatedAt     time.Time `json:"created_at"`
}

func newRecentOrders(db *gorm.DB, broker *pubsub.Broker) *Projection[[]RecentOrder] {
	deps := []string{pubsub.EntitySales, pubsub.EntityInvoices}
	return New(broker, "recent_orders", 30*time.Second, deps, func(ctx context.Context, shopID uuid.UUID) ([]RecentOrder, error) {
		var rows []struct {
			SaleID        string
			InvoiceNumber string
			CustomerName  string
			Amount        float64
			IsModified    bool
			CreatedAt     time.Time
		}
		err := db.WithContext(ctx).Table("sales").
			Select("sales.id as sale_id, COALESCE(invoices.invoice_number, '') as invoice_number, sales.customer_name, "+
				effectiveAmountExpr+" as amount, COALESCE(invoices.is_modified, ?) as is_modified, sales.created_at", false).
			Joins("LEFT JOIN invoices ON invoices.sale_id = sales.id").
			Where("sales.shop_id = ?", shopID).
			Order("sales.created_at DESC").
			Limit(recentOrdersLimit).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}

		orders := make([]RecentOrder, 0, len(rows))
		for _, r := range rows {
			orders = append(orders, RecentOrder(r))
		}
		return orders, nil
	})
}

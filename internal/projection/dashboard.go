package projection

import (
	"context"
	"time"

	"backend/internal/model"
	"backend/internal/pubsub"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const lowStockThreshold = 5

// DashboardStats is the landing-page summary for one shop.
type DashboardStats struct {
	TodaySalesCount int     `json:"today_sales_count"`
	TodayRevenue    float64 `json:"today_revenue"`
	LowStockCount   int64   `json:"low_stock_count"`
}

func newDashboard(db *gorm.DB, broker *pubsub.Broker) *Projection[DashboardStats] {
	deps := []string{pubsub.EntitySales, pubsub.EntityInvoices, pubsub.EntityProducts}
	return New(broker, "dashboard", time.Minute, deps, func(ctx context.Context, shopID uuid.UUID) (DashboardStats, error) {
		now := time.Now()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

		var row struct {
			Count   int
			Revenue float64
		}
		err := db.WithContext(ctx).Table("sales").
			Select("COUNT(DISTINCT sales.id) as count, COALESCE(SUM("+effectiveAmountExpr+"), 0) as revenue").
			Joins("LEFT JOIN invoices ON invoices.sale_id = sales.id").
			Where("sales.shop_id = ? AND sales.created_at >= ?", shopID, startOfDay).
			Scan(&row).Error
		if err != nil {
			return DashboardStats{}, err
		}

		var lowStock int64
		err = db.WithContext(ctx).Model(&model.Product{}).
			Where("shop_id = ? AND current_stock <= ?", shopID, lowStockThreshold).
			Count(&lowStock).Error
		if err != nil {
			return DashboardStats{}, err
		}

		return DashboardStats{
			TodaySalesCount: row.Count,
			TodayRevenue:    row.Revenue,
			LowStockCount:   lowStock,
		}, nil
	})
}

package projection

import (
	"backend/internal/pubsub"

	"gorm.io/gorm"
)

// Views bundles every registered projection. Each one declares its own
// fanout dependencies and staleness window.
type Views struct {
	Dashboard    *Projection[DashboardStats]
	RecentOrders *Projection[[]RecentOrder]
	BestSellers  *Projection[[]BestSeller]
	Stock        *Projection[[]StockLevel]
	Financial    *Projection[FinancialSummary]
}

func NewViews(db *gorm.DB, broker *pubsub.Broker) *Views {
	return &Views{
		Dashboard:    newDashboard(db, broker),
		RecentOrders: newRecentOrders(db, broker),
		BestSellers:  newBestSellers(db, broker),
		Stock:        newStockSummary(db, broker),
		Financial:    newFinancialSummary(db, broker),
	}
}

func (v *Views) Close() {
	v.Dashboard.Close()
	v.RecentOrders.Close()
	v.BestSellers.Close()
	v.Stock.Close()
	v.Financial.Close()
}

// effectiveAmountExpr applies the display-amount rule in SQL. Sales
// whose invoice is still pending fall through to the original total.
const effectiveAmountExpr = "CASE WHEN invoices.is_modified THEN invoices.new_total_amount ELSE sales.total_amount END"

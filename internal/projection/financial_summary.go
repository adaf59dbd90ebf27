package projection

import (
	"context"
	"time"

	"backend/internal/pubsub"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FinancialSummary is a rolling 30 day profit view. Revenue uses the
// effective invoice amount so reconciled sales are reflected.
type FinancialSummary struct {
	Revenue      float64 `json:"revenue"`
	Expenses     float64 `json:"expenses"`
	NetProfit    float64 `json:"net_profit"`
	ExpenseCount int64   `json:"expense_count"`
	SaleCount    int64   `json:"sale_count"`
}

func newFinancialSummary(db *gorm.DB, broker *pubsub.Broker) *Projection[FinancialSummary] {
	deps := []string{pubsub.EntitySales, pubsub.EntityInvoices, pubsub.EntityExpenses}
	return New(broker, "financial_summary", time.Minute, deps, func(ctx context.Context, shopID uuid.UUID) (FinancialSummary, error) {
		var out FinancialSummary
		since := time.Now().AddDate(0, 0, -30)

		type revenueRow struct {
			Revenue   float64
			SaleCount int64
		}
		var rev revenueRow
		err := db.WithContext(ctx).Table("sales").
			Select("COALESCE(SUM("+effectiveAmountExpr+"), 0) as revenue, COUNT(sales.id) as sale_count").
			Joins("LEFT JOIN invoices ON invoices.sale_id = sales.id").
			Where("sales.shop_id = ? AND sales.created_at >= ?", shopID, since).
			Scan(&rev).Error
		if err != nil {
			return out, err
		}

		type expenseRow struct {
			Expenses     float64
			ExpenseCount int64
		}
		var exp expenseRow
		err = db.WithContext(ctx).Table("expenses").
			Select("COALESCE(SUM(amount), 0) as expenses, COUNT(id) as expense_count").
			Where("shop_id = ? AND incurred_at >= ?", shopID, since).
			Scan(&exp).Error
		if err != nil {
			return out, err
		}

		out.Revenue = rev.Revenue
		out.SaleCount = rev.SaleCount
		out.Expenses = exp.Expenses
		out.ExpenseCount = exp.ExpenseCount
		out.NetProfit = rev.Revenue - exp.Expenses
		return out, nil
	})
}

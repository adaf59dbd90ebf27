package projection

import (
	"context"
	"testing"
	"time"

	"backend/internal/database"
	"backend/internal/model"
	"backend/internal/pubsub"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seededViews builds the full read-model fixture: two sales today, one
// with a reconciled invoice, plus stock and expense rows.
//
//	Apple:  price 100, stock 3, sold 2 (1 returned) + 5
//	Banana: price 50,  stock 50, sold 1
//	Sale 1: total 250, invoice unmodified
//	Sale 2: total 500, invoice reconciled to 300
type viewsFixture struct {
	db     *gorm.DB
	views  *Views
	shopID uuid.UUID
}

func newViewsFixture(t *testing.T) *viewsFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	shop := &model.Shop{Name: "Corner Store"}
	require.NoError(t, db.Create(shop).Error)
	userID := uuid.New()

	apple := &model.Product{ShopID: shop.ID, SKU: "APL", Name: "Apple", Price: decimal.RequireFromString("100"), CurrentStock: 3}
	banana := &model.Product{ShopID: shop.ID, SKU: "BAN", Name: "Banana", Price: decimal.RequireFromString("50"), CurrentStock: 50}
	require.NoError(t, db.Create(apple).Error)
	require.NoError(t, db.Create(banana).Error)

	now := time.Now()
	sale1 := &model.Sale{
		ShopID:       shop.ID,
		UserID:       userID,
		CustomerName: "Alice",
		TotalAmount:  decimal.RequireFromString("250"),
		CreatedAt:    now.Add(-2 * time.Minute),
		Items: []model.SaleItem{
			{ProductID: apple.ID, ProductName: "Apple", Quantity: 2, PriceAtSale: decimal.RequireFromString("100"), ReturnedQuantity: 1},
			{ProductID: banana.ID, ProductName: "Banana", Quantity: 1, PriceAtSale: decimal.RequireFromString("50")},
		},
	}
	require.NoError(t, db.Create(sale1).Error)

	sale2 := &model.Sale{
		ShopID:       shop.ID,
		UserID:       userID,
		CustomerName: "Bob",
		TotalAmount:  decimal.RequireFromString("500"),
		CreatedAt:    now.Add(-time.Minute),
		Items: []model.SaleItem{
			{ProductID: apple.ID, ProductName: "Apple", Quantity: 5, PriceAtSale: decimal.RequireFromString("100")},
		},
	}
	require.NoError(t, db.Create(sale2).Error)

	require.NoError(t, db.Create(&model.Invoice{
		ShopID: shop.ID, SaleID: sale1.ID, InvoiceNumber: "INV-000001", CustomerName: "Alice",
	}).Error)
	reconciled := decimal.RequireFromString("300")
	reason := "partial return"
	require.NoError(t, db.Create(&model.Invoice{
		ShopID: shop.ID, SaleID: sale2.ID, InvoiceNumber: "INV-000002", CustomerName: "Bob",
		IsModified: true, NewTotalAmount: &reconciled, ModificationReason: &reason,
	}).Error)

	require.NoError(t, db.Create(&model.Expense{
		ShopID: shop.ID, UserID: userID, Category: model.ExpenseRent,
		Amount: decimal.RequireFromString("100"), IncurredAt: now.Add(-24 * time.Hour),
	}).Error)
	// Outside the 30 day financial window.
	require.NoError(t, db.Create(&model.Expense{
		ShopID: shop.ID, UserID: userID, Category: model.ExpenseOther,
		Amount: decimal.RequireFromString("999"), IncurredAt: now.Add(-40 * 24 * time.Hour),
	}).Error)

	views := NewViews(db, pubsub.NewBroker())
	t.Cleanup(views.Close)
	return &viewsFixture{db: db, views: views, shopID: shop.ID}
}

func TestDashboardUsesEffectiveAmounts(t *testing.T) {
	f := newViewsFixture(t)

	stats, err := f.views.Dashboard.Get(context.Background(), f.shopID)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TodaySalesCount)
	// 250 (unmodified) + 300 (reconciled), never 500.
	assert.InDelta(t, 550, stats.TodayRevenue, 0.001)
	assert.EqualValues(t, 1, stats.LowStockCount)
}

func TestRecentOrdersShowEffectiveAmountNewestFirst(t *testing.T) {
	f := newViewsFixture(t)

	orders, err := f.views.RecentOrders.Get(context.Background(), f.shopID)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "INV-000002", orders[0].InvoiceNumber)
	assert.InDelta(t, 300, orders[0].Amount, 0.001)
	assert.True(t, orders[0].IsModified)

	assert.Equal(t, "INV-000001", orders[1].InvoiceNumber)
	assert.InDelta(t, 250, orders[1].Amount, 0.001)
	assert.False(t, orders[1].IsModified)
}

func TestBestSellersNetOfReturns(t *testing.T) {
	f := newViewsFixture(t)

	sellers, err := f.views.BestSellers.Get(context.Background(), f.shopID)
	require.NoError(t, err)
	require.Len(t, sellers, 2)

	// Apple: 2-1+5 = 6 units at 100; Banana: 1 unit at 50.
	assert.Equal(t, "Apple", sellers[0].ProductName)
	assert.Equal(t, 6, sellers[0].UnitsSold)
	assert.InDelta(t, 600, sellers[0].Revenue, 0.001)

	assert.Equal(t, "Banana", sellers[1].ProductName)
	assert.Equal(t, 1, sellers[1].UnitsSold)
}

func TestStockSummaryCountsReturnsBackIn(t *testing.T) {
	f := newViewsFixture(t)

	stock, err := f.views.Stock.Get(context.Background(), f.shopID)
	require.NoError(t, err)
	require.Len(t, stock, 2)

	assert.Equal(t, "Apple", stock[0].ProductName)
	assert.Equal(t, 4, stock[0].InStock) // 3 on hand + 1 returned
	assert.True(t, stock[0].LowStock)

	assert.Equal(t, "Banana", stock[1].ProductName)
	assert.Equal(t, 50, stock[1].InStock)
	assert.False(t, stock[1].LowStock)
}

func TestFinancialSummaryWindowAndEffectiveRevenue(t *testing.T) {
	f := newViewsFixture(t)

	summary, err := f.views.Financial.Get(context.Background(), f.shopID)
	require.NoError(t, err)

	assert.InDelta(t, 550, summary.Revenue, 0.001)
	assert.InDelta(t, 100, summary.Expenses, 0.001)
	assert.InDelta(t, 450, summary.NetProfit, 0.001)
	assert.EqualValues(t, 2, summary.SaleCount)
	assert.EqualValues(t, 1, summary.ExpenseCount)
}

func TestViewsAreShopScoped(t *testing.T) {
	f := newViewsFixture(t)

	stats, err := f.views.Dashboard.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, stats.TodaySalesCount)
	assert.Zero(t, stats.TodayRevenue)
}

package service

import (
	"testing"

	"backend/internal/database"
	"backend/internal/model"
	"backend/internal/pubsub"
	"backend/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// env wires the full service stack against an in-memory store, with
// one seeded shop and an admin actor for it.
type env struct {
	db        *gorm.DB
	broker    *pubsub.Broker
	checkout  CheckoutService
	reconcile ReconcileService
	products  ProductService
	staff     StaffService
	expenses  ExpenseService

	shop  *model.Shop
	actor model.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := newTestDB(t)
	broker := pubsub.NewBroker()

	shop := &model.Shop{Name: "Corner Store"}
	require.NoError(t, db.Create(shop).Error)

	user := &model.User{
		ShopID:   shop.ID,
		Username: "owner",
		Email:    "owner@example.com",
		Password: "not-a-real-hash",
		Role:     model.RoleAdmin,
	}
	require.NoError(t, db.Create(user).Error)

	txManager := repository.NewTransactionManager(db)
	saleRepo := repository.NewSaleRepository(db)
	productRepo := repository.NewProductRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	modRepo := repository.NewModificationRepository(db)
	numbers := repository.NewSequenceNumberSource(db)
	userRepo := repository.NewUserRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	return &env{
		db:        db,
		broker:    broker,
		checkout:  NewCheckoutService(saleRepo, productRepo, invoiceRepo, numbers, auditRepo, txManager, repository.DefaultRetry(), broker),
		reconcile: NewReconcileService(invoiceRepo, saleRepo, modRepo, txManager, broker),
		products:  NewProductService(productRepo, auditRepo, txManager, broker),
		staff:     NewStaffService(userRepo, auditRepo, txManager, broker, []byte("test-secret")),
		expenses:  NewExpenseService(expenseRepo, auditRepo, txManager, broker),
		shop:      shop,
		actor:     model.Actor{UserID: user.ID, ShopID: shop.ID, Role: model.RoleAdmin},
	}
}

// newShopActor seeds a second shop with its own admin, for tenancy
// boundary tests.
func (e *env) newShopActor(t *testing.T) model.Actor {
	t.Helper()
	shop := &model.Shop{Name: "Other Store"}
	require.NoError(t, e.db.Create(shop).Error)
	user := &model.User{
		ShopID:   shop.ID,
		Username: "other-owner",
		Email:    "other@example.com",
		Password: "not-a-real-hash",
		Role:     model.RoleAdmin,
	}
	require.NoError(t, e.db.Create(user).Error)
	return model.Actor{UserID: user.ID, ShopID: shop.ID, Role: model.RoleAdmin}
}

func (e *env) seedProduct(t *testing.T, sku, name, price string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		ShopID:       e.actor.ShopID,
		SKU:          sku,
		Name:         name,
		Price:        decimal.RequireFromString(price),
		CurrentStock: stock,
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

// itemID finds the sale item for a given product name in a checkout
// response.
func itemID(t *testing.T, sale SaleResponse, productName string) string {
	t.Helper()
	for _, it := range sale.Items {
		if it.ProductName == productName {
			return it.ID
		}
	}
	t.Fatalf("no sale item for product %q", productName)
	return ""
}

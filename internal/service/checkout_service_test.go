package service

import (
	"context"
	"fmt"
	"testing"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/pubsub"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutCreatesSaleAndInvoice(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "MUG-1", "Mug", "120.50", 8)

	resp, err := e.checkout.Checkout(context.Background(), e.actor, CheckoutRequest{
		CustomerName:  "Alice",
		CustomerPhone: "555-0100",
		Items:         []CheckoutItemRequest{{ProductID: p.ID.String(), Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, "361.5000", resp.Sale.TotalAmount)
	require.Len(t, resp.Sale.Items, 1)
	assert.Equal(t, "120.5000", resp.Sale.Items[0].PriceAtSale)
	assert.Empty(t, resp.InvoiceError)

	require.NotNil(t, resp.Invoice)
	assert.Equal(t, "INV-000001", resp.Invoice.InvoiceNumber)
	assert.Equal(t, resp.Sale.ID, resp.Invoice.SaleID)
	assert.Equal(t, "Alice", resp.Invoice.CustomerName)

	var stored model.Product
	require.NoError(t, e.db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, 5, stored.CurrentStock)

	var auditCount int64
	require.NoError(t, e.db.Model(&model.AuditLog{}).
		Where("action = ?", model.ActionCheckout).Count(&auditCount).Error)
	assert.EqualValues(t, 1, auditCount)
}

func TestInvoiceNumbersAreSequentialPerShop(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "PEN-1", "Pen", "10.00", 100)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		resp, err := e.checkout.Checkout(ctx, e.actor, CheckoutRequest{
			Items: []CheckoutItemRequest{{ProductID: p.ID.String(), Quantity: 1}},
		})
		require.NoError(t, err)
		require.NotNil(t, resp.Invoice)
		assert.Equal(t, fmt.Sprintf("INV-%06d", i), resp.Invoice.InvoiceNumber)
	}

	// A different shop starts its own sequence at one.
	other := e.newShopActor(t)
	otherProduct := &model.Product{
		ShopID:       other.ShopID,
		SKU:          "PEN-1",
		Name:         "Pen",
		Price:        decimal.RequireFromString("10.00"),
		CurrentStock: 10,
	}
	require.NoError(t, e.db.Create(otherProduct).Error)

	resp, err := e.checkout.Checkout(ctx, other, CheckoutRequest{
		Items: []CheckoutItemRequest{{ProductID: otherProduct.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Invoice)
	assert.Equal(t, "INV-000001", resp.Invoice.InvoiceNumber)
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "HAT-1", "Hat", "75.00", 2)

	_, err := e.checkout.Checkout(context.Background(), e.actor, CheckoutRequest{
		Items: []CheckoutItemRequest{{ProductID: p.ID.String(), Quantity: 5}},
	})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, apperr.CodeInsufficientStock, apperr.Code(err))

	var saleCount int64
	require.NoError(t, e.db.Model(&model.Sale{}).Count(&saleCount).Error)
	assert.Zero(t, saleCount)

	var stored model.Product
	require.NoError(t, e.db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, 2, stored.CurrentStock)
}

func TestCheckoutMultiLinePartialStockRollsBackAll(t *testing.T) {
	e := newEnv(t)
	full := e.seedProduct(t, "A-1", "Plenty", "10.00", 50)
	scarce := e.seedProduct(t, "B-1", "Scarce", "20.00", 1)

	_, err := e.checkout.Checkout(context.Background(), e.actor, CheckoutRequest{
		Items: []CheckoutItemRequest{
			{ProductID: full.ID.String(), Quantity: 2},
			{ProductID: scarce.ID.String(), Quantity: 3},
		},
	})
	require.ErrorIs(t, err, apperr.ErrConflict)

	// The first line's decrement must not survive the failed second.
	var stored model.Product
	require.NoError(t, e.db.First(&stored, "id = ?", full.ID).Error)
	assert.Equal(t, 50, stored.CurrentStock)
}

func TestCreateInvoiceForSaleIsIdempotent(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "CUP-1", "Cup", "30.00", 10)
	ctx := context.Background()

	resp, err := e.checkout.Checkout(ctx, e.actor, CheckoutRequest{
		Items: []CheckoutItemRequest{{ProductID: p.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Invoice)

	again, err := e.checkout.CreateInvoiceForSale(ctx, e.actor, resp.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Invoice.ID, again.ID)
	assert.Equal(t, resp.Invoice.InvoiceNumber, again.InvoiceNumber)

	var invoiceCount int64
	require.NoError(t, e.db.Model(&model.Invoice{}).Count(&invoiceCount).Error)
	assert.EqualValues(t, 1, invoiceCount)
}

func TestCatalogPriceChangeDoesNotRewriteHistory(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "TEA-1", "Tea", "50.00", 10)
	ctx := context.Background()

	resp, err := e.checkout.Checkout(ctx, e.actor, CheckoutRequest{
		Items: []CheckoutItemRequest{{ProductID: p.ID.String(), Quantity: 2}},
	})
	require.NoError(t, err)

	_, err = e.products.UpdateProduct(ctx, e.actor, p.ID.String(), UpdateProductRequest{
		SKU: "TEA-1", Name: "Tea", Price: "80.00",
	})
	require.NoError(t, err)

	var item model.SaleItem
	require.NoError(t, e.db.First(&item, "sale_id = ?", resp.Sale.ID).Error)
	assert.Equal(t, "50.0000", item.PriceAtSale.StringFixed(4))

	var sale model.Sale
	require.NoError(t, e.db.First(&sale, "id = ?", resp.Sale.ID).Error)
	assert.Equal(t, "100.0000", sale.TotalAmount.StringFixed(4))
}

func TestCheckoutValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.checkout.Checkout(ctx, e.actor, CheckoutRequest{
		Items: []CheckoutItemRequest{{ProductID: "not-a-uuid", Quantity: 1}},
	})
	require.ErrorIs(t, err, apperr.ErrValidation)

	p := e.seedProduct(t, "BAG-1", "Bag", "200.00", 5)
	_, err = e.checkout.Checkout(ctx, e.actor, CheckoutRequest{
		Items: []CheckoutItemRequest{{ProductID: p.ID.String(), Quantity: 0}},
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, apperr.CodeInvalidQuantity, apperr.Code(err))
}

func TestCheckoutUnknownProductAcrossShops(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "FIG-1", "Fig", "5.00", 10)

	// A product of another shop is simply not found for this actor.
	other := e.newShopActor(t)
	_, err := e.checkout.Checkout(context.Background(), other, CheckoutRequest{
		Items: []CheckoutItemRequest{{ProductID: p.ID.String(), Quantity: 1}},
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListSalesIsShopScoped(t *testing.T) {
	e := newEnv(t)
	p := e.seedProduct(t, "JAR-1", "Jar", "15.00", 10)
	ctx := context.Background()

	_, err := e.checkout.Checkout(ctx, e.actor, CheckoutRequest{
		Items: []CheckoutItemRequest{{ProductID: p.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)

	sales, total, err := e.checkout.ListSales(ctx, e.actor, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, sales, 1)

	other := e.newShopActor(t)
	sales, total, err = e.checkout.ListSales(ctx, other, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, sales)
}

func TestCheckoutPublishesProductScopedEvents(t *testing.T) {
	e := newEnv(t)
	mug := e.seedProduct(t, "MUG-1", "Mug", "120.50", 8)
	pen := e.seedProduct(t, "PEN-1", "Pen", "10.00", 8)

	sub := e.broker.Subscribe(e.shop.ID, pubsub.EntityProducts)
	defer sub.Close()

	_, err := e.checkout.Checkout(context.Background(), e.actor, CheckoutRequest{
		CustomerName: "Walk-in",
		Items: []CheckoutItemRequest{
			{ProductID: mug.ID.String(), Quantity: 1},
			{ProductID: pen.ID.String(), Quantity: 2},
		},
	})
	require.NoError(t, err)

	// One event per sold product, each carrying that product's id.
	got := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.C:
			assert.Equal(t, pubsub.EntityProducts, ev.EntityType)
			got[ev.EntityID.String()] = true
		default:
			t.Fatal("expected a products event per sold line")
		}
	}
	assert.True(t, got[mug.ID.String()])
	assert.True(t, got[pen.ID.String()])
}

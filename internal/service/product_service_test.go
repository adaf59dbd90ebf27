package service

import (
	"context"
	"testing"

	"backend/internal/apperr"
	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.products.CreateProduct(ctx, e.actor, CreateProductRequest{
		SKU: "NB-01", Name: "Notebook", Price: "35.00", InitialStock: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, "35.0000", created.Price)
	assert.Equal(t, 12, created.CurrentStock)

	updated, err := e.products.UpdateProduct(ctx, e.actor, created.ID, UpdateProductRequest{
		SKU: "NB-01", Name: "Notebook A5", Price: "38.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "Notebook A5", updated.Name)
	assert.Equal(t, "38.0000", updated.Price)

	require.NoError(t, e.products.DeleteProduct(ctx, e.actor, created.ID))

	_, total, err := e.products.GetProducts(ctx, e.actor, 1, 20, "")
	require.NoError(t, err)
	assert.Zero(t, total)

	var actions []string
	require.NoError(t, e.db.Model(&model.AuditLog{}).
		Where("entity_id = ?", created.ID).Order("created_at asc").
		Pluck("action", &actions).Error)
	assert.Equal(t, []string{model.ActionCreateProduct, model.ActionUpdateProduct, model.ActionDeleteProduct}, actions)
}

func TestProductSearchAndScoping(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedProduct(t, "GT-1", "Green Tea", "20.00", 5)
	e.seedProduct(t, "BT-1", "Black Tea", "22.00", 5)
	e.seedProduct(t, "CF-1", "Coffee", "30.00", 5)

	teas, total, err := e.products.GetProducts(ctx, e.actor, 1, 20, "tea")
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, teas, 2)

	// Another shop sees nothing.
	outsider := e.newShopActor(t)
	_, total, err = e.products.GetProducts(ctx, outsider, 1, 20, "")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestProductValidationAndTenancy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.products.CreateProduct(ctx, e.actor, CreateProductRequest{
		SKU: "X-1", Name: "Broken", Price: "-1",
	})
	require.ErrorIs(t, err, apperr.ErrValidation)

	p := e.seedProduct(t, "Y-1", "Yarn", "8.00", 4)
	outsider := e.newShopActor(t)

	_, err = e.products.UpdateProduct(ctx, outsider, p.ID.String(), UpdateProductRequest{
		SKU: "Y-1", Name: "Yarn", Price: "9.00",
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	err = e.products.DeleteProduct(ctx, outsider, p.ID.String())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

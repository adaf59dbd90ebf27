package service

import (
	"context"
	"testing"

	"backend/internal/apperr"
	"backend/internal/middleware"
	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStaffAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.staff.CreateStaff(ctx, e.actor, CreateStaffRequest{
		Username: "cashier",
		Email:    "cashier@example.com",
		Password: "s3cret-pw",
		Role:     model.RoleStaff,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleStaff, created.Role)

	// The stored password must be a hash, never the plaintext.
	var stored model.User
	require.NoError(t, e.db.First(&stored, "email = ?", "cashier@example.com").Error)
	assert.NotEqual(t, "s3cret-pw", stored.Password)

	token, err := e.staff.Login(ctx, LoginRequest{Email: "cashier@example.com", Password: "s3cret-pw"})
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)

	// The token's claims identify the user and pin their shop.
	actor, err := middleware.ParseActor(token.Token, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, created.ID, actor.UserID.String())
	assert.Equal(t, e.actor.ShopID, actor.ShopID)
	assert.Equal(t, model.RoleStaff, actor.Role)

	_, err = e.staff.Login(ctx, LoginRequest{Email: "cashier@example.com", Password: "wrong"})
	require.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestCreateStaffRejectsDuplicates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.staff.CreateStaff(ctx, e.actor, CreateStaffRequest{
		Username: "clerk", Email: "clerk@example.com", Password: "password1", Role: model.RoleStaff,
	})
	require.NoError(t, err)

	_, err = e.staff.CreateStaff(ctx, e.actor, CreateStaffRequest{
		Username: "clerk", Email: "different@example.com", Password: "password1", Role: model.RoleStaff,
	})
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = e.staff.CreateStaff(ctx, e.actor, CreateStaffRequest{
		Username: "different", Email: "clerk@example.com", Password: "password1", Role: model.RoleStaff,
	})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestStaffManagementIsShopScoped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.staff.CreateStaff(ctx, e.actor, CreateStaffRequest{
		Username: "clerk", Email: "clerk@example.com", Password: "password1", Role: model.RoleStaff,
	})
	require.NoError(t, err)

	outsider := e.newShopActor(t)
	_, err = e.staff.UpdateStaff(ctx, outsider, created.ID, UpdateStaffRequest{Phone: "555-0111"})
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	err = e.staff.DeleteStaff(ctx, outsider, created.ID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	// Listing only surfaces the actor's own shop.
	staff, _, err := e.staff.ListStaff(ctx, outsider, 1, 20)
	require.NoError(t, err)
	for _, s := range staff {
		assert.NotEqual(t, created.ID, s.ID)
	}
}

func TestUpdateAndDeleteStaffAudited(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.staff.CreateStaff(ctx, e.actor, CreateStaffRequest{
		Username: "clerk", Email: "clerk@example.com", Password: "password1", Role: model.RoleStaff,
	})
	require.NoError(t, err)

	updated, err := e.staff.UpdateStaff(ctx, e.actor, created.ID, UpdateStaffRequest{Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, updated.Role)

	require.NoError(t, e.staff.DeleteStaff(ctx, e.actor, created.ID))

	// Soft deleted: gone from default queries, still in the table.
	var count int64
	require.NoError(t, e.db.Model(&model.User{}).Where("id = ?", created.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, e.db.Unscoped().Model(&model.User{}).Where("id = ?", created.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var actions []string
	require.NoError(t, e.db.Model(&model.AuditLog{}).
		Where("entity_id = ?", created.ID).Order("created_at asc").
		Pluck("action", &actions).Error)
	assert.Equal(t, []string{model.ActionCreateStaff, model.ActionUpdateStaff, model.ActionDeleteStaff}, actions)
}

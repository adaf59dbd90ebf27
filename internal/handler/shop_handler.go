package handler

import (
	"errors"
	"net/http"
	"strings"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateShopRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type ShopHandler struct {
	shopRepo repository.ShopRepository
}

func NewShopHandler(shopRepo repository.ShopRepository) *ShopHandler {
	return &ShopHandler{shopRepo: shopRepo}
}

func (h *ShopHandler) RegisterRoutes(router *gin.RouterGroup) {
	shops := router.Group("/api/shops")
	{
		shops.POST("", h.CreateShop)
		shops.GET("/me", middleware.RequireAuth(), h.GetMyShop)
	}
}

// CreateShop registers a new tenant
// @Summary      Create a shop
// @Description  Registers a new shop. Staff accounts are created separately and scoped to the shop.
// @Tags         shops
// @Accept       json
// @Produce      json
// @Param        shop  body      CreateShopRequest  true  "Shop details"
// @Success      201   {object}  response.Response{data=model.Shop}
// @Failure      400   {object}  response.Response
// @Failure      500   {object}  response.Response
// @Router       /api/shops [post]
func (h *ShopHandler) CreateShop(c *gin.Context) {
	var req CreateShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	shop := &model.Shop{
		Name:    strings.TrimSpace(req.Name),
		Address: req.Address,
		Phone:   req.Phone,
	}
	if shop.Name == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Shop name is required"))
		return
	}

	if err := h.shopRepo.Create(c.Request.Context(), shop); err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, shop))
}

// GetMyShop returns the caller's shop profile
// @Summary      Get current shop
// @Description  Retrieves the shop the authenticated staff member belongs to.
// @Tags         shops
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.Shop}
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/shops/me [get]
func (h *ShopHandler) GetMyShop(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authentication"))
		return
	}

	shop, err := h.shopRepo.FindByID(c.Request.Context(), actor.ShopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Shop not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, shop))
}

package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/projection"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReportHandler serves the cached read-model views. Every endpoint is
// a straight projection read; none of them touch the write path.
type ReportHandler struct {
	views *projection.Views
}

func NewReportHandler(views *projection.Views) *ReportHandler {
	return &ReportHandler{views: views}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/api/reports")
	reports.Use(middleware.RequireAuth())
	{
		reports.GET("/dashboard", h.Dashboard)
		reports.GET("/recent-orders", h.RecentOrders)
		reports.GET("/best-sellers", h.BestSellers)
		reports.GET("/stock", h.StockSummary)
		reports.GET("/financial", h.FinancialSummary)
	}
}

// Dashboard returns today's headline numbers
// @Summary      Dashboard stats
// @Description  Today's sale count, revenue at effective amounts and low-stock count
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=projection.DashboardStats}
// @Failure      500  {object}  response.Response
// @Router       /api/reports/dashboard [get]
func (h *ReportHandler) Dashboard(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authentication"))
		return
	}

	stats, err := h.views.Dashboard.Get(c.Request.Context(), actor.ShopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// RecentOrders returns the latest sales with their effective amounts
// @Summary      Recent orders
// @Description  The ten most recent sales, each showing its invoice number and effective amount
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]projection.RecentOrder}
// @Failure      500  {object}  response.Response
// @Router       /api/reports/recent-orders [get]
func (h *ReportHandler) RecentOrders(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authentication"))
		return
	}

	orders, err := h.views.RecentOrders.Get(c.Request.Context(), actor.ShopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, orders))
}

// BestSellers returns the top products by effective units sold
// @Summary      Best sellers
// @Description  Top five products ranked by units sold net of returns
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]projection.BestSeller}
// @Failure      500  {object}  response.Response
// @Router       /api/reports/best-sellers [get]
func (h *ReportHandler) BestSellers(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authentication"))
		return
	}

	sellers, err := h.views.BestSellers.Get(c.Request.Context(), actor.ShopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sellers))
}

// StockSummary returns per-product stock levels including returns
// @Summary      Stock summary
// @Description  Sellable quantity per product, counting returned units back in
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]projection.StockLevel}
// @Failure      500  {object}  response.Response
// @Router       /api/reports/stock [get]
func (h *ReportHandler) StockSummary(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authentication"))
		return
	}

	stock, err := h.views.Stock.Get(c.Request.Context(), actor.ShopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stock))
}

// FinancialSummary returns the rolling 30 day profit view
// @Summary      Financial summary
// @Description  Revenue at effective amounts versus expenses over the last 30 days
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=projection.FinancialSummary}
// @Failure      500  {object}  response.Response
// @Router       /api/reports/financial [get]
func (h *ReportHandler) FinancialSummary(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authentication"))
		return
	}

	summary, err := h.views.Financial.Get(c.Request.Context(), actor.ShopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

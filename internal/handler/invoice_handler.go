package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	checkoutService  service.CheckoutService
	reconcileService service.ReconcileService
}

func NewInvoiceHandler(checkoutService service.CheckoutService, reconcileService service.ReconcileService) *InvoiceHandler {
	return &InvoiceHandler{
		checkoutService:  checkoutService,
		reconcileService: reconcileService,
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices")
	invoices.Use(middleware.RequireAuth())
	{
		invoices.GET("", h.ListInvoices)
		invoices.POST("/:id/reconcile", h.Reconcile)
		invoices.GET("/:id/modifications", h.ListModifications)
	}
}

// ListInvoices returns a paginated list of the shop's invoices
// @Summary      List invoices
// @Description  Retrieves a paginated list of invoices for the actor's shop
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authentication"))
		return
	}

	p := pagination.Parse(c)
	invoices, total, err := h.checkoutService.ListInvoices(c.Request.Context(), actor, p.Page, p.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"total":    total,
		"page":     p.Page,
		"limit":    p.Limit,
	}))
}

// Reconcile applies a price override, a return or a manual correction
// @Summary      Reconcile invoice
// @Description  Applies an after-the-fact modification (price, return, other) to an invoice. The sale stays untouched; the change is recorded in the modification log.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Invoice ID"
// @Param        payload  body      service.ReconcileRequest  true  "Reconcile Payload"
// @Success      200      {object}  response.Response{data=service.ReconcileResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/reconcile [post]
func (h *InvoiceHandler) Reconcile(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authentication"))
		return
	}

	var req service.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.reconcileService.Reconcile(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListModifications returns the invoice's modification log, oldest first
// @Summary      List invoice modifications
// @Description  Retrieves the full modification history of an invoice in chronological order
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=[]service.ModificationResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/modifications [get]
func (h *InvoiceHandler) ListModifications(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Missing authentication"))
		return
	}

	mods, err := h.reconcileService.ListModifications(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, mods))
}

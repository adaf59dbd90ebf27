package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/pubsub"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CheckoutItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type CheckoutRequest struct {
	CustomerName  string                `json:"customer_name"`
	CustomerPhone string                `json:"customer_phone"`
	Items         []CheckoutItemRequest `json:"items" binding:"required,min=1,dive"`
}

type SaleItemResponse struct {
	ID               string `json:"id"`
	ProductID        string `json:"product_id"`
	ProductName      string `json:"product_name"`
	Quantity         int    `json:"quantity"`
	PriceAtSale      string `json:"price_at_sale"`
	ReturnedQuantity int    `json:"returned_quantity"`
}

type SaleResponse struct {
	ID            string             `json:"id"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	TotalAmount   string             `json:"total_amount"`
	Items         []SaleItemResponse `json:"items"`
	CreatedAt     string             `json:"created_at"`
}

type InvoiceResponse struct {
	ID             string  `json:"id"`
	InvoiceNumber  string  `json:"invoice_number"`
	SaleID         string  `json:"sale_id"`
	CustomerName   string  `json:"customer_name"`
	CustomerPhone  string  `json:"customer_phone"`
	IsModified     bool    `json:"is_modified"`
	NewTotalAmount *string `json:"new_total_amount"`
	CreatedAt      string  `json:"created_at"`
}

// CheckoutResponse reports the committed sale and, when numbering
// succeeded, its invoice. InvoiceError carries the reason code when the
// invoice could not be created; the sale stands either way and the
// caller retries invoice creation against it.
type CheckoutResponse struct {
	Sale         SaleResponse     `json:"sale"`
	Invoice      *InvoiceResponse `json:"invoice,omitempty"`
	InvoiceError string           `json:"invoice_error,omitempty"`
}

// --- Interface ---

type CheckoutService interface {
	Checkout(ctx context.Context, actor model.Actor, req CheckoutRequest) (CheckoutResponse, error)
	// CreateInvoiceForSale creates the invoice for an already committed
	// sale. Idempotent: if the invoice exists it is returned as-is, so
	// callers can retry freely after a transient failure.
	CreateInvoiceForSale(ctx context.Context, actor model.Actor, saleID string) (InvoiceResponse, error)
	ListSales(ctx context.Context, actor model.Actor, page, limit int) ([]SaleResponse, int64, error)
	ListInvoices(ctx context.Context, actor model.Actor, page, limit int) ([]InvoiceResponse, int64, error)
}

type checkoutService struct {
	saleRepo    repository.SaleRepository
	productRepo repository.ProductRepository
	invoiceRepo repository.InvoiceRepository
	numbers     repository.NumberSource
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	retry       repository.RetryPolicy
	broker      *pubsub.Broker
}

func NewCheckoutService(
	saleRepo repository.SaleRepository,
	productRepo repository.ProductRepository,
	invoiceRepo repository.InvoiceRepository,
	numbers repository.NumberSource,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	retry repository.RetryPolicy,
	broker *pubsub.Broker,
) CheckoutService {
	return &checkoutService{
		saleRepo:    saleRepo,
		productRepo: productRepo,
		invoiceRepo: invoiceRepo,
		numbers:     numbers,
		auditRepo:   auditRepo,
		txManager:   txManager,
		retry:       retry,
		broker:      broker,
	}
}

// --- Implementation ---

func (s *checkoutService) Checkout(ctx context.Context, actor model.Actor, req CheckoutRequest) (CheckoutResponse, error) {
	type line struct {
		productID uuid.UUID
		quantity  int
	}
	lines := make([]line, 0, len(req.Items))
	for _, it := range req.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			return CheckoutResponse{}, apperr.Validation(apperr.CodeNotFound, "invalid product id %q", it.ProductID)
		}
		if it.Quantity <= 0 {
			return CheckoutResponse{}, apperr.Validation(apperr.CodeInvalidQuantity, "quantity must be positive")
		}
		lines = append(lines, line{productID: pid, quantity: it.Quantity})
	}

	sale := &model.Sale{
		ShopID:        actor.ShopID,
		UserID:        actor.UserID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		total := decimal.Zero
		for _, l := range lines {
			product, findErr := s.productRepo.FindByID(txCtx, actor.ShopID, l.productID)
			if findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return apperr.NotFound("product", l.productID)
				}
				return apperr.Store(findErr)
			}

			ok, decErr := s.productRepo.DecrementStock(txCtx, actor.ShopID, l.productID, l.quantity)
			if decErr != nil {
				return apperr.Store(decErr)
			}
			if !ok {
				return apperr.Conflict(apperr.CodeInsufficientStock,
					"product %q has insufficient stock for quantity %d", product.Name, l.quantity)
			}

			sale.Items = append(sale.Items, model.SaleItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    l.quantity,
				PriceAtSale: product.Price,
			})
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(l.quantity))))
		}
		sale.TotalAmount = total

		if createErr := s.saleRepo.Create(txCtx, sale); createErr != nil {
			return apperr.Store(createErr)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			ShopID:   actor.ShopID,
			UserID:   &actor.UserID,
			Action:   model.ActionCheckout,
			EntityID: sale.ID.String(),
			Details:  string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return apperr.Store(auditErr)
		}

		return nil
	})
	if err != nil {
		return CheckoutResponse{}, err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntitySales, EntityID: sale.ID, EventType: pubsub.EventInsert})
	for _, item := range sale.Items {
		s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityProducts, EntityID: item.ProductID, EventType: pubsub.EventUpdate})
	}

	resp := CheckoutResponse{Sale: toSaleResponse(*sale)}

	// The sale is durable from here on: an invoice failure is reported,
	// never rolled back into the sale.
	invoice, invErr := s.CreateInvoiceForSale(ctx, actor, sale.ID.String())
	if invErr != nil {
		log.Printf("checkout: invoice creation pending for sale %s: %v", sale.ID, invErr)
		resp.InvoiceError = apperr.Code(invErr)
		return resp, nil
	}
	resp.Invoice = &invoice

	return resp, nil
}

func (s *checkoutService) CreateInvoiceForSale(ctx context.Context, actor model.Actor, saleID string) (InvoiceResponse, error) {
	sid, err := uuid.Parse(saleID)
	if err != nil {
		return InvoiceResponse{}, apperr.Validation(apperr.CodeNotFound, "invalid sale id: %v", err)
	}

	var invoice *model.Invoice
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			sale, findErr := s.saleRepo.FindByIDWithItems(txCtx, sid)
			if findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return apperr.NotFound("sale", saleID)
				}
				return apperr.Store(findErr)
			}
			if sale.ShopID != actor.ShopID {
				return apperr.Authorization("sale %s does not belong to the actor's shop", saleID)
			}

			existing, existingErr := s.invoiceRepo.FindBySaleID(txCtx, sid)
			if existingErr == nil {
				invoice = existing
				return nil
			}
			if !errors.Is(existingErr, gorm.ErrRecordNotFound) {
				return apperr.Store(existingErr)
			}

			number, numberErr := s.numbers.Next(txCtx, actor.ShopID)
			if numberErr != nil {
				return apperr.Store(numberErr)
			}

			invoice = &model.Invoice{
				ShopID:        sale.ShopID,
				SaleID:        sale.ID,
				InvoiceNumber: number,
				CustomerName:  sale.CustomerName,
				CustomerPhone: sale.CustomerPhone,
			}
			if createErr := s.invoiceRepo.Create(txCtx, invoice); createErr != nil {
				return apperr.Store(createErr)
			}
			return nil
		})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityInvoices, EntityID: invoice.ID, EventType: pubsub.EventInsert})

	return toInvoiceResponse(*invoice), nil
}

func (s *checkoutService) ListSales(ctx context.Context, actor model.Actor, page, limit int) ([]SaleResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	sales, total, err := s.saleRepo.List(ctx, actor.ShopID, page, limit)
	if err != nil {
		return nil, 0, apperr.Store(err)
	}

	result := make([]SaleResponse, 0, len(sales))
	for _, sale := range sales {
		result = append(result, toSaleResponse(sale))
	}
	return result, total, nil
}

func (s *checkoutService) ListInvoices(ctx context.Context, actor model.Actor, page, limit int) ([]InvoiceResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	invoices, total, err := s.invoiceRepo.List(ctx, actor.ShopID, page, limit)
	if err != nil {
		return nil, 0, apperr.Store(err)
	}

	result := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		result = append(result, toInvoiceResponse(inv))
	}
	return result, total, nil
}

// --- Mapping ---

func toSaleResponse(sale model.Sale) SaleResponse {
	resp := SaleResponse{
		ID:            sale.ID.String(),
		CustomerName:  sale.CustomerName,
		CustomerPhone: sale.CustomerPhone,
		TotalAmount:   sale.TotalAmount.StringFixed(4),
		CreatedAt:     sale.CreatedAt.Format(time.RFC3339),
	}
	for _, item := range sale.Items {
		resp.Items = append(resp.Items, SaleItemResponse{
			ID:               item.ID.String(),
			ProductID:        item.ProductID.String(),
			ProductName:      item.ProductName,
			Quantity:         item.Quantity,
			PriceAtSale:      item.PriceAtSale.StringFixed(4),
			ReturnedQuantity: item.ReturnedQuantity,
		})
	}
	return resp
}

func toInvoiceResponse(inv model.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		SaleID:        inv.SaleID.String(),
		CustomerName:  inv.CustomerName,
		CustomerPhone: inv.CustomerPhone,
		IsModified:    inv.IsModified,
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.NewTotalAmount != nil {
		amount := inv.NewTotalAmount.StringFixed(4)
		resp.NewTotalAmount = &amount
	}
	return resp
}

package service

import (
	"context"
	"encoding/json"
	"errors"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/pubsub"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DTOs
type CreateProductRequest struct {
	SKU          string `json:"sku" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Price        string `json:"price" binding:"required"`
	InitialStock int    `json:"initial_stock" binding:"omitempty,min=0"`
}

type UpdateProductRequest struct {
	SKU   string `json:"sku" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Price string `json:"price" binding:"required"`
}

type ProductResponse struct {
	ID           string `json:"id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	CurrentStock int    `json:"current_stock"`
	Price        string `json:"price"`
}

type ProductService interface {
	GetProducts(ctx context.Context, actor model.Actor, page, limit int, search string) ([]ProductResponse, int64, error)
	CreateProduct(ctx context.Context, actor model.Actor, req CreateProductRequest) (ProductResponse, error)
	UpdateProduct(ctx context.Context, actor model.Actor, id string, req UpdateProductRequest) (ProductResponse, error)
	DeleteProduct(ctx context.Context, actor model.Actor, id string) error
}

type productService struct {
	productRepo repository.ProductRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	broker      *pubsub.Broker
}

func NewProductService(
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	broker *pubsub.Broker,
) ProductService {
	return &productService{
		productRepo: productRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		broker:      broker,
	}
}

func (s *productService) GetProducts(ctx context.Context, actor model.Actor, page, limit int, search string) ([]ProductResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	products, total, err := s.productRepo.List(ctx, actor.ShopID, page, limit, search)
	if err != nil {
		return nil, 0, apperr.Store(err)
	}

	res := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		res = append(res, toProductResponse(p))
	}
	return res, total, nil
}

func (s *productService) CreateProduct(ctx context.Context, actor model.Actor, req CreateProductRequest) (ProductResponse, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return ProductResponse{}, apperr.Validation(apperr.CodeNegativeAmount, "invalid price %q", req.Price)
	}

	product := model.Product{
		ShopID:       actor.ShopID,
		SKU:          req.SKU,
		Name:         req.Name,
		Price:        price,
		CurrentStock: req.InitialStock,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.productRepo.Create(txCtx, &product); createErr != nil {
			return apperr.Store(createErr)
		}
		return s.logAudit(txCtx, actor, model.ActionCreateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return ProductResponse{}, err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityProducts, EntityID: product.ID, EventType: pubsub.EventInsert})
	return toProductResponse(product), nil
}

func (s *productService) UpdateProduct(ctx context.Context, actor model.Actor, id string, req UpdateProductRequest) (ProductResponse, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return ProductResponse{}, apperr.Validation(apperr.CodeNotFound, "invalid product id: %v", err)
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return ProductResponse{}, apperr.Validation(apperr.CodeNegativeAmount, "invalid price %q", req.Price)
	}

	product, err := s.productRepo.FindByID(ctx, actor.ShopID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductResponse{}, apperr.NotFound("product", id)
		}
		return ProductResponse{}, apperr.Store(err)
	}

	product.SKU = req.SKU
	product.Name = req.Name
	product.Price = price

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.productRepo.Update(txCtx, product); updateErr != nil {
			return apperr.Store(updateErr)
		}
		return s.logAudit(txCtx, actor, model.ActionUpdateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return ProductResponse{}, err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityProducts, EntityID: product.ID, EventType: pubsub.EventUpdate})
	return toProductResponse(*product), nil
}

func (s *productService) DeleteProduct(ctx context.Context, actor model.Actor, id string) error {
	productID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation(apperr.CodeNotFound, "invalid product id: %v", err)
	}

	product, err := s.productRepo.FindByID(ctx, actor.ShopID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("product", id)
		}
		return apperr.Store(err)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if deleteErr := s.productRepo.Delete(txCtx, productID); deleteErr != nil {
			return apperr.Store(deleteErr)
		}
		return s.logAudit(txCtx, actor, model.ActionDeleteProduct, product.ID.String(), product.Name, nil)
	})
	if err != nil {
		return err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityProducts, EntityID: productID, EventType: pubsub.EventDelete})
	return nil
}

func (s *productService) logAudit(ctx context.Context, actor model.Actor, action, entityID, entityName string, payload interface{}) error {
	details, _ := json.Marshal(payload)
	entry := &model.AuditLog{
		ShopID:     actor.ShopID,
		UserID:     &actor.UserID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return apperr.Store(err)
	}
	return nil
}

func toProductResponse(p model.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID.String(),
		SKU:          p.SKU,
		Name:         p.Name,
		CurrentStock: p.CurrentStock,
		Price:        p.Price.StringFixed(4),
	}
}

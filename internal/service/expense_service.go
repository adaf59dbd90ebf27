package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/pubsub"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DTOs
type CreateExpenseRequest struct {
	Category    string `json:"category" binding:"required,oneof=RENT SALARY SUPPLIES UTILITIES OTHER"`
	Description string `json:"description"`
	Amount      string `json:"amount" binding:"required"`
	IncurredAt  string `json:"incurred_at"` // RFC3339, defaults to now
}

type ExpenseResponse struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	IncurredAt  string `json:"incurred_at"`
}

type ExpenseService interface {
	CreateExpense(ctx context.Context, actor model.Actor, req CreateExpenseRequest) (ExpenseResponse, error)
	ListExpenses(ctx context.Context, actor model.Actor, start, end time.Time, page, limit int) ([]ExpenseResponse, int64, error)
	DeleteExpense(ctx context.Context, actor model.Actor, id string) error
}

type expenseService struct {
	expenseRepo repository.ExpenseRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	broker      *pubsub.Broker
}

func NewExpenseService(
	expenseRepo repository.ExpenseRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	broker *pubsub.Broker,
) ExpenseService {
	return &expenseService{
		expenseRepo: expenseRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		broker:      broker,
	}
}

func (s *expenseService) CreateExpense(ctx context.Context, actor model.Actor, req CreateExpenseRequest) (ExpenseResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		return ExpenseResponse{}, apperr.Validation(apperr.CodeNegativeAmount, "invalid amount %q", req.Amount)
	}

	incurredAt := time.Now()
	if req.IncurredAt != "" {
		incurredAt, err = time.Parse(time.RFC3339, req.IncurredAt)
		if err != nil {
			return ExpenseResponse{}, apperr.Validation(apperr.CodeInvalidQuantity, "invalid incurred_at: %v", err)
		}
	}

	expense := &model.Expense{
		ShopID:      actor.ShopID,
		UserID:      actor.UserID,
		Category:    req.Category,
		Description: req.Description,
		Amount:      amount,
		IncurredAt:  incurredAt,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.expenseRepo.Create(txCtx, expense); createErr != nil {
			return apperr.Store(createErr)
		}
		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			ShopID:   actor.ShopID,
			UserID:   &actor.UserID,
			Action:   model.ActionCreateExpense,
			EntityID: expense.ID.String(),
			Details:  string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return apperr.Store(auditErr)
		}
		return nil
	})
	if err != nil {
		return ExpenseResponse{}, err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityExpenses, EntityID: expense.ID, EventType: pubsub.EventInsert})
	return toExpenseResponse(*expense), nil
}

func (s *expenseService) ListExpenses(ctx context.Context, actor model.Actor, start, end time.Time, page, limit int) ([]ExpenseResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	expenses, total, err := s.expenseRepo.List(ctx, actor.ShopID, start, end, page, limit)
	if err != nil {
		return nil, 0, apperr.Store(err)
	}

	result := make([]ExpenseResponse, 0, len(expenses))
	for _, e := range expenses {
		result = append(result, toExpenseResponse(e))
	}
	return result, total, nil
}

func (s *expenseService) DeleteExpense(ctx context.Context, actor model.Actor, id string) error {
	expenseID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation(apperr.CodeNotFound, "invalid expense id: %v", err)
	}

	expense, err := s.expenseRepo.FindByID(ctx, actor.ShopID, expenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("expense", id)
		}
		return apperr.Store(err)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if deleteErr := s.expenseRepo.Delete(txCtx, expense.ID); deleteErr != nil {
			return apperr.Store(deleteErr)
		}
		audit := &model.AuditLog{
			ShopID:   actor.ShopID,
			UserID:   &actor.UserID,
			Action:   model.ActionDeleteExpense,
			EntityID: expense.ID.String(),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return apperr.Store(auditErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityExpenses, EntityID: expense.ID, EventType: pubsub.EventDelete})
	return nil
}

func toExpenseResponse(e model.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:          e.ID.String(),
		Category:    e.Category,
		Description: e.Description,
		Amount:      e.Amount.StringFixed(4),
		IncurredAt:  e.IncurredAt.Format(time.RFC3339),
	}
}

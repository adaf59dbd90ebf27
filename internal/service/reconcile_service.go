package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

type ReturnItemInput struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type ReconcileRequest struct {
	ModificationType string            `json:"modification_type" binding:"required,oneof=price return other"`
	Reason           string            `json:"reason" binding:"required"`
	NewAmount        string            `json:"new_amount"` // price/other: operator-supplied absolute amount
	Items            []ReturnItemInput `json:"items"`      // return: selection of sale items
	// IfModificationID optionally carries the last modification id the
	// caller saw. When set, a reconcile against a superseded baseline is
	// rejected instead of silently winning last-write.
	IfModificationID string `json:"if_modification_id"`
}

type ReconcileResponse struct {
	NewAmount      string `json:"new_amount"`
	ModificationID string `json:"modification_id"`
}

type ReturnedItemResponse struct {
	ItemID      string `json:"item_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	Remaining   int    `json:"remaining"`
	PriceAtSale string `json:"price_at_sale"`
}

type ModificationResponse struct {
	ID               string                 `json:"id"`
	InvoiceID        string                 `json:"invoice_id"`
	ModificationType string                 `json:"modification_type"`
	NewAmount        string                 `json:"new_amount"`
	Reason           string                 `json:"reason"`
	ModifiedBy       string                 `json:"modified_by"`
	ReturnedItems    []ReturnedItemResponse `json:"returned_items,omitempty"`
	CreatedAt        string                 `json:"created_at"`
}

// --- Interface ---

// ReconcileService is the single authority for mutating an invoice's
// displayed amount. Everything else treats Invoice.NewTotalAmount as
// read-only.
type ReconcileService interface {
	Reconcile(ctx context.Context, actor model.Actor, invoiceID string, req ReconcileRequest) (ReconcileResponse, error)
	ListModifications(ctx context.Context, actor model.Actor, invoiceID string) ([]ModificationResponse, error)
}

type reconcileService struct {
	invoiceRepo repository.InvoiceRepository
	saleRepo    repository.SaleRepository
	modRepo     repository.ModificationRepository
	txManager   repository.TransactionManager
	broker      *pubsub.Broker
}

func NewReconcileService(
	invoiceRepo repository.InvoiceRepository,
	saleRepo repository.SaleRepository,
	modRepo repository.ModificationRepository,
	txManager repository.TransactionManager,
	broker *pubsub.Broker,
) ReconcileService {
	return &reconcileService{
		invoiceRepo: invoiceRepo,
		saleRepo:    saleRepo,
		modRepo:     modRepo,
		txManager:   txManager,
		broker:      broker,
	}
}

// --- Implementation ---

// returnSelection is a validated return line.
type returnSelection struct {
	itemID   uuid.UUID
	quantity int
}

func (s *reconcileService) Reconcile(ctx context.Context, actor model.Actor, invoiceID string, req ReconcileRequest) (ReconcileResponse, error) {
	invID, err := uuid.Parse(invoiceID)
	if err != nil {
		return ReconcileResponse{}, apperr.Validation(apperr.CodeNotFound, "invalid invoice id: %v", err)
	}

	if strings.TrimSpace(req.Reason) == "" {
		return ReconcileResponse{}, apperr.Validation(apperr.CodeEmptyReason, "modification reason must not be empty")
	}

	var requestedAmount decimal.Decimal
	var selections []returnSelection

	switch req.ModificationType {
	case model.ModificationPrice, model.ModificationOther:
		requestedAmount, err = decimal.NewFromString(req.NewAmount)
		if err != nil {
			return ReconcileResponse{}, apperr.Validation(apperr.CodeNegativeAmount, "invalid new_amount: %v", err)
		}
		if requestedAmount.IsNegative() {
			return ReconcileResponse{}, apperr.Validation(apperr.CodeNegativeAmount, "new amount must not be negative")
		}
	case model.ModificationReturn:
		if len(req.Items) == 0 {
			return ReconcileResponse{}, apperr.Validation(apperr.CodeNoItemsSelected, "a return requires at least one item")
		}
		// Duplicate selections of the same item are merged so the
		// remaining-quantity check and the audit line see one combined
		// return, not two that each pass individually.
		seen := make(map[uuid.UUID]int, len(req.Items))
		for _, it := range req.Items {
			itemID, parseErr := uuid.Parse(it.ItemID)
			if parseErr != nil {
				return ReconcileResponse{}, apperr.Validation(apperr.CodeInvalidQuantity, "invalid item id %q", it.ItemID)
			}
			if it.Quantity <= 0 {
				return ReconcileResponse{}, apperr.Validation(apperr.CodeInvalidQuantity, "return quantity must be positive")
			}
			if idx, ok := seen[itemID]; ok {
				selections[idx].quantity += it.Quantity
				continue
			}
			seen[itemID] = len(selections)
			selections = append(selections, returnSelection{itemID: itemID, quantity: it.Quantity})
		}
	default:
		return ReconcileResponse{}, apperr.Validation(apperr.CodeInvalidQuantity, "unknown modification type %q", req.ModificationType)
	}

	var ifModID *uuid.UUID
	if req.IfModificationID != "" {
		parsed, parseErr := uuid.Parse(req.IfModificationID)
		if parseErr != nil {
			return ReconcileResponse{}, apperr.Validation(apperr.CodeStaleModification, "invalid if_modification_id: %v", parseErr)
		}
		ifModID = &parsed
	}

	var mod *model.InvoiceModification
	var saleID uuid.UUID
	var returnedProducts []uuid.UUID
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Ownership and baseline are read fresh inside the commit
		// transaction, never from a cached row.
		invoice, findErr := s.invoiceRepo.FindByID(txCtx, invID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperr.NotFound("invoice", invoiceID)
			}
			return apperr.Store(findErr)
		}

		if invoice.ShopID != actor.ShopID {
			return apperr.Authorization("invoice %s does not belong to the actor's shop", invoiceID)
		}

		if ifModID != nil {
			latest, latestErr := s.modRepo.LatestForInvoice(txCtx, invID)
			if latestErr != nil {
				return apperr.Store(latestErr)
			}
			if latest == nil || latest.ID != *ifModID {
				return apperr.Conflict(apperr.CodeStaleModification, "invoice was modified since the caller last read it")
			}
		}

		sale, saleErr := s.saleRepo.FindByIDWithItems(txCtx, invoice.SaleID)
		if saleErr != nil {
			if errors.Is(saleErr, gorm.ErrRecordNotFound) {
				return apperr.NotFound("sale", invoice.SaleID)
			}
			return apperr.Store(saleErr)
		}
		saleID = sale.ID

		// Modifications compose on the currently displayed amount, not the
		// original, so sequential partial returns keep reducing a value
		// that may already reflect a prior adjustment.
		current := invoice.EffectiveAmount(sale.TotalAmount)

		var newAmount decimal.Decimal
		var returnedItems []model.ReturnedItem

		switch req.ModificationType {
		case model.ModificationReturn:
			computed, lines, computeErr := computeReturn(sale.Items, selections)
			if computeErr != nil {
				return computeErr
			}
			newAmount = current.Sub(computed)
			if newAmount.IsNegative() {
				// Clamp: a modification never yields a negative display
				// amount, even on inconsistent operator input.
				newAmount = decimal.Zero
			}
			returnedItems = lines

			byItem := make(map[uuid.UUID]uuid.UUID, len(sale.Items))
			for _, it := range sale.Items {
				byItem[it.ID] = it.ProductID
			}
			dedup := make(map[uuid.UUID]struct{}, len(selections))
			for _, sel := range selections {
				pid := byItem[sel.itemID]
				if _, ok := dedup[pid]; ok {
					continue
				}
				dedup[pid] = struct{}{}
				returnedProducts = append(returnedProducts, pid)
			}
		default:
			newAmount = requestedAmount
		}

		mod = &model.InvoiceModification{
			InvoiceID:        invoice.ID,
			ShopID:           invoice.ShopID,
			ModificationType: req.ModificationType,
			NewAmount:        newAmount,
			Reason:           req.Reason,
			ModifiedBy:       actor.UserID,
			ReturnedItems:    returnedItems,
			CreatedAt:        time.Now(),
		}
		if appendErr := s.modRepo.Append(txCtx, mod); appendErr != nil {
			return apperr.Store(appendErr)
		}

		if updateErr := s.invoiceRepo.ApplyModification(txCtx, invoice.ID, *mod); updateErr != nil {
			return apperr.Store(updateErr)
		}

		// Guarded increments re-check the bound at commit time; a
		// concurrent return that consumed the remaining quantity rolls
		// this whole transaction back.
		for _, sel := range selections {
			ok, incErr := s.saleRepo.IncrementReturned(txCtx, sel.itemID, sel.quantity)
			if incErr != nil {
				return apperr.Store(incErr)
			}
			if !ok {
				return apperr.Conflict(apperr.CodeOverReturn, "item %s no longer has %d units to return", sel.itemID, sel.quantity)
			}
		}

		return nil
	})
	if err != nil {
		return ReconcileResponse{}, err
	}

	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityInvoices, EntityID: invID, EventType: pubsub.EventUpdate})
	s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntitySales, EntityID: saleID, EventType: pubsub.EventUpdate})
	// Returns change effective stock, so inventory read-models must
	// recompute too.
	for _, pid := range returnedProducts {
		s.broker.Publish(pubsub.Event{ShopID: actor.ShopID, EntityType: pubsub.EntityProducts, EntityID: pid, EventType: pubsub.EventUpdate})
	}

	return ReconcileResponse{
		NewAmount:      mod.NewAmount.StringFixed(4),
		ModificationID: mod.ID.String(),
	}, nil
}

// computeReturn values the selected lines at their frozen sale price and
// produces the per-item audit breakdown.
func computeReturn(items []model.SaleItem, selections []returnSelection) (decimal.Decimal, []model.ReturnedItem, error) {
	byID := make(map[uuid.UUID]*model.SaleItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	returnedValue := decimal.Zero
	lines := make([]model.ReturnedItem, 0, len(selections))
	for _, sel := range selections {
		item, ok := byID[sel.itemID]
		if !ok {
			return decimal.Zero, nil, apperr.NotFound("sale item", sel.itemID)
		}
		remaining := item.RemainingQuantity()
		if sel.quantity > remaining {
			return decimal.Zero, nil, apperr.Conflict(apperr.CodeOverReturn,
				"cannot return %d of %q: only %d remaining", sel.quantity, item.ProductName, remaining)
		}

		returnedValue = returnedValue.Add(item.PriceAtSale.Mul(decimal.NewFromInt(int64(sel.quantity))))
		lines = append(lines, model.ReturnedItem{
			ItemID:      item.ID,
			Name:        item.ProductName,
			Quantity:    sel.quantity,
			Remaining:   remaining - sel.quantity,
			PriceAtSale: item.PriceAtSale,
		})
	}
	return returnedValue, lines, nil
}

func (s *reconcileService) ListModifications(ctx context.Context, actor model.Actor, invoiceID string) ([]ModificationResponse, error) {
	invID, err := uuid.Parse(invoiceID)
	if err != nil {
		return nil, apperr.Validation(apperr.CodeNotFound, "invalid invoice id: %v", err)
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, invID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice", invoiceID)
		}
		return nil, apperr.Store(err)
	}
	if invoice.ShopID != actor.ShopID {
		return nil, apperr.Authorization("invoice %s does not belong to the actor's shop", invoiceID)
	}

	mods, err := s.modRepo.ListByInvoice(ctx, invID)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("failed to list modifications: %w", err))
	}

	result := make([]ModificationResponse, 0, len(mods))
	for _, m := range mods {
		result = append(result, toModificationResponse(m))
	}
	return result, nil
}

// --- Mapping ---

func toModificationResponse(m model.InvoiceModification) ModificationResponse {
	resp := ModificationResponse{
		ID:               m.ID.String(),
		InvoiceID:        m.InvoiceID.String(),
		ModificationType: m.ModificationType,
		NewAmount:        m.NewAmount.StringFixed(4),
		Reason:           m.Reason,
		ModifiedBy:       m.ModifiedBy.String(),
		CreatedAt:        m.CreatedAt.Format(time.RFC3339),
	}
	for _, ri := range m.ReturnedItems {
		resp.ReturnedItems = append(resp.ReturnedItems, ReturnedItemResponse{
			ItemID:      ri.ItemID.String(),
			Name:        ri.Name,
			Quantity:    ri.Quantity,
			Remaining:   ri.Remaining,
			PriceAtSale: ri.PriceAtSale.StringFixed(4),
		})
	}
	return resp
}

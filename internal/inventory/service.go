package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stockroom-hq/stockroom/internal/audit"
	"github.com/stockroom-hq/stockroom/internal/notification"
	"github.com/stockroom-hq/stockroom/internal/platform/db"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, itemID int64) (Item, error)
	List(ctx context.Context, filter ListFilter) ([]Item, int, error)
	LowStock(ctx context.Context) ([]Item, error)
	OutOfStock(ctx context.Context) ([]Item, error)
	Summary(ctx context.Context) (Summary, error)
}

// NotifierPort delivers emitted alerts after the triggering transaction has
// committed. Delivery failures stay inside the notifier.
type NotifierPort interface {
	DispatchAll(ctx context.Context, intents []notification.Intent)
}

// Service owns item quantities. Every mutating call is one transaction:
// quantity write plus audit entry; alerts are dispatched best-effort after
// commit and never roll the mutation back.
type Service struct {
	repo     RepositoryPort
	notifier NotifierPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, notifier NotifierPort) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// withTx runs fn in one transaction, surfacing transient store failures so
// callers can retry instead of seeing an opaque internal error.
func (s *Service) withTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := s.repo.WithTx(ctx, fn)
	if err != nil && db.IsUnavailable(err) {
		return fmt.Errorf("inventory: %v: %w", err, shared.ErrStoreUnavailable)
	}
	return err
}

// CreateInput describes a new item.
type CreateInput struct {
	SKU             string
	Name            string
	Description     string
	CategoryID      int64
	LocationID      int64
	InitialQuantity int64
	UnitPrice       decimal.Decimal
	ReorderLevel    int64
	ReorderQuantity int64
	SupplierID      int64
	Barcode         string
	ActorID         int64
}

// UpdateInput carries the non-ledger fields of an item. Quantity is absent;
// it moves only through stock operations.
type UpdateInput struct {
	ItemID          int64
	Name            string
	Description     string
	CategoryID      int64
	LocationID      int64
	UnitPrice       decimal.Decimal
	ReorderLevel    int64
	ReorderQuantity int64
	SupplierID      int64
	Barcode         string
	ActorID         int64
}

// StockInput describes one stock movement.
type StockInput struct {
	ItemID   int64
	Quantity int64
	ActorID  int64
	Notes    string
}

// Create registers a new item. SKUs are unique forever, including against
// deactivated items.
func (s *Service) Create(ctx context.Context, input CreateInput) (Item, error) {
	if !ValidSKU(input.SKU) {
		return Item{}, fmt.Errorf("inventory: sku must be 3-32 uppercase letters, digits or dashes: %w", shared.ErrValidation)
	}
	if input.Name == "" || input.CategoryID == 0 || input.LocationID == 0 || input.ActorID == 0 {
		return Item{}, fmt.Errorf("inventory: name, category, location and actor required: %w", shared.ErrValidation)
	}
	if input.InitialQuantity < 0 {
		return Item{}, fmt.Errorf("inventory: initial quantity must be >= 0: %w", shared.ErrValidation)
	}
	if input.UnitPrice.IsNegative() {
		return Item{}, fmt.Errorf("inventory: unit price must be >= 0: %w", shared.ErrValidation)
	}
	item := Item{
		SKU:             input.SKU,
		Name:            input.Name,
		Description:     input.Description,
		CategoryID:      input.CategoryID,
		LocationID:      input.LocationID,
		Quantity:        input.InitialQuantity,
		UnitPrice:       input.UnitPrice,
		ReorderLevel:    input.ReorderLevel,
		ReorderQuantity: input.ReorderQuantity,
		SupplierID:      input.SupplierID,
		Barcode:         input.Barcode,
		IsActive:        true,
		CreatedBy:       input.ActorID,
	}
	if item.ReorderLevel <= 0 {
		item.ReorderLevel = 10
	}
	if item.ReorderQuantity <= 0 {
		item.ReorderQuantity = 50
	}

	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.SKUExists(ctx, item.SKU)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("inventory: sku %q already registered: %w", item.SKU, shared.ErrDuplicateSKU)
		}
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return fmt.Errorf("inventory: sku %q already registered: %w", item.SKU, shared.ErrDuplicateSKU)
			}
			return err
		}
		item.ID = id
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, input.ActorID, ActionCreateItem, id, "", snapshot(item),
			fmt.Sprintf("Created inventory item: %s (SKU: %s)", item.Name, item.SKU)))
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// Update rewrites the non-ledger fields of an item.
func (s *Service) Update(ctx context.Context, input UpdateInput) (Item, error) {
	if input.ItemID == 0 || input.ActorID == 0 {
		return Item{}, fmt.Errorf("inventory: item and actor required: %w", shared.ErrValidation)
	}
	if input.UnitPrice.IsNegative() {
		return Item{}, fmt.Errorf("inventory: unit price must be >= 0: %w", shared.ErrValidation)
	}
	var updated Item
	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.ItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		before := snapshot(item)
		item.Name = input.Name
		item.Description = input.Description
		item.CategoryID = input.CategoryID
		item.LocationID = input.LocationID
		item.UnitPrice = input.UnitPrice
		item.ReorderLevel = input.ReorderLevel
		item.ReorderQuantity = input.ReorderQuantity
		item.SupplierID = input.SupplierID
		item.Barcode = input.Barcode
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		updated = item
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, input.ActorID, ActionUpdateItem, item.ID, before, snapshot(item),
			fmt.Sprintf("Updated inventory item: %s (SKU: %s)", item.Name, item.SKU)))
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return updated, nil
}

// AddStock increments quantity. When the item climbs back above its reorder
// level the actor is told the stock is restored.
func (s *Service) AddStock(ctx context.Context, input StockInput) (Item, error) {
	var (
		item    Item
		intents []notification.Intent
	)
	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, intents, err = s.ApplyAdd(ctx, tx, input)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.dispatch(ctx, intents)
	return item, nil
}

// RemoveStock decrements quantity, never below zero. Dropping to or below the
// reorder level fans a low-stock alert out to inventory managers.
func (s *Service) RemoveStock(ctx context.Context, input StockInput) (Item, error) {
	var (
		item    Item
		intents []notification.Intent
	)
	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, intents, err = s.ApplyRemove(ctx, tx, input)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.dispatch(ctx, intents)
	return item, nil
}

// ApplyAdd performs the increment inside the caller's transaction and returns
// the alert intents the caller must dispatch after commit. Purchase order
// delivery composes this per line item.
func (s *Service) ApplyAdd(ctx context.Context, tx StockTx, input StockInput) (Item, []notification.Intent, error) {
	if input.Quantity <= 0 {
		return Item{}, nil, fmt.Errorf("inventory: quantity must be positive: %w", shared.ErrValidation)
	}
	if input.ActorID == 0 {
		return Item{}, nil, fmt.Errorf("inventory: actor required: %w", shared.ErrValidation)
	}
	item, err := tx.ItemForUpdate(ctx, input.ItemID)
	if err != nil {
		return Item{}, nil, err
	}
	if !item.IsActive {
		return Item{}, nil, fmt.Errorf("%w: item %d", ErrItemInactive, item.ID)
	}
	before := item
	item.Quantity += input.Quantity
	if err := tx.SetItemQuantity(ctx, item.ID, item.Quantity); err != nil {
		return Item{}, nil, err
	}
	notes := input.Notes
	if notes == "" {
		notes = fmt.Sprintf("Added %d units", input.Quantity)
	}
	if _, err := tx.InsertAuditEntry(ctx, s.entry(ctx, input.ActorID, ActionAddStock, item.ID, snapshot(before), snapshot(item), notes)); err != nil {
		return Item{}, nil, err
	}

	var intents []notification.Intent
	if before.NeedsReorder() && !item.NeedsReorder() {
		intents = append(intents, notification.Intent{
			Target: notification.ToUser(input.ActorID),
			Note: notification.Note{
				Title:    "Stock Restored",
				Body:     fmt.Sprintf("Item '%s' (SKU: %s) stock has been restored to normal levels.", item.Name, item.SKU),
				Severity: notification.SeveritySuccess,
			},
		})
	}
	return item, intents, nil
}

// ApplyRemove performs the decrement inside the caller's transaction. It
// fails without touching state when the request exceeds the current quantity.
func (s *Service) ApplyRemove(ctx context.Context, tx StockTx, input StockInput) (Item, []notification.Intent, error) {
	if input.Quantity <= 0 {
		return Item{}, nil, fmt.Errorf("inventory: quantity must be positive: %w", shared.ErrValidation)
	}
	if input.ActorID == 0 {
		return Item{}, nil, fmt.Errorf("inventory: actor required: %w", shared.ErrValidation)
	}
	item, err := tx.ItemForUpdate(ctx, input.ItemID)
	if err != nil {
		return Item{}, nil, err
	}
	if !item.IsActive {
		return Item{}, nil, fmt.Errorf("%w: item %d", ErrItemInactive, item.ID)
	}
	if input.Quantity > item.Quantity {
		return Item{}, nil, fmt.Errorf("inventory: cannot remove %d of %d on hand: %w", input.Quantity, item.Quantity, shared.ErrInsufficientStock)
	}
	before := item
	item.Quantity -= input.Quantity
	if err := tx.SetItemQuantity(ctx, item.ID, item.Quantity); err != nil {
		return Item{}, nil, err
	}
	notes := input.Notes
	if notes == "" {
		notes = fmt.Sprintf("Removed %d units", input.Quantity)
	}
	if _, err := tx.InsertAuditEntry(ctx, s.entry(ctx, input.ActorID, ActionRemoveStock, item.ID, snapshot(before), snapshot(item), notes)); err != nil {
		return Item{}, nil, err
	}

	var intents []notification.Intent
	if item.NeedsReorder() {
		intents = append(intents, notification.Intent{
			Target: notification.ToRoles(shared.InventoryManagementRoles...),
			Note: notification.Note{
				Title:    "Low Stock Alert",
				Body:     fmt.Sprintf("Item '%s' (SKU: %s) is running low on stock. Current quantity: %d", item.Name, item.SKU, item.Quantity),
				Severity: notification.SeverityWarning,
			},
		})
	}
	return item, intents, nil
}

// Deactivate soft-deletes an item. Deactivating twice is a no-op.
func (s *Service) Deactivate(ctx context.Context, itemID, actorID int64) error {
	if itemID == 0 || actorID == 0 {
		return fmt.Errorf("inventory: item and actor required: %w", shared.ErrValidation)
	}
	return s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.IsActive {
			return nil
		}
		if err := tx.SetItemActive(ctx, itemID, false); err != nil {
			return err
		}
		deactivated := item
		deactivated.IsActive = false
		_, err = tx.InsertAuditEntry(ctx, s.entry(ctx, actorID, ActionDeactivateItem, itemID, snapshot(item), snapshot(deactivated),
			fmt.Sprintf("Deactivated inventory item: %s (SKU: %s)", item.Name, item.SKU)))
		return err
	})
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, itemID int64) (Item, error) {
	return s.repo.GetItem(ctx, itemID)
}

// List returns active items matching the filter plus the unpaged total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	return s.repo.List(ctx, filter)
}

// LowStock returns active items at or below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]Item, error) {
	return s.repo.LowStock(ctx)
}

// OutOfStock returns active items with zero quantity.
func (s *Service) OutOfStock(ctx context.Context) ([]Item, error) {
	return s.repo.OutOfStock(ctx)
}

// Summarize aggregates ledger statistics.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	return s.repo.Summary(ctx)
}

func (s *Service) dispatch(ctx context.Context, intents []notification.Intent) {
	if s.notifier == nil || len(intents) == 0 {
		return
	}
	s.notifier.DispatchAll(ctx, intents)
}

func (s *Service) entry(ctx context.Context, actorID int64, action string, itemID int64, oldValue, newValue, notes string) audit.Entry {
	origin := shared.OriginFromContext(ctx)
	return audit.Entry{
		ActorID:    actorID,
		Action:     action,
		EntityType: audit.EntityInventoryItem,
		EntityID:   itemID,
		OldValue:   oldValue,
		NewValue:   newValue,
		Notes:      notes,
		IP:         origin.IP,
		UserAgent:  origin.UserAgent,
		RequestID:  origin.RequestID,
	}
}

type itemSnapshot struct {
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
	Status   Status `json:"status"`
	Active   bool   `json:"active"`
}

func snapshot(item Item) string {
	raw, _ := json.Marshal(itemSnapshot{
		SKU:      item.SKU,
		Quantity: item.Quantity,
		Status:   item.Status(),
		Active:   item.IsActive,
	})
	return string(raw)
}

package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockroom-hq/stockroom/internal/audit"
	"github.com/stockroom-hq/stockroom/internal/notification"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

type memoryInvRepo struct {
	items   map[int64]Item
	entries []audit.Entry
	nextID  int64
	txErr   error
}

func newMemoryInvRepo() *memoryInvRepo {
	return &memoryInvRepo{items: make(map[int64]Item)}
}

type memoryInvTx struct {
	repo    *memoryInvRepo
	items   map[int64]Item
	entries []audit.Entry
	nextID  int64
}

func (r *memoryInvRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.txErr != nil {
		return r.txErr
	}
	tx := &memoryInvTx{repo: r, items: make(map[int64]Item, len(r.items)), nextID: r.nextID}
	for id, item := range r.items {
		tx.items[id] = item
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.items = tx.items
	r.entries = append(r.entries, tx.entries...)
	r.nextID = tx.nextID
	return nil
}

func (r *memoryInvRepo) GetItem(ctx context.Context, itemID int64) (Item, error) {
	item, ok := r.items[itemID]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	return item, nil
}

func (r *memoryInvRepo) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	var out []Item
	for _, item := range r.items {
		if item.IsActive {
			out = append(out, item)
		}
	}
	return out, len(out), nil
}

func (r *memoryInvRepo) LowStock(ctx context.Context) ([]Item, error) {
	var out []Item
	for _, item := range r.items {
		if item.IsActive && item.NeedsReorder() {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memoryInvRepo) OutOfStock(ctx context.Context) ([]Item, error) {
	var out []Item
	for _, item := range r.items {
		if item.IsActive && item.Quantity == 0 {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memoryInvRepo) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	for _, item := range r.items {
		if !item.IsActive {
			continue
		}
		s.TotalItems++
		s.TotalValue = s.TotalValue.Add(item.TotalValue())
		if item.NeedsReorder() {
			s.LowStockCount++
		}
		if item.Quantity == 0 {
			s.OutOfStock++
		}
	}
	return s, nil
}

func (tx *memoryInvTx) ItemForUpdate(ctx context.Context, itemID int64) (Item, error) {
	item, ok := tx.items[itemID]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	return item, nil
}

func (tx *memoryInvTx) SetItemQuantity(ctx context.Context, itemID, quantity int64) error {
	item := tx.items[itemID]
	item.Quantity = quantity
	tx.items[itemID] = item
	return nil
}

func (tx *memoryInvTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	tx.nextID++
	item.ID = tx.nextID
	tx.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryInvTx) UpdateItem(ctx context.Context, item Item) error {
	tx.items[item.ID] = item
	return nil
}

func (tx *memoryInvTx) SetItemActive(ctx context.Context, itemID int64, active bool) error {
	item := tx.items[itemID]
	item.IsActive = active
	tx.items[itemID] = item
	return nil
}

func (tx *memoryInvTx) SKUExists(ctx context.Context, sku string) (bool, error) {
	for _, item := range tx.items {
		if item.SKU == sku {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryInvTx) InsertAuditEntry(ctx context.Context, entry audit.Entry) (int64, error) {
	tx.entries = append(tx.entries, entry)
	return int64(len(tx.entries)), nil
}

type captureNotifier struct {
	intents []notification.Intent
}

func (n *captureNotifier) DispatchAll(ctx context.Context, intents []notification.Intent) {
	n.intents = append(n.intents, intents...)
}

func seedItem(t *testing.T, svc *Service, quantity, reorderLevel int64) Item {
	t.Helper()
	item, err := svc.Create(context.Background(), CreateInput{
		SKU:             "SKU-1",
		Name:            "Hex Bolts M8",
		CategoryID:      1,
		LocationID:      1,
		InitialQuantity: quantity,
		UnitPrice:       decimal.NewFromInt(3),
		ReorderLevel:    reorderLevel,
		ReorderQuantity: 50,
		ActorID:         7,
	})
	require.NoError(t, err)
	return item
}

func TestCreateDefaultsAndDuplicateSKU(t *testing.T) {
	repo := newMemoryInvRepo()
	svc := NewService(repo, nil)

	item, err := svc.Create(context.Background(), CreateInput{
		SKU:        "BOLT-M8",
		Name:       "Hex Bolts M8",
		CategoryID: 1,
		LocationID: 1,
		UnitPrice:  decimal.NewFromInt(3),
		ActorID:    7,
	})
	require.NoError(t, err)
	require.EqualValues(t, 10, item.ReorderLevel)
	require.EqualValues(t, 50, item.ReorderQuantity)
	require.True(t, item.IsActive)

	_, err = svc.Create(context.Background(), CreateInput{
		SKU:        "BOLT-M8",
		Name:       "Different name",
		CategoryID: 1,
		LocationID: 1,
		ActorID:    7,
	})
	require.ErrorIs(t, err, shared.ErrDuplicateSKU)

	// Deactivated items still hold their SKU.
	require.NoError(t, svc.Deactivate(context.Background(), item.ID, 7))
	_, err = svc.Create(context.Background(), CreateInput{
		SKU:        "BOLT-M8",
		Name:       "Again",
		CategoryID: 1,
		LocationID: 1,
		ActorID:    7,
	})
	require.ErrorIs(t, err, shared.ErrDuplicateSKU)
}

func TestCreateRejectsBadSKU(t *testing.T) {
	svc := NewService(newMemoryInvRepo(), nil)
	bad := []string{
		"",
		"AB",
		"HAS SPACE",
		"lower-case",
		"-LEADS-WITH-DASH",
		"BAD*CHAR",
		strings.Repeat("X", 33),
	}
	for _, sku := range bad {
		_, err := svc.Create(context.Background(), CreateInput{
			SKU: sku, Name: "x", CategoryID: 1, LocationID: 1, ActorID: 7,
		})
		require.ErrorIs(t, err, shared.ErrValidation, "sku %q", sku)
	}

	require.True(t, ValidSKU("PKG-BOX-1"))
	require.True(t, ValidSKU(strings.Repeat("X", 32)))
}

func TestRemoveStockInsufficientLeavesState(t *testing.T) {
	repo := newMemoryInvRepo()
	svc := NewService(repo, nil)
	item := seedItem(t, svc, 5, 2)
	audited := len(repo.entries)

	_, err := svc.RemoveStock(context.Background(), StockInput{ItemID: item.ID, Quantity: 6, ActorID: 7})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	got, err := svc.Get(context.Background(), item.ID)
	require.NoError(t, err)
	require.EqualValues(t, 5, got.Quantity)
	require.Len(t, repo.entries, audited, "failed removal must not audit")
}

func TestStockScenarioEmitsAlerts(t *testing.T) {
	repo := newMemoryInvRepo()
	notifier := &captureNotifier{}
	svc := NewService(repo, notifier)
	item := seedItem(t, svc, 5, 10) // already at low stock

	// 5 -> 55: climbs above reorder level, actor gets a restored note.
	got, err := svc.AddStock(context.Background(), StockInput{ItemID: item.ID, Quantity: 50, ActorID: 7})
	require.NoError(t, err)
	require.EqualValues(t, 55, got.Quantity)
	require.Equal(t, StatusInStock, got.Status())
	require.Len(t, notifier.intents, 1)
	require.Equal(t, "Stock Restored", notifier.intents[0].Note.Title)
	require.EqualValues(t, 7, notifier.intents[0].Target.UserID)

	// 55 -> 8: back at or below reorder level, managers get the alert.
	notifier.intents = nil
	got, err = svc.RemoveStock(context.Background(), StockInput{ItemID: item.ID, Quantity: 47, ActorID: 7})
	require.NoError(t, err)
	require.EqualValues(t, 8, got.Quantity)
	require.Equal(t, StatusLowStock, got.Status())
	require.Len(t, notifier.intents, 1)
	require.Equal(t, "Low Stock Alert", notifier.intents[0].Note.Title)
	require.Equal(t, shared.InventoryManagementRoles, notifier.intents[0].Target.Roles)

	// Staying below the level on add emits nothing.
	notifier.intents = nil
	_, err = svc.AddStock(context.Background(), StockInput{ItemID: item.ID, Quantity: 1, ActorID: 7})
	require.NoError(t, err)
	require.Empty(t, notifier.intents)
}

func TestEveryMutationAudits(t *testing.T) {
	repo := newMemoryInvRepo()
	svc := NewService(repo, nil)
	item := seedItem(t, svc, 20, 5)
	require.Len(t, repo.entries, 1)
	require.Equal(t, ActionCreateItem, repo.entries[0].Action)

	_, err := svc.AddStock(context.Background(), StockInput{ItemID: item.ID, Quantity: 5, ActorID: 7})
	require.NoError(t, err)
	_, err = svc.RemoveStock(context.Background(), StockInput{ItemID: item.ID, Quantity: 3, ActorID: 7})
	require.NoError(t, err)
	require.Len(t, repo.entries, 3)

	last := repo.entries[2]
	require.Equal(t, ActionRemoveStock, last.Action)
	require.Equal(t, audit.EntityInventoryItem, last.EntityType)
	require.EqualValues(t, 7, last.ActorID)

	var after itemSnapshot
	require.NoError(t, json.Unmarshal([]byte(last.NewValue), &after))
	require.EqualValues(t, 22, after.Quantity)
	require.Equal(t, "SKU-1", after.SKU)
}

func TestDeactivateIdempotentAndBlocksStock(t *testing.T) {
	repo := newMemoryInvRepo()
	svc := NewService(repo, nil)
	item := seedItem(t, svc, 10, 5)

	require.NoError(t, svc.Deactivate(context.Background(), item.ID, 7))
	audited := len(repo.entries)
	require.NoError(t, svc.Deactivate(context.Background(), item.ID, 7))
	require.Len(t, repo.entries, audited, "second deactivate is a no-op")

	_, err := svc.AddStock(context.Background(), StockInput{ItemID: item.ID, Quantity: 1, ActorID: 7})
	require.ErrorIs(t, err, ErrItemInactive)
	_, err = svc.RemoveStock(context.Background(), StockInput{ItemID: item.ID, Quantity: 1, ActorID: 7})
	require.ErrorIs(t, err, ErrItemInactive)
}

func TestStatusDerivation(t *testing.T) {
	item := Item{Quantity: 0, ReorderLevel: 10}
	require.Equal(t, StatusOutOfStock, item.Status())
	item.Quantity = 10
	require.Equal(t, StatusLowStock, item.Status())
	item.Quantity = 11
	require.Equal(t, StatusInStock, item.Status())
}

func TestMutationsSurfaceStoreOutage(t *testing.T) {
	repo := newMemoryInvRepo()
	svc := NewService(repo, &captureNotifier{})
	item := seedItem(t, svc, 5, 2)

	repo.txErr = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	_, err := svc.AddStock(context.Background(), StockInput{ItemID: item.ID, Quantity: 1, ActorID: 7})
	require.ErrorIs(t, err, shared.ErrStoreUnavailable)

	_, err = svc.Create(context.Background(), CreateInput{SKU: "SKU-9", Name: "Widget", CategoryID: 1, LocationID: 1, ActorID: 7})
	require.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

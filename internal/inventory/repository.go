package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-hq/stockroom/internal/audit"
	"github.com/stockroom-hq/stockroom/internal/platform/db"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

// StockTx is the narrow port a composing transaction (the ledger's own, or a
// purchase order delivery) needs to mutate stock with its audit entry.
type StockTx interface {
	ItemForUpdate(ctx context.Context, itemID int64) (Item, error)
	SetItemQuantity(ctx context.Context, itemID, quantity int64) error
	audit.RecorderTx
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	StockTx
	InsertItem(ctx context.Context, item Item) (int64, error)
	UpdateItem(ctx context.Context, item Item) error
	SetItemActive(ctx context.Context, itemID int64, active bool) error
	SKUExists(ctx context.Context, sku string) (bool, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const itemColumns = `id, sku, name, COALESCE(description,''), category_id, location_id, quantity, unit_price, reorder_level, reorder_quantity, COALESCE(supplier_id,0), COALESCE(barcode,''), is_active, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.SKU, &item.Name, &item.Description, &item.CategoryID, &item.LocationID,
		&item.Quantity, &item.UnitPrice, &item.ReorderLevel, &item.ReorderQuantity, &item.SupplierID,
		&item.Barcode, &item.IsActive, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

// StockTxFromPgx adapts an open transaction to the StockTx port so composing
// modules (purchase order delivery) can mutate stock inside their own
// transaction boundary.
func StockTxFromPgx(tx pgx.Tx) StockTx {
	return &txRepo{tx: tx}
}

// GetItem returns one item by id.
func (r *Repository) GetItem(ctx context.Context, itemID int64) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("inventory: item %d: %w", itemID, shared.ErrNotFound)
	}
	return item, err
}

// List returns active items matching the filter plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	var (
		conds = []string{"is_active"}
		args  []any
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.LocationID != 0 {
		args = append(args, filter.LocationID)
		conds = append(conds, fmt.Sprintf("location_id = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM inventory_items%s ORDER BY name LIMIT $%d OFFSET $%d`,
		itemColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// LowStock returns active items at or below their reorder level.
func (r *Repository) LowStock(ctx context.Context) ([]Item, error) {
	return r.listWhere(ctx, `is_active AND quantity <= reorder_level`)
}

// OutOfStock returns active items with zero quantity.
func (r *Repository) OutOfStock(ctx context.Context) ([]Item, error) {
	return r.listWhere(ctx, `is_active AND quantity = 0`)
}

func (r *Repository) listWhere(ctx context.Context, cond string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE `+cond+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Summary aggregates ledger statistics over active items.
func (r *Repository) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(quantity * unit_price), 0),
       COUNT(*) FILTER (WHERE quantity <= reorder_level),
       COUNT(*) FILTER (WHERE quantity = 0)
FROM inventory_items
WHERE is_active`).Scan(&s.TotalItems, &s.TotalValue, &s.LowStockCount, &s.OutOfStock)
	return s, err
}

func (r *txRepo) ItemForUpdate(ctx context.Context, itemID int64) (Item, error) {
	item, err := scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1 FOR UPDATE`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("inventory: item %d: %w", itemID, shared.ErrNotFound)
	}
	return item, err
}

func (r *txRepo) SetItemQuantity(ctx context.Context, itemID, quantity int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_items SET quantity=$2, updated_at=NOW() WHERE id=$1`, itemID, quantity)
	return err
}

func (r *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var supplierID any
	if item.SupplierID != 0 {
		supplierID = item.SupplierID
	}
	var id int64
	err := r.tx.QueryRow(ctx, `
INSERT INTO inventory_items (sku, name, description, category_id, location_id, quantity, unit_price, reorder_level, reorder_quantity, supplier_id, barcode, is_active, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12, NOW(), NOW())
RETURNING id`,
		item.SKU, item.Name, item.Description, item.CategoryID, item.LocationID,
		item.Quantity, item.UnitPrice, item.ReorderLevel, item.ReorderQuantity,
		supplierID, item.Barcode, item.CreatedBy,
	).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateItem(ctx context.Context, item Item) error {
	var supplierID any
	if item.SupplierID != 0 {
		supplierID = item.SupplierID
	}
	_, err := r.tx.Exec(ctx, `
UPDATE inventory_items
SET name=$2, description=$3, category_id=$4, location_id=$5, unit_price=$6,
    reorder_level=$7, reorder_quantity=$8, supplier_id=$9, barcode=$10, updated_at=NOW()
WHERE id=$1`,
		item.ID, item.Name, item.Description, item.CategoryID, item.LocationID,
		item.UnitPrice, item.ReorderLevel, item.ReorderQuantity, supplierID, item.Barcode)
	return err
}

func (r *txRepo) SetItemActive(ctx context.Context, itemID int64, active bool) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_items SET is_active=$2, updated_at=NOW() WHERE id=$1`, itemID, active)
	return err
}

// SKUExists checks registration including soft-deactivated rows; SKUs are
// never recycled.
func (r *txRepo) SKUExists(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT true FROM inventory_items WHERE sku=$1 LIMIT 1`, sku).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return exists, err
}

func (r *txRepo) InsertAuditEntry(ctx context.Context, entry audit.Entry) (int64, error) {
	return audit.InsertTx(ctx, r.tx, entry)
}

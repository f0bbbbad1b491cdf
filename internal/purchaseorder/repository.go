package purchaseorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockroom-hq/stockroom/internal/audit"
	"github.com/stockroom-hq/stockroom/internal/inventory"
	"github.com/stockroom-hq/stockroom/internal/platform/db"
	"github.com/stockroom-hq/stockroom/internal/sequence"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

// TxRepository exposes the transactional operations used by the service.
// It embeds the inventory stock port and the sequence counter port so a
// delivery's stock increments and a creation's number assignment share the
// order's transaction.
type TxRepository interface {
	inventory.StockTx
	sequence.CounterTx
	OrderForUpdate(ctx context.Context, orderID int64) (Order, error)
	OrderLines(ctx context.Context, orderID int64) ([]Line, error)
	InsertOrder(ctx context.Context, order Order) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	UpdateLine(ctx context.Context, line Line) error
	DeleteLine(ctx context.Context, lineID int64) error
	SetOrderStatus(ctx context.Context, orderID int64, status Status, approvedBy int64, approvedAt time.Time) error
	SetOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
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
	inventory.StockTx
	sequence.TxIncrementer
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			StockTx:       inventory.StockTxFromPgx(tx),
			TxIncrementer: sequence.TxIncrementer{Tx: tx},
			tx:            tx,
		})
	})
}

const orderColumns = `id, po_number, supplier_id, status, total_amount, currency, COALESCE(delivery_date, 'epoch'::date), COALESCE(delivery_address,''), COALESCE(notes,''), created_by, COALESCE(approved_by,0), COALESCE(approved_at, 'epoch'::timestamptz), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.PONumber, &o.SupplierID, &status, &o.TotalAmount, &o.Currency,
		&o.DeliveryDate, &o.DeliveryAddress, &o.Notes, &o.CreatedBy, &o.ApprovedBy, &o.ApprovedAt,
		&o.CreatedAt, &o.UpdatedAt)
	o.Status = Status(status)
	return o, err
}

// GetOrder returns one order with its lines.
func (r *Repository) GetOrder(ctx context.Context, orderID int64) (Order, []Line, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, nil, fmt.Errorf("purchaseorder: order %d: %w", orderID, shared.ErrNotFound)
	}
	if err != nil {
		return Order{}, nil, err
	}
	lines, err := queryLines(ctx, r.pool, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	return order, lines, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q querier, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `
SELECT id, purchase_order_id, inventory_item_id, quantity, unit_price, COALESCE(notes,''), created_at
FROM purchase_order_items WHERE purchase_order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.OrderID, &line.InventoryItemID, &line.Quantity, &line.UnitPrice, &line.Notes, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// List returns orders matching the filter, newest-first, plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SupplierID != 0 {
		args = append(args, filter.SupplierID)
		conds = append(conds, fmt.Sprintf("supplier_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(po_number ILIKE $%d OR notes ILIKE $%d)", n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM purchase_orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	return orders, total, rows.Err()
}

// Summary aggregates workflow statistics.
func (r *Repository) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'pending'),
       COUNT(*) FILTER (WHERE status = 'approved'),
       COUNT(*) FILTER (WHERE status = 'delivered'),
       COALESCE(SUM(total_amount), 0)
FROM purchase_orders`).Scan(&s.TotalOrders, &s.PendingOrders, &s.ApprovedOrders, &s.DeliveredOrders, &s.TotalValue)
	return s, err
}

func (r *txRepo) OrderForUpdate(ctx context.Context, orderID int64) (Order, error) {
	order, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("purchaseorder: order %d: %w", orderID, shared.ErrNotFound)
	}
	return order, err
}

func (r *txRepo) OrderLines(ctx context.Context, orderID int64) ([]Line, error) {
	return queryLines(ctx, r.tx, orderID)
}

func (r *txRepo) InsertOrder(ctx context.Context, order Order) (int64, error) {
	var deliveryDate any
	if !order.DeliveryDate.IsZero() {
		deliveryDate = order.DeliveryDate
	}
	var id int64
	err := r.tx.QueryRow(ctx, `
INSERT INTO purchase_orders (po_number, supplier_id, status, total_amount, currency, delivery_date, delivery_address, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
RETURNING id`,
		order.PONumber, order.SupplierID, string(order.Status), order.TotalAmount, order.Currency,
		deliveryDate, order.DeliveryAddress, order.Notes, order.CreatedBy,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
INSERT INTO purchase_order_items (purchase_order_id, inventory_item_id, quantity, unit_price, notes, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
RETURNING id`,
		line.OrderID, line.InventoryItemID, line.Quantity, line.UnitPrice, line.Notes,
	).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateLine(ctx context.Context, line Line) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_order_items SET quantity=$2, unit_price=$3, notes=$4 WHERE id=$1`,
		line.ID, line.Quantity, line.UnitPrice, line.Notes)
	return err
}

func (r *txRepo) DeleteLine(ctx context.Context, lineID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE id=$1`, lineID)
	return err
}

func (r *txRepo) SetOrderStatus(ctx context.Context, orderID int64, status Status, approvedBy int64, approvedAt time.Time) error {
	var by, at any
	if approvedBy != 0 {
		by = approvedBy
		at = approvedAt
	}
	_, err := r.tx.Exec(ctx, `
UPDATE purchase_orders
SET status=$2, approved_by=COALESCE($3, approved_by), approved_at=COALESCE($4, approved_at), updated_at=NOW()
WHERE id=$1`, orderID, string(status), by, at)
	return err
}

func (r *txRepo) SetOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET total_amount=$2, updated_at=NOW() WHERE id=$1`, orderID, total)
	return err
}

// InsertAuditEntry satisfies audit.RecorderTx on the order transaction.
func (r *txRepo) InsertAuditEntry(ctx context.Context, entry audit.Entry) (int64, error) {
	return audit.InsertTx(ctx, r.tx, entry)
}

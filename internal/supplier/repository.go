package supplier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-hq/stockroom/internal/audit"
	"github.com/stockroom-hq/stockroom/internal/platform/db"
	"github.com/stockroom-hq/stockroom/internal/sequence"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

// TxRepository exposes the transactional operations used by the service.
// The sequence counter rides the same transaction so a rolled back creation
// never burns a visible code.
type TxRepository interface {
	sequence.CounterTx
	audit.RecorderTx
	SupplierForUpdate(ctx context.Context, supplierID int64) (Supplier, error)
	InsertSupplier(ctx context.Context, s Supplier) (int64, error)
	UpdateSupplier(ctx context.Context, s Supplier) error
	SetSupplierActive(ctx context.Context, supplierID int64, active bool) error
	SetSupplierRating(ctx context.Context, supplierID int64, rating int) error
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
	sequence.TxIncrementer
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, TxIncrementer: sequence.TxIncrementer{Tx: tx}})
	})
}

const supplierColumns = `id, code, name, COALESCE(contact_person,''), COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''), COALESCE(tax_id,''), COALESCE(payment_terms,''), rating, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSupplier(row rowScanner) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.ContactPerson, &s.Email, &s.Phone, &s.Address,
		&s.TaxID, &s.PaymentTerms, &s.Rating, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *txRepo) SupplierForUpdate(ctx context.Context, supplierID int64) (Supplier, error) {
	s, err := scanSupplier(r.tx.QueryRow(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE id=$1 FOR UPDATE`, supplierID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("supplier: %d: %w", supplierID, shared.ErrNotFound)
	}
	return s, err
}

func (r *txRepo) InsertSupplier(ctx context.Context, s Supplier) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO suppliers (code, name, contact_person, email, phone, address, tax_id, payment_terms, rating, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
		RETURNING id`,
		s.Code, s.Name, s.ContactPerson, s.Email, s.Phone, s.Address, s.TaxID, s.PaymentTerms, s.Rating, s.IsActive,
	).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateSupplier(ctx context.Context, s Supplier) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE suppliers
		SET name=$2, contact_person=$3, email=$4, phone=$5, address=$6, tax_id=$7, payment_terms=$8, updated_at=now()
		WHERE id=$1`,
		s.ID, s.Name, s.ContactPerson, s.Email, s.Phone, s.Address, s.TaxID, s.PaymentTerms)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier: %d: %w", s.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepo) SetSupplierActive(ctx context.Context, supplierID int64, active bool) error {
	_, err := r.tx.Exec(ctx, `UPDATE suppliers SET is_active=$2, updated_at=now() WHERE id=$1`, supplierID, active)
	return err
}

func (r *txRepo) SetSupplierRating(ctx context.Context, supplierID int64, rating int) error {
	_, err := r.tx.Exec(ctx, `UPDATE suppliers SET rating=$2, updated_at=now() WHERE id=$1`, supplierID, rating)
	return err
}

// InsertAuditEntry satisfies audit.RecorderTx on the supplier transaction.
func (r *txRepo) InsertAuditEntry(ctx context.Context, entry audit.Entry) (int64, error) {
	return audit.InsertTx(ctx, r.tx, entry)
}

// Get returns one supplier by id.
func (r *Repository) Get(ctx context.Context, supplierID int64) (Supplier, error) {
	s, err := scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, supplierID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("supplier: %d: %w", supplierID, shared.ErrNotFound)
	}
	return s, err
}

// List returns suppliers matching the filter plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
	var (
		conds = []string{"TRUE"}
		args  []any
	)
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d OR contact_person ILIKE $%d)", n, n, n))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM suppliers%s ORDER BY name LIMIT $%d OFFSET $%d`,
		supplierColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

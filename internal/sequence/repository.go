package sequence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CounterTx is the single operation other modules embed in their own
// transactional repositories so a number is consumed atomically with the
// record that uses it.
type CounterTx interface {
	IncrementCounter(ctx context.Context, entityType, periodKey string) (int64, error)
}

// Repository persists sequence counters in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// The read-increment-write is a single statement; the row lock taken by
// ON CONFLICT DO UPDATE serializes concurrent callers per key.
const incrementSQL = `
INSERT INTO sequence_counters (entity_type, period_key, last_ordinal, updated_at)
VALUES ($1, $2, 1, NOW())
ON CONFLICT (entity_type, period_key)
DO UPDATE SET last_ordinal = sequence_counters.last_ordinal + 1, updated_at = NOW()
RETURNING last_ordinal`

// IncrementCounter atomically advances the counter and returns the new ordinal.
func (r *Repository) IncrementCounter(ctx context.Context, entityType, periodKey string) (int64, error) {
	return increment(ctx, r.pool, entityType, periodKey)
}

// TxIncrementer adapts an open pgx transaction to the CounterTx port.
type TxIncrementer struct {
	Tx pgx.Tx
}

// IncrementCounter advances the counter inside the caller's transaction.
func (t TxIncrementer) IncrementCounter(ctx context.Context, entityType, periodKey string) (int64, error) {
	return increment(ctx, t.Tx, entityType, periodKey)
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func increment(ctx context.Context, q execQuerier, entityType, periodKey string) (int64, error) {
	var ordinal int64
	if err := q.QueryRow(ctx, incrementSQL, entityType, periodKey).Scan(&ordinal); err != nil {
		return 0, err
	}
	return ordinal, nil
}

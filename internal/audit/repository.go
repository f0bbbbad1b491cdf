package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecorderTx is the append operation other modules embed in their own
// transactional repositories, so the entry commits or aborts together with
// the mutation it documents.
type RecorderTx interface {
	InsertAuditEntry(ctx context.Context, entry Entry) (int64, error)
}

const insertSQL = `
INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, old_value, new_value, notes, ip_address, user_agent, request_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()))
RETURNING id`

// InsertTx appends an entry inside the caller's open transaction.
func InsertTx(ctx context.Context, tx pgx.Tx, entry Entry) (int64, error) {
	var at any
	if !entry.CreatedAt.IsZero() {
		at = entry.CreatedAt
	}
	var id int64
	err := tx.QueryRow(ctx, insertSQL,
		entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		entry.OldValue, entry.NewValue, entry.Notes,
		entry.IP, entry.UserAgent, entry.RequestID, at,
	).Scan(&id)
	return id, err
}

// Repository reads the append-only trail from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends an entry in its own transaction, for mutations that have no
// wider transactional scope (e.g. sign-in events recorded by callers).
func (r *Repository) Insert(ctx context.Context, entry Entry) (int64, error) {
	var at any
	if !entry.CreatedAt.IsZero() {
		at = entry.CreatedAt
	}
	var id int64
	err := r.pool.QueryRow(ctx, insertSQL,
		entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		entry.OldValue, entry.NewValue, entry.Notes,
		entry.IP, entry.UserAgent, entry.RequestID, at,
	).Scan(&id)
	return id, err
}

// List returns entries matching the filter, newest-first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ActorID != 0 {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.EntityType != "" {
		add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != 0 {
		add("entity_id = $%d", filter.EntityID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(notes ILIKE $%d OR old_value ILIKE $%d OR new_value ILIKE $%d)", n, n, n))
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	query := `SELECT id, actor_id, action, entity_type, entity_id, old_value, new_value, notes, ip_address, user_agent, request_id, created_at FROM audit_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &e.OldValue, &e.NewValue, &e.Notes, &e.IP, &e.UserAgent, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summarize aggregates counts by action, entity type and actor inside a window.
func (r *Repository) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	summary := Summary{
		From:     from,
		To:       to,
		ByAction: make(map[string]int64),
		ByEntity: make(map[string]int64),
		ByActor:  make(map[int64]int64),
	}
	rows, err := r.pool.Query(ctx, `
SELECT action, entity_type, actor_id, COUNT(*)
FROM audit_logs
WHERE created_at >= $1 AND created_at <= $2
GROUP BY action, entity_type, actor_id`, from, to)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			action, entity string
			actorID, count int64
		)
		if err := rows.Scan(&action, &entity, &actorID, &count); err != nil {
			return Summary{}, err
		}
		summary.ByAction[action] += count
		summary.ByEntity[entity] += count
		summary.ByActor[actorID] += count
		summary.Total += count
	}
	return summary, rows.Err()
}

package notification

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrNotificationNotFound indicates no matching row.
var ErrNotificationNotFound = errors.New("notification: not found")

// Insert stores one notification and returns it with identity assigned.
func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	var expires any
	if !n.ExpiresAt.IsZero() {
		expires = n.ExpiresAt
	}
	err := r.pool.QueryRow(ctx, `
INSERT INTO notifications (user_id, title, body, severity, action_ref, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING id, created_at`,
		n.UserID, n.Title, n.Body, string(n.Severity), n.ActionRef, expires,
	).Scan(&n.ID, &n.CreatedAt)
	return n, err
}

const listColumns = `id, user_id, title, body, severity, is_read, COALESCE(read_at, 'epoch'::timestamptz), action_ref, COALESCE(expires_at, 'epoch'::timestamptz), created_at`

// ListByUser returns notifications for one user, newest-first.
func (r *Repository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + listColumns + ` FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Notification
	for rows.Next() {
		var n Notification
		var severity string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &severity, &n.IsRead, &n.ReadAt, &n.ActionRef, &n.ExpiresAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Severity = Severity(severity)
		list = append(list, n)
	}
	return list, rows.Err()
}

// SetRead toggles the read flag for a notification owned by userID. Toggling
// to the current state is a no-op, not an error.
func (r *Repository) SetRead(ctx context.Context, userID, notificationID int64, read bool) error {
	var tag string
	if read {
		tag = `UPDATE notifications SET is_read=true, read_at=NOW() WHERE id=$1 AND user_id=$2 AND NOT is_read`
	} else {
		tag = `UPDATE notifications SET is_read=false, read_at=NULL WHERE id=$1 AND user_id=$2 AND is_read`
	}
	ct, err := r.pool.Exec(ctx, tag, notificationID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// Distinguish a no-op toggle from a missing row.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT true FROM notifications WHERE id=$1 AND user_id=$2`, notificationID, userID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotificationNotFound
			}
			return err
		}
	}
	return nil
}

// MarkAllRead marks every unread notification of one user as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read=true, read_at=NOW() WHERE user_id=$1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// UnreadCount counts unread notifications for one user.
func (r *Repository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&count)
	return count, err
}

// DeleteExpired removes notifications whose expiry has passed.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

package db

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error classes relevant to the ledger core.
const (
	codeUniqueViolation  = "23505"
	classConnException   = "08"
	classInsufficientRes = "53"
	classOperatorIntv    = "57"
)

// IsUniqueViolation reports whether err is a unique-constraint violation,
// optionally on a specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsUnavailable reports whether err looks like a transient store failure:
// connection trouble, resource exhaustion, or an administrator shutdown.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code[:2] {
		case classConnException, classInsufficientRes, classOperatorIntv:
			return true
		}
	}
	return pgconn.Timeout(err)
}

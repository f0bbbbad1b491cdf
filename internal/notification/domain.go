package notification

import (
	"time"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

// Severity tags a notification for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a user-facing alert. Only the owning user's read/unread
// toggle mutates it; the expiry sweep deletes it.
type Notification struct {
	ID        int64
	UserID    int64
	Title     string
	Body      string
	Severity  Severity
	IsRead    bool
	ReadAt    time.Time
	ActionRef string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the notification is past its expiry.
func (n Notification) Expired(now time.Time) bool {
	return !n.ExpiresAt.IsZero() && now.After(n.ExpiresAt)
}

// Target addresses a dispatch at either one user or every active holder of
// a role set. Role targets resolve at dispatch time, not when the triggering
// transaction began.
type Target struct {
	UserID int64
	Roles  []shared.Role
}

// ToUser targets a single user.
func ToUser(userID int64) Target {
	return Target{UserID: userID}
}

// ToRoles targets the current active holders of the given roles.
func ToRoles(roles ...shared.Role) Target {
	return Target{Roles: roles}
}

// Note is the payload of a dispatch before recipients are resolved.
type Note struct {
	Title     string
	Body      string
	Severity  Severity
	ActionRef string
	ExpiresAt time.Time
}

// Intent pairs a target with a note. Ledger and workflow mutations return
// intents so the side effect stays outside their consistency boundary and
// tests can assert on emissions without a live channel.
type Intent struct {
	Target Target
	Note   Note
}

package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entity types recorded in the trail.
const (
	EntityInventoryItem = "inventory_items"
	EntityPurchaseOrder = "purchase_orders"
	EntitySupplier      = "suppliers"
	EntityUser          = "users"
)

// Entry is one immutable record of a state mutation. Entries are never
// updated or deleted; retention is handled by a separate purge job.
type Entry struct {
	ID         int64
	ActorID    int64
	Action     string
	EntityType string
	EntityID   int64
	OldValue   string
	NewValue   string
	Notes      string
	IP         string
	UserAgent  string
	RequestID  uuid.UUID
	CreatedAt  time.Time
}

// Filter narrows trail reads. Zero fields are ignored. Results are always
// returned newest-first.
type Filter struct {
	ActorID    int64
	Action     string
	EntityType string
	EntityID   int64
	Search     string
	From       time.Time
	To         time.Time
	Limit      int
}

// Summary aggregates trail activity over a rolling window.
type Summary struct {
	From     time.Time
	To       time.Time
	Total    int64
	ByAction map[string]int64
	ByEntity map[string]int64
	ByActor  map[int64]int64
}

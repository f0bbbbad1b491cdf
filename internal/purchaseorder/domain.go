package purchaseorder

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

// Status enumerates the purchase order lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo encodes the guard table. Delivered is reachable only
// through approved.
func (s Status) CanTransitionTo(next Status) bool {
	switch next {
	case StatusApproved, StatusRejected:
		return s == StatusPending
	case StatusCancelled:
		return s == StatusPending || s == StatusApproved
	case StatusDelivered:
		return s == StatusApproved
	}
	return false
}

// Audit action tags written by the workflow.
const (
	ActionCreate     = "create_po"
	ActionApprove    = "approve_po"
	ActionReject     = "reject_po"
	ActionCancel     = "cancel_po"
	ActionDeliver    = "deliver_po"
	ActionAddItem    = "add_po_item"
	ActionRemoveItem = "remove_po_item"
)

// Order models one purchase order. The PO number is assigned once at
// creation and never reassigned, even after cancellation.
type Order struct {
	ID              int64
	PONumber        string
	SupplierID      int64
	Status          Status
	TotalAmount     decimal.Decimal
	Currency        string
	DeliveryDate    time.Time
	DeliveryAddress string
	Notes           string
	CreatedBy       int64
	ApprovedBy      int64
	ApprovedAt      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Line is one item on an order. Lines are mutable only while the order is
// pending.
type Line struct {
	ID              int64
	OrderID         int64
	InventoryItemID int64
	Quantity        int64
	UnitPrice       decimal.Decimal
	Notes           string
	CreatedAt       time.Time
}

// Total computes quantity x unit price for this line.
func (l Line) Total() decimal.Decimal {
	return shared.LineTotal(l.Quantity, l.UnitPrice)
}

// TotalAmount sums line totals; the order total is always recomputed from
// the current lines, never carried independently.
func TotalAmount(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total())
	}
	return total
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status     Status
	SupplierID int64
	Search     string
	Page       int
	PerPage    int
}

// Summary aggregates workflow statistics.
type Summary struct {
	TotalOrders     int64
	PendingOrders   int64
	ApprovedOrders  int64
	DeliveredOrders int64
	TotalValue      decimal.Decimal
}

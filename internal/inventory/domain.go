package inventory

import (
	"errors"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

// Status is derived from quantity and reorder level; it is never stored.
type Status string

const (
	StatusInStock    Status = "in_stock"
	StatusLowStock   Status = "low_stock"
	StatusOutOfStock Status = "out_of_stock"
)

// Audit action tags written by the ledger.
const (
	ActionCreateItem     = "create_inventory_item"
	ActionUpdateItem     = "update_inventory_item"
	ActionDeactivateItem = "deactivate_inventory_item"
	ActionAddStock       = "add_stock"
	ActionRemoveStock    = "remove_stock"
)

// Item models one tracked stock line. Quantity is mutated only through
// ledger operations so every change pairs with an audit entry. Items are
// never physically removed; deactivation flips the active flag.
type Item struct {
	ID              int64
	SKU             string
	Name            string
	Description     string
	CategoryID      int64
	LocationID      int64
	Quantity        int64
	UnitPrice       decimal.Decimal
	ReorderLevel    int64
	ReorderQuantity int64
	SupplierID      int64
	Barcode         string
	IsActive        bool
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Status derives the stock state from the current quantity.
func (i Item) Status() Status {
	switch {
	case i.Quantity <= 0:
		return StatusOutOfStock
	case i.Quantity <= i.ReorderLevel:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// NeedsReorder reports whether quantity is at or below the reorder level.
func (i Item) NeedsReorder() bool {
	return i.Quantity <= i.ReorderLevel
}

// TotalValue computes quantity x unit price.
func (i Item) TotalValue() decimal.Decimal {
	return shared.LineTotal(i.Quantity, i.UnitPrice)
}

// ErrItemInactive rejects stock mutations against a deactivated item.
var ErrItemInactive = errors.New("inventory: item is deactivated")

// Uppercase alphanumerics plus dashes, 3 to 32 chars, no leading dash.
var skuPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,31}$`)

// ValidSKU reports whether the SKU matches the accepted shape.
func ValidSKU(sku string) bool {
	return skuPattern.MatchString(sku)
}

// ListFilter narrows item listings.
type ListFilter struct {
	Search     string
	CategoryID int64
	LocationID int64
	Page       int
	PerPage    int
}

// Summary aggregates ledger statistics over active items.
type Summary struct {
	TotalItems    int64
	TotalValue    decimal.Decimal
	LowStockCount int64
	OutOfStock    int64
}

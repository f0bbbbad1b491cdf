package supplier

import (
	"time"
)

// Audit actions recorded by the supplier registry.
const (
	ActionCreate     = "create_supplier"
	ActionUpdate     = "update_supplier"
	ActionDeactivate = "deactivate_supplier"
	ActionRate       = "rate_supplier"
)

// Supplier is a vendor purchase orders are raised against. Code is assigned
// from the yearly sequence and never reused.
type Supplier struct {
	ID            int64
	Code          string
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	TaxID         string
	PaymentTerms  string
	Rating        int
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ListFilter narrows supplier listings.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

package sequence

import (
	"fmt"
	"time"
)

// Entity types with dedicated counters.
const (
	EntityPurchaseOrder = "PO"
	EntitySupplier      = "SUPPLIER"
)

// Counter holds the last-issued ordinal for one (entityType, periodKey) pair.
// Ordinals are strictly increasing per key and are never reused, even when
// the record that consumed one is later cancelled.
type Counter struct {
	EntityType  string
	PeriodKey   string
	LastOrdinal int64
	UpdatedAt   time.Time
}

// MonthlyPeriod renders the period key used by monthly sequences, e.g. "202403".
func MonthlyPeriod(t time.Time) string {
	return t.Format("200601")
}

// YearlyPeriod renders the period key used by yearly sequences, e.g. "2024".
func YearlyPeriod(t time.Time) string {
	return t.Format("2006")
}

// FormatNumber renders an identifier from its parts. Formatting is pure and
// carries no state.
func FormatNumber(prefix, periodKey string, ordinal int64, width int, separator string) string {
	return fmt.Sprintf("%s%s%s%s%0*d", prefix, separator, periodKey, separator, width, ordinal)
}

// PONumber renders a purchase order number, e.g. "PO-202403-007".
func PONumber(createdAt time.Time, ordinal int64) string {
	return FormatNumber("PO", MonthlyPeriod(createdAt), ordinal, 3, "-")
}

// SupplierCode renders a supplier code, e.g. "SUP2024003".
func SupplierCode(createdAt time.Time, ordinal int64) string {
	return FormatNumber("SUP", YearlyPeriod(createdAt), ordinal, 3, "")
}

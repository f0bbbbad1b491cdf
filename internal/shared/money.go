package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is assumed when a document carries no currency code.
const DefaultCurrency = "USD"

var moneyPrinter = message.NewPrinter(language.English)

// FormatAmount renders a monetary amount with its currency symbol, e.g. "$ 1,234.56".
// Unknown codes fall back to a plain two-decimal rendering.
func FormatAmount(amount decimal.Decimal, code string) string {
	if code == "" {
		code = DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return amount.StringFixed(2) + " " + code
	}
	value, _ := amount.Float64()
	return moneyPrinter.Sprintf("%v", currency.Symbol(unit.Amount(value)))
}

// LineTotal computes quantity x unit price without float drift.
func LineTotal(quantity int64, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(quantity))
}

// Package money formats ledger amounts for display. The ledger emits
// three-decimal home-currency amounts, so formatting is fixed at three places
// with thousands grouping.
package money

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// blankEpsilon hides amounts that round to 0.000 in blank-style cells.
const blankEpsilon = 0.0005

var printer = message.NewPrinter(language.English)

// Format renders an amount with grouping and three decimals, e.g. "1,234.500".
func Format(v float64) string {
	return printer.Sprintf("%.3f", v)
}

// FormatBlank renders like Format but returns the empty string for amounts
// indistinguishable from zero, so unused bucket cells stay visually blank.
func FormatBlank(v float64) string {
	if math.Abs(v) < blankEpsilon {
		return ""
	}
	return Format(v)
}

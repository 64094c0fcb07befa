package statement

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fernbooks/bankrecon/internal/grid"
)

// amountReplacer strips thousands separators, spaces and Cr/Dr polarity
// markers from a lowercased amount string before decimal parsing.
var amountReplacer = strings.NewReplacer(",", "", " ", "", "cr", "", "dr", "")

// ParseAmount normalizes a raw cell into a decimal amount. Blank cells
// yield an invalid NullDecimal: "no value" is distinct from zero, and the
// distinction matters for downstream mutual-exclusivity checks. Text that
// does not survive as a number after stripping separators and Cr/Dr
// markers also yields no value rather than an error; inference is
// best-effort.
func ParseAmount(cell grid.Cell) decimal.NullDecimal {
	if cell.IsEmpty() {
		return decimal.NullDecimal{}
	}

	if n, ok := cell.Number(); ok {
		return decimal.NewNullDecimal(decimal.NewFromFloat(n))
	}

	cleaned := amountReplacer.Replace(strings.ToLower(cell.Text()))
	if cleaned == "" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParseAmountString is ParseAmount over a plain string, used by the
// candidate-import path where amounts arrive as text.
func ParseAmountString(s string) decimal.NullDecimal {
	return ParseAmount(grid.Text(s))
}

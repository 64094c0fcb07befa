package statement

import (
	"github.com/shopspring/decimal"

	"github.com/fernbooks/bankrecon/internal/grid"
)

// ExtractedRow is one plausible transaction candidate pulled from below
// the header row. Raw text is kept alongside the normalized decimals
// because the amount format classifier inspects Cr/Dr markers that
// normalization strips.
type ExtractedRow struct {
	DateLayout string
	Date       string // raw date text
	AmountText string // raw amount text, empty when the cell was numeric or absent
	Amount     decimal.NullDecimal
	Withdrawal decimal.NullDecimal
	Deposit    decimal.NullDecimal
	Balance    decimal.NullDecimal

	Reference       string
	Description     string
	TransactionType string
}

// ExtractRows walks every row strictly below the header and keeps those
// that look like transactions: a text date parseable under some
// recognized layout, plus at least one of amount/withdrawal/deposit that
// survives amount normalization. It returns the kept rows and the
// absolute grid indices of the first and last qualifying row. Gaps inside
// the span are tolerated, not compacted. When no row qualifies both
// indices are -1.
func ExtractRows(g grid.Grid, headerIndex int, mapping ColumnMapping) ([]ExtractedRow, int, int) {
	var rows []ExtractedRow
	startIndex := -1
	endIndex := -1

	cellFor := func(row []grid.Cell, role Role) grid.Cell {
		idx, ok := mapping.Index(role)
		if !ok || idx >= len(row) {
			return grid.Empty()
		}
		return row[idx]
	}

	base := headerIndex + 1
	for rowIndex := base; rowIndex < len(g); rowIndex++ {
		row := g[rowIndex]

		dateCell := cellFor(row, RoleDate)
		amountCell := cellFor(row, RoleAmount)
		withdrawalCell := cellFor(row, RoleWithdrawal)
		depositCell := cellFor(row, RoleDeposit)

		// Dates in statements arrive as text; numeric serials are not
		// transaction rows we can trust.
		if !dateCell.IsText() {
			continue
		}
		layout, ok := GuessDateLayout(dateCell.Text())
		if !ok {
			continue
		}

		if amountCell.IsEmpty() && withdrawalCell.IsEmpty() && depositCell.IsEmpty() {
			continue
		}

		amount := ParseAmount(amountCell)
		withdrawal := ParseAmount(withdrawalCell)
		deposit := ParseAmount(depositCell)
		balance := ParseAmount(cellFor(row, RoleBalance))

		// A second rejection pass: cells like a bare "Cr" are non-empty
		// but do not normalize to a number, and a row whose amounts all
		// normalize to zero carries no transaction.
		if zeroOrAbsent(amount) && zeroOrAbsent(withdrawal) && zeroOrAbsent(deposit) {
			continue
		}

		if startIndex == -1 {
			startIndex = rowIndex
		}
		endIndex = rowIndex

		extracted := ExtractedRow{
			DateLayout:      layout,
			Date:            dateCell.Text(),
			Amount:          amount,
			Withdrawal:      withdrawal,
			Deposit:         deposit,
			Balance:         balance,
			Reference:       cellFor(row, RoleReference).String(),
			Description:     cellFor(row, RoleDescription).String(),
			TransactionType: cellFor(row, RoleTransactionType).String(),
		}
		if amountCell.IsText() {
			extracted.AmountText = amountCell.Text()
		}
		rows = append(rows, extracted)
	}

	return rows, startIndex, endIndex
}

func zeroOrAbsent(v decimal.NullDecimal) bool {
	return !v.Valid || v.Decimal.IsZero()
}

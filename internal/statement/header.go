// Package statement implements the bank statement inference engine: header
// row detection, column semantics mapping, transaction row extraction,
// amount format classification and normalization into canonical
// transactions. All functions are pure and deterministic over in-memory
// grids.
package statement

import (
	"strings"

	"github.com/fernbooks/bankrecon/internal/grid"
)

// headerKeywords are the markers that make a cell look like a statement
// column header. Substring match, case-insensitive.
var headerKeywords = []string{
	"date", "amount", "description", "reference", "transaction",
	"type", "cr", "dr", "deposit", "withdrawal", "balance",
}

// DetectHeaderRow scans the grid and returns the index of the row most
// likely to be the column header: the row with the strict maximum count of
// keyword-bearing text cells. Ties keep the earliest row, since later rows
// must exceed the running maximum. When no row scores above zero the
// degenerate default is row 0; inference is best-effort and callers treat
// the result as a suggestion.
func DetectHeaderRow(g grid.Grid) int {
	rowIndex := 0
	maxValidColumns := 0

	for idx, row := range g {
		validColumns := 0
		for _, cell := range row {
			if !cell.IsText() {
				continue
			}
			lower := strings.ToLower(cell.Text())
			for _, keyword := range headerKeywords {
				if strings.Contains(lower, keyword) {
					validColumns++
					break
				}
			}
		}
		if validColumns > maxValidColumns {
			maxValidColumns = validColumns
			rowIndex = idx
		}
	}

	return rowIndex
}

package statement

import (
	"sort"

	"github.com/fernbooks/bankrecon/internal/domain"
	"github.com/fernbooks/bankrecon/internal/grid"
)

// Detection is the full inference result for one statement grid: where
// the header sits, what each column means, which rows look like
// transactions, how amounts are encoded, and the normalized outcome.
type Detection struct {
	HeaderIndex int
	HeaderRow   []grid.Cell
	Mapping     ColumnMapping
	Columns     []Column

	Rows       []ExtractedRow
	StartIndex int // absolute grid index of the first transaction row, -1 when none
	EndIndex   int // absolute grid index of the last transaction row, -1 when none

	Classification Classification
	Transactions   []domain.CanonicalTransaction
	Summary        domain.StatementSummary
}

// Analyze runs the whole inference pipeline over a raw grid: header
// detection, column mapping, row extraction, amount format
// classification, normalization and summary. It is pure and safe to call
// repeatedly; every stage is best-effort, so the result is a suggestion
// for the user to review, not ground truth.
func Analyze(g grid.Grid) *Detection {
	headerIndex := DetectHeaderRow(g)
	headerRow := g.Row(headerIndex)
	mapping, columns := MapColumns(headerRow)
	return analyze(g, headerIndex, headerRow, mapping, columns)
}

// AnalyzeWithLayout runs the pipeline with a known header position and
// column mapping, skipping detection. Used when a saved layout exists
// for the bank account; the remaining stages (row extraction, format
// classification, normalization) still run, since they depend on the
// statement's data rather than its layout.
func AnalyzeWithLayout(g grid.Grid, headerIndex int, mapping ColumnMapping) *Detection {
	headerRow := g.Row(headerIndex)

	columns := make([]Column, 0, len(mapping))
	for role, idx := range mapping {
		var header string
		if idx < len(headerRow) {
			header = headerRow[idx].Text()
		}
		columns = append(columns, Column{
			Index:   idx,
			Header:  header,
			Role:    role,
			VarName: variableName(header),
		})
	}
	sort.Slice(columns, func(i, j int) bool { return columns[i].Index < columns[j].Index })

	return analyze(g, headerIndex, headerRow, mapping, columns)
}

func analyze(g grid.Grid, headerIndex int, headerRow []grid.Cell, mapping ColumnMapping, columns []Column) *Detection {
	rows, startIndex, endIndex := ExtractRows(g, headerIndex, mapping)
	cls := Classify(rows)
	txns := Normalize(rows, cls)

	return &Detection{
		HeaderIndex:    headerIndex,
		HeaderRow:      headerRow,
		Mapping:        mapping,
		Columns:        columns,
		Rows:           rows,
		StartIndex:     startIndex,
		EndIndex:       endIndex,
		Classification: cls,
		Transactions:   txns,
		Summary:        Summarize(txns),
	}
}

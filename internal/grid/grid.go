// Package grid models the unparsed content of a spreadsheet or CSV bank
// statement as an immutable 2-D grid of heterogeneous cells.
package grid

import (
	"strconv"
	"strings"
)

// CellKind discriminates the value held by a Cell. Spreadsheet cells are
// heterogeneous: text, numeric, or blank.
type CellKind int

const (
	KindEmpty CellKind = iota
	KindText
	KindNumber
)

// Cell is a single grid value.
type Cell struct {
	kind   CellKind
	text   string
	number float64
}

// Empty returns a blank cell.
func Empty() Cell {
	return Cell{kind: KindEmpty}
}

// Text returns a text cell. Whitespace-only text collapses to a blank
// cell, matching how spreadsheet readers report padded empties.
func Text(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Empty()
	}
	return Cell{kind: KindText, text: s}
}

// Number returns a numeric cell.
func Number(f float64) Cell {
	return Cell{kind: KindNumber, number: f}
}

// Kind returns the cell's kind.
func (c Cell) Kind() CellKind { return c.kind }

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool { return c.kind == KindEmpty }

// IsText reports whether the cell holds text.
func (c Cell) IsText() bool { return c.kind == KindText }

// Text returns the cell's raw text. Empty for non-text cells.
func (c Cell) Text() string {
	if c.kind == KindText {
		return c.text
	}
	return ""
}

// Number returns the numeric value and whether the cell is numeric.
func (c Cell) Number() (float64, bool) {
	return c.number, c.kind == KindNumber
}

// String renders the cell for display: text verbatim, numbers in their
// shortest decimal form, blanks as the empty string.
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return strconv.FormatFloat(c.number, 'f', -1, 64)
	default:
		return ""
	}
}

// Grid is an ordered sequence of rows of cells. Rows may be ragged;
// callers index defensively via At.
type Grid [][]Cell

// At returns the cell at (row, col), or a blank cell when either index
// is out of range.
func (g Grid) At(row, col int) Cell {
	if row < 0 || row >= len(g) {
		return Empty()
	}
	r := g[row]
	if col < 0 || col >= len(r) {
		return Empty()
	}
	return r[col]
}

// Row returns the row at index, or nil when out of range.
func (g Grid) Row(i int) []Cell {
	if i < 0 || i >= len(g) {
		return nil
	}
	return g[i]
}

// TextRow builds a row of text cells, mostly useful in tests.
func TextRow(values ...string) []Cell {
	row := make([]Cell, len(values))
	for i, v := range values {
		row[i] = Text(v)
	}
	return row
}

package grid

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/tealeg/xlsx"
)

// ErrUnsupportedFileType is returned for any extension other than
// .csv, .xlsx or .xls.
var ErrUnsupportedFileType = errors.New("import file should be of type .csv, .xlsx or .xls")

// Load parses raw file content into a Grid based on the file extension.
// The extension check is case-insensitive and expects a leading dot.
func Load(content []byte, ext string) (Grid, error) {
	switch strings.ToLower(ext) {
	case ".csv":
		return loadCSV(content)
	case ".xlsx":
		return loadXLSX(content)
	case ".xls":
		return loadXLS(content)
	default:
		return nil, fmt.Errorf("%w (got %q)", ErrUnsupportedFileType, ext)
	}
}

func loadCSV(content []byte) (Grid, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content: %w", err)
	}

	g := make(Grid, 0, len(records))
	for _, record := range records {
		row := make([]Cell, len(record))
		for i, v := range record {
			row[i] = Text(v)
		}
		g = append(g, row)
	}
	return g, nil
}

func loadXLSX(content []byte) (Grid, error) {
	f, err := xlsx.OpenBinary(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx content: %w", err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("xlsx file has no sheets")
	}

	// Statements put their data on the first sheet.
	sheet := f.Sheets[0]
	g := make(Grid, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]Cell, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = xlsxCell(cell)
		}
		g = append(g, cells)
	}
	return g, nil
}

func xlsxCell(cell *xlsx.Cell) Cell {
	if cell.Type() == xlsx.CellTypeNumeric {
		if f, err := cell.Float(); err == nil {
			return Number(f)
		}
	}
	return Text(cell.Value)
}

func loadXLS(content []byte) (Grid, error) {
	wb, err := xls.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open xls content: %w", err)
	}

	sheet, err := wb.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("failed to get first xls sheet: %w", err)
	}

	var g Grid
	for i := 0; i <= sheet.GetNumberRows(); i++ {
		row, err := sheet.GetRow(i)
		if err != nil || row == nil {
			continue
		}
		var cells []Cell
		for _, col := range row.GetCols() {
			cells = append(cells, Text(col.GetString()))
		}
		g = append(g, cells)
	}
	return g, nil
}

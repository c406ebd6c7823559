package priceimport

import (
	"bytes"
	"strings"

	"github.com/extrame/xls"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	nameColumn  = 0
	priceColumn = 1
)

// Cell is a worksheet cell. Numeric is set when the workbook stores the
// value as a number rather than text.
type Cell struct {
	Text    string
	Value   decimal.Decimal
	Numeric bool
}

func cellAt(cells []Cell, i int) Cell {
	if i < len(cells) {
		return cells[i]
	}
	return Cell{}
}

func blankRow(cells []Cell) bool {
	for _, c := range cells {
		if c.Numeric || strings.TrimSpace(c.Text) != "" {
			return false
		}
	}
	return true
}

func cellPrice(c Cell) (decimal.Decimal, bool) {
	if c.Numeric {
		if c.Value.IsNegative() {
			return decimal.Zero, false
		}
		return c.Value, true
	}
	if strings.TrimSpace(c.Text) == "" {
		return decimal.Zero, false
	}
	return ParsePrice(c.Text)
}

// AccumulateRows folds the first worksheet into price rows.
//
// A row with a price in the second column starts a new entry named by its
// first column. A row without a price but with text in the first column
// continues the current entry's name, even across blank rows.
func AccumulateRows(grid [][]Cell) []Row {
	var (
		rows   []Row
		name   string
		price  decimal.Decimal
		priced bool
	)
	flush := func() {
		if name != "" && priced {
			rows = append(rows, Row{Name: name, Price: price})
		}
		name, price, priced = "", decimal.Zero, false
	}

	for i, cells := range grid {
		if blankRow(cells) {
			continue
		}
		first := strings.TrimSpace(cellAt(cells, nameColumn).Text)
		if i == 0 && isHeader(first) {
			continue
		}
		if p, ok := cellPrice(cellAt(cells, priceColumn)); ok {
			flush()
			name, price, priced = first, p, true
			continue
		}
		if first == "" {
			continue
		}
		if name != "" {
			name += " " + first
		} else {
			name = first
		}
	}
	flush()
	return rows
}

// ParseWorkbook reads the first sheet of an XLSX or XLS workbook.
func ParseWorkbook(data []byte, kind Kind) ([]Row, error) {
	var (
		grid [][]Cell
		err  error
	)
	switch kind {
	case KindXLSX:
		grid, err = readXLSX(data)
	case KindXLS:
		grid, err = readXLS(data)
	default:
		return nil, errors.Errorf("unexpected workbook kind %s", kind)
	}
	if err != nil {
		return nil, &WorkbookError{Err: err}
	}
	return AccumulateRows(grid), nil
}

func readXLSX(data []byte) ([][]Cell, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "open xlsx")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := sheets[0]

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %q", sheet)
	}

	grid := make([][]Cell, len(raw))
	for i, row := range raw {
		cells := make([]Cell, len(row))
		for j, v := range row {
			cells[j] = Cell{Text: v}
			if j != priceColumn || strings.TrimSpace(v) == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, errors.Wrap(err, "cell name")
			}
			typ, err := f.GetCellType(sheet, axis)
			if err != nil {
				return nil, errors.Wrapf(err, "cell type %s", axis)
			}
			if typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset {
				continue
			}
			if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
				cells[j].Value, cells[j].Numeric = d, true
			}
		}
		grid[i] = cells
	}
	return grid, nil
}

func readXLS(data []byte) (grid [][]Cell, err error) {
	// The BIFF reader panics on some truncated streams.
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, errors.Errorf("malformed xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, errors.Wrap(err, "open xls")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	grid = make([][]Cell, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]Cell, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			c := Cell{Text: row.Col(j)}
			if j == priceColumn {
				// BIFF number cells come back already formatted as plain literals.
				if d, err := decimal.NewFromString(strings.TrimSpace(c.Text)); err == nil {
					c.Value, c.Numeric = d, true
				}
			}
			cells = append(cells, c)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

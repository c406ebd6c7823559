package priceimport

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func text(s string) Cell { return Cell{Text: s} }

func num(s string) Cell {
	return Cell{Text: s, Value: decimal.RequireFromString(s), Numeric: true}
}

func TestAccumulateRows(t *testing.T) {
	grid := [][]Cell{
		{text("Название"), text("Цена")},
		{text("Кабель"), num("120")},
		{text("медный 2м")},
		{},
		{text("Розетка"), text("89,90")},
		{text("  "), text("")},
		{text("Выключатель"), num("1234.5678")},
		{text("двойной"), text("")},
		{text("белый")},
	}

	requireRows(t, []Row{
		row("Кабель медный 2м", "120"),
		row("Розетка", "89.90"),
		row("Выключатель двойной белый", "1234.5678"),
	}, AccumulateRows(grid))
}

func TestAccumulateRows_Edges(t *testing.T) {
	t.Run("name without price is dropped", func(t *testing.T) {
		assert.Empty(t, AccumulateRows([][]Cell{{text("Кабель")}, {text("медный")}}))
	})
	t.Run("continuation after blank row", func(t *testing.T) {
		requireRows(t, []Row{
			row("Кабель ВВГ 3x2.5", "100"),
			row("Розетка", "50"),
		}, AccumulateRows([][]Cell{
			{text("Кабель ВВГ"), num("100")},
			{},
			{text(""), text("")},
			{text("3x2.5")},
			{text("Розетка"), num("50")},
		}))
	})
	t.Run("negative number is not a price", func(t *testing.T) {
		assert.Empty(t, AccumulateRows([][]Cell{{text("Кабель"), num("-5")}}))
	})
	t.Run("header keyword skips only the first row", func(t *testing.T) {
		requireRows(t, []Row{row("Name tag", "2")}, AccumulateRows([][]Cell{
			{text("Price list"), num("1")},
			{text("Name tag"), num("2")},
		}))
	})
}

func newWorkbook(t *testing.T, fill func(f *excelize.File, sheet string)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	fill(f, sheet)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseWorkbook_XLSX(t *testing.T) {
	data := newWorkbook(t, func(f *excelize.File, sheet string) {
		require.NoError(t, f.SetCellValue(sheet, "A1", "Название товара"))
		require.NoError(t, f.SetCellValue(sheet, "B1", "Цена"))
		require.NoError(t, f.SetCellValue(sheet, "A2", "Кабель"))
		require.NoError(t, f.SetCellValue(sheet, "B2", 1234.5678))
		require.NoError(t, f.SetCellValue(sheet, "A3", "медный"))
		require.NoError(t, f.SetCellValue(sheet, "A5", "Розетка"))
		require.NoError(t, f.SetCellValue(sheet, "B5", "1 200,50"))
	})

	kind, err := DetectKind("prices.xlsx", contentTypeXLSX, data)
	require.NoError(t, err)
	require.Equal(t, KindXLSX, kind)

	rows, err := ParseWorkbook(data, kind)
	require.NoError(t, err)
	requireRows(t, []Row{
		row("Кабель медный", "1234.5678"),
		row("Розетка", "1200.50"),
	}, rows)
}

func TestParseWorkbook_Corrupt(t *testing.T) {
	_, err := ParseWorkbook([]byte("PK\x03\x04definitely not a zip"), KindXLSX)
	var wbErr *WorkbookError
	require.True(t, errors.As(err, &wbErr))

	_, err = ParseWorkbook(append(append([]byte{}, oleMagic...), 0, 1, 2), KindXLS)
	require.True(t, errors.As(err, &wbErr))
}

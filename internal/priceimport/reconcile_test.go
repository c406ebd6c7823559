package priceimport

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockWriter struct {
	mu     sync.Mutex
	writes map[string]decimal.Decimal
	fail   map[string]error
}

func newMockWriter() *mockWriter {
	return &mockWriter{
		writes: make(map[string]decimal.Decimal),
		fail:   make(map[string]error),
	}
}

func (m *mockWriter) UpdateBasePrice(_ context.Context, id string, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[id]; err != nil {
		return err
	}
	m.writes[id] = price
	return nil
}

// --- Helpers ---

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testCatalog() []product.PricingRecord {
	return []product.PricingRecord{
		{ID: "p1", Name: "Кабель медный", SKU: "CAB-001", BasePrice: price("100")},
		{ID: "p2", Name: "CAB-001", SKU: "", BasePrice: price("5")},
		{ID: "p3", Name: "Розетка", SKU: "SOC-1", BasePrice: price("89.90")},
		{ID: "p4", Name: "Выключатель", SKU: "", BasePrice: nil},
		{ID: "p5", Name: "Лампа", SKU: "LMP", BasePrice: price("300")},
		{ID: "p6", Name: "лампа", SKU: "", BasePrice: price("1")},
	}
}

func TestReconcile_Preview(t *testing.T) {
	w := newMockWriter()
	rows := []Row{
		row("cab-001", "120"),
		row("  розетка ", "89.905"),
		row("Выключатель", "250"),
		row("ЛАМПА", "310"),
		row("Неизвестный товар", "10"),
	}

	rep := Reconcile(context.Background(), testCatalog(), rows, ReconcileOptions{Mode: ModePreview, Writer: w})

	assert.Equal(t, ModePreview, rep.Mode)
	assert.Empty(t, w.writes, "preview must not write")
	assert.Equal(t, Summary{Total: 5, Updated: 3, NotFound: 1, Skipped: 1}, rep.Summary)

	require.Len(t, rep.Results.Updated, 3)
	byID := rep.Results.Updated[0]
	assert.Equal(t, "p1", byID.ID, "sku match wins over a product named like the sku")
	assert.Equal(t, MatchSKU, byID.FoundBy)
	assert.True(t, decimal.RequireFromString("100").Equal(*byID.OldPrice))

	assert.Equal(t, "p4", rep.Results.Updated[1].ID)
	assert.Nil(t, rep.Results.Updated[1].OldPrice)
	assert.Equal(t, MatchName, rep.Results.Updated[1].FoundBy)

	assert.Equal(t, "p5", rep.Results.Updated[2].ID, "first product with a name wins")

	require.Len(t, rep.Results.Skipped, 1)
	assert.Equal(t, "p3", rep.Results.Skipped[0].ID)
	assert.Equal(t, ReasonUnchanged, rep.Results.Skipped[0].Reason)

	require.Len(t, rep.Results.NotFound, 1)
	assert.Equal(t, "Неизвестный товар", rep.Results.NotFound[0].Name)
}

func TestReconcile_Update(t *testing.T) {
	w := newMockWriter()
	w.fail["p5"] = errors.New("connection reset")

	rows := []Row{
		row("CAB-001", "120"),
		row("Выключатель", "250"),
		row("Лампа", "310"),
		row("Розетка", "95"),
	}
	selected := map[string]struct{}{"p1": {}, "p4": {}, "p5": {}}

	rep := Reconcile(context.Background(), testCatalog(), rows, ReconcileOptions{
		Mode:     ModeUpdate,
		Selected: selected,
		Writer:   w,
	})

	assert.Equal(t, Summary{Total: 4, Updated: 2, Errors: 1, Skipped: 1}, rep.Summary)
	assert.Len(t, w.writes, 2)
	assert.True(t, decimal.RequireFromString("120").Equal(w.writes["p1"]))
	assert.True(t, decimal.RequireFromString("250").Equal(w.writes["p4"]))

	require.Len(t, rep.Results.Errors, 1)
	assert.Equal(t, Failed{Name: "Лампа", Error: "connection reset"}, rep.Results.Errors[0])

	require.Len(t, rep.Results.Skipped, 1)
	assert.Equal(t, "p3", rep.Results.Skipped[0].ID)
	assert.Equal(t, ReasonNotSelected, rep.Results.Skipped[0].Reason)
}

func TestReconcile_UpdateWithoutSelection(t *testing.T) {
	w := newMockWriter()
	rep := Reconcile(context.Background(), testCatalog(), []Row{row("Розетка", "95")}, ReconcileOptions{
		Mode:   ModeUpdate,
		Writer: w,
	})

	assert.Equal(t, 1, rep.Summary.Updated)
	assert.Contains(t, w.writes, "p3")
}

func TestReconcile_Tolerance(t *testing.T) {
	catalog := []product.PricingRecord{{ID: "p", Name: "X", BasePrice: price("10.00")}}
	tests := []struct {
		price     string
		unchanged bool
	}{
		{"10.00", true},
		{"10.01", true},
		{"9.99", true},
		{"10.011", false},
		{"9.98", false},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			rep := Reconcile(context.Background(), catalog, []Row{row("X", tt.price)}, ReconcileOptions{Mode: ModePreview})
			if tt.unchanged {
				assert.Equal(t, 1, rep.Summary.Skipped)
			} else {
				assert.Equal(t, 1, rep.Summary.Updated)
			}
		})
	}
}

func TestReconcile_Partition(t *testing.T) {
	w := newMockWriter()
	w.fail["p4"] = errors.New("boom")
	rows := []Row{
		row("CAB-001", "1"), row("Розетка", "89.90"), row("Выключатель", "2"),
		row("nope", "3"), row("Лампа", "4"), row("", "5"),
	}
	rep := Reconcile(context.Background(), testCatalog(), rows, ReconcileOptions{
		Mode:     ModeUpdate,
		Selected: map[string]struct{}{"p1": {}, "p4": {}},
		Writer:   w,
	})
	s := rep.Summary
	assert.Equal(t, len(rows), s.Total)
	assert.Equal(t, s.Total, s.Updated+s.NotFound+s.Errors+s.Skipped)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeUpdate, ParseMode("update"))
	assert.Equal(t, ModeUpdate, ParseMode(" UPDATE "))
	assert.Equal(t, ModePreview, ParseMode(""))
	assert.Equal(t, ModePreview, ParseMode("preview"))
	assert.Equal(t, ModePreview, ParseMode("delete"))
}

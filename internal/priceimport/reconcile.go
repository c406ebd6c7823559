package priceimport

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Mode selects whether matched prices are written.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeUpdate  Mode = "update"
)

// ParseMode maps a form value to a Mode, defaulting to preview.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeUpdate {
		return ModeUpdate
	}
	return ModePreview
}

// MatchField names the product field a row was matched on.
type MatchField string

const (
	MatchSKU  MatchField = "sku"
	MatchName MatchField = "name"
)

// Skip reasons reported to the operator.
const (
	ReasonUnchanged   = "Цена не изменилась"
	ReasonNotSelected = "Не выбран для обновления"
)

// priceTolerance absorbs rounding noise between the list and stored prices.
var priceTolerance = decimal.New(1, -2)

type (
	Updated struct {
		ID       string
		Name     string
		OldPrice *decimal.Decimal
		NewPrice decimal.Decimal
		FoundBy  MatchField
	}
	NotFound struct {
		Name  string
		Price decimal.Decimal
	}
	Failed struct {
		Name  string
		Error string
	}
	Skipped struct {
		ID     string
		Name   string
		Price  decimal.Decimal
		Reason string
	}
)

// Results holds the per-row outcome lists. Every input row lands in exactly
// one of them.
type Results struct {
	Updated  []Updated
	NotFound []NotFound
	Errors   []Failed
	Skipped  []Skipped
}

// Summary counts Results.
type Summary struct {
	Total    int
	Updated  int
	NotFound int
	Errors   int
	Skipped  int
}

// Report is the outcome of reconciling a price list.
type Report struct {
	Mode    Mode
	Summary Summary
	Results Results
}

// PriceWriter persists a new base price.
type PriceWriter interface {
	UpdateBasePrice(ctx context.Context, id string, price decimal.Decimal) error
}

// ReconcileOptions control a reconciliation run.
type ReconcileOptions struct {
	Mode Mode
	// Selected limits writes in update mode. Nil selects every match.
	Selected map[string]struct{}
	// Writer is required in update mode.
	Writer PriceWriter
}

// matcher resolves list names against the catalog by exact,
// case-insensitive SKU first and name second. The first product holding a
// key wins.
type matcher struct {
	bySKU  map[string]*product.PricingRecord
	byName map[string]*product.PricingRecord
}

func matchKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func newMatcher(records []product.PricingRecord) *matcher {
	m := &matcher{
		bySKU:  make(map[string]*product.PricingRecord, len(records)),
		byName: make(map[string]*product.PricingRecord, len(records)),
	}
	for i := range records {
		rec := &records[i]
		if k := matchKey(rec.SKU); k != "" {
			if _, ok := m.bySKU[k]; !ok {
				m.bySKU[k] = rec
			}
		}
		if k := matchKey(rec.Name); k != "" {
			if _, ok := m.byName[k]; !ok {
				m.byName[k] = rec
			}
		}
	}
	return m
}

func (m *matcher) find(name string) (*product.PricingRecord, MatchField, bool) {
	k := matchKey(name)
	if k == "" {
		return nil, "", false
	}
	if rec, ok := m.bySKU[k]; ok {
		return rec, MatchSKU, true
	}
	if rec, ok := m.byName[k]; ok {
		return rec, MatchName, true
	}
	return nil, "", false
}

func priceUnchanged(old *decimal.Decimal, next decimal.Decimal) bool {
	return old != nil && old.Sub(next).Abs().LessThanOrEqual(priceTolerance)
}

// Reconcile matches rows against the catalog snapshot and, in update mode,
// writes changed prices. Writes are independent: a failed write is recorded
// and the run continues.
func Reconcile(ctx context.Context, catalog []product.PricingRecord, rows []Row, opts ReconcileOptions) *Report {
	m := newMatcher(catalog)
	rep := &Report{Mode: opts.Mode}
	res := &rep.Results

	for _, row := range rows {
		rec, field, ok := m.find(row.Name)
		if !ok {
			res.NotFound = append(res.NotFound, NotFound{Name: row.Name, Price: row.Price})
			continue
		}
		if priceUnchanged(rec.BasePrice, row.Price) {
			res.Skipped = append(res.Skipped, Skipped{
				ID: rec.ID, Name: rec.Name, Price: row.Price, Reason: ReasonUnchanged,
			})
			continue
		}

		upd := Updated{
			ID:       rec.ID,
			Name:     rec.Name,
			OldPrice: rec.BasePrice,
			NewPrice: row.Price,
			FoundBy:  field,
		}
		if opts.Mode != ModeUpdate {
			res.Updated = append(res.Updated, upd)
			continue
		}
		if opts.Selected != nil {
			if _, ok := opts.Selected[rec.ID]; !ok {
				res.Skipped = append(res.Skipped, Skipped{
					ID: rec.ID, Name: rec.Name, Price: row.Price, Reason: ReasonNotSelected,
				})
				continue
			}
		}
		if err := opts.Writer.UpdateBasePrice(ctx, rec.ID, row.Price); err != nil {
			res.Errors = append(res.Errors, Failed{Name: row.Name, Error: err.Error()})
			continue
		}
		res.Updated = append(res.Updated, upd)
	}

	rep.Summary = Summary{
		Total:    len(rows),
		Updated:  len(res.Updated),
		NotFound: len(res.NotFound),
		Errors:   len(res.Errors),
		Skipped:  len(res.Skipped),
	}
	return rep
}

package catalog

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/wire"
)

// DefaultLimit is the initial page size.
const DefaultLimit = wire.DefaultLimit

// ViewMode is the product list layout.
type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

// Valid reports whether m is a known layout.
func (m ViewMode) Valid() bool {
	return m == ViewGrid || m == ViewList
}

// PriceRange bounds base prices. A zero bound is open.
type PriceRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Filters narrows the product list.
type Filters struct {
	Search      string
	Categories  IDSet
	Brands      IDSet
	Collections IDSet
	InStockOnly bool
	Featured    bool
	PriceRange  PriceRange
}

// FilterPatch is a partial filter update. Nil fields are left as they are;
// a non-nil empty slice clears the set.
type FilterPatch struct {
	Search      *string
	Categories  []string
	Brands      []string
	Collections []string
	InStockOnly *bool
	Featured    *bool
	PriceRange  *PriceRange
}

// Apply returns f with p merged over it.
func (f Filters) Apply(p FilterPatch) Filters {
	if p.Search != nil {
		f.Search = *p.Search
	}
	if p.Categories != nil {
		f.Categories = NewIDSet(p.Categories...)
	}
	if p.Brands != nil {
		f.Brands = NewIDSet(p.Brands...)
	}
	if p.Collections != nil {
		f.Collections = NewIDSet(p.Collections...)
	}
	if p.InStockOnly != nil {
		f.InStockOnly = *p.InStockOnly
	}
	if p.Featured != nil {
		f.Featured = *p.Featured
	}
	if p.PriceRange != nil {
		f.PriceRange = *p.PriceRange
	}
	return f
}

// Pagination locates the current page.
type Pagination struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	p.HasNext = p.Page < p.TotalPages
	p.HasPrev = p.Page > 1
	return p
}

// State is a snapshot of the catalog. Snapshots are never modified after
// being published; treat slices and maps as read-only.
type State struct {
	Products    []product.Summary
	Categories  []product.Facet
	Brands      []product.Facet
	Collections []product.Facet

	Pagination Pagination
	Filters    Filters
	SortBy     product.SortBy

	Loading     bool
	Error       string
	ViewMode    ViewMode
	ShowFilters bool

	Wishlist IDSet
	Cart     map[string]int

	LastFetch       time.Time
	PrefetchedPages map[int]struct{}
}

// InitialState is the state of a fresh catalog.
func InitialState() State {
	return State{
		Pagination:      Pagination{Page: 1, Limit: DefaultLimit},
		SortBy:          product.DefaultSort,
		ViewMode:        ViewGrid,
		Cart:            map[string]int{},
		PrefetchedPages: map[int]struct{}{},
	}
}

// Query returns the search for page of the current filters and sort.
func (s State) Query(page int) product.Query {
	return buildQuery(page, s.Pagination.Limit, s.SortBy, s.Filters)
}

// Prefetched reports whether page was already fetched ahead.
func (s State) Prefetched(page int) bool {
	_, ok := s.PrefetchedPages[page]
	return ok
}

func buildQuery(page, limit int, sort product.SortBy, f Filters) product.Query {
	return product.Query{
		Page:        page,
		Limit:       limit,
		Sort:        sort,
		Search:      f.Search,
		Categories:  f.Categories.Slice(),
		Brands:      f.Brands.Slice(),
		Collections: f.Collections.Slice(),
		InStockOnly: f.InStockOnly,
		Featured:    f.Featured,
		MinPrice:    f.PriceRange.Min,
		MaxPrice:    f.PriceRange.Max,
	}
}

func cloneCart(c map[string]int) map[string]int {
	if c == nil {
		return map[string]int{}
	}
	return maps.Clone(c)
}

func clonePages(p map[int]struct{}) map[int]struct{} {
	if p == nil {
		return map[int]struct{}{}
	}
	return maps.Clone(p)
}

package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Summary is a product as shown in catalog listings.
type Summary struct {
	ID                string
	Name              string
	Slug              string
	SKU               string
	ShortDescription  string
	BasePrice         *decimal.Decimal
	Thumbnail         string
	Images            []string
	BrandID           string
	BrandName         string
	CategoryID        string
	CategoryName      string
	InventoryQuantity int
	IsFeatured        bool
	CreatedAt         time.Time
}

// InStock reports whether the product has sellable inventory.
func (s Summary) InStock() bool {
	return s.InventoryQuantity > 0
}

// Facet is a taxonomy entry: a category, brand or collection.
type Facet struct {
	ID   string
	Name string
	Slug string
}

// SortBy is a catalog ordering.
type SortBy string

const (
	SortNameAsc     SortBy = "name_asc"
	SortNameDesc    SortBy = "name_desc"
	SortPriceAsc    SortBy = "price_asc"
	SortPriceDesc   SortBy = "price_desc"
	SortCreatedAsc  SortBy = "created_asc"
	SortCreatedDesc SortBy = "created_desc"
	SortFeatured    SortBy = "featured"
	SortPopularity  SortBy = "popularity"
)

// DefaultSort is used when no ordering is requested.
const DefaultSort = SortNameAsc

// Valid reports whether s is a known ordering.
func (s SortBy) Valid() bool {
	switch s {
	case SortNameAsc, SortNameDesc, SortPriceAsc, SortPriceDesc,
		SortCreatedAsc, SortCreatedDesc, SortFeatured, SortPopularity:
		return true
	}
	return false
}

// Query selects one page of the catalog.
type Query struct {
	Page        int
	Limit       int
	Sort        SortBy
	Search      string
	Categories  []string
	Brands      []string
	Collections []string
	InStockOnly bool
	Featured    bool
	// MinPrice and MaxPrice bound base_price when positive.
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
}

// Offset returns the number of rows preceding the page.
func (q Query) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// Page is one slice of a catalog search.
type Page struct {
	Products []Summary
	Total    int
}

// TotalPages returns the number of pages needed for total rows.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// PricingRecord carries the fields used to match price list rows.
type PricingRecord struct {
	ID        string
	Name      string
	SKU       string
	BasePrice *decimal.Decimal
}

// Repository defines catalog reads and price writes.
type Repository interface {
	Search(ctx context.Context, q Query) (*Page, error)
	GetByID(ctx context.Context, id string) (*Summary, error)
	ListPricing(ctx context.Context) ([]PricingRecord, error)
	UpdateBasePrice(ctx context.Context, id string, price decimal.Decimal) error
}

// TaxonomyRepository lists the facets products can be filtered by.
type TaxonomyRepository interface {
	Categories(ctx context.Context) ([]Facet, error)
	Brands(ctx context.Context) ([]Facet, error)
	Collections(ctx context.Context) ([]Facet, error)
}

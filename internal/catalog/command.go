package catalog

import (
	"time"

	"github.com/xenking/storefront/internal/domain/product"
)

// Command is a state transition. The set of commands is closed.
type Command interface {
	command()
}

// Result is one page of products as returned by the catalog API.
type Result struct {
	Products   []product.Summary
	Pagination Pagination
	// Filters are the filters echoed by the server, merged over the local
	// ones on success.
	Filters *FilterPatch
}

// TaxonomyKind selects a facet list.
type TaxonomyKind int

const (
	TaxonomyCategories TaxonomyKind = iota
	TaxonomyBrands
	TaxonomyCollections
)

func (k TaxonomyKind) String() string {
	switch k {
	case TaxonomyCategories:
		return "categories"
	case TaxonomyBrands:
		return "brands"
	case TaxonomyCollections:
		return "collections"
	default:
		return "unknown"
	}
}

type (
	SetLoading struct{ Loading bool }
	SetError   struct{ Message string }
	// SetProducts replaces the product list and pagination.
	SetProducts struct {
		Result Result
		At     time.Time
	}
	SetTaxonomy struct {
		Kind   TaxonomyKind
		Facets []product.Facet
	}
	// SetFilters, ClearFilters and SetSort change the query and move back to
	// the first page.
	SetFilters         struct{ Patch FilterPatch }
	ClearFilters       struct{}
	SetSort            struct{ Sort product.SortBy }
	SetPage            struct{ Page int }
	SetViewMode        struct{ Mode ViewMode }
	ToggleFilters      struct{}
	AddToWishlist      struct{ ID string }
	RemoveFromWishlist struct{ ID string }
	AddToCart          struct {
		ID       string
		Quantity int
	}
	RemoveFromCart struct{ ID string }
	ClearCart      struct{}
	MarkPrefetched struct{ Page int }
	Reset          struct{}
)

func (SetLoading) command()         {}
func (SetError) command()           {}
func (SetProducts) command()        {}
func (SetTaxonomy) command()        {}
func (SetFilters) command()         {}
func (ClearFilters) command()       {}
func (SetSort) command()            {}
func (SetPage) command()            {}
func (SetViewMode) command()        {}
func (ToggleFilters) command()      {}
func (AddToWishlist) command()      {}
func (RemoveFromWishlist) command() {}
func (AddToCart) command()          {}
func (RemoveFromCart) command()     {}
func (ClearCart) command()          {}
func (MarkPrefetched) command()     {}
func (Reset) command()              {}

// changesQuery reports whether cmd alters the product query.
func changesQuery(cmd Command) bool {
	switch cmd.(type) {
	case SetFilters, ClearFilters, SetSort, SetPage:
		return true
	}
	return false
}

// Reduce applies cmd to s. It never mutates s.
func Reduce(s State, cmd Command) State {
	switch c := cmd.(type) {
	case SetLoading:
		s.Loading = c.Loading
	case SetError:
		s.Error = c.Message
		s.Loading = false
	case SetProducts:
		s.Products = c.Result.Products
		p := c.Result.Pagination
		if p.Limit <= 0 {
			p.Limit = s.Pagination.Limit
		}
		s.Pagination = p.normalize()
		if c.Result.Filters != nil {
			s.Filters = s.Filters.Apply(*c.Result.Filters)
		}
		s.Loading = false
		s.Error = ""
		s.LastFetch = c.At
	case SetTaxonomy:
		switch c.Kind {
		case TaxonomyCategories:
			s.Categories = c.Facets
		case TaxonomyBrands:
			s.Brands = c.Facets
		case TaxonomyCollections:
			s.Collections = c.Facets
		}
	case SetFilters:
		s.Filters = s.Filters.Apply(c.Patch)
		s = resetCursor(s)
	case ClearFilters:
		s.Filters = Filters{}
		s = resetCursor(s)
	case SetSort:
		if !c.Sort.Valid() {
			return s
		}
		s.SortBy = c.Sort
		s = resetCursor(s)
	case SetPage:
		if c.Page < 1 {
			return s
		}
		s.Pagination.Page = c.Page
		s.Pagination = s.Pagination.normalize()
	case SetViewMode:
		if c.Mode.Valid() {
			s.ViewMode = c.Mode
		}
	case ToggleFilters:
		s.ShowFilters = !s.ShowFilters
	case AddToWishlist:
		s.Wishlist = s.Wishlist.Add(c.ID)
	case RemoveFromWishlist:
		s.Wishlist = s.Wishlist.Remove(c.ID)
	case AddToCart:
		if c.ID == "" || c.Quantity <= 0 {
			return s
		}
		s.Cart = cloneCart(s.Cart)
		s.Cart[c.ID] += c.Quantity
	case RemoveFromCart:
		if _, ok := s.Cart[c.ID]; !ok {
			return s
		}
		s.Cart = cloneCart(s.Cart)
		delete(s.Cart, c.ID)
	case ClearCart:
		s.Cart = map[string]int{}
	case MarkPrefetched:
		s.PrefetchedPages = clonePages(s.PrefetchedPages)
		s.PrefetchedPages[c.Page] = struct{}{}
	case Reset:
		return InitialState()
	}
	return s
}

// resetCursor moves back to the first page. Pages fetched ahead belong to
// the previous query and are forgotten.
func resetCursor(s State) State {
	s.Pagination.Page = 1
	s.Pagination = s.Pagination.normalize()
	s.PrefetchedPages = map[int]struct{}{}
	return s
}

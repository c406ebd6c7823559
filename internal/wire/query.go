package wire

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	// DefaultLimit is the page size used when none is requested.
	DefaultLimit = 20
	// MaxLimit caps the page size.
	MaxLimit = 100
)

// EncodeQuery renders q as product search parameters. Empty filters are
// omitted, so equal queries always produce equal strings.
func EncodeQuery(q product.Query) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(max(q.Page, 1)))
	v.Set("limit", strconv.Itoa(q.Limit))
	sort := q.Sort
	if sort == "" {
		sort = product.DefaultSort
	}
	v.Set("sortBy", string(sort))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if len(q.Categories) > 0 {
		v.Set("categories", strings.Join(q.Categories, ","))
	}
	if len(q.Brands) > 0 {
		v.Set("brands", strings.Join(q.Brands, ","))
	}
	if len(q.Collections) > 0 {
		v.Set("collections", strings.Join(q.Collections, ","))
	}
	if q.InStockOnly {
		v.Set("inStockOnly", "true")
	}
	if q.Featured {
		v.Set("featured", "true")
	}
	if q.MinPrice.IsPositive() {
		v.Set("minPrice", q.MinPrice.String())
	}
	if q.MaxPrice.IsPositive() {
		v.Set("maxPrice", q.MaxPrice.String())
	}
	return v
}

// ParseQuery reads search parameters leniently: malformed values fall back
// to defaults instead of failing the request.
func ParseQuery(v url.Values) product.Query {
	q := product.Query{
		Page:        atoiDefault(v.Get("page"), 1),
		Limit:       atoiDefault(v.Get("limit"), DefaultLimit),
		Sort:        product.SortBy(v.Get("sortBy")),
		Search:      strings.TrimSpace(v.Get("search")),
		Categories:  splitList(v.Get("categories")),
		Brands:      splitList(v.Get("brands")),
		Collections: splitList(v.Get("collections")),
		InStockOnly: v.Get("inStockOnly") == "true",
		Featured:    v.Get("featured") == "true",
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	q.Limit = min(q.Limit, MaxLimit)
	if !q.Sort.Valid() {
		q.Sort = product.DefaultSort
	}
	if d, err := decimal.NewFromString(v.Get("minPrice")); err == nil && d.IsPositive() {
		q.MinPrice = d
	}
	if d, err := decimal.NewFromString(v.Get("maxPrice")); err == nil && d.IsPositive() {
		q.MaxPrice = d
	}
	return q
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

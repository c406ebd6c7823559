package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Pagination describes the page a product list belongs to.
type Pagination struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// PriceRange bounds prices. Zero bounds are open.
type PriceRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Filters echoes the filters a product list was produced with.
type Filters struct {
	Search      string
	Categories  []string
	Brands      []string
	Collections []string
	InStockOnly bool
	Featured    bool
	PriceRange  *PriceRange
}

// ProductList is the data of GET /api/catalog/products.
type ProductList struct {
	Products   []product.Summary
	Pagination Pagination
	Filters    *Filters
}

// EncodeProductList writes l.
func EncodeProductList(e *jx.Encoder, l ProductList) {
	e.ObjStart()
	e.FieldStart("products")
	e.ArrStart()
	for _, p := range l.Products {
		EncodeSummary(e, p)
	}
	e.ArrEnd()

	e.FieldStart("pagination")
	encodePagination(e, l.Pagination)

	if l.Filters != nil {
		e.FieldStart("filters")
		encodeFilters(e, *l.Filters)
	}
	e.ObjEnd()
}

// DecodeProductList reads a product list.
func DecodeProductList(d *jx.Decoder) (ProductList, error) {
	var l ProductList
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := DecodeSummary(d)
				if err != nil {
					return err
				}
				l.Products = append(l.Products, p)
				return nil
			})
		case "pagination":
			p, err := decodePagination(d)
			l.Pagination = p
			return err
		case "filters":
			if d.Next() == jx.Null {
				return d.Null()
			}
			f, err := decodeFilters(d)
			if err != nil {
				return err
			}
			l.Filters = &f
			return nil
		default:
			return d.Skip()
		}
	})
	return l, errors.Wrap(err, "decode product list")
}

func encodePagination(e *jx.Encoder, p Pagination) {
	e.ObjStart()
	e.FieldStart("page")
	e.Int(p.Page)
	e.FieldStart("limit")
	e.Int(p.Limit)
	e.FieldStart("total")
	e.Int(p.Total)
	e.FieldStart("totalPages")
	e.Int(p.TotalPages)
	e.FieldStart("hasNext")
	e.Bool(p.HasNext)
	e.FieldStart("hasPrev")
	e.Bool(p.HasPrev)
	e.ObjEnd()
}

func decodePagination(d *jx.Decoder) (Pagination, error) {
	var p Pagination
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "page":
			p.Page, err = d.Int()
		case "limit":
			p.Limit, err = d.Int()
		case "total":
			p.Total, err = d.Int()
		case "totalPages":
			p.TotalPages, err = d.Int()
		case "hasNext":
			p.HasNext, err = d.Bool()
		case "hasPrev":
			p.HasPrev, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func encodeFilters(e *jx.Encoder, f Filters) {
	e.ObjStart()
	if f.Search != "" {
		e.FieldStart("search")
		e.Str(f.Search)
	}
	e.FieldStart("categories")
	encodeStrings(e, f.Categories)
	e.FieldStart("brands")
	encodeStrings(e, f.Brands)
	e.FieldStart("collections")
	encodeStrings(e, f.Collections)
	e.FieldStart("inStockOnly")
	e.Bool(f.InStockOnly)
	e.FieldStart("featured")
	e.Bool(f.Featured)
	if f.PriceRange != nil {
		e.FieldStart("priceRange")
		e.ObjStart()
		e.FieldStart("min")
		encodeDecimal(e, f.PriceRange.Min)
		e.FieldStart("max")
		encodeDecimal(e, f.PriceRange.Max)
		e.ObjEnd()
	}
	e.ObjEnd()
}

func decodeFilters(d *jx.Decoder) (Filters, error) {
	var f Filters
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "search":
			f.Search, err = decodeOptString(d)
		case "categories":
			f.Categories, err = decodeIDs(d)
		case "brands":
			f.Brands, err = decodeIDs(d)
		case "collections":
			f.Collections, err = decodeIDs(d)
		case "inStockOnly":
			f.InStockOnly, err = decodeOptBool(d)
		case "featured":
			f.Featured, err = decodeOptBool(d)
		case "priceRange":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var r PriceRange
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "min":
					r.Min, err = decodeDecimal(d)
				case "max":
					r.Max, err = decodeDecimal(d)
				default:
					err = d.Skip()
				}
				return err
			})
			f.PriceRange = &r
		default:
			err = d.Skip()
		}
		return err
	})
	return f, err
}

// decodeIDs accepts ids as plain strings or as objects carrying an "id"
// member, in any mix.
func decodeIDs(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			out = append(out, s)
			return nil
		case jx.Object:
			var id string
			if err := d.Obj(func(d *jx.Decoder, key string) error {
				if key != "id" {
					return d.Skip()
				}
				v, err := d.Str()
				id = v
				return err
			}); err != nil {
				return err
			}
			if id != "" {
				out = append(out, id)
			}
			return nil
		default:
			return d.Skip()
		}
	})
	return out, err
}

func decodeOptBool(d *jx.Decoder) (bool, error) {
	if d.Next() == jx.Null {
		return false, d.Null()
	}
	return d.Bool()
}

// EncodeSummary writes one product.
func EncodeSummary(e *jx.Encoder, p product.Summary) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("slug")
	e.Str(p.Slug)
	if p.SKU != "" {
		e.FieldStart("sku")
		e.Str(p.SKU)
	}
	if p.ShortDescription != "" {
		e.FieldStart("short_description")
		e.Str(p.ShortDescription)
	}
	e.FieldStart("base_price")
	if p.BasePrice != nil {
		encodeDecimal(e, *p.BasePrice)
	} else {
		e.Null()
	}
	if p.Thumbnail != "" {
		e.FieldStart("thumbnail")
		e.Str(p.Thumbnail)
	}
	e.FieldStart("images")
	encodeStrings(e, p.Images)
	if p.BrandID != "" {
		e.FieldStart("brand_id")
		e.Str(p.BrandID)
		e.FieldStart("brand_name")
		e.Str(p.BrandName)
	}
	if p.CategoryID != "" {
		e.FieldStart("category_id")
		e.Str(p.CategoryID)
		e.FieldStart("category_name")
		e.Str(p.CategoryName)
	}
	e.FieldStart("inventory_quantity")
	e.Int(p.InventoryQuantity)
	e.FieldStart("is_featured")
	e.Bool(p.IsFeatured)
	if !p.CreatedAt.IsZero() {
		e.FieldStart("created_at")
		e.Str(p.CreatedAt.UTC().Format(time.RFC3339))
	}
	e.ObjEnd()
}

// DecodeSummary reads one product.
func DecodeSummary(d *jx.Decoder) (product.Summary, error) {
	var p product.Summary
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "slug":
			p.Slug, err = decodeOptString(d)
		case "sku":
			p.SKU, err = decodeOptString(d)
		case "short_description":
			p.ShortDescription, err = decodeOptString(d)
		case "base_price":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := decodeDecimal(d)
			if err != nil {
				return err
			}
			p.BasePrice = &v
		case "thumbnail":
			p.Thumbnail, err = decodeOptString(d)
		case "images":
			p.Images, err = decodeStrings(d)
		case "brand_id":
			p.BrandID, err = decodeOptString(d)
		case "brand_name":
			p.BrandName, err = decodeOptString(d)
		case "category_id":
			p.CategoryID, err = decodeOptString(d)
		case "category_name":
			p.CategoryName, err = decodeOptString(d)
		case "inventory_quantity":
			p.InventoryQuantity, err = d.Int()
		case "is_featured":
			p.IsFeatured, err = decodeOptBool(d)
		case "created_at":
			var s string
			if s, err = decodeOptString(d); err != nil || s == "" {
				return err
			}
			p.CreatedAt, err = time.Parse(time.RFC3339, s)
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

// EncodeFacets writes a taxonomy list.
func EncodeFacets(e *jx.Encoder, facets []product.Facet) {
	e.ArrStart()
	for _, f := range facets {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(f.ID)
		e.FieldStart("name")
		e.Str(f.Name)
		e.FieldStart("slug")
		e.Str(f.Slug)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// DecodeFacets reads a taxonomy list.
func DecodeFacets(d *jx.Decoder) ([]product.Facet, error) {
	var out []product.Facet
	err := d.Arr(func(d *jx.Decoder) error {
		var f product.Facet
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				f.ID, err = d.Str()
			case "name":
				f.Name, err = d.Str()
			case "slug":
				f.Slug, err = decodeOptString(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		out = append(out, f)
		return nil
	})
	return out, errors.Wrap(err, "decode facets")
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
}

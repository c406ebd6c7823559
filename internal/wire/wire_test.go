package wire

import (
	"net/url"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

func TestProductListEnvelope(t *testing.T) {
	price := decimal.RequireFromString("1234.50")
	in := ProductList{
		Products: []product.Summary{{
			ID:                "p1",
			Name:              "Кабель",
			Slug:              "kabel",
			BasePrice:         &price,
			Thumbnail:         "/p1.jpg",
			Images:            []string{"/p1-a.jpg"},
			BrandID:           "b1",
			BrandName:         "Legrand",
			InventoryQuantity: 3,
			IsFeatured:        true,
			CreatedAt:         time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		}, {
			ID:   "p2",
			Name: "Без цены",
		}},
		Pagination: Pagination{Page: 2, Limit: 20, Total: 41, TotalPages: 3, HasNext: true, HasPrev: true},
		Filters:    &Filters{Search: "каб", Categories: []string{"c1"}, InStockOnly: true},
	}

	var e jx.Encoder
	Success(&e, func(e *jx.Encoder) { EncodeProductList(e, in) })

	var out ProductList
	require.NoError(t, DecodeEnvelope(e.Bytes(), func(d *jx.Decoder) error {
		var err error
		out, err = DecodeProductList(d)
		return err
	}))

	require.Len(t, out.Products, 2)
	got := out.Products[0]
	assert.Equal(t, "Кабель", got.Name)
	require.NotNil(t, got.BasePrice)
	assert.True(t, price.Equal(*got.BasePrice))
	assert.True(t, in.Products[0].CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, out.Products[1].BasePrice)
	assert.Equal(t, in.Pagination, out.Pagination)
	require.NotNil(t, out.Filters)
	assert.Equal(t, []string{"c1"}, out.Filters.Categories)
	assert.True(t, out.Filters.InStockOnly)
}

func TestDecodeEnvelope_Failure(t *testing.T) {
	err := DecodeEnvelope([]byte(`{"success":false,"error":"Категория не найдена"}`), nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Категория не найдена", apiErr.Message)

	err = DecodeEnvelope([]byte(`{"success":false,"error":null}`), nil)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "request failed", apiErr.Error())

	require.Error(t, DecodeEnvelope([]byte(`not json`), nil))
}

func TestDecodeFilters_MixedIDs(t *testing.T) {
	raw := `{"categories":[{"id":"c1","name":"Кабели"},"c2",{"name":"no id"}],"brands":null,` +
		`"priceRange":{"min":"10.5","max":200},"featured":null,"unknown":[1,2]}`
	f, err := decodeFilters(jx.DecodeStr(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, f.Categories)
	assert.Nil(t, f.Brands)
	require.NotNil(t, f.PriceRange)
	assert.True(t, decimal.RequireFromString("10.5").Equal(f.PriceRange.Min))
	assert.True(t, decimal.NewFromInt(200).Equal(f.PriceRange.Max))
}

func TestFacetsRoundTrip(t *testing.T) {
	in := []product.Facet{{ID: "1", Name: "Кабели", Slug: "cables"}, {ID: "2", Name: "Розетки"}}
	var e jx.Encoder
	EncodeFacets(&e, in)
	out, err := DecodeFacets(jx.DecodeBytes(e.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestQuery(t *testing.T) {
	q := product.Query{
		Page:       2,
		Limit:      20,
		Sort:       product.SortPriceDesc,
		Search:     "кабель",
		Categories: []string{"c1", "c2"},
		Featured:   true,
		MinPrice:   decimal.NewFromInt(100),
	}
	v := EncodeQuery(q)
	assert.Equal(t, "c1,c2", v.Get("categories"))
	assert.Equal(t, "true", v.Get("featured"))
	assert.Empty(t, v.Get("inStockOnly"))
	assert.Empty(t, v.Get("maxPrice"))

	back := ParseQuery(v)
	assert.Equal(t, q.Page, back.Page)
	assert.Equal(t, q.Sort, back.Sort)
	assert.Equal(t, q.Categories, back.Categories)
	assert.True(t, q.MinPrice.Equal(back.MinPrice))
	assert.Equal(t, EncodeQuery(q).Encode(), EncodeQuery(back).Encode())
}

func TestParseQuery_Lenient(t *testing.T) {
	q := ParseQuery(url.Values{
		"page":        {"-3"},
		"limit":       {"5000"},
		"sortBy":      {"random"},
		"brands":      {"b1, ,b1,b2"},
		"minPrice":    {"abc"},
		"maxPrice":    {"-5"},
		"inStockOnly": {"yes"},
	})
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxLimit, q.Limit)
	assert.Equal(t, product.DefaultSort, q.Sort)
	assert.Equal(t, []string{"b1", "b2"}, q.Brands)
	assert.True(t, q.MinPrice.IsZero())
	assert.True(t, q.MaxPrice.IsZero())
	assert.False(t, q.InStockOnly)

	assert.Equal(t, DefaultLimit, ParseQuery(url.Values{}).Limit)
}

//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/catalog/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[envelope[productListResponse]](t, resp)
	if !body.Success {
		t.Fatalf("expected success, got error %q", body.Error)
	}
	if len(body.Data.Products) != seededCount {
		t.Fatalf("expected %d products, got %d", seededCount, len(body.Data.Products))
	}
	p := body.Data.Pagination
	if p.Page != 1 || p.Total != seededCount || p.TotalPages != 1 || p.HasNext || p.HasPrev {
		t.Errorf("unexpected pagination: %+v", p)
	}
}

func TestListProducts_Pagination(t *testing.T) {
	resp := doGet(t, "/api/catalog/products?page=2&limit=2&sortBy=name_asc")
	defer resp.Body.Close()

	body := decodeJSON[envelope[productListResponse]](t, resp)
	p := body.Data.Pagination
	if p.Page != 2 || p.Limit != 2 || p.TotalPages != 3 || !p.HasNext || !p.HasPrev {
		t.Errorf("unexpected pagination: %+v", p)
	}
	if len(body.Data.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(body.Data.Products))
	}
}

func TestListProducts_Filters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"category", "?categories=cat-garden&sortBy=name_asc", []string{"prod-sprinkler", "prod-hose-20m"}},
		{"in stock brand", "?brands=brand-bosch&inStockOnly=true", []string{"prod-drill-18v"}},
		{"collection", "?collections=col-summer&sortBy=name_asc", []string{"prod-sprinkler", "prod-hose-20m"}},
		{"search", "?search=philips", []string{"prod-lamp-e27"}},
		{"price range", "?minPrice=1000&maxPrice=6000&sortBy=price_asc", []string{"prod-hose-20m", "prod-jigsaw"}},
		{"featured", "?featured=true&sortBy=name_asc", []string{"prod-sprinkler", "prod-drill-18v"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doGet(t, "/api/catalog/products"+tt.query)
			defer resp.Body.Close()

			body := decodeJSON[envelope[productListResponse]](t, resp)
			var got []string
			for _, p := range body.Data.Products {
				got = append(got, p.ID)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestListProducts_UnpricedFirst(t *testing.T) {
	resp := doGet(t, "/api/catalog/products?sortBy=price_asc")
	defer resp.Body.Close()

	body := decodeJSON[envelope[productListResponse]](t, resp)
	if len(body.Data.Products) == 0 {
		t.Fatal("no products")
	}
	if first := body.Data.Products[0]; first.BasePrice != nil {
		t.Errorf("expected the unpriced product first, got %s with price %v", first.ID, *first.BasePrice)
	}
}

func TestTaxonomy(t *testing.T) {
	for path, want := range map[string]int{
		"/api/catalog/categories":  3,
		"/api/catalog/brands":      3,
		"/api/catalog/collections": 2,
	} {
		resp := doGet(t, path)
		body := decodeJSON[envelope[[]facetResponse]](t, resp)
		resp.Body.Close()

		if len(body.Data) != want {
			t.Errorf("%s: expected %d entries, got %d", path, want, len(body.Data))
		}
	}
}

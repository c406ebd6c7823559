package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/wire"
)

// ListProducts serves one page of the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := wire.ParseQuery(r.URL.Query())

	page, err := h.products.Search(ctx, q)
	if err != nil {
		zctx.From(ctx).Error("Failed to search products", zap.Error(err), zap.Int("page", q.Page))
		fail(w, http.StatusInternalServerError, "Database error")
		return
	}

	products := make([]product.Summary, len(page.Products))
	for i, p := range page.Products {
		products[i] = h.presentProduct(p)
	}
	totalPages := product.TotalPages(page.Total, q.Limit)
	list := wire.ProductList{
		Products: products,
		Pagination: wire.Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      page.Total,
			TotalPages: totalPages,
			HasNext:    q.Page < totalPages,
			HasPrev:    q.Page > 1,
		},
		Filters: &wire.Filters{
			Search:      q.Search,
			Categories:  q.Categories,
			Brands:      q.Brands,
			Collections: q.Collections,
			InStockOnly: q.InStockOnly,
			Featured:    q.Featured,
			PriceRange:  &wire.PriceRange{Min: q.MinPrice, Max: q.MaxPrice},
		},
	}

	var e jx.Encoder
	wire.Success(&e, func(e *jx.Encoder) { wire.EncodeProductList(e, list) })
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	h.listFacets(w, r, "categories", h.taxonomy.Categories)
}

func (h *Handler) ListBrands(w http.ResponseWriter, r *http.Request) {
	h.listFacets(w, r, "brands", h.taxonomy.Brands)
}

func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	h.listFacets(w, r, "collections", h.taxonomy.Collections)
}

func (h *Handler) listFacets(
	w http.ResponseWriter,
	r *http.Request,
	kind string,
	list func(ctx context.Context) ([]product.Facet, error),
) {
	ctx := r.Context()
	facets, err := list(ctx)
	if err != nil {
		zctx.From(ctx).Error("Failed to list taxonomy", zap.String("kind", kind), zap.Error(err))
		fail(w, http.StatusInternalServerError, "Failed to fetch "+kind)
		return
	}
	var e jx.Encoder
	wire.Success(&e, func(e *jx.Encoder) { wire.EncodeFacets(e, facets) })
	writeJSON(w, http.StatusOK, &e)
}

func fail(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	wire.Failure(&e, msg)
	writeJSON(w, status, &e)
}

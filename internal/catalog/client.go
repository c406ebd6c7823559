package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/wire"
)

// API is the remote catalog.
type API interface {
	SearchProducts(ctx context.Context, q product.Query) (*Result, error)
	Taxonomy(ctx context.Context, kind TaxonomyKind) ([]product.Facet, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: status %d", e.StatusCode)
}

// maxResponseSize bounds a decoded response body.
const maxResponseSize = 8 << 20

// Client talks to the catalog HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ API = (*Client)(nil)

// NewClient creates a Client for baseURL, e.g. "http://localhost:8080". A
// nil httpClient gets an instrumented default one.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// SearchProducts fetches one page of products.
func (c *Client) SearchProducts(ctx context.Context, q product.Query) (*Result, error) {
	var list wire.ProductList
	err := c.get(ctx, "/api/catalog/products?"+wire.EncodeQuery(q).Encode(), func(d *jx.Decoder) error {
		var err error
		list, err = wire.DecodeProductList(d)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fromWire(list), nil
}

// Taxonomy fetches a facet list.
func (c *Client) Taxonomy(ctx context.Context, kind TaxonomyKind) ([]product.Facet, error) {
	var facets []product.Facet
	err := c.get(ctx, "/api/catalog/"+kind.String(), func(d *jx.Decoder) error {
		var err error
		facets, err = wire.DecodeFacets(d)
		return err
	})
	return facets, err
}

// Categories fetches the category list.
func (c *Client) Categories(ctx context.Context) ([]product.Facet, error) {
	return c.Taxonomy(ctx, TaxonomyCategories)
}

// Brands fetches the brand list.
func (c *Client) Brands(ctx context.Context) ([]product.Facet, error) {
	return c.Taxonomy(ctx, TaxonomyBrands)
}

// Collections fetches the collection list.
func (c *Client) Collections(ctx context.Context) ([]product.Facet, error) {
	return c.Taxonomy(ctx, TaxonomyCollections)
}

func (c *Client) get(ctx context.Context, path string, data func(d *jx.Decoder) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	return wire.DecodeEnvelope(body, data)
}

// fromWire normalizes a decoded list. Echoed filters only carry the fields
// the server actually set.
func fromWire(l wire.ProductList) *Result {
	r := &Result{
		Products: l.Products,
		Pagination: Pagination{
			Page:       l.Pagination.Page,
			Limit:      l.Pagination.Limit,
			Total:      l.Pagination.Total,
			TotalPages: l.Pagination.TotalPages,
		},
	}
	if f := l.Filters; f != nil {
		p := &FilterPatch{
			Categories:  f.Categories,
			Brands:      f.Brands,
			Collections: f.Collections,
		}
		if f.Search != "" {
			p.Search = &f.Search
		}
		if f.InStockOnly {
			p.InStockOnly = &f.InStockOnly
		}
		if f.Featured {
			p.Featured = &f.Featured
		}
		if f.PriceRange != nil {
			p.PriceRange = &PriceRange{Min: f.PriceRange.Min, Max: f.PriceRange.Max}
		}
		r.Filters = p
	}
	return r
}

// Package handler serves the storefront HTTP API.
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/images"
	"github.com/xenking/storefront/internal/priceimport"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to root-relative image paths in product
	// responses. When empty, image paths are returned as stored.
	ImageBaseURL string
	// ImportTimeout bounds a price import request. Zero disables the limit.
	ImportTimeout time.Duration
	// AdminRateLimit limits administrative requests per authenticated API
	// key. Zero Max disables it.
	AdminRateLimit httpmiddleware.RateLimitConfig
}

// Handler serves catalog reads and administrative price imports.
type Handler struct {
	products      product.Repository
	taxonomy      product.TaxonomyRepository
	imports       *priceimport.Service
	imageBaseURL  string
	importTimeout time.Duration
	adminLimit    httpmiddleware.RateLimitConfig
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	taxonomy product.TaxonomyRepository,
	imports *priceimport.Service,
) *Handler {
	return &Handler{
		products:      products,
		taxonomy:      taxonomy,
		imports:       imports,
		imageBaseURL:  strings.TrimRight(cfg.ImageBaseURL, "/"),
		importTimeout: cfg.ImportTimeout,
		adminLimit:    cfg.AdminRateLimit,
	}
}

// Routes mounts the API under r. Administrative routes require an API key
// with the admin or super_admin scope.
func (h *Handler) Routes(r chi.Router, security *SecurityHandler) {
	r.Route("/api/catalog", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/categories", h.ListCategories)
		r.Get("/brands", h.ListBrands)
		r.Get("/collections", h.ListCollections)
	})
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(security.Require(auth.ScopeAdmin, auth.ScopeSuperAdmin))
		if h.adminLimit.Max > 0 {
			limit := h.adminLimit
			limit.KeyFunc = AdminKey
			r.Use(httpmiddleware.RateLimit(limit))
		}
		if h.importTimeout > 0 {
			r.Use(middleware.Timeout(h.importTimeout))
		}
		r.Post("/products/bulk-update-prices", h.BulkUpdatePrices)
	})
}

// imageURL rebases root-relative paths and drops sources that cannot be
// requested.
func (h *Handler) imageURL(src string) string {
	if h.imageBaseURL != "" && strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//") {
		src = h.imageBaseURL + src
	}
	if !images.IsValidImageURL(src) {
		return ""
	}
	return src
}

func (h *Handler) presentProduct(p product.Summary) product.Summary {
	p.Thumbnail = h.imageURL(p.Thumbnail)
	out := make([]string, 0, len(p.Images))
	for _, src := range p.Images {
		if u := h.imageURL(src); u != "" {
			out = append(out, u)
		}
	}
	p.Images = out
	return p
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// Command seed-db loads taxonomy, products and an administrative API key into
// the storefront database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type facetJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type productJSON struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Slug              string           `json:"slug"`
	SKU               string           `json:"sku"`
	ShortDescription  string           `json:"shortDescription"`
	BasePrice         *decimal.Decimal `json:"basePrice"`
	Thumbnail         string           `json:"thumbnail"`
	Images            []string         `json:"images"`
	BrandID           string           `json:"brandId"`
	CategoryID        string           `json:"categoryId"`
	InventoryQuantity int              `json:"inventoryQuantity"`
	IsFeatured        bool             `json:"isFeatured"`
	Collections       []string         `json:"collections"`
}

type catalogJSON struct {
	Categories  []facetJSON   `json:"categories"`
	Brands      []facetJSON   `json:"brands"`
	Collections []facetJSON   `json:"collections"`
	Products    []productJSON `json:"products"`
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.Parse()

	databaseURL = firstNonEmpty(databaseURL, os.Getenv("STORE_DATABASE_URL"), os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	apiKey = firstNonEmpty(apiKey, os.Getenv("STORE_SEED_API_KEY"))
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	apiKeyPepper = firstNonEmpty(apiKeyPepper, os.Getenv("STORE_API_KEY_PEPPER"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper string) error {
	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	taxonomy := postgres.NewTaxonomyRepository(pool)
	for table, facets := range map[string][]facetJSON{
		postgres.TableCategories:  catalog.Categories,
		postgres.TableBrands:      catalog.Brands,
		postgres.TableCollections: catalog.Collections,
	} {
		for _, f := range facets {
			if err := taxonomy.UpsertFacet(ctx, table, product.Facet(f)); err != nil {
				return errors.Wrapf(err, "upsert %s %s", table, f.ID)
			}
		}
		slog.Info("upserted taxonomy", slog.String("table", table), slog.Int("count", len(facets)))
	}

	products := postgres.NewProductRepository(pool)
	for _, p := range catalog.Products {
		s := product.Summary{
			ID:                p.ID,
			Name:              p.Name,
			Slug:              p.Slug,
			SKU:               p.SKU,
			ShortDescription:  p.ShortDescription,
			BasePrice:         p.BasePrice,
			Thumbnail:         p.Thumbnail,
			Images:            p.Images,
			BrandID:           p.BrandID,
			CategoryID:        p.CategoryID,
			InventoryQuantity: p.InventoryQuantity,
			IsFeatured:        p.IsFeatured,
		}
		if err := products.Upsert(ctx, s, p.Collections...); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	keys := postgres.NewAPIKeyRepository(pool)
	if err := keys.Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKeyHex([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}
	slog.Info("upserted API key", slog.String("id", "default"))

	return nil
}

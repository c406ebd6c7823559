//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "store",
				"POSTGRES_PASSWORD": "store",
				"POSTGRES_DB":       "store",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://store:store@%s:%s/store?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestRepositories(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	products := NewProductRepository(pool)
	taxonomy := NewTaxonomyRepository(pool)

	require.NoError(t, taxonomy.UpsertFacet(ctx, TableBrands, product.Facet{ID: "b1", Name: "Legrand", Slug: "legrand"}))
	require.NoError(t, taxonomy.UpsertFacet(ctx, TableCategories, product.Facet{ID: "c1", Name: "Розетки", Slug: "rozetki"}))
	require.NoError(t, taxonomy.UpsertFacet(ctx, TableCollections, product.Facet{ID: "k1", Name: "Новинки", Slug: "new"}))
	require.Error(t, taxonomy.UpsertFacet(ctx, "users", product.Facet{ID: "x"}))

	seed := []product.Summary{
		{ID: "p1", Name: "Розетка двойная", Slug: "rozetka-2", SKU: "LG-100", BasePrice: price("1500"), BrandID: "b1", CategoryID: "c1", InventoryQuantity: 3},
		{ID: "p2", Name: "Розетка одинарная", Slug: "rozetka-1", BasePrice: price("900.50"), CategoryID: "c1", IsFeatured: true},
		{ID: "p3", Name: "Кабель ВВГ", Slug: "kabel", InventoryQuantity: 100},
	}
	for i, s := range seed {
		var cols []string
		if i == 0 {
			cols = []string{"k1"}
		}
		require.NoError(t, products.Upsert(ctx, s, cols...))
	}

	t.Run("Search", func(t *testing.T) {
		page, err := products.Search(ctx, product.Query{Page: 1, Limit: 2, Sort: product.SortPriceAsc})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Products, 2)
		assert.Equal(t, "p3", page.Products[0].ID, "null prices first")
		assert.Nil(t, page.Products[0].BasePrice)
		assert.Equal(t, "p2", page.Products[1].ID)

		page, err = products.Search(ctx, product.Query{Page: 1, Limit: 20, Search: "розетка", InStockOnly: true})
		require.NoError(t, err)
		require.Len(t, page.Products, 1)
		assert.Equal(t, "Legrand", page.Products[0].BrandName)
		assert.Equal(t, "Розетки", page.Products[0].CategoryName)

		page, err = products.Search(ctx, product.Query{Page: 1, Limit: 20, Collections: []string{"k1"}})
		require.NoError(t, err)
		require.Len(t, page.Products, 1)

		page, err = products.Search(ctx, product.Query{Page: 1, Limit: 20, MinPrice: decimal.NewFromInt(1000)})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)

		page, err = products.Search(ctx, product.Query{Page: 5, Limit: 2})
		require.NoError(t, err)
		assert.Empty(t, page.Products)
		assert.Equal(t, 3, page.Total)
	})

	t.Run("Pricing", func(t *testing.T) {
		records, err := products.ListPricing(ctx)
		require.NoError(t, err)
		require.Len(t, records, 3)

		require.NoError(t, products.UpdateBasePrice(ctx, "p3", decimal.RequireFromString("45.99")))
		got, err := products.GetByID(ctx, "p3")
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("45.99").Equal(*got.BasePrice))

		assert.ErrorIs(t, products.UpdateBasePrice(ctx, "nope", decimal.NewFromInt(1)), product.ErrNotFound)
		_, err = products.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("Taxonomy", func(t *testing.T) {
		brands, err := taxonomy.Brands(ctx)
		require.NoError(t, err)
		assert.Equal(t, []product.Facet{{ID: "b1", Name: "Legrand", Slug: "legrand"}}, brands)
	})

	t.Run("APIKeys", func(t *testing.T) {
		keys := NewAPIKeyRepository(pool)
		hash := auth.HashKeyHex([]byte("pepper"), "secret")
		require.NoError(t, keys.Upsert(ctx, auth.APIKeyInfo{ID: "k1", KeyHash: hash, Name: "admin", Scopes: []string{auth.ScopeAdmin}}))

		info, err := keys.FindByHash(ctx, hash)
		require.NoError(t, err)
		assert.True(t, info.HasAnyScope(auth.ScopeAdmin))

		_, err = keys.FindByHash(ctx, "missing")
		assert.ErrorIs(t, err, auth.ErrKeyNotFound)
	})
}

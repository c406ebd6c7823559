package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

var _ product.TaxonomyRepository = (*TaxonomyRepository)(nil)

// TaxonomyRepository lists active categories, brands and collections.
type TaxonomyRepository struct {
	pool *pgxpool.Pool
}

// NewTaxonomyRepository returns a TaxonomyRepository that uses the given pool.
func NewTaxonomyRepository(pool *pgxpool.Pool) *TaxonomyRepository {
	return &TaxonomyRepository{pool: pool}
}

// Taxonomy tables accepted by UpsertFacet.
const (
	TableCategories  = "categories"
	TableBrands      = "brands"
	TableCollections = "collections"
)

func (r *TaxonomyRepository) Categories(ctx context.Context) ([]product.Facet, error) {
	return r.list(ctx, TableCategories)
}

func (r *TaxonomyRepository) Brands(ctx context.Context) ([]product.Facet, error) {
	return r.list(ctx, TableBrands)
}

func (r *TaxonomyRepository) Collections(ctx context.Context) ([]product.Facet, error) {
	return r.list(ctx, TableCollections)
}

func (r *TaxonomyRepository) list(ctx context.Context, table string) ([]product.Facet, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, name, slug FROM "+table+" WHERE is_active ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	facets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Facet, error) {
		var f product.Facet
		err := row.Scan(&f.ID, &f.Name, &f.Slug)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	return facets, nil
}

// UpsertFacet stores a taxonomy entry in table, which must be one of
// categories, brands or collections.
func (r *TaxonomyRepository) UpsertFacet(ctx context.Context, table string, f product.Facet) error {
	switch table {
	case TableCategories, TableBrands, TableCollections:
	default:
		return fmt.Errorf("unknown taxonomy table %q", table)
	}
	_, err := r.pool.Exec(ctx, "INSERT INTO "+table+` (id, name, slug) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug, is_active = TRUE`,
		f.ID, f.Name, f.Slug)
	if err != nil {
		return fmt.Errorf("upserting %s %q: %w", table, f.ID, err)
	}
	return nil
}

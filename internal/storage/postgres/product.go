package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	summaryColumns = `p.id, p.name, p.slug, COALESCE(p.sku, ''), p.short_description, p.base_price,
		p.thumbnail, p.images, COALESCE(p.brand_id, ''), COALESCE(b.name, ''),
		COALESCE(p.category_id, ''), COALESCE(c.name, ''), p.inventory_quantity, p.is_featured, p.created_at`

	summaryFrom = ` FROM products p
		LEFT JOIN brands b ON b.id = p.brand_id
		LEFT JOIN categories c ON c.id = p.category_id`

	getProductByIDSQL = `SELECT ` + summaryColumns + summaryFrom + ` WHERE p.id = $1`

	listPricingSQL = `SELECT id, name, COALESCE(sku, ''), base_price FROM products ORDER BY created_at, id`

	updateBasePriceSQL = `UPDATE products SET base_price = $2, updated_at = now() WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, slug, sku, short_description, base_price, thumbnail,
		images, brand_id, category_id, inventory_quantity, is_featured)
	VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, slug = EXCLUDED.slug, sku = EXCLUDED.sku,
		short_description = EXCLUDED.short_description, base_price = EXCLUDED.base_price,
		thumbnail = EXCLUDED.thumbnail, images = EXCLUDED.images, brand_id = EXCLUDED.brand_id,
		category_id = EXCLUDED.category_id, inventory_quantity = EXCLUDED.inventory_quantity,
		is_featured = EXCLUDED.is_featured, updated_at = now()`

	linkCollectionSQL = `INSERT INTO product_collections (product_id, collection_id)
	VALUES ($1, $2) ON CONFLICT DO NOTHING`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Search returns one page of active products matching q together with the
// number of matching rows.
func (r *ProductRepository) Search(ctx context.Context, q product.Query) (*product.Page, error) {
	sql, args := buildSearch(q)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}

	var total int
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Summary, error) {
		var s product.Summary
		err := row.Scan(append(summaryDest(&s), &total)...)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}

	// Past the last page the window count is unavailable.
	if len(products) == 0 && q.Offset() > 0 {
		countSQL, countArgs := buildCount(q)
		if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
			return nil, fmt.Errorf("counting products: %w", err)
		}
	}

	return &product.Page{Products: products, Total: total}, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Summary, error) {
	var s product.Summary
	if err := r.pool.QueryRow(ctx, getProductByIDSQL, id).Scan(summaryDest(&s)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &s, nil
}

// ListPricing returns every product with the fields used to match price lists.
func (r *ProductRepository) ListPricing(ctx context.Context) ([]product.PricingRecord, error) {
	rows, err := r.pool.Query(ctx, listPricingSQL)
	if err != nil {
		return nil, fmt.Errorf("listing pricing: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.PricingRecord, error) {
		var rec product.PricingRecord
		err := row.Scan(&rec.ID, &rec.Name, &rec.SKU, &rec.BasePrice)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing pricing: %w", err)
	}
	return records, nil
}

// UpdateBasePrice sets the base price of a product.
func (r *ProductRepository) UpdateBasePrice(ctx context.Context, id string, price decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, updateBasePriceSQL, id, price)
	if err != nil {
		return fmt.Errorf("updating price of %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Upsert stores a product and links it to collections.
func (r *ProductRepository) Upsert(ctx context.Context, s product.Summary, collections ...string) error {
	images := s.Images
	if images == nil {
		images = []string{}
	}
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		s.ID, s.Name, s.Slug, s.SKU, s.ShortDescription, s.BasePrice, s.Thumbnail,
		images, s.BrandID, s.CategoryID, s.InventoryQuantity, s.IsFeatured,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", s.ID, err)
	}
	for _, c := range collections {
		if _, err := r.pool.Exec(ctx, linkCollectionSQL, s.ID, c); err != nil {
			return fmt.Errorf("linking product %q to collection %q: %w", s.ID, c, err)
		}
	}
	return nil
}

func summaryDest(s *product.Summary) []any {
	return []any{
		&s.ID, &s.Name, &s.Slug, &s.SKU, &s.ShortDescription, &s.BasePrice,
		&s.Thumbnail, &s.Images, &s.BrandID, &s.BrandName,
		&s.CategoryID, &s.CategoryName, &s.InventoryQuantity, &s.IsFeatured, &s.CreatedAt,
	}
}

// filter accumulates WHERE conditions and their positional arguments.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) arg(v any) string {
	f.args = append(f.args, v)
	return "$" + strconv.Itoa(len(f.args))
}

func (f *filter) where() string {
	return " WHERE " + strings.Join(f.conds, " AND ")
}

func buildFilter(q product.Query) *filter {
	f := &filter{conds: []string{"p.status = 'active'"}}
	if len(q.Categories) > 0 {
		f.conds = append(f.conds, "p.category_id = ANY("+f.arg(q.Categories)+")")
	}
	if len(q.Brands) > 0 {
		f.conds = append(f.conds, "p.brand_id = ANY("+f.arg(q.Brands)+")")
	}
	if len(q.Collections) > 0 {
		f.conds = append(f.conds, "EXISTS (SELECT 1 FROM product_collections pc WHERE pc.product_id = p.id AND pc.collection_id = ANY("+f.arg(q.Collections)+"))")
	}
	if q.MinPrice.IsPositive() {
		f.conds = append(f.conds, "p.base_price >= "+f.arg(q.MinPrice))
	}
	if q.MaxPrice.IsPositive() {
		f.conds = append(f.conds, "p.base_price <= "+f.arg(q.MaxPrice))
	}
	if q.InStockOnly {
		f.conds = append(f.conds, "p.inventory_quantity > 0")
	}
	if q.Featured {
		f.conds = append(f.conds, "p.is_featured")
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		f.conds = append(f.conds, `p.name ILIKE `+f.arg("%"+escapeLike(s)+"%")+` ESCAPE '\'`)
	}
	return f
}

func buildSearch(q product.Query) (string, []any) {
	f := buildFilter(q)
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(summaryColumns)
	sb.WriteString(", COUNT(*) OVER ()")
	sb.WriteString(summaryFrom)
	sb.WriteString(f.where())
	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy(q.Sort))
	sb.WriteString(" LIMIT ")
	sb.WriteString(f.arg(q.Limit))
	sb.WriteString(" OFFSET ")
	sb.WriteString(f.arg(q.Offset()))
	return sb.String(), f.args
}

func buildCount(q product.Query) (string, []any) {
	f := buildFilter(q)
	return "SELECT COUNT(*) FROM products p" + f.where(), f.args
}

// orderBy maps a sort to an ORDER BY clause. Every clause ends with p.id so
// pages are stable.
func orderBy(s product.SortBy) string {
	switch s {
	case product.SortNameDesc:
		return "p.name DESC, p.id"
	case product.SortPriceAsc:
		return "p.base_price ASC NULLS FIRST, p.id"
	case product.SortPriceDesc:
		return "p.base_price DESC NULLS FIRST, p.id"
	case product.SortCreatedAsc:
		return "p.created_at ASC, p.id"
	case product.SortCreatedDesc:
		return "p.created_at DESC, p.id"
	case product.SortFeatured:
		return "p.is_featured DESC, p.name, p.id"
	case product.SortPopularity:
		return "p.is_featured DESC, p.inventory_quantity DESC, p.name, p.id"
	default:
		return "p.name ASC, p.id"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

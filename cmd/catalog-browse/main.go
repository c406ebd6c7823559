// Command catalog-browse queries the catalog API from a terminal. Wishlist,
// cart and view mode persist between runs in a local bbolt file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/images"
)

type options struct {
	apiURL       string
	statePath    string
	imageBaseURL string

	search     string
	categories string
	brands     string
	inStock    bool
	sort       string
	page       int
	view       string

	wish      string
	unwish    string
	cart      string
	uncart    string
	clearCart bool

	preloadImages int
	wait          time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.apiURL, "api", "http://localhost:8080", "catalog API base URL")
	flag.StringVar(&opts.statePath, "state", "catalog.db", "bbolt file holding wishlist, cart and view mode")
	flag.StringVar(&opts.imageBaseURL, "image-base-url", "", "base URL for root-relative image paths")
	flag.StringVar(&opts.search, "search", "", "name search")
	flag.StringVar(&opts.categories, "category", "", "comma-separated category IDs")
	flag.StringVar(&opts.brands, "brand", "", "comma-separated brand IDs")
	flag.BoolVar(&opts.inStock, "in-stock", false, "only products with inventory")
	flag.StringVar(&opts.sort, "sort", "", "sort order, e.g. price_asc")
	flag.IntVar(&opts.page, "page", 1, "page number")
	flag.StringVar(&opts.view, "view", "", "grid or list")
	flag.StringVar(&opts.wish, "wish", "", "comma-separated product IDs to add to the wishlist")
	flag.StringVar(&opts.unwish, "unwish", "", "comma-separated product IDs to remove from the wishlist")
	flag.StringVar(&opts.cart, "cart", "", "comma-separated id=quantity pairs to add to the cart")
	flag.StringVar(&opts.uncart, "uncart", "", "comma-separated product IDs to remove from the cart")
	flag.BoolVar(&opts.clearCart, "clear-cart", false, "empty the cart")
	flag.IntVar(&opts.preloadImages, "preload-images", 0, "number of product images to fetch and report on")
	flag.DurationVar(&opts.wait, "wait", 0, "keep running to let neighbouring pages be read ahead")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	cfg := zap.NewDevelopmentConfig()
	if !*debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	lg, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, lg, os.Stdout, opts); err != nil {
		lg.Error("Browse failed", zap.Error(err))
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseCart reads "id=qty" pairs. A pair without a quantity adds one.
func parseCart(s string) (map[string]int, error) {
	out := make(map[string]int)
	for _, pair := range splitList(s) {
		id, qty, found := strings.Cut(pair, "=")
		n := 1
		if found {
			var err error
			if n, err = strconv.Atoi(qty); err != nil || n <= 0 {
				return nil, errors.Errorf("invalid cart quantity %q", pair)
			}
		}
		out[strings.TrimSpace(id)] += n
	}
	return out, nil
}

func run(ctx context.Context, lg *zap.Logger, out io.Writer, opts options) error {
	storage, err := catalog.OpenBoltStorage(opts.statePath)
	if err != nil {
		return err
	}
	defer func() { _ = storage.Close() }()

	store := catalog.NewStore(catalog.InitialState())
	persister := catalog.NewPersister(store, storage, lg)
	if err := persister.Restore(ctx); err != nil {
		return err
	}
	detach := persister.Attach()
	defer detach()

	m := catalog.NewManager(store, catalog.NewClient(opts.apiURL, nil),
		catalog.WithPageCache(catalog.NewPageCache(catalog.DefaultPageCacheConfig())),
	)
	if err := apply(m, opts); err != nil {
		return err
	}

	m.Start(ctx)
	defer m.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.FetchCategories(gctx) })
	g.Go(func() error { return m.FetchBrands(gctx) })
	g.Go(func() error { return m.FetchProducts(gctx, nil) })
	if err := g.Wait(); err != nil {
		return err
	}

	st := m.State()
	render(out, m, st)

	if opts.preloadImages > 0 {
		preloadImages(ctx, out, st.Products, opts)
	}
	if opts.wait > 0 {
		select {
		case <-time.After(opts.wait):
		case <-ctx.Done():
		}
	}
	return nil
}

// apply turns the flags into store commands.
func apply(m *catalog.Manager, opts options) error {
	patch := catalog.FilterPatch{}
	if opts.search != "" {
		patch.Search = &opts.search
	}
	if ids := splitList(opts.categories); ids != nil {
		patch.Categories = ids
	}
	if ids := splitList(opts.brands); ids != nil {
		patch.Brands = ids
	}
	if opts.inStock {
		patch.InStockOnly = &opts.inStock
	}
	m.SetFilters(patch)

	if opts.sort != "" {
		sort := product.SortBy(opts.sort)
		if !sort.Valid() {
			return errors.Errorf("unknown sort %q", opts.sort)
		}
		m.SetSort(sort)
	}
	if opts.page > 1 {
		m.SetPage(opts.page)
	}
	if opts.view != "" {
		mode := catalog.ViewMode(opts.view)
		if !mode.Valid() {
			return errors.Errorf("unknown view mode %q", opts.view)
		}
		m.SetViewMode(mode)
	}

	for _, id := range splitList(opts.wish) {
		m.AddToWishlist(id)
	}
	for _, id := range splitList(opts.unwish) {
		m.RemoveFromWishlist(id)
	}
	if opts.clearCart {
		m.ClearCart()
	}
	add, err := parseCart(opts.cart)
	if err != nil {
		return err
	}
	for id, qty := range add {
		m.AddToCart(id, qty)
	}
	for _, id := range splitList(opts.uncart) {
		m.RemoveFromCart(id)
	}
	return nil
}

func formatPrice(p *product.Summary) string {
	if p.BasePrice == nil {
		return "n/a"
	}
	return p.BasePrice.StringFixed(2)
}

func render(out io.Writer, m *catalog.Manager, st catalog.State) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	if st.Error != "" {
		fmt.Fprintf(tw, "error: %s\n", st.Error)
	}
	fmt.Fprintf(tw, "page %d/%d\t%d products\tsort %s\tview %s\n",
		st.Pagination.Page, st.Pagination.TotalPages, st.Pagination.Total, st.SortBy, st.ViewMode)

	for i := range st.Products {
		p := &st.Products[i]
		marks := ""
		if m.IsInWishlist(p.ID) {
			marks += "*"
		}
		if q := m.CartQuantity(p.ID); q > 0 {
			marks += fmt.Sprintf(" x%d", q)
		}
		category := p.CategoryName
		if c, ok := m.CategoryByID(p.CategoryID); ok {
			category = c.Name
		}
		stock := "in stock"
		if !p.InStock() {
			stock = "out of stock"
		}
		if st.ViewMode == catalog.ViewList {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, formatPrice(p), category, stock, marks)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, formatPrice(p), marks)
	}

	t := m.CartTotals()
	fmt.Fprintf(tw, "wishlist %d\tcart %d items, %d units, %s (%d priced)\n",
		st.Wishlist.Len(), t.Items, t.Quantity, t.Amount.StringFixed(2), t.Priced)
}

func preloadImages(ctx context.Context, out io.Writer, products []product.Summary, opts options) {
	preloader := images.NewPreloader(
		images.NewHTTPLoader(nil, 0),
		images.NewMemoryCache(images.DefaultPolicy()),
		images.Optimizer{BaseURL: opts.imageBaseURL},
	)
	tracker := images.NewTracker(preloader,
		images.WithSize(images.SizeCard),
		images.WithPreloadCount(opts.preloadImages),
		images.OnError(func(src string, err error) {
			zctx.From(ctx).Debug("Image failed", zap.String("src", src), zap.Error(err))
		}),
	)

	sources := make([]images.ProductSource, 0, len(products))
	for _, p := range products {
		sources = append(sources, images.ProductSource{Name: p.Name, Thumbnail: p.Thumbnail, Images: p.Images})
	}
	pi := images.NewProductImages(tracker, sources)
	pi.Load(ctx)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()
	for _, v := range pi.Views() {
		if !v.HasValidImages {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d/%d loaded\t%d failed\t%s\n",
			v.Product.Name, v.LoadedCount, len(v.Images), v.ErrorCount, v.BestImage)
	}
	s := tracker.Summary()
	fmt.Fprintf(tw, "images\t%d/%d loaded\t%d failed\n", s.Loaded, s.Total, s.Errors)
}

// Package catalog keeps the client-side state of a product catalog: the
// current page, filters, sort, wishlist and cart.
//
// All state lives in a Store and changes only through commands. A Manager
// drives the Store against the catalog API, refetching when the query
// changes and reading neighbouring pages ahead.
package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPageCache serves fetches through c.
func WithPageCache(c *PageCache) ManagerOption {
	return func(m *Manager) { m.pages = c }
}

// WithPrefetchDelays sets how long after a fetch the next and previous
// pages are read ahead. Defaults to 1s and 2s.
func WithPrefetchDelays(next, prev time.Duration) ManagerOption {
	return func(m *Manager) {
		m.nextDelay = next
		m.prevDelay = prev
	}
}

// WithoutAutoPrefetch disables reading neighbouring pages ahead.
func WithoutAutoPrefetch() ManagerOption {
	return func(m *Manager) { m.autoPrefetch = false }
}

// Manager runs catalog operations against an API.
type Manager struct {
	store *Store
	api   API
	pages *PageCache

	autoPrefetch bool
	nextDelay    time.Duration
	prevDelay    time.Duration

	// seq numbers product fetches; only the latest may commit. fetchMu
	// pairs each number with its state snapshot and guards commits.
	fetchMu  sync.Mutex
	seq      atomic.Uint64
	inflight atomic.Int32

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	timers      map[*time.Timer]struct{}
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewManager creates a Manager over store.
func NewManager(store *Store, api API, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:        store,
		api:          api,
		autoPrefetch: true,
		nextDelay:    time.Second,
		prevDelay:    2 * time.Second,
		timers:       make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() *Store { return m.store }

// State returns the current snapshot.
func (m *Manager) State() State { return m.store.State() }

// Start refetches products whenever filters, sort or page change, and
// enables reading neighbouring pages ahead, until Close. Background work
// uses ctx.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.unsubscribe = m.store.Subscribe(func(c Change) {
		if !changesQuery(c.Command) || QueryKey(c.Prev.Query(c.Prev.Pagination.Page)) == QueryKey(c.Next.Query(c.Next.Pagination.Page)) {
			return
		}
		m.goBackground(func(ctx context.Context) {
			_ = m.FetchProducts(ctx, nil)
		})
	})
}

// Close stops background fetches and pending read-ahead and waits for
// running ones to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	for t := range m.timers {
		if t.Stop() {
			m.wg.Done()
		}
		delete(m.timers, t)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) goBackground(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil || m.ctx.Err() != nil {
		return
	}
	ctx := m.ctx
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(ctx)
	}()
}

// after runs fn once d elapses unless Close comes first.
func (m *Manager) after(d time.Duration, fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil || m.ctx.Err() != nil {
		return
	}
	ctx := m.ctx
	m.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		defer m.wg.Done()
		m.mu.Lock()
		delete(m.timers, t)
		m.mu.Unlock()
		if ctx.Err() == nil {
			fn(ctx)
		}
	})
	m.timers[t] = struct{}{}
}

// FetchProducts loads the current page. A non-nil override is merged over
// the current filters for this request only. On failure the error is
// recorded in the state and the previous products stay visible.
//
// Responses to requests superseded by a later FetchProducts call are
// dropped.
func (m *Manager) FetchProducts(ctx context.Context, override *FilterPatch) error {
	m.fetchMu.Lock()
	st := m.store.State()
	seq := m.seq.Add(1)
	m.fetchMu.Unlock()

	filters := st.Filters
	if override != nil {
		filters = filters.Apply(*override)
	}
	q := buildQuery(st.Pagination.Page, st.Pagination.Limit, st.SortBy, filters)

	m.inflight.Add(1)
	defer m.inflight.Add(-1)
	m.store.Dispatch(SetLoading{Loading: true})

	res, err := m.search(ctx, q)
	lg := zctx.From(ctx)

	m.fetchMu.Lock()
	if seq != m.seq.Load() {
		m.fetchMu.Unlock()
		lg.Debug("Dropping stale catalog response", zap.Uint64("seq", seq), zap.Int("page", q.Page))
		return nil
	}
	if err != nil {
		m.store.Dispatch(SetError{Message: err.Error()})
		m.fetchMu.Unlock()
		lg.Error("Failed to fetch products",
			zap.Error(err),
			zap.Int("page", q.Page),
			zap.Int("limit", q.Limit),
			zap.String("sort_by", string(q.Sort)),
		)
		return errors.Wrap(err, "fetch products")
	}

	next := m.store.Dispatch(SetProducts{Result: *res, At: time.Now()})
	m.fetchMu.Unlock()
	m.scheduleReadAhead(next)
	return nil
}

func (m *Manager) search(ctx context.Context, q product.Query) (*Result, error) {
	if m.pages != nil {
		if r, ok := m.pages.Get(q); ok {
			return r, nil
		}
	}
	r, err := m.api.SearchProducts(ctx, q)
	if err != nil {
		return nil, err
	}
	if m.pages != nil {
		m.pages.Set(q, r)
	}
	return r, nil
}

func (m *Manager) scheduleReadAhead(s State) {
	if !m.autoPrefetch {
		return
	}
	page := s.Pagination.Page
	if s.Pagination.HasNext && !s.Prefetched(page+1) {
		m.after(m.nextDelay, func(ctx context.Context) { m.PrefetchPage(ctx, page+1) })
	}
	if s.Pagination.HasPrev && !s.Prefetched(page-1) {
		m.after(m.prevDelay, func(ctx context.Context) { m.PrefetchPage(ctx, page-1) })
	}
}

// PrefetchPage reads page ahead with the current filters and sort. It does
// nothing when page was already read ahead or a fetch is running. The page
// is marked as read ahead whether or not the request succeeded.
func (m *Manager) PrefetchPage(ctx context.Context, page int) {
	st := m.store.State()
	if page < 1 || st.Prefetched(page) || st.Loading || m.inflight.Load() > 0 {
		return
	}
	q := st.Query(page)

	var err error
	if m.pages != nil {
		_, err = m.pages.GetOrFetch(ctx, q, func(ctx context.Context) (*Result, error) {
			return m.api.SearchProducts(ctx, q)
		})
	} else {
		_, err = m.api.SearchProducts(ctx, q)
	}
	if err != nil {
		zctx.From(ctx).Warn("Prefetch failed", zap.Int("page", page), zap.Error(err))
	}

	// A query change while reading ahead makes the page meaningless.
	if QueryKey(m.store.State().Query(page)) != QueryKey(q) {
		return
	}
	m.store.Dispatch(MarkPrefetched{Page: page})
}

// FetchTaxonomy loads a facet list into the state.
func (m *Manager) FetchTaxonomy(ctx context.Context, kind TaxonomyKind) error {
	facets, err := m.api.Taxonomy(ctx, kind)
	if err != nil {
		zctx.From(ctx).Error("Failed to fetch taxonomy", zap.Stringer("kind", kind), zap.Error(err))
		return errors.Wrapf(err, "fetch %s", kind)
	}
	m.store.Dispatch(SetTaxonomy{Kind: kind, Facets: facets})
	return nil
}

// FetchCategories loads categories.
func (m *Manager) FetchCategories(ctx context.Context) error {
	return m.FetchTaxonomy(ctx, TaxonomyCategories)
}

// FetchBrands loads brands.
func (m *Manager) FetchBrands(ctx context.Context) error {
	return m.FetchTaxonomy(ctx, TaxonomyBrands)
}

// FetchCollections loads collections.
func (m *Manager) FetchCollections(ctx context.Context) error {
	return m.FetchTaxonomy(ctx, TaxonomyCollections)
}

// SetFilters merges p into the filters and moves to the first page.
func (m *Manager) SetFilters(p FilterPatch) {
	m.store.Dispatch(SetFilters{Patch: p})
}

// ClearFilters empties the filters and moves to the first page.
func (m *Manager) ClearFilters() {
	m.store.Dispatch(ClearFilters{})
}

// SetSort changes the ordering and moves to the first page.
func (m *Manager) SetSort(sort product.SortBy) {
	m.store.Dispatch(SetSort{Sort: sort})
}

// SetPage moves the cursor without touching filters.
func (m *Manager) SetPage(page int) {
	m.store.Dispatch(SetPage{Page: page})
}

func (m *Manager) SetViewMode(mode ViewMode) {
	m.store.Dispatch(SetViewMode{Mode: mode})
}

func (m *Manager) ToggleFilters() {
	m.store.Dispatch(ToggleFilters{})
}

func (m *Manager) AddToWishlist(id string) {
	m.store.Dispatch(AddToWishlist{ID: id})
}

func (m *Manager) RemoveFromWishlist(id string) {
	m.store.Dispatch(RemoveFromWishlist{ID: id})
}

func (m *Manager) RemoveFromCart(id string) {
	m.store.Dispatch(RemoveFromCart{ID: id})
}

func (m *Manager) ClearCart() {
	m.store.Dispatch(ClearCart{})
}

// Reset returns to the initial state, wishlist and cart included.
func (m *Manager) Reset() {
	m.store.Dispatch(Reset{})
}

// AddToCart adds quantity of a product. Non-positive quantities add one.
func (m *Manager) AddToCart(id string, quantity int) {
	if quantity <= 0 {
		quantity = 1
	}
	m.store.Dispatch(AddToCart{ID: id, Quantity: quantity})
}

// IsInWishlist reports whether id is wishlisted.
func (m *Manager) IsInWishlist(id string) bool {
	return m.store.State().Wishlist.Has(id)
}

// CartQuantity returns the quantity of id in the cart.
func (m *Manager) CartQuantity(id string) int {
	return m.store.State().Cart[id]
}

// CartTotals summarizes the cart. Amount covers only products present in
// the current page with a known price.
type CartTotals struct {
	Items    int
	Quantity int
	Amount   decimal.Decimal
	Priced   int
}

// CartTotals sums the cart against the loaded products.
func (m *Manager) CartTotals() CartTotals {
	st := m.store.State()
	prices := make(map[string]decimal.Decimal, len(st.Products))
	for _, p := range st.Products {
		if p.BasePrice != nil {
			prices[p.ID] = *p.BasePrice
		}
	}
	var t CartTotals
	for id, qty := range st.Cart {
		t.Items++
		t.Quantity += qty
		if price, ok := prices[id]; ok {
			t.Amount = t.Amount.Add(price.Mul(decimal.NewFromInt(int64(qty))))
			t.Priced++
		}
	}
	return t
}

// ProductByID finds a loaded product.
func (m *Manager) ProductByID(id string) (product.Summary, bool) {
	for _, p := range m.store.State().Products {
		if p.ID == id {
			return p, true
		}
	}
	return product.Summary{}, false
}

// CategoryByID finds a loaded category.
func (m *Manager) CategoryByID(id string) (product.Facet, bool) {
	return findFacet(m.store.State().Categories, id)
}

// BrandByID finds a loaded brand.
func (m *Manager) BrandByID(id string) (product.Facet, bool) {
	return findFacet(m.store.State().Brands, id)
}

func findFacet(facets []product.Facet, id string) (product.Facet, bool) {
	for _, f := range facets {
		if f.ID == id {
			return f, true
		}
	}
	return product.Facet{}, false
}

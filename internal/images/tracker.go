package images

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ImageState is the load state of one tracked source.
type ImageState struct {
	Src          string
	OptimizedSrc string
	Loaded       bool
	Loading      bool
	Error        bool
	Err          error
	RetryCount   int
}

// TrackerSummary aggregates tracked states.
type TrackerSummary struct {
	Total     int
	Loaded    int
	Loading   int
	Errors    int
	AllLoaded bool
}

type trackerOptions struct {
	size          Size
	priority      Priority
	preloadCount  int
	maxConcurrent int
	timeout       time.Duration
	retryAttempts int
	retryBackoff  time.Duration
	autoRetry     bool
	onLoad        func(src string)
	onError       func(src string, err error)
}

// TrackerOption configures a Tracker.
type TrackerOption func(*trackerOptions)

// WithSize sets the rendition size. Defaults to card.
func WithSize(size Size) TrackerOption {
	return func(o *trackerOptions) { o.size = size }
}

// WithPriority marks loads as high priority.
func WithPriority(p Priority) TrackerOption {
	return func(o *trackerOptions) { o.priority = p }
}

// WithPreloadCount sets how many leading sources SetURLs loads. Defaults to 5.
func WithPreloadCount(n int) TrackerOption {
	return func(o *trackerOptions) { o.preloadCount = n }
}

// WithConcurrency bounds parallel loads within a batch.
func WithConcurrency(n int, timeout time.Duration) TrackerOption {
	return func(o *trackerOptions) {
		o.maxConcurrent = n
		o.timeout = timeout
	}
}

// WithRetry sets the retry ceiling and the initial backoff of automatic
// retry rounds. Defaults to 2 attempts starting at 500ms.
func WithRetry(attempts int, initial time.Duration) TrackerOption {
	return func(o *trackerOptions) {
		o.retryAttempts = attempts
		o.retryBackoff = initial
	}
}

// WithoutAutoRetry leaves failed images in the error state until RetryImage
// or RetryAll is called.
func WithoutAutoRetry() TrackerOption {
	return func(o *trackerOptions) { o.autoRetry = false }
}

// OnLoad registers a callback invoked after each successful load.
func OnLoad(fn func(src string)) TrackerOption {
	return func(o *trackerOptions) { o.onLoad = fn }
}

// OnError registers a callback invoked after each failed load.
func OnError(fn func(src string, err error)) TrackerOption {
	return func(o *trackerOptions) { o.onError = fn }
}

// Tracker keeps per-source load state for a set of images and drives
// loading through a shared Preloader.
type Tracker struct {
	preloader *Preloader
	opts      trackerOptions

	mu       sync.Mutex
	order    []string
	states   map[string]*ImageState
	inflight map[string]struct{}
}

// NewTracker creates a Tracker.
func NewTracker(p *Preloader, opts ...TrackerOption) *Tracker {
	o := trackerOptions{
		size:          SizeCard,
		priority:      PriorityAuto,
		preloadCount:  5,
		maxConcurrent: 3,
		timeout:       10 * time.Second,
		retryAttempts: 2,
		retryBackoff:  500 * time.Millisecond,
		autoRetry:     true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Tracker{
		preloader: p,
		opts:      o,
		states:    make(map[string]*ImageState),
		inflight:  make(map[string]struct{}),
	}
}

// SetURLs replaces the tracked set with the valid, deduplicated urls and
// loads the first PreloadCount of them. States of sources that remain
// tracked are kept.
func (t *Tracker) SetURLs(ctx context.Context, urls []string) {
	valid := dedupe(FilterValidImages(urls))

	t.mu.Lock()
	states := make(map[string]*ImageState, len(valid))
	for _, src := range valid {
		if st, ok := t.states[src]; ok {
			states[src] = st
			continue
		}
		states[src] = t.newState(src)
	}
	t.order = valid
	t.states = states
	t.mu.Unlock()

	n := min(t.opts.preloadCount, len(valid))
	if n > 0 {
		t.PreloadBatch(ctx, valid[:n])
	}
}

// Add starts tracking urls without loading them.
func (t *Tracker) Add(urls ...string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var added []string
	for _, src := range FilterValidImages(urls) {
		if _, ok := t.states[src]; ok {
			continue
		}
		t.states[src] = t.newState(src)
		t.order = append(t.order, src)
		added = append(added, src)
	}
	return added
}

func (t *Tracker) newState(src string) *ImageState {
	return &ImageState{
		Src:          src,
		OptimizedSrc: t.preloader.Optimizer().Optimize(src, t.opts.size, FormatAuto),
	}
}

// PreloadBatch loads urls, tracking any not yet tracked. Sources already
// loaded or loading are skipped. Failed sources are retried automatically
// with exponential backoff while under the retry ceiling.
func (t *Tracker) PreloadBatch(ctx context.Context, urls []string) {
	t.Add(urls...)
	batch := t.claim(FilterValidImages(urls), func(st *ImageState) bool {
		return !st.Loaded
	})
	if len(batch) == 0 {
		return
	}
	failed := t.load(ctx, batch)
	if !t.opts.autoRetry {
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.opts.retryBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for len(failed) > 0 {
		retry := t.claim(failed, func(st *ImageState) bool {
			return st.Error && st.RetryCount < t.opts.retryAttempts
		})
		if len(retry) == 0 {
			return
		}
		if !sleep(ctx, b.NextBackOff()) {
			t.release(retry)
			return
		}
		t.bumpRetry(retry)
		failed = t.load(ctx, retry)
	}
}

// RetryImage reloads src regardless of the retry ceiling.
func (t *Tracker) RetryImage(ctx context.Context, src string) {
	batch := t.claim([]string{src}, func(*ImageState) bool { return true })
	if len(batch) == 0 {
		return
	}
	t.preloader.Cache().Delete(src)
	t.bumpRetry(batch)
	t.load(ctx, batch)
}

// RetryAll reloads errored sources still under the retry ceiling.
func (t *Tracker) RetryAll(ctx context.Context) {
	t.mu.Lock()
	srcs := slices.Clone(t.order)
	t.mu.Unlock()

	batch := t.claim(srcs, func(st *ImageState) bool {
		return st.Error && st.RetryCount < t.opts.retryAttempts
	})
	if len(batch) == 0 {
		return
	}
	t.bumpRetry(batch)
	t.load(ctx, batch)
}

// ClearCache empties the shared cache and reloads every tracked source.
func (t *Tracker) ClearCache(ctx context.Context) {
	t.preloader.Cache().Clear()

	t.mu.Lock()
	srcs := slices.Clone(t.order)
	for _, st := range t.states {
		st.Loaded = false
		st.Error = false
		st.Err = nil
	}
	t.mu.Unlock()

	batch := t.claim(srcs, func(*ImageState) bool { return true })
	t.load(ctx, batch)
}

// claim marks matching, not yet in-flight sources as loading and returns them.
func (t *Tracker) claim(srcs []string, match func(*ImageState) bool) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, src := range srcs {
		st, ok := t.states[src]
		if !ok || !match(st) {
			continue
		}
		if _, busy := t.inflight[src]; busy {
			continue
		}
		t.inflight[src] = struct{}{}
		st.Loading = true
		out = append(out, src)
	}
	return out
}

func (t *Tracker) release(srcs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, src := range srcs {
		delete(t.inflight, src)
		if st, ok := t.states[src]; ok {
			st.Loading = false
		}
	}
}

func (t *Tracker) bumpRetry(srcs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, src := range srcs {
		if st, ok := t.states[src]; ok {
			st.RetryCount++
		}
	}
}

// load runs one preload round over claimed sources and returns the failures.
func (t *Tracker) load(ctx context.Context, srcs []string) []string {
	res := t.preloader.PreloadImages(ctx, srcs, PreloadOptions{
		Size:          t.opts.size,
		MaxConcurrent: t.opts.maxConcurrent,
		Timeout:       t.opts.timeout,
		Priority:      t.opts.priority,
	})

	t.mu.Lock()
	for _, src := range res.Successful {
		delete(t.inflight, src)
		if st, ok := t.states[src]; ok {
			st.Loaded, st.Loading, st.Error, st.Err = true, false, false, nil
		}
	}
	failed := make([]string, 0, len(res.Failed))
	for _, f := range res.Failed {
		delete(t.inflight, f.Src)
		if st, ok := t.states[f.Src]; ok {
			st.Loaded, st.Loading, st.Error, st.Err = false, false, true, f.Err
		}
		failed = append(failed, f.Src)
	}
	t.mu.Unlock()

	for _, src := range res.Successful {
		if t.opts.onLoad != nil {
			t.opts.onLoad(src)
		}
	}
	lg := zctx.From(ctx)
	for _, f := range res.Failed {
		lg.Debug("Image load failed", zap.String("src", f.Src), zap.Error(f.Err))
		if t.opts.onError != nil {
			t.opts.onError(f.Src, f.Err)
		}
	}
	return failed
}

// State returns a copy of the state of src.
func (t *Tracker) State(src string) (ImageState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[src]
	if !ok {
		return ImageState{}, false
	}
	return *st, true
}

// States returns copies of all tracked states in tracking order.
func (t *Tracker) States() []ImageState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ImageState, 0, len(t.order))
	for _, src := range t.order {
		out = append(out, *t.states[src])
	}
	return out
}

// IsImageLoaded reports whether src finished loading.
func (t *Tracker) IsImageLoaded(src string) bool {
	st, ok := t.State(src)
	return ok && st.Loaded
}

// HasImageError reports whether the last load of src failed.
func (t *Tracker) HasImageError(src string) bool {
	st, ok := t.State(src)
	return ok && st.Error
}

// OptimizedSrc returns the URL of the size rendition of src. An empty size
// uses the tracker size.
func (t *Tracker) OptimizedSrc(src string, size Size) string {
	if size == "" {
		size = t.opts.size
	}
	return t.preloader.Optimizer().Optimize(src, size, FormatAuto)
}

// Summary counts tracked states.
func (t *Tracker) Summary() TrackerSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := TrackerSummary{Total: len(t.order)}
	for _, st := range t.states {
		switch {
		case st.Loaded:
			s.Loaded++
		case st.Loading:
			s.Loading++
		case st.Error:
			s.Errors++
		}
	}
	s.AllLoaded = s.Total > 0 && s.Loaded == s.Total
	return s
}

func dedupe(srcs []string) []string {
	seen := make(map[string]struct{}, len(srcs))
	out := srcs[:0:0]
	for _, src := range srcs {
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

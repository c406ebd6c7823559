package images

import (
	"context"
	"sync"
	"time"
)

// GalleryOption configures a Gallery.
type GalleryOption func(*Gallery)

// WithLoop wraps the cursor around at both ends.
func WithLoop() GalleryOption {
	return func(g *Gallery) { g.loop = true }
}

// WithAutoplay advances the cursor every interval once Start is called.
func WithAutoplay(interval time.Duration) GalleryOption {
	return func(g *Gallery) { g.interval = interval }
}

// DefaultAutoplayInterval is used by Start when no interval was configured.
const DefaultAutoplayInterval = 3 * time.Second

// Gallery is an index cursor over a list of images.
type Gallery struct {
	tracker  *Tracker
	images   []string
	loop     bool
	interval time.Duration

	mu     sync.Mutex
	index  int
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGallery creates a Gallery over the valid images.
func NewGallery(tracker *Tracker, images []string, opts ...GalleryOption) *Gallery {
	g := &Gallery{
		tracker: tracker,
		images:  dedupe(FilterValidImages(images)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load hands the gallery images to the tracker.
func (g *Gallery) Load(ctx context.Context) {
	g.tracker.SetURLs(ctx, g.images)
}

// Len returns the number of images.
func (g *Gallery) Len() int { return len(g.images) }

// Index returns the cursor position.
func (g *Gallery) Index() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.index
}

// Current returns the image under the cursor, or "" for an empty gallery.
func (g *Gallery) Current() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.images) == 0 {
		return ""
	}
	return g.images[g.index]
}

// HasNext reports whether Next would move the cursor.
func (g *Gallery) HasNext() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.images) > 1 && (g.loop || g.index < len(g.images)-1)
}

// HasPrev reports whether Prev would move the cursor.
func (g *Gallery) HasPrev() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.images) > 1 && (g.loop || g.index > 0)
}

// Next advances the cursor and reports whether it moved.
func (g *Gallery) Next() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.step(1)
}

// Prev moves the cursor back and reports whether it moved.
func (g *Gallery) Prev() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.step(-1)
}

func (g *Gallery) step(delta int) bool {
	n := len(g.images)
	if n < 2 {
		return false
	}
	next := g.index + delta
	switch {
	case next >= n && g.loop:
		next = 0
	case next < 0 && g.loop:
		next = n - 1
	case next >= n || next < 0:
		return false
	}
	g.index = next
	return true
}

// GoTo moves the cursor to i. Out of range positions are ignored.
func (g *Gallery) GoTo(i int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.images) {
		return false
	}
	g.index = i
	return true
}

// Start begins autoplay. Without looping, autoplay stops at the last image
// and may be started again.
func (g *Gallery) Start(ctx context.Context) {
	g.mu.Lock()
	if g.cancel != nil {
		g.mu.Unlock()
		return
	}
	interval := g.interval
	if interval <= 0 {
		interval = DefaultAutoplayInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	g.cancel, g.done = cancel, done
	g.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !g.advance(done) {
					cancel()
					return
				}
			}
		}
	}()
}

// advance steps the autoplay cursor. When the cursor cannot move, the run
// owning done is released under the same lock so Start can begin a new one.
func (g *Gallery) advance(done chan struct{}) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.step(1) {
		return true
	}
	if g.done == done {
		g.cancel, g.done = nil, nil
	}
	return false
}

// Stop ends autoplay and waits for it to exit.
func (g *Gallery) Stop() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel, g.done = nil, nil
	g.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Playing reports whether autoplay is running.
func (g *Gallery) Playing() bool {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Tracker exposes the underlying tracker.
func (g *Gallery) Tracker() *Tracker { return g.tracker }

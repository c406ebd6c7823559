package images

import (
	"context"
	"io"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/net/html"
)

// Visibility reports that the element carrying Src entered or left the
// viewport.
type Visibility struct {
	Src     string
	Visible bool
}

// LazyImages hands sources to a tracker only once they become visible.
// A source is revealed at most once.
type LazyImages struct {
	tracker *Tracker

	mu       sync.Mutex
	known    map[string]struct{}
	revealed []string
	seen     map[string]struct{}
}

// NewLazyImages creates LazyImages watching candidates.
func NewLazyImages(tracker *Tracker, candidates []string) *LazyImages {
	l := &LazyImages{
		tracker: tracker,
		known:   make(map[string]struct{}),
		seen:    make(map[string]struct{}),
	}
	l.Observe(candidates...)
	return l
}

// Observe registers more candidate sources.
func (l *LazyImages) Observe(srcs ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, src := range FilterValidImages(srcs) {
		l.known[src] = struct{}{}
	}
}

// Reveal marks observed sources visible and preloads the newly revealed ones.
func (l *LazyImages) Reveal(ctx context.Context, srcs ...string) {
	l.mu.Lock()
	var fresh []string
	for _, src := range srcs {
		if _, ok := l.known[src]; !ok {
			continue
		}
		if _, ok := l.seen[src]; ok {
			continue
		}
		l.seen[src] = struct{}{}
		l.revealed = append(l.revealed, src)
		fresh = append(fresh, src)
	}
	l.mu.Unlock()

	if len(fresh) > 0 {
		l.tracker.PreloadBatch(ctx, fresh)
	}
}

// Watch reveals sources from visibility events until events is closed or
// ctx is done.
func (l *LazyImages) Watch(ctx context.Context, events <-chan Visibility) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Visible {
				l.Reveal(ctx, ev.Src)
			}
		}
	}
}

// Revealed returns revealed sources in reveal order.
func (l *LazyImages) Revealed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.revealed...)
}

// Tracker exposes the underlying tracker.
func (l *LazyImages) Tracker() *Tracker { return l.tracker }

// DataSources returns the data-src attribute values found in an HTML
// document, in document order.
func DataSources(r io.Reader) ([]string, error) {
	var out []string
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return out, errors.Wrap(err, "tokenize html")
			}
			return out, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			_, hasAttr := z.TagName()
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "data-src" && len(val) > 0 {
					out = append(out, string(val))
				}
			}
		}
	}
}

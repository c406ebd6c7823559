package images

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type fakeLoader struct {
	delay time.Duration
	// fail decides the outcome of the n-th load (1-based) of src.
	fail func(src string, n int) error

	mu    sync.Mutex
	calls map[string]int
	urls  []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{calls: make(map[string]int)}
}

func (f *fakeLoader) Load(ctx context.Context, req Request) (*Image, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[req.Src]++
	attempt := f.calls[req.Src]
	f.urls = append(f.urls, req.URL)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(req.Src, attempt); err != nil {
			return nil, err
		}
	}
	return &Image{Src: req.Src, URL: req.URL, LoadedAt: time.Now()}, nil
}

func (f *fakeLoader) Calls(src string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[src]
}

func (f *fakeLoader) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, c := range f.calls {
		n += c
	}
	return n
}

var errBroken = errors.New("broken image")

func failOn(srcs ...string) func(string, int) error {
	return func(src string, _ int) error {
		for _, s := range srcs {
			if s == src {
				return errBroken
			}
		}
		return nil
	}
}

// --- Tests ---

func TestPreloader_PreloadImage(t *testing.T) {
	ctx := context.Background()
	loader := newFakeLoader()
	p := NewPreloader(loader, nil, Optimizer{})

	got, err := p.PreloadImage(ctx, "https://a.r2.dev/x.jpg", SizeThumbnail, PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, "https://a.r2.dev/x.jpg?f=webp&q=70&w=300", got.URL)

	_, err = p.PreloadImage(ctx, "https://a.r2.dev/x.jpg", SizeThumbnail, PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.Total(), "second load is served from cache")

	_, err = p.PreloadImage(ctx, "nope", SizeCard, PriorityAuto)
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestPreloader_PreloadImagesChunks(t *testing.T) {
	loader := newFakeLoader()
	loader.delay = 10 * time.Millisecond
	loader.fail = failOn("/3.jpg")
	p := NewPreloader(loader, nil, Optimizer{})

	srcs := []string{"/1.jpg", "/2.jpg", "", "/3.jpg", "/4.jpg", "junk", "/5.jpg"}
	res := p.PreloadImages(context.Background(), srcs, PreloadOptions{MaxConcurrent: 2})

	assert.LessOrEqual(t, loader.maxInFlight.Load(), int32(2))
	assert.Equal(t, 5, loader.Total())
	assert.Equal(t, []string{"/1.jpg", "/2.jpg", "/4.jpg", "/5.jpg"}, res.Successful)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "/3.jpg", res.Failed[0].Src)
	require.ErrorIs(t, res.Failed[0].Err, errBroken)
	assert.Equal(t, len(FilterValidImages(srcs)), len(res.Successful)+len(res.Failed))
}

func TestPreloader_PreloadImagesTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	loader := LoaderFunc(func(ctx context.Context, req Request) (*Image, error) {
		if req.Src == "/slow.jpg" {
			<-release
		}
		return &Image{Src: req.Src}, nil
	})
	p := NewPreloader(loader, nil, Optimizer{})

	res := p.PreloadImages(context.Background(), []string{"/fast.jpg", "/slow.jpg"}, PreloadOptions{
		Timeout: 20 * time.Millisecond,
	})
	assert.Equal(t, []string{"/fast.jpg"}, res.Successful)
	require.Len(t, res.Failed, 1)
	require.ErrorIs(t, res.Failed[0].Err, ErrTimeout)
	assert.False(t, p.Cache().Has("/slow.jpg"))
}

func TestPreloadOptions_Defaults(t *testing.T) {
	o := PreloadOptions{}.withDefaults()
	assert.Equal(t, PreloadOptions{
		Size:          SizeCard,
		MaxConcurrent: 3,
		Timeout:       10 * time.Second,
		Priority:      PriorityAuto,
	}, o)
}

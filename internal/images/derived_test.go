package images

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleImage(t *testing.T) {
	loader := newFakeLoader()
	p := NewPreloader(loader, nil, Optimizer{})

	s := NewSingleImage(p, "", []string{"bad", "/a.jpg", "/b.jpg"})
	assert.Equal(t, "/a.jpg", s.Best())
	assert.Equal(t, ImageState{Src: "/a.jpg", OptimizedSrc: "/a.jpg"}, s.State())

	s.Load(context.Background())
	assert.True(t, s.State().Loaded)
	assert.Equal(t, 1, loader.Total(), "only the best candidate is preloaded")

	none := NewSingleImage(p, "", nil)
	assert.Equal(t, "", none.Best())
	assert.False(t, none.State().Loaded)
}

func TestProductImages(t *testing.T) {
	loader := newFakeLoader()
	loader.fail = failOn("/p2-main.jpg")
	tr := newTestTracker(loader, WithoutAutoRetry(), WithPreloadCount(10))

	pi := NewProductImages(tr, []ProductSource{
		{Name: "Кабель", Thumbnail: "/p1.jpg", Images: []string{"/p1-a.jpg", "bad"}},
		{Name: "Розетка", Images: []string{"/p2-main.jpg"}},
		{Name: "Без фото"},
	})
	assert.Equal(t, []string{"/p1.jpg", "/p1-a.jpg", "/p2-main.jpg"}, pi.Sources())

	pi.Load(context.Background())
	before := loader.Total()

	views := pi.Views()
	require.Len(t, views, 3)

	assert.Equal(t, "/p1.jpg", views[0].BestImage)
	assert.Equal(t, []string{"/p1.jpg", "/p1-a.jpg", "bad"}, views[0].Images)
	assert.Equal(t, 2, views[0].LoadedCount)
	assert.True(t, views[0].AllLoaded)

	assert.Equal(t, "/p2-main.jpg", views[1].BestImage)
	assert.True(t, views[1].HasErrors)
	assert.Equal(t, 1, views[1].ErrorCount)

	assert.False(t, views[2].HasValidImages)
	assert.Equal(t, "", views[2].BestImage)

	_, ok := pi.View(5)
	assert.False(t, ok)
	assert.Equal(t, before, loader.Total(), "views never load")
}

func TestGallery_Cursor(t *testing.T) {
	tr := newTestTracker(newFakeLoader())
	g := NewGallery(tr, []string{"/1.jpg", "/2.jpg", "/2.jpg", "junk", "/3.jpg"})
	require.Equal(t, 3, g.Len())

	assert.Equal(t, "/1.jpg", g.Current())
	assert.False(t, g.HasPrev())
	assert.False(t, g.Prev())
	assert.True(t, g.Next())
	assert.True(t, g.Next())
	assert.Equal(t, "/3.jpg", g.Current())
	assert.False(t, g.HasNext())
	assert.False(t, g.Next())

	assert.True(t, g.GoTo(0))
	assert.False(t, g.GoTo(3))
	assert.Equal(t, 0, g.Index())

	looped := NewGallery(tr, []string{"/1.jpg", "/2.jpg"}, WithLoop())
	assert.True(t, looped.Prev())
	assert.Equal(t, "/2.jpg", looped.Current())
	assert.True(t, looped.Next())
	assert.Equal(t, "/1.jpg", looped.Current())

	empty := NewGallery(tr, nil)
	assert.Equal(t, "", empty.Current())
	assert.False(t, empty.Next())
}

func TestGallery_Autoplay(t *testing.T) {
	tr := newTestTracker(newFakeLoader())
	g := NewGallery(tr, []string{"/1.jpg", "/2.jpg", "/3.jpg"}, WithAutoplay(5*time.Millisecond))

	g.Start(context.Background())
	require.Eventually(t, func() bool { return g.Index() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !g.Playing() }, time.Second, time.Millisecond,
		"autoplay stops at the last image without looping")
	g.Stop()

	looped := NewGallery(tr, []string{"/1.jpg", "/2.jpg"}, WithLoop(), WithAutoplay(5*time.Millisecond))
	looped.Start(context.Background())
	require.Eventually(t, func() bool { return looped.Index() == 1 }, time.Second, time.Millisecond)
	assert.True(t, looped.Playing())
	looped.Stop()
	assert.False(t, looped.Playing())
}

func TestGallery_AutoplayRestart(t *testing.T) {
	tr := newTestTracker(newFakeLoader())
	g := NewGallery(tr, []string{"/1.jpg", "/2.jpg"}, WithAutoplay(5*time.Millisecond))

	g.Start(context.Background())
	require.Eventually(t, func() bool { return g.Index() == 1 && !g.Playing() }, time.Second, time.Millisecond)

	require.True(t, g.GoTo(0))
	g.Start(context.Background())
	require.Eventually(t, func() bool { return g.Index() == 1 }, time.Second, time.Millisecond,
		"a finished autoplay can be started again")
	require.Eventually(t, func() bool { return !g.Playing() }, time.Second, time.Millisecond)
	g.Stop()
}

func TestLazyImages(t *testing.T) {
	loader := newFakeLoader()
	tr := newTestTracker(loader)
	l := NewLazyImages(tr, []string{"/a.jpg", "/b.jpg", "/c.jpg"})

	assert.Empty(t, tr.States(), "nothing reaches the tracker before reveal")

	l.Reveal(context.Background(), "/b.jpg", "/unknown.jpg")
	assert.Equal(t, []string{"/b.jpg"}, l.Revealed())
	assert.True(t, tr.IsImageLoaded("/b.jpg"))
	_, tracked := tr.State("/unknown.jpg")
	assert.False(t, tracked)

	events := make(chan Visibility, 4)
	events <- Visibility{Src: "/a.jpg", Visible: false}
	events <- Visibility{Src: "/c.jpg", Visible: true}
	events <- Visibility{Src: "/b.jpg", Visible: true}
	close(events)

	require.NoError(t, l.Watch(context.Background(), events))
	assert.Equal(t, []string{"/b.jpg", "/c.jpg"}, l.Revealed())
	assert.Equal(t, 1, loader.Calls("/b.jpg"))
	assert.Equal(t, 0, loader.Calls("/a.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Watch(ctx, make(chan Visibility)), context.Canceled)
}

func TestDataSources(t *testing.T) {
	const doc = `<html><body>
<div class="card"><img data-src="/a.jpg" alt="a"></div>
<img src="/eager.jpg">
<picture><source data-src="https://x.r2.dev/b.webp"/></picture>
<img data-src="">
</body></html>`

	srcs, err := DataSources(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.jpg", "https://x.r2.dev/b.webp"}, srcs)
}

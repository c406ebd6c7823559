package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidImageURL(t *testing.T) {
	tests := []struct {
		src   string
		valid bool
	}{
		{"https://cdn.example.com/a.jpg", true},
		{"http://localhost:8080/a.png", true},
		{"/uploads/a.jpg", true},
		{"./a.jpg", true},
		{"../img/a.jpg", true},
		{"", false},
		{"a.jpg", false},
		{"images/a.jpg", false},
		{"not a url", false},
		{"https://", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidImageURL(tt.src))
		})
	}
}

func TestFilterValidImages(t *testing.T) {
	in := []string{"", "/a.jpg", "junk", "https://x.r2.dev/b.jpg", "/a.jpg"}
	out := FilterValidImages(in)
	assert.Equal(t, []string{"/a.jpg", "https://x.r2.dev/b.jpg", "/a.jpg"}, out)
	assert.Equal(t, out, FilterValidImages(out), "filtering is idempotent")
	assert.Empty(t, FilterValidImages(nil))
}

func TestBestImage(t *testing.T) {
	assert.Equal(t, "/p.jpg", BestImage("/p.jpg", "/a.jpg"))
	assert.Equal(t, "/a.jpg", BestImage("", "/a.jpg", "/b.jpg"))
	assert.Equal(t, "/b.jpg", BestImage("bad", "", "/b.jpg"))
	assert.Equal(t, "", BestImage(""))
	assert.Equal(t, "", BestImage("", "nope"))
}

func TestOptimizer(t *testing.T) {
	tests := []struct {
		name   string
		opt    Optimizer
		src    string
		size   Size
		format Format
		want   string
	}{
		{
			name: "r2 card",
			src:  "https://pub-1.r2.dev/products/a.jpg",
			size: SizeCard,
			want: "https://pub-1.r2.dev/products/a.jpg?f=webp&q=80&w=600",
		},
		{
			name:   "s3 hero avif",
			src:    "https://bucket.s3.amazonaws.com/a.jpg?v=2",
			size:   SizeHero,
			format: FormatAVIF,
			want:   "https://bucket.s3.amazonaws.com/a.jpg?f=avif&h=1080&q=85&v=2&w=1920",
		},
		{
			name: "configured host",
			opt:  Optimizer{RemoteHosts: []string{"img.example.com"}},
			src:  "https://img.example.com/a.jpg",
			size: SizeThumbnail,
			want: "https://img.example.com/a.jpg?f=webp&q=70&w=300",
		},
		{
			name: "foreign host is identity",
			src:  "https://example.com/a.jpg",
			size: SizeGallery,
			want: "https://example.com/a.jpg",
		},
		{
			name: "relative rebased",
			opt:  Optimizer{BaseURL: "https://cdn.example.com/"},
			src:  "/img/a.jpg",
			size: SizeThumbnail,
			want: "https://cdn.example.com/img/a.jpg?q=70&w=300",
		},
		{
			name: "relative without base",
			src:  "/img/a.jpg",
			size: SizeFullscreen,
			want: "/img/a.jpg",
		},
		{
			name: "invalid passthrough",
			src:  "junk",
			size: SizeCard,
			want: "junk",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opt.Optimize(tt.src, tt.size, tt.format))
		})
	}
}

func TestSizeProfile(t *testing.T) {
	assert.Equal(t, Profile{Width: 2400, Quality: 95}, SizeFullscreen.Profile())
	assert.Equal(t, SizeCard.Profile(), Size("unknown").Profile())
}

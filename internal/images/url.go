package images

import (
	"net/url"
	"strconv"
	"strings"
)

// Size names a display context with its own width/quality profile.
type Size string

const (
	SizeThumbnail  Size = "thumbnail"
	SizeCard       Size = "card"
	SizeGallery    Size = "gallery"
	SizeFullscreen Size = "fullscreen"
	SizeHero       Size = "hero"
)

// Profile is the rendition requested for a Size. Zero Height keeps the
// aspect ratio.
type Profile struct {
	Width   int
	Height  int
	Quality int
}

var profiles = map[Size]Profile{
	SizeThumbnail:  {Width: 300, Quality: 70},
	SizeCard:       {Width: 600, Quality: 80},
	SizeGallery:    {Width: 1200, Quality: 90},
	SizeFullscreen: {Width: 2400, Quality: 95},
	SizeHero:       {Width: 1920, Height: 1080, Quality: 85},
}

// Profile returns the rendition for s. Unknown sizes use the card profile.
func (s Size) Profile() Profile {
	if p, ok := profiles[s]; ok {
		return p
	}
	return profiles[SizeCard]
}

// Format is the requested output encoding.
type Format string

const (
	FormatAuto Format = "auto"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
)

// IsValidImageURL reports whether src may be requested at all: an absolute
// URL, or a path starting with "/", "./" or "../".
func IsValidImageURL(src string) bool {
	if src == "" {
		return false
	}
	if strings.HasPrefix(src, "/") || strings.HasPrefix(src, "./") || strings.HasPrefix(src, "../") {
		return true
	}
	u, err := url.Parse(src)
	return err == nil && u.IsAbs() && (u.Host != "" || u.Opaque != "")
}

// FilterValidImages keeps valid sources in their original order.
func FilterValidImages(srcs []string) []string {
	out := make([]string, 0, len(srcs))
	for _, src := range srcs {
		if IsValidImageURL(src) {
			out = append(out, src)
		}
	}
	return out
}

// BestImage returns primary when valid, otherwise the first valid fallback.
// It returns "" when nothing qualifies.
func BestImage(primary string, fallbacks ...string) string {
	if IsValidImageURL(primary) {
		return primary
	}
	for _, src := range fallbacks {
		if IsValidImageURL(src) {
			return src
		}
	}
	return ""
}

// DefaultRemoteHosts are storage hosts known to resize on w/q/f parameters.
var DefaultRemoteHosts = []string{"r2.dev", "amazonaws.com"}

// Optimizer rewrites image URLs to request a rendition.
type Optimizer struct {
	// BaseURL rebases root-relative paths, e.g. "https://cdn.example.com".
	BaseURL string
	// RemoteHosts overrides DefaultRemoteHosts. A host matches itself and
	// its subdomains.
	RemoteHosts []string
}

func (o Optimizer) remote(host string) bool {
	hosts := o.RemoteHosts
	if hosts == nil {
		hosts = DefaultRemoteHosts
	}
	host = strings.ToLower(host)
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Optimize returns the URL of the size rendition of src. Remote storage URLs
// get w, q and f parameters. Root-relative paths are rebased on BaseURL with
// w and q when it is set. Anything else is returned unchanged.
func (o Optimizer) Optimize(src string, size Size, format Format) string {
	if !IsValidImageURL(src) {
		return src
	}
	p := size.Profile()

	if u, err := url.Parse(src); err == nil && u.IsAbs() && o.remote(u.Hostname()) {
		q := u.Query()
		q.Set("w", strconv.Itoa(p.Width))
		if p.Height > 0 {
			q.Set("h", strconv.Itoa(p.Height))
		}
		q.Set("q", strconv.Itoa(p.Quality))
		if format == "" || format == FormatAuto {
			format = FormatWebP
		}
		q.Set("f", string(format))
		u.RawQuery = q.Encode()
		return u.String()
	}

	if o.BaseURL != "" && strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//") {
		q := url.Values{}
		q.Set("w", strconv.Itoa(p.Width))
		q.Set("q", strconv.Itoa(p.Quality))
		sep := "?"
		if strings.Contains(src, "?") {
			sep = "&"
		}
		return strings.TrimRight(o.BaseURL, "/") + src + sep + q.Encode()
	}
	return src
}

// OptimizeImageURL rewrites src with the default remote hosts and no base URL.
func OptimizeImageURL(src string, size Size, format Format) string {
	return Optimizer{}.Optimize(src, size, format)
}

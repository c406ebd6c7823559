package images

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Image is a fetched rendition.
type Image struct {
	// Src is the original source URL, URL the optimized one actually fetched.
	Src         string
	URL         string
	ContentType string
	Data        []byte
	LoadedAt    time.Time
}

// Priority hints how urgently an image is needed.
type Priority string

const (
	PriorityAuto Priority = "auto"
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

// Request describes one image load.
type Request struct {
	Src      string
	URL      string
	Priority Priority
}

// Loader fetches a single image.
type Loader interface {
	Load(ctx context.Context, req Request) (*Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, req Request) (*Image, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, req Request) (*Image, error) {
	return f(ctx, req)
}

// ErrNotImage is returned when the server answers with a non-image body.
var ErrNotImage = errors.New("response is not an image")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("load %s: HTTP %d", e.URL, e.StatusCode)
}

// DefaultMaxImageSize bounds a single response body.
const DefaultMaxImageSize = 20 << 20

// HTTPLoader fetches images over HTTP.
type HTTPLoader struct {
	client  *http.Client
	maxSize int64
}

var _ Loader = (*HTTPLoader)(nil)

// NewHTTPLoader creates an HTTPLoader. A nil client gets an instrumented
// default one.
func NewHTTPLoader(client *http.Client, maxSize int64) *HTTPLoader {
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		}
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	return &HTTPLoader{client: client, maxSize: maxSize}
}

// Load performs a GET on req.URL, or req.Src when URL is empty.
func (l *HTTPLoader) Load(ctx context.Context, req Request) (*Image, error) {
	target := req.URL
	if target == "" {
		target = req.Src
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Accept", "image/avif,image/webp,image/*;q=0.8")
	if req.Priority == PriorityHigh {
		httpReq.Header.Set("Priority", "u=0")
	}

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", target)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	ct := resp.Header.Get("Content-Type")
	mt, _, _ := mime.ParseMediaType(ct)
	if len(mt) < len("image/") || mt[:len("image/")] != "image/" {
		return nil, errors.Wrapf(ErrNotImage, "load %s: content type %q", target, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", target)
	}
	if int64(len(data)) > l.maxSize {
		return nil, errors.Errorf("load %s: image exceeds %d bytes", target, l.maxSize)
	}

	return &Image{
		Src:         req.Src,
		URL:         target,
		ContentType: mt,
		Data:        data,
		LoadedAt:    time.Now(),
	}, nil
}

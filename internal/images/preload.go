package images

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidURL is returned for sources rejected by IsValidImageURL.
var ErrInvalidURL = errors.New("invalid image url")

// ErrTimeout is returned when a single load outlives its timeout.
var ErrTimeout = errors.New("image load timed out")

// Preloader loads images through a shared cache.
type Preloader struct {
	loader    Loader
	cache     Cache
	optimizer Optimizer
}

// NewPreloader creates a Preloader. A nil cache gets a MemoryCache with the
// default policy.
func NewPreloader(loader Loader, cache Cache, optimizer Optimizer) *Preloader {
	if cache == nil {
		cache = NewMemoryCache(DefaultPolicy())
	}
	return &Preloader{loader: loader, cache: cache, optimizer: optimizer}
}

// Cache returns the shared cache.
func (p *Preloader) Cache() Cache { return p.cache }

// Optimizer returns the URL optimizer.
func (p *Preloader) Optimizer() Optimizer { return p.optimizer }

// PreloadImage loads the size rendition of src. Cached images are returned
// without touching the loader.
func (p *Preloader) PreloadImage(ctx context.Context, src string, size Size, priority Priority) (*Image, error) {
	if !IsValidImageURL(src) {
		return nil, errors.Wrapf(ErrInvalidURL, "%q", src)
	}
	if img, ok := p.cache.Get(src); ok {
		return img, nil
	}

	img, err := p.loader.Load(ctx, Request{
		Src:      src,
		URL:      p.optimizer.Optimize(src, size, FormatAuto),
		Priority: priority,
	})
	if err != nil {
		return nil, err
	}
	p.cache.Set(src, img)
	return img, nil
}

// PreloadOptions configures PreloadImages.
type PreloadOptions struct {
	Size          Size
	MaxConcurrent int
	Timeout       time.Duration
	Priority      Priority
}

func (o PreloadOptions) withDefaults() PreloadOptions {
	if o.Size == "" {
		o.Size = SizeCard
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 3
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Priority == "" {
		o.Priority = PriorityAuto
	}
	return o
}

// PreloadFailure is a source that could not be loaded.
type PreloadFailure struct {
	Src string
	Err error
}

// PreloadResult partitions the valid inputs by outcome, in input order.
type PreloadResult struct {
	Successful []string
	Failed     []PreloadFailure
}

// PreloadImages loads the valid sources among srcs in sequential chunks of
// at most MaxConcurrent parallel loads. Each load is bounded by Timeout.
// Invalid sources are ignored and appear in neither list.
func (p *Preloader) PreloadImages(ctx context.Context, srcs []string, opts PreloadOptions) PreloadResult {
	opts = opts.withDefaults()
	valid := FilterValidImages(srcs)
	errs := make([]error, len(valid))

	for start := 0; start < len(valid); start += opts.MaxConcurrent {
		end := min(start+opts.MaxConcurrent, len(valid))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				errs[i] = p.loadWithTimeout(ctx, valid[i], opts)
				return nil
			})
		}
		_ = g.Wait()
	}

	var res PreloadResult
	for i, src := range valid {
		if errs[i] != nil {
			res.Failed = append(res.Failed, PreloadFailure{Src: src, Err: errs[i]})
			continue
		}
		res.Successful = append(res.Successful, src)
	}
	if len(res.Failed) > 0 {
		zctx.From(ctx).Debug("Preload finished with failures",
			zap.Int("successful", len(res.Successful)),
			zap.Int("failed", len(res.Failed)),
		)
	}
	return res
}

func (p *Preloader) loadWithTimeout(ctx context.Context, src string, opts PreloadOptions) error {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := p.PreloadImage(ctx, src, opts.Size, opts.Priority)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Wrapf(ErrTimeout, "%s after %s", src, opts.Timeout)
		}
		return ctx.Err()
	}
}

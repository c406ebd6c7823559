package images

import "context"

// SingleImage tracks one image with fallbacks.
type SingleImage struct {
	tracker *Tracker
	srcs    []string
	best    string
}

// NewSingleImage creates a SingleImage for src. Only the best candidate is
// preloaded by Load.
func NewSingleImage(p *Preloader, src string, fallbacks []string, opts ...TrackerOption) *SingleImage {
	opts = append(opts, WithPreloadCount(1))
	srcs := append([]string{src}, fallbacks...)
	return &SingleImage{
		tracker: NewTracker(p, opts...),
		srcs:    srcs,
		best:    BestImage(src, fallbacks...),
	}
}

// Load tracks all candidates and preloads the best one.
func (s *SingleImage) Load(ctx context.Context) {
	s.tracker.SetURLs(ctx, s.srcs)
}

// Best returns the selected candidate or "" when none is valid.
func (s *SingleImage) Best() string { return s.best }

// State returns the state of the best candidate. An untracked candidate is
// reported as not loaded with its source as the optimized URL.
func (s *SingleImage) State() ImageState {
	if st, ok := s.tracker.State(s.best); ok {
		return st
	}
	return ImageState{Src: s.best, OptimizedSrc: s.best}
}

// Tracker exposes the underlying tracker.
func (s *SingleImage) Tracker() *Tracker { return s.tracker }

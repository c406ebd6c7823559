package images

import (
	"context"
	"strings"
)

// ProductSource is the image data of one product card.
type ProductSource struct {
	Name      string
	Thumbnail string
	Images    []string
}

// ProductView is the per-product projection of tracker state.
type ProductView struct {
	Product   ProductSource
	Images    []string
	States    []ImageState
	BestImage string

	LoadedCount  int
	ErrorCount   int
	LoadingCount int

	HasValidImages bool
	AllLoaded      bool
	HasErrors      bool
	IsLoading      bool
}

// ProductImages tracks the images of a product list through one tracker.
// Views are computed from the shared state and never trigger loads.
type ProductImages struct {
	tracker  *Tracker
	products []ProductSource
}

// NewProductImages creates ProductImages over tracker.
func NewProductImages(tracker *Tracker, products []ProductSource) *ProductImages {
	return &ProductImages{tracker: tracker, products: products}
}

// Sources returns the thumbnail and valid gallery images of every product,
// in product order.
func (p *ProductImages) Sources() []string {
	var out []string
	for _, prod := range p.products {
		if prod.Thumbnail != "" {
			out = append(out, prod.Thumbnail)
		}
		out = append(out, FilterValidImages(prod.Images)...)
	}
	return out
}

// Load hands every product image to the tracker.
func (p *ProductImages) Load(ctx context.Context) {
	p.tracker.SetURLs(ctx, p.Sources())
}

// Views returns one view per product.
func (p *ProductImages) Views() []ProductView {
	out := make([]ProductView, 0, len(p.products))
	for _, prod := range p.products {
		out = append(out, p.view(prod))
	}
	return out
}

// View returns the view of the i-th product.
func (p *ProductImages) View(i int) (ProductView, bool) {
	if i < 0 || i >= len(p.products) {
		return ProductView{}, false
	}
	return p.view(p.products[i]), true
}

func (p *ProductImages) view(prod ProductSource) ProductView {
	v := ProductView{Product: prod}
	for _, src := range append([]string{prod.Thumbnail}, prod.Images...) {
		if strings.TrimSpace(src) != "" {
			v.Images = append(v.Images, src)
		}
	}
	for _, src := range v.Images {
		st, ok := p.tracker.State(src)
		if !ok {
			continue
		}
		v.States = append(v.States, st)
		switch {
		case st.Loaded:
			v.LoadedCount++
		case st.Error:
			v.ErrorCount++
		}
		if st.Loading {
			v.LoadingCount++
		}
	}
	v.BestImage = BestImage(prod.Thumbnail, prod.Images...)
	v.HasValidImages = len(v.Images) > 0
	v.AllLoaded = len(v.States) > 0 && v.LoadedCount == len(v.States)
	v.HasErrors = v.ErrorCount > 0
	v.IsLoading = v.LoadingCount > 0
	return v
}

// Tracker exposes the underlying tracker.
func (p *ProductImages) Tracker() *Tracker { return p.tracker }

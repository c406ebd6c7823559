// Package priceimport turns supplier price lists into base price updates.
//
// Lists arrive as CSV text in an unknown Cyrillic or Unicode encoding, or as
// XLSX/XLS workbooks, with no guaranteed header. Rows are matched to products
// by exact SKU, then exact name, and either previewed or written.
package priceimport

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

const instrumentationName = "github.com/xenking/storefront/internal/priceimport"

// DefaultMaxFileSize bounds accepted uploads.
const DefaultMaxFileSize = 10 << 20

// Catalog is the product store a price list is reconciled against.
type Catalog interface {
	ListPricing(ctx context.Context) ([]product.PricingRecord, error)
	PriceWriter
}

// Upload is a received price list.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	Mode        Mode
	// Selected restricts writes in update mode; nil selects all matches.
	Selected map[string]struct{}
}

// Service parses uploads and reconciles them with the catalog.
type Service struct {
	catalog  Catalog
	maxSize  int64
	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	maxSize int64
	tracers trace.TracerProvider
	meters  metric.MeterProvider
}

// WithMaxFileSize sets the upload size limit in bytes.
func WithMaxFileSize(n int64) Option {
	return func(o *serviceOptions) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *serviceOptions) { o.tracers = tp }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *serviceOptions) { o.meters = mp }
}

// NewService creates a Service.
func NewService(catalog Catalog, opts ...Option) (*Service, error) {
	o := serviceOptions{
		maxSize: DefaultMaxFileSize,
		tracers: otel.GetTracerProvider(),
		meters:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	outcomes, err := o.meters.Meter(instrumentationName).Int64Counter("priceimport.rows",
		metric.WithDescription("Price list rows by reconciliation outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create rows counter")
	}

	return &Service{
		catalog:  catalog,
		maxSize:  o.maxSize,
		tracer:   o.tracers.Tracer(instrumentationName),
		outcomes: outcomes,
	}, nil
}

// MaxFileSize returns the upload size limit in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.maxSize
}

// Parse validates an upload and extracts its rows.
func (s *Service) Parse(ctx context.Context, filename, contentType string, data []byte) ([]Row, error) {
	if int64(len(data)) > s.maxSize {
		return nil, &TooLargeError{Limit: s.maxSize}
	}
	kind, err := DetectKind(filename, contentType, data)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	var rows []Row
	switch kind {
	case KindCSV:
		text, enc := DecodeText(data)
		lg.Debug("Decoded price list", zap.String("encoding", enc), zap.Int("bytes", len(data)))
		rows = ParseCSV(text)
	default:
		rows, err = ParseWorkbook(data, kind)
		if err != nil {
			return nil, err
		}
	}
	if len(rows) == 0 {
		return nil, ErrNothingParsed
	}

	lg.Debug("Parsed price list",
		zap.String("file", filename),
		zap.Stringer("kind", kind),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// Import parses the upload and reconciles it with the catalog.
func (s *Service) Import(ctx context.Context, u Upload) (*Report, error) {
	if u.Data == nil {
		return nil, ErrMissingFile
	}
	mode := u.Mode
	if mode != ModeUpdate {
		mode = ModePreview
	}

	ctx, span := s.tracer.Start(ctx, "priceimport.Import",
		trace.WithAttributes(
			attribute.String("priceimport.mode", string(mode)),
			attribute.String("priceimport.file", u.Filename),
		),
	)
	defer span.End()

	rows, err := s.Parse(ctx, u.Filename, u.ContentType, u.Data)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	records, err := s.catalog.ListPricing(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, &CatalogError{Err: err}
	}

	rep := Reconcile(ctx, records, rows, ReconcileOptions{
		Mode:     mode,
		Selected: u.Selected,
		Writer:   s.catalog,
	})
	s.record(ctx, rep)

	zctx.From(ctx).Info("Price list reconciled",
		zap.String("mode", string(mode)),
		zap.Int("total", rep.Summary.Total),
		zap.Int("updated", rep.Summary.Updated),
		zap.Int("not_found", rep.Summary.NotFound),
		zap.Int("skipped", rep.Summary.Skipped),
		zap.Int("errors", rep.Summary.Errors),
	)
	return rep, nil
}

func (s *Service) record(ctx context.Context, rep *Report) {
	mode := attribute.String("mode", string(rep.Mode))
	for outcome, n := range map[string]int{
		"updated":   rep.Summary.Updated,
		"not_found": rep.Summary.NotFound,
		"skipped":   rep.Summary.Skipped,
		"error":     rep.Summary.Errors,
	} {
		if n == 0 {
			continue
		}
		s.outcomes.Add(ctx, int64(n), metric.WithAttributes(mode, attribute.String("outcome", outcome)))
	}
}

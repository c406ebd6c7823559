// Command price-import reconciles supplier price lists with the catalog from
// the command line. Inputs may be gzip-compressed; they are parsed
// concurrently and reconciled as one list in argument order.
package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/priceimport"
	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		mode        string
		selected    string
		maxSize     int64
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&mode, "mode", string(priceimport.ModePreview), "preview or update")
	flag.StringVar(&selected, "select", "", "comma-separated product IDs to update; empty updates every match")
	flag.Int64Var(&maxSize, "max-file-size", priceimport.DefaultMaxFileSize, "largest accepted list in bytes, after decompression")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		slog.Error("usage: price-import [flags] FILE...")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := options{
		mode:     priceimport.ParseMode(mode),
		selected: parseSelected(selected),
		maxSize:  maxSize,
	}
	if err := run(ctx, databaseURL, flag.Args(), opts); err != nil {
		slog.Error("price import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type options struct {
	mode     priceimport.Mode
	selected map[string]struct{}
	maxSize  int64
}

func parseSelected(s string) map[string]struct{} {
	if s == "" {
		return nil
	}
	out := make(map[string]struct{})
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

func run(ctx context.Context, databaseURL string, files []string, opts options) error {
	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	catalog := postgres.NewProductRepository(pool)
	svc, err := priceimport.NewService(catalog, priceimport.WithMaxFileSize(opts.maxSize))
	if err != nil {
		return errors.Wrap(err, "create service")
	}

	rows, err := parseFiles(ctx, svc, files)
	if err != nil {
		return err
	}

	records, err := catalog.ListPricing(ctx)
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}
	rep := priceimport.Reconcile(ctx, records, rows, priceimport.ReconcileOptions{
		Mode:     opts.mode,
		Selected: opts.selected,
		Writer:   catalog,
	})
	logReport(rep)
	return nil
}

// parseFiles parses every file concurrently and concatenates the rows in
// argument order.
func parseFiles(ctx context.Context, svc *priceimport.Service, files []string) ([]priceimport.Row, error) {
	parsed := make([][]priceimport.Row, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			name, data, err := readInput(path, svc.MaxFileSize())
			if err != nil {
				return err
			}
			rows, err := svc.Parse(ctx, name, "", data)
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			slog.Info("parsed price list", slog.String("file", path), slog.Int("rows", len(rows)))
			parsed[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []priceimport.Row
	for _, r := range parsed {
		rows = append(rows, r...)
	}
	return rows, nil
}

// readInput reads path, inflating it when it ends in .gz. The returned name
// drops the .gz suffix so format detection sees the inner extension. At most
// limit+1 bytes are read so oversized lists are still rejected.
func readInput(path string, limit int64) (string, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	name := filepath.Base(path)
	var r io.Reader = f
	if strings.EqualFold(filepath.Ext(name), ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return "", nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(r, limit+1)); err != nil {
		return "", nil, errors.Wrapf(err, "read %s", path)
	}
	return name, buf.Bytes(), nil
}

func logReport(rep *priceimport.Report) {
	for _, u := range rep.Results.Updated {
		old := "none"
		if u.OldPrice != nil {
			old = u.OldPrice.StringFixed(2)
		}
		slog.Info("price change",
			slog.String("id", u.ID),
			slog.String("name", u.Name),
			slog.String("old", old),
			slog.String("new", u.NewPrice.StringFixed(2)),
			slog.String("found_by", string(u.FoundBy)),
		)
	}
	for _, n := range rep.Results.NotFound {
		slog.Warn("not found", slog.String("name", n.Name), slog.String("price", n.Price.String()))
	}
	for _, e := range rep.Results.Errors {
		slog.Error("update failed", slog.String("name", e.Name), slog.String("error", e.Error))
	}

	slog.Info("price import summary",
		slog.String("mode", string(rep.Mode)),
		slog.Int("total", rep.Summary.Total),
		slog.Int("updated", rep.Summary.Updated),
		slog.Int("not_found", rep.Summary.NotFound),
		slog.Int("skipped", rep.Summary.Skipped),
		slog.Int("errors", rep.Summary.Errors),
	)
}

package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/plantshop/internal/domain/ident"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	batchSize     = 5_000
	progressEvery = 100_000
	maxLineBytes  = 1 << 20
)

func main() {
	var (
		dataDir     string
		sellerID    string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.ndjson.gz product feeds")
	flag.StringVar(&sellerID, "seller-id", "", "seller that will own the imported products")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if err := ident.Check("seller", sellerID); err != nil {
		slog.Error("a valid --seller-id is required", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, sellerID, databaseURL); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir, sellerID, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "list feeds")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.ndjson.gz feeds in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if _, err := postgres.NewSellerRepository(pool).GetByID(ctx, sellerID); err != nil {
		return errors.Wrapf(err, "seller %s", sellerID)
	}

	products := postgres.NewProductRepository(pool)
	titles, err := products.TitlesBySeller(ctx, sellerID)
	if err != nil {
		return errors.Wrap(err, "load existing titles")
	}
	seen := newTitleSet(titles)
	slog.Info("loaded existing catalog", slog.Int("titles", len(titles)))

	imp := &importer{
		sellerID: sellerID,
		seen:     seen,
		flush: func(ctx context.Context, batch []product.Product) error {
			n, err := products.Import(ctx, batch)
			if err != nil {
				return err
			}
			slog.Info("imported batch", slog.Int64("rows", n))
			return nil
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(func() error {
			return imp.importFile(gctx, f)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := imp.finish(ctx); err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("files", len(files)),
		slog.Int("imported", imp.imported),
		slog.Int("duplicates", imp.duplicates),
		slog.Int("rejected", imp.rejected),
	)
	return nil
}

// titleSet detects duplicate titles. The bloom filter answers most misses
// without touching the exact set.
type titleSet struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func newTitleSet(existing []string) *titleSet {
	s := &titleSet{
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		exact:  make(map[string]struct{}, len(existing)),
	}
	for _, t := range existing {
		s.add(titleKey(t))
	}
	return s
}

func (s *titleSet) add(key string) {
	s.filter.AddString(key)
	s.exact[key] = struct{}{}
}

// addIfNew records key and reports whether it was not seen before.
func (s *titleSet) addIfNew(key string) bool {
	if s.filter.TestString(key) {
		if _, ok := s.exact[key]; ok {
			return false
		}
	}
	s.add(key)
	return true
}

// importer collects feed records from concurrent readers and writes them in
// batches.
type importer struct {
	sellerID string
	flush    func(ctx context.Context, batch []product.Product) error

	mu         sync.Mutex
	seen       *titleSet
	batch      []product.Product
	imported   int
	duplicates int
	rejected   int
}

func (imp *importer) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var line int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		p, err := parseLine(scanner.Bytes())
		if err != nil {
			slog.Warn("skipping feed record",
				slog.String("file", filepath.Base(path)),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			imp.reject()
			continue
		}
		if err := imp.add(ctx, p); err != nil {
			return errors.Wrapf(err, "%s:%d", path, line)
		}
		if line%progressEvery == 0 {
			slog.Info("progress", slog.String("file", filepath.Base(path)), slog.Int("lines", line))
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("feed complete", slog.String("file", filepath.Base(path)), slog.Int("lines", line))
	return nil
}

func (imp *importer) reject() {
	imp.mu.Lock()
	imp.rejected++
	imp.mu.Unlock()
}

// add queues p unless its title is already listed, flushing full batches.
func (imp *importer) add(ctx context.Context, p product.Product) error {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	if !imp.seen.addIfNew(titleKey(p.Title)) {
		imp.duplicates++
		return nil
	}
	p.ID = ident.New()
	p.SellerID = imp.sellerID
	imp.batch = append(imp.batch, p)
	if len(imp.batch) < batchSize {
		return nil
	}
	return imp.flushLocked(ctx)
}

func (imp *importer) finish(ctx context.Context) error {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.flushLocked(ctx)
}

func (imp *importer) flushLocked(ctx context.Context) error {
	if len(imp.batch) == 0 {
		return nil
	}
	if err := imp.flush(ctx, imp.batch); err != nil {
		return errors.Wrap(err, "import batch")
	}
	imp.imported += len(imp.batch)
	imp.batch = nil
	return nil
}

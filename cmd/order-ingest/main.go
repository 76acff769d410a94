// Command order-ingest backfills historical orders from gzip-compressed
// ND-JSON export files. Each line is one order submission in the API's wire
// shape. Files are first scanned concurrently to estimate cross-file
// duplicates via bloom filters, then replayed sequentially through the
// domain service so idempotency and derived fields apply exactly as they
// do for live traffic.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mrobles/orders-intake/internal/domain/order"
	"github.com/mrobles/orders-intake/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// orderLine mirrors one exported order record.
type orderLine struct {
	ExternalID string `json:"external_id"`
	Customer   struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		ClientID string `json:"client_id"`
	} `json:"customer"`
	Items []struct {
		SKU       string          `json:"sku"`
		Quantity  int             `json:"quantity"`
		PriceUnit decimal.Decimal `json:"price_unit"`
	} `json:"items"`
	Date string `json:"date"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing orders*.json.gz export files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("order ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "orders*.json.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no orders*.json.gz files in %s", dataDir)
	}

	// Pass 1: build per-file bloom filters of external ids concurrently and
	// report how many ids likely appear in more than one file. Those will be
	// skipped as conflicts during replay, so the estimate sets expectations
	// for the skip count in the logs.
	slog.Info("pass 1: scanning export files", slog.Int("files", len(files)))

	filters, err := buildFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "scan export files")
	}

	dupes, err := estimateCrossFileDuplicates(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "estimate duplicates")
	}

	slog.Info("pass 1 complete", slog.Int("cross_file_duplicate_candidates", dupes))

	// Pass 2: replay in order through the domain service.
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := order.NewService(postgres.NewOrderRepository(pool))

	var inserted, skipped, rejected int
	for _, f := range files {
		ins, skip, rej, err := replayFile(ctx, svc, f)
		if err != nil {
			return errors.Wrapf(err, "replay %s", f)
		}
		inserted += ins
		skipped += skip
		rejected += rej
	}

	slog.Info("replay complete",
		slog.Int("inserted", inserted),
		slog.Int("skipped_duplicates", skipped),
		slog.Int("rejected_invalid", rejected),
	)

	return nil
}

// buildFilters creates one bloom filter of external ids per file, concurrently.
func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzLines(ctx, path, func(line []byte) error {
			var rec orderLine
			if err := json.Unmarshal(line, &rec); err != nil {
				// Malformed lines are counted during replay; here they just
				// don't contribute an id.
				return nil
			}
			if rec.ExternalID != "" {
				filter.AddString(rec.ExternalID)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", idx+1), slog.Uint64("orders", count))
				}
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 file complete", slog.Int("file", idx+1), slog.Uint64("orders", count))

		filters[idx] = filter
		return nil
	}
}

// estimateCrossFileDuplicates counts external ids from each file that also
// test positive in another file's filter. Bloom false positives make this an
// upper bound.
func estimateCrossFileDuplicates(ctx context.Context, files []string, filters []*bloom.BloomFilter) (int, error) {
	counts := make([]int, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			return streamGzLines(ctx, f, func(line []byte) error {
				var rec orderLine
				if err := json.Unmarshal(line, &rec); err != nil || rec.ExternalID == "" {
					return nil
				}
				for j, filter := range filters {
					if j == i {
						continue
					}
					if filter.TestString(rec.ExternalID) {
						counts[i]++
						break
					}
				}
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total int
	for _, c := range counts {
		total += c
	}
	return total, nil
}

// replayFile feeds every line of one export file through the service.
// Duplicate external ids are expected during backfill and counted as
// skipped; malformed or invalid lines are counted as rejected.
func replayFile(ctx context.Context, svc *order.Service, path string) (inserted, skipped, rejected int, err error) {
	slog.Info("replaying file", slog.String("path", path))

	err = streamGzLines(ctx, path, func(line []byte) error {
		req, parseErr := parseLine(line)
		if parseErr != nil {
			rejected++
			return nil
		}

		_, _, createErr := svc.CreateOrder(ctx, req)
		if createErr == nil {
			inserted++
			return nil
		}
		switch order.KindOf(createErr) {
		case order.KindConflict:
			skipped++
		case order.KindValidation:
			rejected++
		default:
			return errors.Wrapf(createErr, "create order %s", req.ExternalID)
		}
		return nil
	})
	if err != nil {
		return 0, 0, 0, err
	}

	slog.Info("file replayed",
		slog.String("path", path),
		slog.Int("inserted", inserted),
		slog.Int("skipped", skipped),
		slog.Int("rejected", rejected),
	)

	return inserted, skipped, rejected, nil
}

func parseLine(line []byte) (order.CreateOrderRequest, error) {
	var rec orderLine
	if err := json.Unmarshal(line, &rec); err != nil {
		return order.CreateOrderRequest{}, errors.Wrap(err, "parse line")
	}

	date, err := time.Parse(time.RFC3339, rec.Date)
	if err != nil {
		return order.CreateOrderRequest{}, errors.Wrap(err, "parse date")
	}

	items := make([]order.Item, 0, len(rec.Items))
	for _, it := range rec.Items {
		items = append(items, order.Item{
			SKU:       it.SKU,
			Quantity:  it.Quantity,
			PriceUnit: it.PriceUnit,
		})
	}

	return order.CreateOrderRequest{
		ExternalID: rec.ExternalID,
		Customer: order.Customer{
			Email:    rec.Customer.Email,
			Name:     rec.Customer.Name,
			ClientID: rec.Customer.ClientID,
		},
		Items: items,
		Date:  date,
	}, nil
}

// streamGzLines opens a gzip-compressed file and calls fn for each line.
func streamGzLines(ctx context.Context, path string, fn func(line []byte) error) error {
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
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// Command discount-import loads coupon definitions from gzip-compressed
// JSON-lines exports. Codes duplicated within or across the given files are
// rejected; the rest are upserted by coupon code.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/bakery-pos/internal/importer"
	"github.com/xenking/bakery-pos/internal/storage/postgres"
	"github.com/xenking/bakery-pos/internal/storage/rediscache"
)

const maxLoggedRejections = 50

func main() {
	var (
		dataDir      string
		databaseURL  string
		redisURL     string
		parallel     int
		skipExisting bool
		dryRun       bool
	)

	flag.StringVar(&dataDir, "data-dir", "", "directory of *.jsonl.gz exports (used when no files are given)")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisURL, "redis-url", "", "Redis URL whose discount cache is invalidated (or REDIS_URL env)")
	flag.IntVar(&parallel, "parallel", 0, "files read concurrently (default GOMAXPROCS)")
	flag.BoolVar(&skipExisting, "skip-existing", false, "reject codes that are already stored instead of updating them")
	flag.BoolVar(&dryRun, "dry-run", false, "report what would be imported without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if redisURL == "" {
		redisURL = os.Getenv("REDIS_URL")
	}

	files := flag.Args()
	if len(files) == 0 && dataDir != "" {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
		if err != nil {
			slog.Error("list exports", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slices.Sort(matches)
		files = matches
	}
	if len(files) == 0 {
		slog.Error("no exports: pass files as arguments or set --data-dir")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := importer.Options{
		Parallel:     parallel,
		SkipExisting: skipExisting,
		DryRun:       dryRun,
	}
	if err := run(ctx, databaseURL, redisURL, files, opts); err != nil {
		slog.Error("discount import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount import completed successfully")
}

func run(ctx context.Context, databaseURL, redisURL string, files []string, opts importer.Options) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewDiscountRepository(pool)

	if redisURL != "" && !opts.DryRun {
		ropts, err := redis.ParseURL(redisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(ropts)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "ping redis")
		}
		opts.Invalidator = rediscache.NewDiscounts(repo, rdb, 0)
	}

	slog.Info("importing discounts",
		slog.Int("files", len(files)),
		slog.Bool("dry_run", opts.DryRun),
		slog.Bool("skip_existing", opts.SkipExisting),
	)

	sum, err := importer.Run(ctx, repo, files, opts)
	if sum != nil {
		for i, rej := range sum.Rejected {
			if i == maxLoggedRejections {
				slog.Warn("more rejections omitted", slog.Int("omitted", len(sum.Rejected)-i))
				break
			}
			slog.Warn("rejected",
				slog.String("file", rej.File),
				slog.Int("line", rej.Line),
				slog.String("code", rej.Code),
				slog.String("reason", string(rej.Reason)),
				slog.String("detail", rej.Detail),
			)
		}
		slog.Info("import summary",
			slog.Int("files", sum.Files),
			slog.Int("lines", sum.Lines),
			slog.Int("inserted", sum.Inserted),
			slog.Int("updated", sum.Updated),
			slog.Int("rejected", len(sum.Rejected)),
		)
	}
	if err != nil {
		return errors.Wrap(err, "import")
	}
	return nil
}

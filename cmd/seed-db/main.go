package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/db"
	"github.com/xenking/bakery-pos/internal/domain/auth"
	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
	"github.com/xenking/bakery-pos/internal/storage/postgres"
	"github.com/xenking/bakery-pos/internal/storage/rediscache"
)

type seedFile struct {
	Prices []struct {
		ProductName string          `json:"product_name"`
		SizeName    string          `json:"size_name"`
		Price       decimal.Decimal `json:"price"`
		Active      bool            `json:"active"`
	} `json:"prices"`
	Discounts []struct {
		Name          string          `json:"name"`
		CouponCode    string          `json:"coupon_code"`
		Percent       decimal.Decimal `json:"percent"`
		MinOrderValue decimal.Decimal `json:"min_order_value"`
		MaxDiscount   decimal.Decimal `json:"max_discount"`
		Active        bool            `json:"active"`
		ValidFrom     *time.Time      `json:"valid_from"`
		ValidUntil    time.Time       `json:"valid_until"`
	} `json:"discounts"`
}

func main() {
	var (
		databaseURL  string
		redisURL     string
		seedPath     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisURL, "redis-url", "", "Redis URL whose price and discount cache is invalidated (or REDIS_URL env)")
	flag.StringVar(&seedPath, "seed-file", "", "path to a catalog seed JSON file (default: built-in sample catalog)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or BAKERY_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or BAKERY_API_KEY_PEPPER env)")
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
	if apiKey == "" {
		apiKey = os.Getenv("BAKERY_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or BAKERY_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("BAKERY_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, redisURL, seedPath, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, redisURL, seedPath, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seed, err := readSeed(seedPath)
	if err != nil {
		return err
	}
	prices := postgres.NewCatalogRepository(pool)
	priceIDs, err := seedPrices(ctx, prices, seed)
	if err != nil {
		return errors.Wrap(err, "seed prices")
	}
	discounts := postgres.NewDiscountRepository(pool)
	seeded, err := seedDiscounts(ctx, discounts, seed)
	if err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	if redisURL == "" {
		return nil
	}
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(ropts)
	defer func() { _ = rdb.Close() }()

	slog.Info("invalidating cached prices and discounts")
	return evictSeeded(ctx,
		rediscache.NewCatalog(prices, rdb, 0),
		rediscache.NewDiscounts(discounts, rdb, 0),
		priceIDs, seeded)
}

// evictSeeded drops cache entries of every upserted row so a running server
// prices with the new catalog on its next request.
func evictSeeded(ctx context.Context, prices *rediscache.Catalog, discounts *rediscache.Discounts, priceIDs []int64, seeded []discount.Definition) error {
	if err := prices.InvalidatePrices(ctx, priceIDs...); err != nil {
		return err
	}
	ids := make([]int64, len(seeded))
	codes := make([]string, 0, len(seeded))
	for i, def := range seeded {
		ids[i] = def.ID
		if def.CouponCode != "" {
			codes = append(codes, def.CouponCode)
		}
	}
	if err := discounts.InvalidateIDs(ctx, ids...); err != nil {
		return err
	}
	return discounts.InvalidateCodes(ctx, codes...)
}

func readSeed(path string) (*seedFile, error) {
	data := db.SeedCatalog
	if path != "" {
		slog.Info("reading seed file", slog.String("path", path))

		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read seed file")
		}
	} else {
		slog.Info("using built-in sample catalog")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, errors.Wrap(err, "parse seed JSON")
	}
	return &seed, nil
}

type priceStore interface {
	UpsertPrice(ctx context.Context, p *catalog.Price) error
}

type discountStore interface {
	Upsert(ctx context.Context, def *discount.Definition) error
}

func seedPrices(ctx context.Context, repo priceStore, seed *seedFile) ([]int64, error) {
	slog.Info("upserting prices", slog.Int("count", len(seed.Prices)))

	ids := make([]int64, 0, len(seed.Prices))
	for _, p := range seed.Prices {
		price := catalog.Price{
			ProductName: p.ProductName,
			SizeName:    p.SizeName,
			UnitPrice:   p.Price,
			Active:      p.Active,
		}
		if err := repo.UpsertPrice(ctx, &price); err != nil {
			return nil, err
		}
		ids = append(ids, price.ID)
		slog.Info("upserted price",
			slog.Int64("id", price.ID),
			slog.String("product", price.ProductName),
			slog.String("size", price.SizeName),
		)
	}
	return ids, nil
}

func seedDiscounts(ctx context.Context, repo discountStore, seed *seedFile) ([]discount.Definition, error) {
	slog.Info("upserting discounts", slog.Int("count", len(seed.Discounts)))

	out := make([]discount.Definition, 0, len(seed.Discounts))
	for _, d := range seed.Discounts {
		def := discount.Definition{
			Name:          d.Name,
			CouponCode:    d.CouponCode,
			Percent:       d.Percent,
			MinOrderValue: d.MinOrderValue,
			MaxDiscount:   d.MaxDiscount,
			Active:        d.Active,
			ValidFrom:     d.ValidFrom,
			ValidUntil:    d.ValidUntil,
		}
		if err := repo.Upsert(ctx, &def); err != nil {
			return nil, err
		}
		out = append(out, def)
		slog.Info("upserted discount", slog.Int64("id", def.ID), slog.String("code", def.CouponCode))
	}
	return out, nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	info := &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashHex([]byte(pepper), apiKey),
		Name:    "Default till key",
		Scopes:  []string{"orders"},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return err
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))
	return nil
}

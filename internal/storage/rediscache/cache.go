// Package rediscache puts a Redis read-through cache in front of the catalog
// and discount repositories. Cache failures degrade to the wrapped
// repository; only hits are cached, so a newly created price or discount is
// visible immediately.
package rediscache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
)

const keyPrefix = "bakery:"

func priceKey(id int64) string {
	return keyPrefix + "price:" + strconv.FormatInt(id, 10)
}

func discountIDKey(id int64) string {
	return keyPrefix + "discount:id:" + strconv.FormatInt(id, 10)
}

func discountCodeKey(code string) string {
	return keyPrefix + "discount:code:" + strings.ToUpper(strings.TrimSpace(code))
}

var (
	_ catalog.Repository  = (*Catalog)(nil)
	_ discount.Repository = (*Discounts)(nil)
)

// Catalog caches price references.
type Catalog struct {
	next   catalog.Repository
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCatalog wraps next with a cache entry lifetime of ttl.
func NewCatalog(next catalog.Repository, client redis.UniversalClient, ttl time.Duration) *Catalog {
	return &Catalog{next: next, client: client, ttl: ttl}
}

func (c *Catalog) GetPrice(ctx context.Context, id int64) (*catalog.Price, error) {
	prices, err := c.GetPrices(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, catalog.ErrNotFound
	}
	return &prices[0], nil
}

// GetPrices serves what it can from one MGET and fetches the rest from the
// wrapped repository in a single batch.
func (c *Catalog) GetPrices(ctx context.Context, ids []int64) ([]catalog.Price, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = priceKey(id)
	}

	out := make([]catalog.Price, 0, len(ids))
	missing := ids
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		zctx.From(ctx).Warn("Price cache read failed", zap.Error(err))
	} else {
		missing = nil
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			p, err := decodePrice([]byte(s))
			if err != nil {
				zctx.From(ctx).Warn("Dropping corrupt price cache entry", zap.Int64("price_id", ids[i]), zap.Error(err))
				missing = append(missing, ids[i])
				continue
			}
			out = append(out, p)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.next.GetPrices(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) > 0 {
		_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, p := range fetched {
				pipe.Set(ctx, priceKey(p.ID), encodePrice(p), c.ttl)
			}
			return nil
		})
		if err != nil {
			zctx.From(ctx).Warn("Price cache write failed", zap.Error(err))
		}
	}
	return append(out, fetched...), nil
}

// InvalidatePrices drops cached entries for ids.
func (c *Catalog) InvalidatePrices(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = priceKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "invalidate prices")
	}
	return nil
}

// Discounts caches discount definitions by id and by coupon code.
type Discounts struct {
	next   discount.Repository
	client redis.UniversalClient
	ttl    time.Duration
}

// NewDiscounts wraps next with a cache entry lifetime of ttl.
func NewDiscounts(next discount.Repository, client redis.UniversalClient, ttl time.Duration) *Discounts {
	return &Discounts{next: next, client: client, ttl: ttl}
}

func (c *Discounts) GetByID(ctx context.Context, id int64) (*discount.Definition, error) {
	return c.readThrough(ctx, discountIDKey(id), func() (*discount.Definition, error) {
		return c.next.GetByID(ctx, id)
	})
}

func (c *Discounts) GetByCouponCode(ctx context.Context, code string) (*discount.Definition, error) {
	return c.readThrough(ctx, discountCodeKey(code), func() (*discount.Definition, error) {
		return c.next.GetByCouponCode(ctx, code)
	})
}

func (c *Discounts) readThrough(ctx context.Context, key string, load func() (*discount.Definition, error)) (*discount.Definition, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		def, err := decodeDefinition(data)
		if err == nil {
			return def, nil
		}
		zctx.From(ctx).Warn("Dropping corrupt discount cache entry", zap.String("key", key), zap.Error(err))
	case !errors.Is(err, redis.Nil):
		zctx.From(ctx).Warn("Discount cache read failed", zap.Error(err))
	}

	def, err := load()
	if err != nil {
		return nil, err
	}

	payload := encodeDefinition(def)
	_, err = c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, discountIDKey(def.ID), payload, c.ttl)
		if def.CouponCode != "" {
			pipe.Set(ctx, discountCodeKey(def.CouponCode), payload, c.ttl)
		}
		return nil
	})
	if err != nil {
		zctx.From(ctx).Warn("Discount cache write failed", zap.Error(err))
	}
	return def, nil
}

// InvalidateCodes drops cached entries for coupon codes.
func (c *Discounts) InvalidateCodes(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = discountCodeKey(code)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "invalidate discount codes")
	}
	return nil
}

// InvalidateIDs drops cached entries for discount ids.
func (c *Discounts) InvalidateIDs(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = discountIDKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "invalidate discount ids")
	}
	return nil
}

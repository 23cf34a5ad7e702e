package pricing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
	"github.com/xenking/bakery-pos/internal/domain/fault"
	"github.com/xenking/bakery-pos/internal/domain/pricing"
	"github.com/xenking/bakery-pos/internal/domain/pricing/pricingtest"
)

func newEngine(t *testing.T) *pricing.Engine {
	t.Helper()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	prices := pricingtest.NewCatalog(
		catalog.Price{ID: 1, ProductName: "Croissant", SizeName: "M", UnitPrice: decimal.NewFromInt(50000), Active: true},
		catalog.Price{ID: 2, ProductName: "Baguette", SizeName: "L", UnitPrice: decimal.NewFromInt(30000), Active: true},
	)
	discounts := pricingtest.NewDiscounts(
		discount.Definition{
			ID: 10, Name: "Ten", CouponCode: "TEN",
			Percent: decimal.NewFromInt(10), MinOrderValue: decimal.NewFromInt(100000), MaxDiscount: decimal.NewFromInt(10000),
			Active: true, ValidUntil: now.Add(time.Hour),
		},
	)

	evaluator := discount.NewEvaluator(discounts).WithClock(func() time.Time { return now })
	engine, err := pricing.NewEngine(catalog.NewPricer(prices), evaluator, pricing.EngineOptions{})
	require.NoError(t, err)
	return engine
}

func TestEngine_Price(t *testing.T) {
	engine := newEngine(t)

	res, err := engine.Price(context.Background(), pricing.Input{
		Lines: []catalog.LineRequest{
			{PriceID: 1, Quantity: 2},
			{PriceID: 2, Quantity: 1},
		},
		Discounts: []discount.Request{{CouponCode: "ten"}},
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(130000).Equal(res.Subtotal))
	assert.True(t, decimal.NewFromInt(10000).Equal(res.TotalDiscount))
	assert.True(t, decimal.NewFromInt(120000).Equal(res.FinalAmount))
	require.Len(t, res.Discounts, 1)
	assert.Equal(t, int64(10), res.Discounts[0].DiscountID)
	assert.Equal(t, "TEN", res.Discounts[0].CouponCode)
}

func TestEngine_ValidatesBeforeLookup(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		name       string
		in         pricing.Input
		wantReason fault.Reason
	}{
		{
			name:       "malformed discount request with unknown line",
			in:         pricing.Input{Lines: []catalog.LineRequest{{PriceID: 99, Quantity: 1}}, Discounts: []discount.Request{{}}},
			wantReason: fault.ReasonDiscountRequest,
		},
		{
			name:       "empty lines",
			in:         pricing.Input{Discounts: []discount.Request{{DiscountID: 10}}},
			wantReason: fault.ReasonLinesEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Price(context.Background(), tt.in)
			require.ErrorIs(t, err, fault.InvalidInput)
			assert.Equal(t, tt.wantReason, fault.ReasonOf(err))
			assert.Nil(t, res)
		})
	}
}

func TestEngine_ConcurrentDeterminism(t *testing.T) {
	engine := newEngine(t)
	in := pricing.Input{
		Lines:     []catalog.LineRequest{{PriceID: 1, Quantity: 2}, {PriceID: 2, Quantity: 1}},
		Discounts: []discount.Request{{DiscountID: 10}},
	}

	want, err := engine.Price(context.Background(), in)
	require.NoError(t, err)

	const workers = 16
	fingerprints := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Price(context.Background(), in)
			if err == nil {
				fingerprints[i] = res.Fingerprint()
			}
		}()
	}
	wg.Wait()

	for i, fp := range fingerprints {
		assert.Equal(t, want.Fingerprint(), fp, "worker %d", i)
	}
}

// Package pricingtest provides in-memory catalog and discount repositories
// for tests.
package pricingtest

import (
	"context"
	"strings"
	"sync"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
)

var (
	_ catalog.Repository  = (*Catalog)(nil)
	_ discount.Repository = (*Discounts)(nil)
)

// Catalog is an in-memory catalog.Repository.
type Catalog struct {
	mu     sync.RWMutex
	prices map[int64]catalog.Price
}

// NewCatalog returns a Catalog holding prices.
func NewCatalog(prices ...catalog.Price) *Catalog {
	c := &Catalog{prices: make(map[int64]catalog.Price, len(prices))}
	for _, p := range prices {
		c.prices[p.ID] = p
	}
	return c
}

// Put inserts or replaces a price.
func (c *Catalog) Put(p catalog.Price) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[p.ID] = p
}

func (c *Catalog) GetPrice(_ context.Context, id int64) (*catalog.Price, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (c *Catalog) GetPrices(_ context.Context, ids []int64) ([]catalog.Price, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]catalog.Price, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.prices[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Discounts is an in-memory discount.Repository.
type Discounts struct {
	mu   sync.RWMutex
	defs map[int64]discount.Definition
}

// NewDiscounts returns a Discounts holding defs.
func NewDiscounts(defs ...discount.Definition) *Discounts {
	d := &Discounts{defs: make(map[int64]discount.Definition, len(defs))}
	for _, def := range defs {
		d.defs[def.ID] = def
	}
	return d
}

// Put inserts or replaces a definition.
func (d *Discounts) Put(def discount.Definition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defs[def.ID] = def
}

func (d *Discounts) GetByID(_ context.Context, id int64) (*discount.Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	def, ok := d.defs[id]
	if !ok {
		return nil, discount.ErrNotFound
	}
	return &def, nil
}

func (d *Discounts) GetByCouponCode(_ context.Context, code string) (*discount.Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, def := range d.defs {
		if def.CouponCode != "" && strings.EqualFold(def.CouponCode, code) {
			return &def, nil
		}
	}
	return nil, discount.ErrNotFound
}

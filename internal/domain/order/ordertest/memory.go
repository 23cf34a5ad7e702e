// Package ordertest provides an in-memory order.Repository for tests.
package ordertest

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/bakery-pos/internal/domain/order"
)

var _ order.Repository = (*Repository)(nil)

// Repository is an in-memory order.Repository. Stored orders are copied on
// the way in and out.
type Repository struct {
	mu     sync.Mutex
	orders map[string]order.Order
	seq    []string

	// Writes counts Create and Replace calls.
	Writes int
	// Err, when set, is returned by every call.
	Err error
}

// NewRepository returns an empty Repository.
func NewRepository() *Repository {
	return &Repository{orders: make(map[string]order.Order)}
}

func clone(o order.Order) order.Order {
	o.Lines = slices.Clone(o.Lines)
	o.Discounts = slices.Clone(o.Discounts)
	return o
}

func (r *Repository) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Writes++
	r.orders[o.ID] = clone(*o)
	r.seq = append(r.seq, o.ID)
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o = clone(o)
	return &o, nil
}

func (r *Repository) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []order.Order
	for i := len(r.seq) - 1; i >= 0; i-- {
		o, ok := r.orders[r.seq[i]]
		if !ok {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, clone(o))
	}
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Repository) Replace(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.orders[o.ID]; !ok {
		return order.ErrNotFound
	}
	r.Writes++
	r.orders[o.ID] = clone(*o)
	return nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.orders[id]; !ok {
		return order.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

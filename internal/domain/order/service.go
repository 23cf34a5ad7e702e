package order

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
	"github.com/xenking/bakery-pos/internal/domain/fault"
	"github.com/xenking/bakery-pos/internal/domain/pricing"
)

// List page bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pricer computes the pricing breakdown for an order.
type Pricer interface {
	Price(ctx context.Context, in pricing.Input) (*pricing.Result, error)
}

var _ Pricer = (*pricing.Engine)(nil)

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	EmployeeID int64
	CustomerID *int64
	// Status defaults to StatusProcessing.
	Status    Status
	Note      string
	Lines     []catalog.LineRequest
	Discounts []discount.Request
}

// UpdateRequest holds a partial order update. Nil fields are left as is.
//
// A non-nil Lines or Discounts slice triggers a full re-price. The field
// that was not given is taken from the stored order, and every discount is
// re-evaluated against the new subtotal.
type UpdateRequest struct {
	EmployeeID    *int64
	CustomerID    *int64
	ClearCustomer bool
	Status        *Status
	Note          *string
	Lines         []catalog.LineRequest
	Discounts     []discount.Request
}

func (r UpdateRequest) reprices() bool {
	return r.Lines != nil || r.Discounts != nil
}

// Service encapsulates the order lifecycle.
type Service struct {
	pricer Pricer
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service.
func NewService(pricer Pricer, orders Repository) *Service {
	return &Service{
		pricer: pricer,
		orders: orders,
		now:    time.Now,
	}
}

// Quote prices in without persisting anything.
func (s *Service) Quote(ctx context.Context, in pricing.Input) (*pricing.Result, error) {
	return s.pricer.Price(ctx, in)
}

// Create prices and persists a new order.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if req.EmployeeID <= 0 {
		return nil, fault.NewInvalidInput(fault.ReasonEmployeeRequired, "", "employee id is required")
	}
	status := req.Status
	if status == "" {
		status = StatusProcessing
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}

	res, err := s.pricer.Price(ctx, pricing.Input{Lines: req.Lines, Discounts: req.Discounts})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &Order{
		ID:         uuid.New().String(),
		EmployeeID: req.EmployeeID,
		CustomerID: req.CustomerID,
		Status:     status,
		Note:       req.Note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	o.setPricing(res)

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.NewNotFound(fault.ReasonOrder, id)
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// List returns a page of orders. Out-of-range limits are clamped.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	if f.Status != "" {
		if _, err := ParseStatus(string(f.Status)); err != nil {
			return nil, err
		}
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Update applies req to the order. Re-pricing always recomputes the whole
// breakdown from the effective line and discount requests; orders that are
// no longer PROCESSING cannot be re-priced.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := false
	if req.reprices() {
		if !o.Editable() {
			return nil, fault.NewUnprocessable(fault.ReasonOrderNotEditable, id,
				"order is "+string(o.Status))
		}

		current := o.Pricing()
		in := pricing.Input{Lines: req.Lines, Discounts: req.Discounts}
		if in.Lines == nil {
			in.Lines = current.LineRequests()
		}
		if in.Discounts == nil {
			in.Discounts = current.DiscountRequests()
		}

		res, err := s.pricer.Price(ctx, in)
		if err != nil {
			return nil, err
		}
		if res.Fingerprint() != o.PricingDigest {
			o.setPricing(res)
			changed = true
		}
	}

	if req.EmployeeID != nil && *req.EmployeeID != o.EmployeeID {
		if *req.EmployeeID <= 0 {
			return nil, fault.NewInvalidInput(fault.ReasonEmployeeRequired, strconv.FormatInt(*req.EmployeeID, 10), "employee id must be positive")
		}
		o.EmployeeID = *req.EmployeeID
		changed = true
	}
	switch {
	case req.ClearCustomer:
		if o.CustomerID != nil {
			o.CustomerID = nil
			changed = true
		}
	case req.CustomerID != nil:
		if o.CustomerID == nil || *o.CustomerID != *req.CustomerID {
			o.CustomerID = req.CustomerID
			changed = true
		}
	}
	if req.Note != nil && *req.Note != o.Note {
		o.Note = *req.Note
		changed = true
	}
	if req.Status != nil && *req.Status != o.Status {
		if _, err := ParseStatus(string(*req.Status)); err != nil {
			return nil, err
		}
		o.Status = *req.Status
		changed = true
	}

	if !changed {
		return o, nil
	}
	o.UpdatedAt = s.now().UTC()
	if err := s.orders.Replace(ctx, o); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.NewNotFound(fault.ReasonOrder, id)
		}
		return nil, errors.Wrap(err, "replace order")
	}
	return o, nil
}

// Delete removes the order and everything attached to it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fault.NewNotFound(fault.ReasonOrder, id)
		}
		return errors.Wrap(err, "delete order")
	}
	return nil
}

package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/fault"
)

// Evaluator resolves discount requests and computes their applied amounts.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// WithClock returns a copy of the Evaluator that reads time from now.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	return &Evaluator{repo: e.repo, now: now}
}

// Evaluate is EvaluateAt with the evaluator's clock.
func (e *Evaluator) Evaluate(ctx context.Context, reqs []Request, subtotal decimal.Decimal) ([]Applied, error) {
	return e.EvaluateAt(ctx, reqs, subtotal, e.now())
}

// EvaluateAt applies every request to subtotal, in input order. Each
// discount is computed against the original subtotal; discounts never
// compound. The first ineligible request fails the whole set.
func (e *Evaluator) EvaluateAt(ctx context.Context, reqs []Request, subtotal decimal.Decimal, now time.Time) ([]Applied, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	for _, req := range reqs {
		if err := req.Validate(); err != nil {
			return nil, err
		}
	}

	out := make([]Applied, 0, len(reqs))
	for _, req := range reqs {
		def, err := e.lookup(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := Check(def, subtotal, now); err != nil {
			return nil, err
		}
		out = append(out, Applied{
			DiscountID: def.ID,
			Name:       def.Name,
			CouponCode: def.CouponCode,
			Percent:    def.Percent,
			Amount:     Apply(def, subtotal),
		})
	}
	return out, nil
}

func (e *Evaluator) lookup(ctx context.Context, req Request) (*Definition, error) {
	var (
		def *Definition
		err error
	)
	if req.DiscountID != 0 {
		def, err = e.repo.GetByID(ctx, req.DiscountID)
	} else {
		def, err = e.repo.GetByCouponCode(ctx, strings.TrimSpace(req.CouponCode))
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.NewNotFound(fault.ReasonDiscount, req.ref())
		}
		return nil, errors.Wrapf(err, "lookup discount %s", req.ref())
	}
	return def, nil
}

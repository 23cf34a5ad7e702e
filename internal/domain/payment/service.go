package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/fault"
	"github.com/xenking/bakery-pos/internal/domain/order"
)

// maxAmountPaid is the first amount that NUMERIC(20, 2) cannot store.
var maxAmountPaid = decimal.New(1, 18)

// Orders looks up the order a payment settles.
type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
}

var _ Orders = (*order.Service)(nil)

// RecordRequest holds the input for recording a payment.
type RecordRequest struct {
	OrderID    string
	Method     Method
	AmountPaid decimal.Decimal
	// PaidAt defaults to the current time.
	PaidAt time.Time
}

// Service records payments.
type Service struct {
	orders   Orders
	payments Repository
	now      func() time.Time
}

// NewService creates a payment Service.
func NewService(orders Orders, payments Repository) *Service {
	return &Service{orders: orders, payments: payments, now: time.Now}
}

// Settle computes change and status for amountPaid against the order's final
// amount. Change is never negative.
func Settle(finalAmount, amountPaid decimal.Decimal) (change decimal.Decimal, status Status) {
	change = decimal.Zero
	if amountPaid.GreaterThan(finalAmount) {
		change = amountPaid.Sub(finalAmount)
	}
	status = StatusProcessing
	if amountPaid.GreaterThanOrEqual(finalAmount) {
		status = StatusPaid
	}
	return change, status
}

// Record validates and stores a payment for an existing order.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*Payment, error) {
	if _, err := ParseMethod(string(req.Method)); err != nil {
		return nil, err
	}
	if req.AmountPaid.IsNegative() {
		return nil, fault.NewInvalidInput(fault.ReasonAmountPaidInvalid, req.AmountPaid.String(), "amount paid must not be negative")
	}
	if !req.AmountPaid.Equal(req.AmountPaid.Truncate(2)) {
		return nil, fault.NewInvalidInput(fault.ReasonAmountPaidInvalid, req.AmountPaid.String(), "amount paid must have at most 2 decimal places")
	}
	if req.AmountPaid.GreaterThanOrEqual(maxAmountPaid) {
		return nil, fault.NewInvalidInput(fault.ReasonAmountPaidInvalid, req.AmountPaid.String(), "amount paid is too large")
	}

	o, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status == order.StatusCancelled {
		return nil, fault.NewUnprocessable(fault.ReasonOrderNotEditable, o.ID, "order is cancelled")
	}

	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	change, status := Settle(o.FinalAmount, req.AmountPaid)

	p := &Payment{
		ID:         uuid.New().String(),
		OrderID:    o.ID,
		Method:     req.Method,
		AmountPaid: req.AmountPaid,
		Change:     change,
		Status:     status,
		PaidAt:     paidAt.UTC(),
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create payment")
	}
	return p, nil
}

// Latest returns the most recent payment of an order, or nil if the order
// has none.
func (s *Service) Latest(ctx context.Context, orderID string) (*Payment, error) {
	p, err := s.payments.Latest(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "latest payment")
	}
	return p, nil
}

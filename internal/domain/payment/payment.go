// Package payment records settlements against priced orders.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/fault"
)

// ErrNotFound is returned by a Repository when an order has no payments.
var ErrNotFound = errors.New("payment not found")

// Method is how the customer paid.
type Method string

const (
	MethodCash    Method = "CASH"
	MethodCard    Method = "CARD"
	MethodEWallet Method = "EWALLET"
)

// ParseMethod validates s.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodCash, MethodCard, MethodEWallet:
		return m, nil
	default:
		return "", fault.NewInvalidInput(fault.ReasonPaymentMethodInvalid, s, "unknown payment method")
	}
}

// Status is the settlement state of a payment.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusPaid       Status = "PAID"
	StatusCancelled  Status = "CANCELLED"
)

// Payment is one settlement attempt for an order.
type Payment struct {
	ID         string
	OrderID    string
	Method     Method
	AmountPaid decimal.Decimal
	Change     decimal.Decimal
	Status     Status
	PaidAt     time.Time
}

// Repository defines persistence operations for payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	// Latest returns the most recent payment of an order or ErrNotFound.
	Latest(ctx context.Context, orderID string) (*Payment, error)
}

// Package fault defines the error kinds shared by the pricing core and the
// order lifecycle. Every domain failure is a *Error that unwraps to exactly
// one kind, so transports can map it with errors.Is.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Error kinds.
var (
	// NotFound reports that a referenced price or discount does not exist.
	NotFound = errors.New("not found")
	// Unprocessable reports that a referenced entity exists but fails a
	// business precondition.
	Unprocessable = errors.New("unprocessable")
	// InvalidInput reports a malformed request shape.
	InvalidInput = errors.New("invalid input")
)

// Reason is a stable machine-readable failure code.
type Reason string

const (
	ReasonPriceReference         Reason = "price_reference"
	ReasonPriceReferenceInactive Reason = "price_reference_inactive"
	ReasonDiscount               Reason = "discount"
	ReasonDiscountInactive       Reason = "discount_inactive"
	ReasonDiscountOutOfWindow    Reason = "discount_out_of_window"
	ReasonDiscountMinimumNotMet  Reason = "discount_minimum_not_met"
	ReasonLinesEmpty             Reason = "lines_empty"
	ReasonQuantityInvalid        Reason = "quantity_invalid"
	ReasonDiscountRequest        Reason = "discount_request_invalid"
	ReasonOrder                  Reason = "order"
	ReasonOrderNotEditable       Reason = "order_not_editable"
	ReasonEmployeeRequired       Reason = "employee_required"
	ReasonAmountPaidInvalid      Reason = "amount_paid_invalid"
	ReasonStatusInvalid          Reason = "status_invalid"
	ReasonPaymentMethodInvalid   Reason = "payment_method_invalid"
	// ReasonRequestInvalid is raised by transports for malformed bodies.
	ReasonRequestInvalid Reason = "request_invalid"
)

// Error is a classified domain failure.
type Error struct {
	Kind   error
	Reason Reason
	// Ref identifies the offending entity (price reference id, discount id or
	// coupon code, order id), when there is one.
	Ref    string
	Detail string
}

func (e *Error) Error() string {
	msg := string(e.Reason)
	if e.Ref != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Ref)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

// NewNotFound returns a NotFound error for ref.
func NewNotFound(reason Reason, ref string) *Error {
	return &Error{Kind: NotFound, Reason: reason, Ref: ref}
}

// NewUnprocessable returns an Unprocessable error for ref.
func NewUnprocessable(reason Reason, ref, detail string) *Error {
	return &Error{Kind: Unprocessable, Reason: reason, Ref: ref, Detail: detail}
}

// NewInvalidInput returns an InvalidInput error.
func NewInvalidInput(reason Reason, ref, detail string) *Error {
	return &Error{Kind: InvalidInput, Reason: reason, Ref: ref, Detail: detail}
}

// ReasonOf extracts the failure reason from err, or "" if err is not a
// classified domain failure.
func ReasonOf(err error) Reason {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}

// Package pricing assembles an order's pricing breakdown from catalog-priced
// lines and applied discounts.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
)

// Result is the pricing breakdown of one order.
//
// Subtotal is the sum of line totals, TotalDiscount is the sum of applied
// amounts, and FinalAmount is Subtotal - TotalDiscount floored at zero.
type Result struct {
	Lines         []catalog.PricedLine
	Subtotal      decimal.Decimal
	Discounts     []discount.Applied
	TotalDiscount decimal.Decimal
	FinalAmount   decimal.Decimal
}

// Subtotal returns the sum of line totals.
func Subtotal(lines []catalog.PricedLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Total)
	}
	return sum
}

// Assemble reduces priced lines and applied discounts to a Result. Stacked
// discounts that exceed the subtotal clamp the final amount to zero.
func Assemble(lines []catalog.PricedLine, discounts []discount.Applied) Result {
	subtotal := Subtotal(lines)

	totalDiscount := decimal.Zero
	for _, d := range discounts {
		totalDiscount = totalDiscount.Add(d.Amount)
	}

	final := subtotal.Sub(totalDiscount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return Result{
		Lines:         lines,
		Subtotal:      subtotal,
		Discounts:     discounts,
		TotalDiscount: totalDiscount,
		FinalAmount:   final,
	}
}

// LineRequests returns the line requests that reproduce r.
func (r Result) LineRequests() []catalog.LineRequest {
	out := make([]catalog.LineRequest, len(r.Lines))
	for i, line := range r.Lines {
		out[i] = line.Request()
	}
	return out
}

// DiscountRequests returns the discount requests that reproduce r.
func (r Result) DiscountRequests() []discount.Request {
	out := make([]discount.Request, len(r.Discounts))
	for i, d := range r.Discounts {
		out[i] = d.Request()
	}
	return out
}

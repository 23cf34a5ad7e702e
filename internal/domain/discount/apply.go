package discount

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/fault"
)

var hundred = decimal.NewFromInt(100)

// Apply computes the capped discount amount of def against subtotal:
// min(subtotal * percent / 100, max discount), rounded to cents.
// Eligibility is not checked; see Check.
func Apply(def *Definition, subtotal decimal.Decimal) decimal.Decimal {
	raw := subtotal.Mul(def.Percent).Div(hundred)
	amount := decimal.Min(raw, def.MaxDiscount)
	return floorAtZero(amount).Round(2)
}

// Check reports why def cannot be applied to subtotal at now, or nil.
func Check(def *Definition, subtotal decimal.Decimal, now time.Time) error {
	ref := Request{DiscountID: def.ID}.ref()
	if !def.Active {
		return fault.NewUnprocessable(fault.ReasonDiscountInactive, ref, "")
	}
	if def.ValidFrom != nil && now.Before(*def.ValidFrom) {
		return fault.NewUnprocessable(fault.ReasonDiscountOutOfWindow, ref, "not yet valid")
	}
	if now.After(def.ValidUntil) {
		return fault.NewUnprocessable(fault.ReasonDiscountOutOfWindow, ref, "expired")
	}
	if subtotal.LessThan(def.MinOrderValue) {
		return fault.NewUnprocessable(fault.ReasonDiscountMinimumNotMet, ref,
			"subtotal "+subtotal.StringFixed(2)+" below minimum "+def.MinOrderValue.StringFixed(2))
	}
	return nil
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

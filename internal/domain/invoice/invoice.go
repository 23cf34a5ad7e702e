// Package invoice builds receipt data from a persisted order breakdown.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/order"
	"github.com/xenking/bakery-pos/internal/domain/payment"
)

// Line is one receipt line.
type Line struct {
	Description string
	Option      string
	Note        string
	Quantity    int
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// Discount is one receipt discount entry.
type Discount struct {
	Name       string
	CouponCode string
	Percent    decimal.Decimal
	Amount     decimal.Decimal
}

// Settlement summarizes the latest payment.
type Settlement struct {
	Method     payment.Method
	Status     payment.Status
	AmountPaid decimal.Decimal
	Change     decimal.Decimal
	PaidAt     time.Time
}

// Invoice is the data a receipt is rendered from.
type Invoice struct {
	OrderID       string
	Status        order.Status
	Note          string
	IssuedAt      time.Time
	Lines         []Line
	Discounts     []Discount
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	FinalAmount   decimal.Decimal
	// Settlement is nil when nothing has been paid yet.
	Settlement *Settlement
	// Due is what remains to be paid.
	Due decimal.Decimal
}

// Build copies the stored breakdown of o into an Invoice. Amounts are taken
// as persisted; nothing is re-priced.
func Build(o *order.Order, latest *payment.Payment) Invoice {
	inv := Invoice{
		OrderID:       o.ID,
		Status:        o.Status,
		Note:          o.Note,
		IssuedAt:      o.UpdatedAt,
		Lines:         make([]Line, len(o.Lines)),
		Discounts:     make([]Discount, len(o.Discounts)),
		Subtotal:      o.Subtotal,
		TotalDiscount: o.TotalDiscount,
		FinalAmount:   o.FinalAmount,
		Due:           o.FinalAmount,
	}
	for i, l := range o.Lines {
		desc := l.ProductName
		if l.SizeName != "" {
			desc += " (" + l.SizeName + ")"
		}
		inv.Lines[i] = Line{
			Description: desc,
			Option:      l.Option,
			Note:        l.Note,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Total:       l.Total,
		}
	}
	for i, d := range o.Discounts {
		inv.Discounts[i] = Discount{
			Name:       d.Name,
			CouponCode: d.CouponCode,
			Percent:    d.Percent,
			Amount:     d.Amount,
		}
	}

	if latest != nil {
		inv.Settlement = &Settlement{
			Method:     latest.Method,
			Status:     latest.Status,
			AmountPaid: latest.AmountPaid,
			Change:     latest.Change,
			PaidAt:     latest.PaidAt,
		}
		inv.Due = o.FinalAmount.Sub(latest.AmountPaid)
		if inv.Due.IsNegative() {
			inv.Due = decimal.Zero
		}
		if latest.PaidAt.After(inv.IssuedAt) {
			inv.IssuedAt = latest.PaidAt
		}
	}
	return inv
}

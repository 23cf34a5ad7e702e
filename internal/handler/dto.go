package handler

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
	"github.com/xenking/bakery-pos/internal/domain/invoice"
	"github.com/xenking/bakery-pos/internal/domain/order"
	"github.com/xenking/bakery-pos/internal/domain/payment"
	"github.com/xenking/bakery-pos/internal/domain/pricing"
)

// Request bodies. Quantity and discount reference rules are enforced by the
// domain so their failure reasons stay stable; tags only bound free text.

type lineDTO struct {
	PriceID  int64  `json:"price_id"`
	Quantity int    `json:"quantity"`
	Option   string `json:"option" validate:"max=64"`
	Note     string `json:"note" validate:"max=255"`
}

type discountDTO struct {
	DiscountID int64  `json:"discount_id" validate:"gte=0"`
	CouponCode string `json:"coupon_code" validate:"max=32"`
}

type quoteRequest struct {
	Lines     []lineDTO     `json:"lines" validate:"dive"`
	Discounts []discountDTO `json:"discounts" validate:"dive"`
}

type createOrderRequest struct {
	EmployeeID int64         `json:"employee_id"`
	CustomerID *int64        `json:"customer_id" validate:"omitempty,gt=0"`
	Status     string        `json:"status"`
	Note       string        `json:"note" validate:"max=500"`
	Lines      []lineDTO     `json:"lines" validate:"dive"`
	Discounts  []discountDTO `json:"discounts" validate:"dive"`
}

type updateOrderRequest struct {
	EmployeeID    *int64        `json:"employee_id"`
	CustomerID    *int64        `json:"customer_id" validate:"omitempty,gt=0"`
	ClearCustomer bool          `json:"-"`
	Status        *string       `json:"status"`
	Note          *string       `json:"note" validate:"omitempty,max=500"`
	Lines         []lineDTO     `json:"lines" validate:"dive"`
	Discounts     []discountDTO `json:"discounts" validate:"dive"`
}

type paymentRequest struct {
	Method     string          `json:"method" validate:"required"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	PaidAt     time.Time       `json:"paid_at"`
}

type listQuery struct {
	Status string `json:"status"`
	Limit  int    `json:"limit" validate:"gte=0"`
	Offset int    `json:"offset" validate:"gte=0"`
}

func decodeNullableStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = string(n)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse amount %q", raw)
	}
	return v, nil
}

func decodeLines(d *jx.Decoder) ([]lineDTO, error) {
	lines := make([]lineDTO, 0)
	err := d.Arr(func(d *jx.Decoder) error {
		var l lineDTO
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "price_id":
				l.PriceID, err = d.Int64()
			case "quantity":
				l.Quantity, err = d.Int()
			case "option":
				l.Option, err = decodeNullableStr(d)
			case "note":
				l.Note, err = decodeNullableStr(d)
			default:
				err = d.Skip()
			}
			return err
		})
		lines = append(lines, l)
		return err
	})
	return lines, err
}

func decodeDiscounts(d *jx.Decoder) ([]discountDTO, error) {
	discounts := make([]discountDTO, 0)
	err := d.Arr(func(d *jx.Decoder) error {
		var r discountDTO
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "discount_id":
				r.DiscountID, err = d.Int64()
			case "coupon_code":
				r.CouponCode, err = decodeNullableStr(d)
			default:
				err = d.Skip()
			}
			return err
		})
		discounts = append(discounts, r)
		return err
	})
	return discounts, err
}

func (q *quoteRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "lines":
			q.Lines, err = decodeLines(d)
		case "discounts":
			q.Discounts, err = decodeDiscounts(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

func (q *createOrderRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "employee_id":
			q.EmployeeID, err = d.Int64()
		case "customer_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var id int64
			id, err = d.Int64()
			q.CustomerID = &id
		case "status":
			q.Status, err = decodeNullableStr(d)
		case "note":
			q.Note, err = decodeNullableStr(d)
		case "lines":
			q.Lines, err = decodeLines(d)
		case "discounts":
			q.Discounts, err = decodeDiscounts(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// Decode distinguishes absent fields from explicit ones: an explicit null
// customer_id clears the customer, an explicit empty discounts array removes
// every discount.
func (q *updateOrderRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "employee_id":
			var id int64
			id, err = d.Int64()
			q.EmployeeID = &id
		case "customer_id":
			if d.Next() == jx.Null {
				q.ClearCustomer = true
				return d.Null()
			}
			var id int64
			id, err = d.Int64()
			q.CustomerID = &id
		case "status":
			var s string
			s, err = d.Str()
			q.Status = &s
		case "note":
			var s string
			s, err = decodeNullableStr(d)
			q.Note = &s
		case "lines":
			q.Lines, err = decodeLines(d)
		case "discounts":
			q.Discounts, err = decodeDiscounts(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

func (q *paymentRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "method":
			q.Method, err = d.Str()
		case "amount_paid":
			q.AmountPaid, err = decodeDecimal(d)
		case "paid_at":
			var s string
			if s, err = decodeNullableStr(d); err != nil || s == "" {
				return err
			}
			q.PaidAt, err = time.Parse(time.RFC3339, s)
		default:
			err = d.Skip()
		}
		return err
	})
}

func toLineRequests(in []lineDTO) []catalog.LineRequest {
	if in == nil {
		return nil
	}
	out := make([]catalog.LineRequest, len(in))
	for i, l := range in {
		out[i] = catalog.LineRequest{
			PriceID:  l.PriceID,
			Quantity: l.Quantity,
			Option:   l.Option,
			Note:     l.Note,
		}
	}
	return out
}

func toDiscountRequests(in []discountDTO) []discount.Request {
	if in == nil {
		return nil
	}
	out := make([]discount.Request, len(in))
	for i, r := range in {
		out[i] = discount.Request{DiscountID: r.DiscountID, CouponCode: r.CouponCode}
	}
	return out
}

// Response encoding. Amounts are JSON numbers with two decimals.

func encodeAmount(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodePercent(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(1)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func amountField(e *jx.Encoder, name string, d decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { encodeAmount(e, d) })
}

func strField(e *jx.Encoder, name, v string) {
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}

// encodeBreakdown writes the pricing fields shared by quotes and orders
// into the currently open object.
func encodeBreakdown(e *jx.Encoder, r pricing.Result) {
	e.Field("lines", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, l := range r.Lines {
				e.Obj(func(e *jx.Encoder) {
					e.Field("price_id", func(e *jx.Encoder) { e.Int64(l.PriceID) })
					strField(e, "product_name", l.ProductName)
					strField(e, "size_name", l.SizeName)
					amountField(e, "unit_price", l.UnitPrice)
					e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
					amountField(e, "total", l.Total)
					strField(e, "option", l.Option)
					strField(e, "note", l.Note)
				})
			}
		})
	})
	amountField(e, "subtotal", r.Subtotal)
	e.Field("discounts", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, a := range r.Discounts {
				e.Obj(func(e *jx.Encoder) {
					e.Field("discount_id", func(e *jx.Encoder) { e.Int64(a.DiscountID) })
					strField(e, "name", a.Name)
					strField(e, "coupon_code", a.CouponCode)
					e.Field("percent", func(e *jx.Encoder) { encodePercent(e, a.Percent) })
					amountField(e, "amount", a.Amount)
				})
			}
		})
	})
	amountField(e, "total_discount", r.TotalDiscount)
	amountField(e, "final_amount", r.FinalAmount)
}

func encodeQuote(e *jx.Encoder, r *pricing.Result) {
	e.Obj(func(e *jx.Encoder) {
		encodeBreakdown(e, *r)
		strField(e, "fingerprint", r.Fingerprint())
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "id", o.ID)
		e.Field("employee_id", func(e *jx.Encoder) { e.Int64(o.EmployeeID) })
		e.Field("customer_id", func(e *jx.Encoder) {
			if o.CustomerID == nil {
				e.Null()
				return
			}
			e.Int64(*o.CustomerID)
		})
		strField(e, "status", string(o.Status))
		strField(e, "note", o.Note)
		encodeBreakdown(e, o.Pricing())
		strField(e, "pricing_digest", o.PricingDigest)
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
	})
}

func encodePayment(e *jx.Encoder, p *payment.Payment) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "id", p.ID)
		strField(e, "order_id", p.OrderID)
		strField(e, "method", string(p.Method))
		amountField(e, "amount_paid", p.AmountPaid)
		amountField(e, "change", p.Change)
		strField(e, "status", string(p.Status))
		e.Field("paid_at", func(e *jx.Encoder) { encodeTime(e, p.PaidAt) })
	})
}

func encodeInvoice(e *jx.Encoder, inv invoice.Invoice) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "order_id", inv.OrderID)
		strField(e, "status", string(inv.Status))
		strField(e, "note", inv.Note)
		e.Field("issued_at", func(e *jx.Encoder) { encodeTime(e, inv.IssuedAt) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range inv.Lines {
					e.Obj(func(e *jx.Encoder) {
						strField(e, "description", l.Description)
						strField(e, "option", l.Option)
						strField(e, "note", l.Note)
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						amountField(e, "unit_price", l.UnitPrice)
						amountField(e, "total", l.Total)
					})
				}
			})
		})
		e.Field("discounts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, d := range inv.Discounts {
					e.Obj(func(e *jx.Encoder) {
						strField(e, "name", d.Name)
						strField(e, "coupon_code", d.CouponCode)
						e.Field("percent", func(e *jx.Encoder) { encodePercent(e, d.Percent) })
						amountField(e, "amount", d.Amount)
					})
				}
			})
		})
		amountField(e, "subtotal", inv.Subtotal)
		amountField(e, "total_discount", inv.TotalDiscount)
		amountField(e, "final_amount", inv.FinalAmount)
		e.Field("settlement", func(e *jx.Encoder) {
			s := inv.Settlement
			if s == nil {
				e.Null()
				return
			}
			e.Obj(func(e *jx.Encoder) {
				strField(e, "method", string(s.Method))
				strField(e, "status", string(s.Status))
				amountField(e, "amount_paid", s.AmountPaid)
				amountField(e, "change", s.Change)
				e.Field("paid_at", func(e *jx.Encoder) { encodeTime(e, s.PaidAt) })
			})
		})
		amountField(e, "due", inv.Due)
	})
}

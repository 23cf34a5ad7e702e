package pricing

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Fingerprint returns a hex SHA-256 digest of the canonical encoding of r.
// Equal breakdowns produce equal fingerprints regardless of the decimal
// exponent the amounts were read with. Display names are part of the
// encoding, so a renamed product or discount changes the fingerprint.
func (r Result) Fingerprint() string {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	r.encodeCanonical(e)
	sum := sha256.Sum256(e.Bytes())
	return hex.EncodeToString(sum[:])
}

func (r Result) encodeCanonical(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("lines")
	e.ArrStart()
	for _, line := range r.Lines {
		e.ObjStart()
		e.FieldStart("price_id")
		e.Int64(line.PriceID)
		e.FieldStart("product_name")
		e.Str(line.ProductName)
		e.FieldStart("size_name")
		e.Str(line.SizeName)
		e.FieldStart("unit_price")
		e.Str(canonical(line.UnitPrice))
		e.FieldStart("quantity")
		e.Int(line.Quantity)
		e.FieldStart("total")
		e.Str(canonical(line.Total))
		e.FieldStart("option")
		e.Str(line.Option)
		e.FieldStart("note")
		e.Str(line.Note)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	e.Str(canonical(r.Subtotal))

	e.FieldStart("discounts")
	e.ArrStart()
	for _, d := range r.Discounts {
		e.ObjStart()
		e.FieldStart("discount_id")
		e.Int64(d.DiscountID)
		e.FieldStart("name")
		e.Str(d.Name)
		e.FieldStart("coupon_code")
		e.Str(d.CouponCode)
		e.FieldStart("percent")
		e.Str(d.Percent.StringFixed(1))
		e.FieldStart("amount")
		e.Str(canonical(d.Amount))
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("total_discount")
	e.Str(canonical(r.TotalDiscount))
	e.FieldStart("final_amount")
	e.Str(canonical(r.FinalAmount))
	e.ObjEnd()
}

func canonical(d decimal.Decimal) string {
	return d.StringFixed(2)
}

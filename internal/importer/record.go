// Package importer loads discount definitions from gzip-compressed
// JSON-lines exports into the discount store.
//
// Each line of an export is one definition:
//
//	{"name":"Morning","coupon_code":"MORNING10","percent":"10","min_order_value":"0",
//	 "max_discount":"20000","active":true,"valid_from":null,"valid_until":"2026-12-31T23:59:59Z"}
//
// Amounts and the percent may be JSON numbers or strings. Coupon codes are
// unique across the whole import: a code that appears more than once, in
// one file or in several, is rejected everywhere it appears.
package importer

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/discount"
)

const (
	maxCodeLen = 32
	maxNameLen = 255
)

// Record is one parsed definition with its position in the source file.
type Record struct {
	File string
	Line int
	Def  discount.Definition
}

// Reason classifies a rejected line.
type Reason string

const (
	ReasonMalformed Reason = "malformed"
	ReasonInvalid   Reason = "invalid"
	ReasonDuplicate Reason = "duplicate_code"
	ReasonExists    Reason = "exists"
)

// Rejection is a line that will not be imported.
type Rejection struct {
	File   string
	Line   int
	Code   string
	Reason Reason
	Detail string
}

// LineError reports why a line could not be parsed.
type LineError struct {
	Reason Reason
	Err    error
}

func (e *LineError) Error() string { return string(e.Reason) + ": " + e.Err.Error() }

func (e *LineError) Unwrap() error { return e.Err }

// ParseLine decodes and validates one export line. The coupon code of the
// result is normalized. Errors are *LineError.
func ParseLine(data []byte) (discount.Definition, error) {
	def := discount.Definition{Active: true}
	var hasUntil bool

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			def.Name, err = d.Str()
		case "coupon_code":
			def.CouponCode, err = d.Str()
		case "percent":
			def.Percent, err = decodeDecimal(d)
		case "min_order_value":
			def.MinOrderValue, err = decodeDecimal(d)
		case "max_discount":
			def.MaxDiscount, err = decodeDecimal(d)
		case "active":
			def.Active, err = d.Bool()
		case "valid_from":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var t time.Time
			if t, err = decodeTime(d); err == nil {
				def.ValidFrom = &t
			}
		case "valid_until":
			def.ValidUntil, err = decodeTime(d)
			hasUntil = err == nil
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return discount.Definition{}, &LineError{Reason: ReasonMalformed, Err: err}
	}
	if !hasUntil {
		return discount.Definition{}, &LineError{Reason: ReasonInvalid, Err: errors.New("valid_until is required")}
	}
	def.CouponCode = discount.NormalizeCode(def.CouponCode)
	if err := Validate(&def); err != nil {
		return discount.Definition{}, &LineError{Reason: ReasonInvalid, Err: err}
	}
	return def, nil
}

// Validate checks the invariants every stored coupon definition holds.
func Validate(def *discount.Definition) error {
	switch {
	case def.Name == "":
		return errors.New("name is required")
	case len(def.Name) > maxNameLen:
		return errors.Errorf("name longer than %d bytes", maxNameLen)
	case def.CouponCode == "":
		return errors.New("coupon_code is required")
	case len(def.CouponCode) > maxCodeLen:
		return errors.Errorf("coupon_code longer than %d bytes", maxCodeLen)
	case !validCode(def.CouponCode):
		return errors.Errorf("coupon_code %q has characters outside A-Z, 0-9, '-' and '_'", def.CouponCode)
	case !def.Percent.IsPositive() || def.Percent.GreaterThan(decimal.NewFromInt(100)):
		return errors.Errorf("percent %s outside (0, 100]", def.Percent)
	case !def.Percent.Equal(def.Percent.Round(1)):
		return errors.Errorf("percent %s has more than one decimal place", def.Percent)
	case def.MinOrderValue.IsNegative():
		return errors.New("min_order_value is negative")
	case !def.MaxDiscount.IsPositive():
		return errors.New("max_discount must be positive")
	case def.ValidFrom != nil && def.ValidFrom.After(def.ValidUntil):
		return errors.New("valid_from is after valid_until")
	}
	return nil
}

func validCode(code string) bool {
	for _, c := range []byte(code) {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(string(n))
	default:
		return decimal.Decimal{}, errors.New("expected number or string")
	}
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, s)
}

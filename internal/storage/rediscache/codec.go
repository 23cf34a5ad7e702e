package rediscache

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
)

func encodePrice(p catalog.Price) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("product_name")
	e.Str(p.ProductName)
	e.FieldStart("size_name")
	e.Str(p.SizeName)
	e.FieldStart("unit_price")
	e.Str(p.UnitPrice.String())
	e.FieldStart("active")
	e.Bool(p.Active)
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}

func decodePrice(data []byte) (catalog.Price, error) {
	var p catalog.Price
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Int64()
		case "product_name":
			p.ProductName, err = d.Str()
		case "size_name":
			p.SizeName, err = d.Str()
		case "unit_price":
			p.UnitPrice, err = decodeDecimal(d)
		case "active":
			p.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return catalog.Price{}, errors.Wrap(err, "decode price")
	}
	return p, nil
}

func encodeDefinition(def *discount.Definition) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("id")
	e.Int64(def.ID)
	e.FieldStart("name")
	e.Str(def.Name)
	e.FieldStart("coupon_code")
	e.Str(def.CouponCode)
	e.FieldStart("percent")
	e.Str(def.Percent.String())
	e.FieldStart("min_order_value")
	e.Str(def.MinOrderValue.String())
	e.FieldStart("max_discount")
	e.Str(def.MaxDiscount.String())
	e.FieldStart("active")
	e.Bool(def.Active)
	if def.ValidFrom != nil {
		e.FieldStart("valid_from")
		e.Str(def.ValidFrom.UTC().Format(time.RFC3339Nano))
	}
	e.FieldStart("valid_until")
	e.Str(def.ValidUntil.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}

func decodeDefinition(data []byte) (*discount.Definition, error) {
	var def discount.Definition
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			def.ID, err = d.Int64()
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
			var t time.Time
			t, err = decodeTime(d)
			def.ValidFrom = &t
		case "valid_until":
			def.ValidUntil, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode discount")
	}
	return &def, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(s)
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

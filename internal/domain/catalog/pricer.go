package catalog

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/fault"
)

// LineRequest is a requested line item.
type LineRequest struct {
	PriceID  int64
	Quantity int
	// Option is a free-form variant choice (e.g. "less sugar").
	Option string
	// Note is a customization note for the line.
	Note string
}

// PricedLine is a line item priced against the catalog.
type PricedLine struct {
	PriceID     int64
	ProductName string
	SizeName    string
	UnitPrice   decimal.Decimal
	Quantity    int
	Total       decimal.Decimal
	Option      string
	Note        string
}

// Request reconstructs the line request that produced the priced line.
func (l PricedLine) Request() LineRequest {
	return LineRequest{
		PriceID:  l.PriceID,
		Quantity: l.Quantity,
		Option:   l.Option,
		Note:     l.Note,
	}
}

// Pricer resolves line requests to authoritative unit prices.
type Pricer struct {
	prices Repository
}

// NewPricer creates a Pricer backed by the given Repository.
func NewPricer(prices Repository) *Pricer {
	return &Pricer{prices: prices}
}

// Price validates the request shape, fetches all referenced prices in a
// single batch, and prices every line in input order. The first offending
// line (in input order) fails the whole batch.
func (p *Pricer) Price(ctx context.Context, lines []LineRequest) ([]PricedLine, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}

	ids := distinctIDs(lines)
	fetched, err := p.prices.GetPrices(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get prices")
	}

	byID := make(map[int64]Price, len(fetched))
	for _, price := range fetched {
		byID[price.ID] = price
	}

	out := make([]PricedLine, len(lines))
	for i, line := range lines {
		ref := strconv.FormatInt(line.PriceID, 10)
		price, ok := byID[line.PriceID]
		if !ok {
			return nil, fault.NewNotFound(fault.ReasonPriceReference, ref)
		}
		if !price.Active {
			return nil, fault.NewUnprocessable(fault.ReasonPriceReferenceInactive, ref, "")
		}

		out[i] = PricedLine{
			PriceID:     price.ID,
			ProductName: price.ProductName,
			SizeName:    price.SizeName,
			UnitPrice:   price.UnitPrice,
			Quantity:    line.Quantity,
			Total:       price.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
			Option:      line.Option,
			Note:        line.Note,
		}
	}
	return out, nil
}

// Request bounds. With unit prices below 10^10 they keep every stored amount
// within NUMERIC(20, 2).
const (
	MaxLines    = 200
	MaxQuantity = 10000
)

// ValidateLines checks the request shape without touching the catalog.
func ValidateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return fault.NewInvalidInput(fault.ReasonLinesEmpty, "", "order must contain at least one line")
	}
	if len(lines) > MaxLines {
		return fault.NewInvalidInput(fault.ReasonRequestInvalid, "",
			"order must contain at most "+strconv.Itoa(MaxLines)+" lines")
	}
	for i, line := range lines {
		if line.Quantity < 1 || line.Quantity > MaxQuantity {
			return fault.NewInvalidInput(fault.ReasonQuantityInvalid,
				strconv.FormatInt(line.PriceID, 10),
				"line "+strconv.Itoa(i)+": quantity must be between 1 and "+strconv.Itoa(MaxQuantity))
		}
	}
	return nil
}

func distinctIDs(lines []LineRequest) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.PriceID]; ok {
			continue
		}
		seen[line.PriceID] = struct{}{}
		ids = append(ids, line.PriceID)
	}
	return ids
}

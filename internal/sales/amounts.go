package sales

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxRates maps a tax ID to its percentage. Prices are tax-excluded.
type TaxRates map[uuid.UUID]decimal.Decimal

// Amounts are totals rounded to cents.
type Amounts struct {
	Untaxed decimal.Decimal
	Tax     decimal.Decimal
	Total   decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func (a *Amounts) add(qty, price decimal.Decimal, taxIDs []uuid.UUID, rates TaxRates) {
	subtotal := qty.Mul(price).Round(2)
	a.Untaxed = a.Untaxed.Add(subtotal)
	for _, id := range taxIDs {
		rate, ok := rates[id]
		if !ok {
			continue
		}
		a.Tax = a.Tax.Add(subtotal.Mul(rate).Div(hundred).Round(2))
	}
	a.Total = a.Untaxed.Add(a.Tax)
}

// OrderAmounts totals the real order lines.
func OrderAmounts(o *Order, rates TaxRates) Amounts {
	var a Amounts
	for _, l := range o.lines {
		if l.IsDisplay() {
			continue
		}
		a.add(l.Quantity, l.PriceUnit, l.TaxIDs, rates)
	}
	return a
}

// VirtualAmounts totals the virtual line set.
func VirtualAmounts(o *Order, rates TaxRates) Amounts {
	var a Amounts
	for _, vl := range o.VirtualLines {
		a.add(vl.Quantity, vl.PriceUnit, vl.TaxIDs, rates)
	}
	return a
}

// InvoiceAmounts totals projected invoice lines.
func InvoiceAmounts(lines []InvoiceLineValues, rates TaxRates) Amounts {
	var a Amounts
	for _, l := range lines {
		a.add(l.Quantity, l.PriceUnit, l.TaxIDs, rates)
	}
	return a
}

// TaxIDs collects the distinct taxes used by the order's real and virtual lines.
func TaxIDs(o *Order) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	collect := func(ids []uuid.UUID) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	for _, l := range o.lines {
		collect(l.TaxIDs)
	}
	for _, vl := range o.VirtualLines {
		collect(vl.TaxIDs)
	}
	return out
}

// Package money holds the pure monetary arithmetic used across the
// order and cash subsystems. All amounts are 2-decimal currency values.
package money

import "github.com/shopspring/decimal"

// Round2 rounds half-up to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotals computes subtotal, tax and total for a line item.
//
// Each step rounds independently (subtotal first, then the tax on the
// rounded subtotal). Rounding only the final total can differ by a cent
// from this; stored history assumes the stepwise policy, so keep it.
func LineTotals(quantity, unitPrice, taxRate decimal.Decimal) (subtotal, tax, total decimal.Decimal) {
	subtotal = Round2(quantity.Mul(unitPrice))
	tax = Round2(subtotal.Mul(taxRate).Div(decimal.NewFromInt(100)))
	total = subtotal.Add(tax)
	return subtotal, tax, total
}

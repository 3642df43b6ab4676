package risk

import "github.com/shopspring/decimal"

// Units converts a quote-currency notional into base units at price.
func Units(notional, price float64) decimal.Decimal {
	p := decimal.NewFromFloat(price)
	if p.Sign() <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(notional).DivRound(p, 12)
}

// RealizedPnL is notional * (exit-entry) / entry, computed exactly.
func RealizedPnL(notional, entry, exit float64) decimal.Decimal {
	e := decimal.NewFromFloat(entry)
	if e.Sign() <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromFloat(notional)
	return n.Mul(decimal.NewFromFloat(exit).Sub(e)).Div(e)
}

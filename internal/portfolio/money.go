package portfolio

import "github.com/shopspring/decimal"

// roundCents rounds half away from zero to two decimal places.
func roundCents(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// fraction returns round(amount * frac, 2).
func fraction(amount, frac float64) float64 {
	return roundCents(decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(frac)))
}

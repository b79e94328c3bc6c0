package util

import "github.com/shopspring/decimal"

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundMoney rounds a dollar amount to cents.
func RoundMoney(v float64) float64 {
	return Round(v, 2)
}

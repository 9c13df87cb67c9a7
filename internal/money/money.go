// Package money pins every amount in the system to one fixed decimal scale.
package money

import "github.com/shopspring/decimal"

// Scale is the number of decimal places every stored amount is rounded to.
const Scale = 2

// Norm rounds d to Scale, half away from zero. Every value that enters a
// balance, an order, or a comparison goes through here first.
func Norm(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Value returns amount × price at the fixed scale.
func Value(amount, price decimal.Decimal) decimal.Decimal {
	return Norm(amount.Mul(price))
}

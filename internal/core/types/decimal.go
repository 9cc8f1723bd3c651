// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity represents a stock quantity (servings, containers, cases)
// with full precision. Ledger math must stay exact: partial counts are
// divided by conversion factors, so a decimal type is required, not a
// fixed-point integer.
type Quantity = decimal.Decimal

// MoneyScale is the number of fractional digits persisted for money.
// Matches NUMERIC(18,4) columns.
const MoneyScale int32 = 4

// QuantityScale is the number of fractional digits persisted for
// quantities. Matches NUMERIC(20,6) columns.
const QuantityScale int32 = 6

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewQuantityFromString creates a Quantity from a string.
func NewQuantityFromString(s string) (Quantity, error) {
	return decimal.NewFromString(s)
}

// MustQuantity creates a Quantity from a string, panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// QuantityFromInt creates a Quantity from whole units.
func QuantityFromInt(n int64) Quantity {
	return decimal.NewFromInt(n)
}

// Zero returns a zero decimal value.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// RoundMoney rounds to the persisted money scale.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// RoundQuantity rounds to the persisted quantity scale.
func RoundQuantity(q Quantity) Quantity {
	return q.Round(QuantityScale)
}

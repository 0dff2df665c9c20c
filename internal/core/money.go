// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and decimals and converting between cents and decimal representations.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// maxSafeCents keeps cents*100 style arithmetic away from int64 overflow.
const maxSafeCents = (1<<63 - 1) / 100

// ParseAmount converts a decimal string to Money with half-up rounding on
// the third decimal place.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents, zero and negative values are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,34")  -> 1234 cents
//	ParseAmount("12.345") -> 1235 cents (rounds half up)
//	ParseAmount("12.344") -> 1234 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	// Only plain positive decimals are allowed
	if strings.ContainsAny(s, "+-eE") || strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts a decimal amount to cents, rounding half away
// from zero. The result must be strictly positive.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Mul(hundred).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(decimal.NewFromInt(maxSafeCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount in major units as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with two fraction digits, e.g. "12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// MarshalJSON encodes the amount as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return ErrInvalidAmount
	}
	parsed, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Package core provides money parsing and handling utilities.
//
// Amounts coming from the API are decimal strings ("-12.3400") paired with
// a lowercase ISO currency code. They are kept as exact decimals and only
// rounded to the currency's minor unit when rendered.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount in a given currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney builds a Money from an amount and a currency code in any case.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(strings.TrimSpace(currency))}
}

// ParseAmount converts a user supplied decimal string to an exact decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional sign. Thousands separators are not accepted.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("-5")     -> -5, nil
//	ParseAmount("1.2.3")  -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// String renders the amount with the currency symbol, rounded to the
// currency's minor unit. Unknown currencies fall back to "<amount> <CODE>".
func (m Money) String() string {
	code := strings.ToUpper(m.Currency)
	cur := money.GetCurrency(code)
	if cur == nil {
		if code == "" {
			return m.Amount.StringFixed(2)
		}
		return m.Amount.StringFixed(2) + " " + code
	}
	minor := m.Amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

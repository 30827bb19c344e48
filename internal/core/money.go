// Package core provides money parsing and handling utilities.
//
// This file contains the Amount type used for every expense value, its
// lenient JSON decoding and the strict parser used for user input.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("must be a positive number")

// Amount is a non-negative decimal money value.
type Amount struct {
	decimal.Decimal
}

// NewAmount builds an Amount from a float, mostly useful in tests.
func NewAmount(f float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(f)}
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{Decimal: a.Decimal.Add(b.Decimal)}
}

// ParseAmount converts user input to an Amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Signs, thousands separators, zero and non-numeric input are rejected.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("0")     -> error
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Amount{}, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Amount{}, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return Amount{}, ErrInvalidAmount
			}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{Decimal: d}, nil
}

// Format renders the amount with two decimals behind symbol, e.g. "₦1234.50".
func (a Amount) Format(symbol string) string {
	s := a.StringFixed(2)
	if strings.HasPrefix(s, "-") {
		return "-" + symbol + strings.TrimPrefix(s, "-")
	}
	return symbol + s
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.InexactFloat64())
}

// UnmarshalJSON accepts numbers and numeric strings. Missing, null or
// non-numeric values decode to zero rather than failing.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*a = Amount{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	a.Decimal = d
	return nil
}

// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing amounts typed by users and
// amounts returned by the spreadsheet endpoints.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxExpenseAmount is the largest amount accepted for a single expense.
var MaxExpenseAmount = decimal.NewFromInt(1_000_000)

// ParseAmount parses a user-entered amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Returns ErrInvalidAmount for anything that is not a
// plain decimal number.
//
// Examples:
//
//	ParseAmount("25.50") -> 25.5, nil
//	ParseAmount("25,50") -> 25.5, nil
//	ParseAmount("-5")    -> -5, nil
//	ParseAmount("abc")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
		case (r == '+' || r == '-') && i == 0:
		default:
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// LooseAmount converts a loosely typed amount coming from a data source into
// a decimal. Missing, empty or non-numeric values count as zero.
func LooseAmount(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case float64:
		return decimal.NewFromFloat(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case interface{ String() string }:
		return looseString(val.String())
	case string:
		return looseString(val)
	default:
		return decimal.Zero
	}
}

func looseString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

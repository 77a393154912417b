// Package format renders money and dates for display.
package format

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"kobitar/internal/core"
)

const (
	DefaultLocale = "en-US"
	DefaultSymbol = "৳"
)

// Formatter renders amounts with locale digit grouping and a currency glyph.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// New builds a Formatter. An empty locale or symbol falls back to the
// defaults; an unparseable locale is an error.
func New(locale, symbol string) (*Formatter, error) {
	if strings.TrimSpace(locale) == "" {
		locale = DefaultLocale
	}
	if symbol == "" {
		symbol = DefaultSymbol
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return &Formatter{printer: message.NewPrinter(tag), symbol: symbol}, nil
}

// Default returns the en-US formatter with the taka sign.
func Default() *Formatter {
	f, _ := New(DefaultLocale, DefaultSymbol)
	return f
}

// Number renders an amount with grouping and at most two fraction digits.
func (f *Formatter) Number(d decimal.Decimal) string {
	v, _ := d.Round(2).Float64()
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// Money renders an amount prefixed with the currency symbol. The sign, if
// any, goes before the symbol.
func (f *Formatter) Money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + f.symbol + f.Number(d.Abs())
	}
	return f.symbol + f.Number(d)
}

// Symbol returns the configured currency glyph.
func (f *Formatter) Symbol() string { return f.symbol }

// Date shows the calendar portion of a stored date, or the raw text when it
// cannot be parsed.
func (f *Formatter) Date(s string) string {
	if t, ok := core.ParseDate(s); ok {
		return t.Format(core.DateLayout)
	}
	return s
}

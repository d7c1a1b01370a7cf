// Package token provides ERC20 metadata resolution and display-oriented
// amount normalization for campaign projections.
package token

import (
	"math"
	"math/big"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// maxFractionDigits bounds the fraction shown in locale-formatted amounts
const maxFractionDigits = 2

// Amount is a display-ready rendering of a base-unit token amount.
// Units is the exact decimal representation; Numeric is a best-effort float
// used only for ratio math, never for display decisions beyond formatting.
type Amount struct {
	Formatted string   `json:"formatted"`
	Numeric   *float64 `json:"numeric,omitempty"`
	Units     string   `json:"units"`
}

// Formatter renders token amounts with locale-aware separators
type Formatter struct {
	printer *message.Printer
}

// NewFormatter creates a formatter for the given locale
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

// DefaultFormatter returns a formatter for the default display locale
func DefaultFormatter() *Formatter {
	return NewFormatter(language.Spanish)
}

// Format converts an integer base-unit amount into a display Amount.
// It never fails: when the exact units string cannot be represented as a
// float, Numeric is nil and Formatted falls back to the raw units string.
func (f *Formatter) Format(value *big.Int, decimals uint8, symbol string) Amount {
	units := FormatUnits(value, decimals)

	var numeric *float64
	if parsed, err := strconv.ParseFloat(units, 64); err == nil && !math.IsInf(parsed, 0) && !math.IsNaN(parsed) {
		numeric = &parsed
	}

	var display string
	switch {
	case numeric != nil && math.Abs(*numeric) >= 1:
		display = f.printer.Sprintf("%v", number.Decimal(*numeric, number.MaxFractionDigits(maxFractionDigits)))
	case numeric != nil:
		display = strconv.FormatFloat(*numeric, 'g', maxFractionDigits, 64)
	default:
		display = units
	}

	return Amount{
		Formatted: display + " " + symbol,
		Numeric:   numeric,
		Units:     units,
	}
}

package token

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatUnits converts an integer base-unit amount into its exact decimal
// string representation, scaling by 10^decimals. No floating point is
// involved, so the result is lossless for any input.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		value = new(big.Int)
	}

	v := new(big.Int).Set(value)
	negative := v.Sign() < 0
	if negative {
		v.Neg(v)
	}

	if decimals == 0 {
		if negative {
			return "-" + v.String()
		}
		return v.String()
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, rem := new(big.Int).QuoRem(v, scale, new(big.Int))

	frac := rem.String()
	if pad := int(decimals) - len(frac); pad > 0 {
		frac = strings.Repeat("0", pad) + frac
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		frac = "0"
	}

	units := whole.String() + "." + frac
	if negative {
		units = "-" + units
	}
	return units
}

// ParseUnits converts a decimal string amount into its integer base-unit
// representation. It rejects malformed input and amounts with more
// fractional digits than the token supports, so a malformed user amount is
// caught before any transaction is built.
func ParseUnits(input string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("invalid amount %q", input)
	}
	if whole == "" {
		whole = "0"
	}
	if hasFrac && frac == "" {
		frac = "0"
	}

	if !isDigits(whole) || (hasFrac && !isDigits(frac)) {
		return nil, fmt.Errorf("invalid amount %q", input)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", input, decimals)
	}

	if pad := int(decimals) - len(frac); pad > 0 {
		frac = frac + strings.Repeat("0", pad)
	}

	value, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", input)
	}
	if negative {
		value.Neg(value)
	}
	return value, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
